package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults kept as vars so FromEnv can override them once at startup.
var (
	// SessionTTL bounds how long an orchestration session stays resumable.
	SessionTTL = 30 * time.Minute

	// WebhookTimeout is the per-request delivery timeout (connect + read).
	WebhookTimeout = 10 * time.Second
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string

	// AdminTokenHash is the bcrypt hash the admin middleware verifies
	// against. AdminToken is only consulted when no hash is configured; it
	// gets hashed once at startup.
	AdminToken     string
	AdminTokenHash string

	APITokenSigningKey string
	APITokenTTL        time.Duration

	SessionTTL time.Duration

	// Webhook delivery knobs.
	WebhookTimeout     time.Duration
	WebhookMaxAttempts int
	WebhookWorkers     int

	// StepWebhooks enables a webhook event on every step completion, not
	// only on terminal transitions.
	StepWebhooks bool

	// TrustProxyHeaders controls whether X-Forwarded-For is honored.
	TrustProxyHeaders bool

	Verifier VerifierConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// VerifierConfig holds connection settings for the external verification
// engine. An empty BaseURL selects the local stub, which is only useful for
// development.
type VerifierConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	QRBaseURL string
}

// RedisConfig holds connection settings for the Redis-backed stores.
type RedisConfig struct {
	URL      string
	PoolSize int
}

// KafkaConfig holds connection settings for audit event publishing.
type KafkaConfig struct {
	Brokers    string
	AuditTopic string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("VERIGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	env := os.Getenv("VERIGATE_ENV")
	if env == "" {
		env = "development"
	}

	if ttl := durationEnv("SESSION_TTL"); ttl > 0 {
		SessionTTL = ttl
	}
	if timeout := durationEnv("WEBHOOK_TIMEOUT"); timeout > 0 {
		WebhookTimeout = timeout
	}

	adminToken := os.Getenv("ADMIN_TOKEN")
	if adminToken == "" {
		// Use a default for development - should be overridden in production
		adminToken = "dev-admin-token-change-in-production"
	}

	signingKey := os.Getenv("API_TOKEN_SIGNING_KEY")
	if signingKey == "" {
		signingKey = "dev-secret-key-change-in-production"
	}

	tokenTTL := durationEnv("API_TOKEN_TTL")
	if tokenTTL == 0 {
		tokenTTL = 24 * time.Hour
	}

	return Server{
		Addr:               addr,
		Environment:        env,
		AdminToken:         adminToken,
		AdminTokenHash:     os.Getenv("ADMIN_TOKEN_HASH"),
		APITokenSigningKey: signingKey,
		APITokenTTL:        tokenTTL,
		SessionTTL:         SessionTTL,
		WebhookTimeout:     WebhookTimeout,
		WebhookMaxAttempts: intEnv("WEBHOOK_MAX_ATTEMPTS", 3),
		WebhookWorkers:     intEnv("WEBHOOK_WORKERS", 16),
		StepWebhooks:       os.Getenv("WEBHOOK_STEP_EVENTS") == "true",
		TrustProxyHeaders:  os.Getenv("TRUST_PROXY_HEADERS") == "true",
		Verifier: VerifierConfig{
			BaseURL:   os.Getenv("VERIFIER_BASE_URL"),
			APIKey:    os.Getenv("VERIFIER_API_KEY"),
			Timeout:   durationOr("VERIFIER_TIMEOUT", 15*time.Second),
			QRBaseURL: os.Getenv("VERIFIER_QR_BASE_URL"),
		},
		Redis: RedisConfig{
			URL:      os.Getenv("REDIS_URL"),
			PoolSize: intEnv("REDIS_POOL_SIZE", 10),
		},
		Kafka: KafkaConfig{
			Brokers:    os.Getenv("KAFKA_BROKERS"),
			AuditTopic: envOr("KAFKA_AUDIT_TOPIC", "verigate.audit.events"),
		},
	}
}

func durationEnv(key string) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if d := durationEnv(key); d > 0 {
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
