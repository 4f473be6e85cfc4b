package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"verigate/internal/audit"
	orchhandler "verigate/internal/orchestration/handler"
	orchmetrics "verigate/internal/orchestration/metrics"
	orchservice "verigate/internal/orchestration/service"
	orchstore "verigate/internal/orchestration/store"
	"verigate/internal/orchestration/tracer"
	"verigate/internal/orchestration/verifier"
	"verigate/internal/platform/config"
	"verigate/internal/platform/health"
	"verigate/internal/platform/httpserver"
	"verigate/internal/platform/kafka/producer"
	"verigate/internal/platform/logger"
	platformredis "verigate/internal/platform/redis"
	"verigate/internal/platform/token"
	"verigate/internal/webhook/dispatcher"
	webhookhandler "verigate/internal/webhook/handler"
	webhookmetrics "verigate/internal/webhook/metrics"
	webhookservice "verigate/internal/webhook/service"
	webhookstore "verigate/internal/webhook/store"
	"verigate/pkg/platform/middleware/admin"
	"verigate/pkg/platform/middleware/auth"
	"verigate/pkg/platform/middleware/device"
	"verigate/pkg/platform/middleware/metadata"
	"verigate/pkg/platform/middleware/request"
	"verigate/pkg/secrets"
)

// main wires the dependency graph and owns the process lifecycle. Business
// logic lives in the internal services; nothing here should branch on domain
// state.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing verigate",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"redis_configured", cfg.Redis.URL != "",
		"kafka_configured", cfg.Kafka.Brokers != "",
		"verifier_configured", cfg.Verifier.BaseURL != "",
	)

	// Stores: Redis when configured, in-memory otherwise. The in-memory
	// variants are for development and single-node setups only.
	var (
		definitions orchstore.DefinitionStore
		sessions    orchstore.SessionStore
		webhooks    webhookstore.Store
	)
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		definitions = orchstore.NewRedisDefinitionStore(redisClient.Client)
		sessions = orchstore.NewRedisSessionStore(redisClient.Client)
		webhooks = webhookstore.NewRedisStore(redisClient.Client)
		log.Info("using redis-backed stores")
	} else {
		definitions = orchstore.NewInMemoryDefinitionStore()
		sessions = orchstore.NewInMemorySessionStore()
		webhooks = webhookstore.NewInMemoryStore()
		log.Warn("REDIS_URL not set, using in-memory stores; state is lost on restart")
	}

	// Audit trail: always kept queryable in memory, mirrored to Kafka when
	// brokers are configured.
	var kafkaProducer *producer.Producer
	auditStore := audit.Store(audit.NewInMemoryStore())
	if cfg.Kafka.Brokers != "" {
		producerCfg := producer.DefaultConfig()
		producerCfg.Brokers = cfg.Kafka.Brokers
		kafkaProducer, err = producer.New(producerCfg, log)
		if err != nil {
			log.Error("failed to create kafka producer", "error", err)
			os.Exit(1)
		}
		auditStore = audit.NewMultiStore(auditStore, audit.NewKafkaStore(kafkaProducer, cfg.Kafka.AuditTopic))
		log.Info("audit events mirrored to kafka", "topic", cfg.Kafka.AuditTopic)
	}
	auditor := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
	)

	// External verification engine client.
	var verifierClient orchservice.Verifier
	if cfg.Verifier.BaseURL != "" {
		verifierClient = verifier.NewHTTPClient(cfg.Verifier.BaseURL, cfg.Verifier.APIKey, cfg.Verifier.Timeout)
	} else {
		verifierClient = verifier.NewStub(cfg.Verifier.QRBaseURL)
		log.Warn("VERIFIER_BASE_URL not set, using stub verifier")
	}

	// Webhook delivery.
	notifier := dispatcher.NewDispatcher(webhooks,
		dispatcher.WithHTTPClient(&http.Client{Timeout: cfg.WebhookTimeout}),
		dispatcher.WithLogger(log),
		dispatcher.WithMetrics(webhookmetrics.New()),
		dispatcher.WithMaxAttempts(cfg.WebhookMaxAttempts),
		dispatcher.WithMaxParallel(cfg.WebhookWorkers),
	)

	engine := orchservice.NewService(definitions, sessions, verifierClient,
		orchservice.WithNotifier(notifier),
		orchservice.WithAuditor(auditor),
		orchservice.WithMetrics(orchmetrics.New()),
		orchservice.WithLogger(log),
		orchservice.WithTracer(tracer.NewOTel()),
		orchservice.WithSessionTTL(cfg.SessionTTL),
		orchservice.WithStepEvents(cfg.StepWebhooks),
	)
	registry := webhookservice.NewService(webhooks,
		webhookservice.WithAuditor(auditor),
		webhookservice.WithLogger(log),
	)

	tokenService := token.NewService(cfg.APITokenSigningKey, "verigate", cfg.APITokenTTL)

	// Operators normally provide ADMIN_TOKEN_HASH; hashing the plaintext
	// token here covers dev setups that only set ADMIN_TOKEN.
	if cfg.AdminTokenHash == "" {
		cfg.AdminTokenHash, err = secrets.Hash(cfg.AdminToken)
		if err != nil {
			log.Error("failed to hash admin token", "error", err)
			os.Exit(1)
		}
	}

	router := newRouter(cfg, log, engine, registry, tokenService, redisClient)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	// Stop taking new work before draining the side channels. Shutdown
	// aborts pending webhook retries rather than waiting out their backoff.
	notifier.Shutdown()
	auditor.Close()
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Error("failed to close kafka producer", "error", err)
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("failed to close redis client", "error", err)
		}
	}

	log.Info("server stopped")
}

// newRouter assembles the middleware stack and mounts the API surfaces:
// operator management under the admin token and the relying-party API under
// bearer token auth.
func newRouter(
	cfg config.Server,
	slogger *slog.Logger,
	engine *orchservice.Service,
	registry *webhookservice.Service,
	tokenService *token.Service,
	redisClient *platformredis.Client,
) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recovery(slogger))
	r.Use(request.RequestID)
	r.Use(request.Logger(slogger))
	r.Use(request.Latency(request.NewMetrics()))
	r.Use(request.Timeout(30 * time.Second))
	r.Use(metadata.New(metadata.Config{TrustProxyHeaders: cfg.TrustProxyHeaders}).Handler)
	r.Use(device.Device)

	healthHandler := health.New(cfg.Environment)
	if redisClient != nil {
		healthHandler.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(ctx)
		})
	}
	healthHandler.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	orchHandler := orchhandler.New(engine, slogger)
	webhookHandler := webhookhandler.New(registry, slogger)

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(cfg.AdminTokenHash, slogger))
		orchHandler.RegisterAdmin(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireOrg(tokenService, slogger))
		orchHandler.Register(r)
		webhookHandler.Register(r)
	})

	return r
}
