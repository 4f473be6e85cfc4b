package metadata

import (
	"net"
	"net/http"
	"strings"

	"verigate/pkg/requestcontext"
)

// MaxXFFHeaderLength is the maximum allowed length for the X-Forwarded-For
// header to prevent header injection attacks.
const MaxXFFHeaderLength = 500

// Config holds configuration for the metadata middleware.
type Config struct {
	// TrustProxyHeaders controls whether X-Forwarded-For is honored.
	// Only enable behind a trusted reverse proxy.
	TrustProxyHeaders bool
}

// Middleware extracts client metadata (IP, User-Agent) into the request context.
type Middleware struct {
	config Config
}

// New creates a metadata middleware. The zero Config is secure by default:
// proxy headers are ignored.
func New(cfg Config) *Middleware {
	return &Middleware{config: cfg}
}

// Handler extracts client IP address and User-Agent from the request
// and adds them to the context for use by handlers and services.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = requestcontext.WithClientIP(ctx, m.extractClientIP(r))
		ctx = requestcontext.WithUserAgent(ctx, r.Header.Get("User-Agent"))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractClientIP returns the direct connection IP, or the first
// X-Forwarded-For hop when proxy headers are trusted.
func (m *Middleware) extractClientIP(r *http.Request) string {
	remoteIP := parseRemoteAddr(r.RemoteAddr)

	if !m.config.TrustProxyHeaders {
		return remoteIP
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" || len(xff) > MaxXFFHeaderLength {
		return remoteIP
	}
	first, _, _ := strings.Cut(xff, ",")
	first = strings.TrimSpace(first)
	if net.ParseIP(first) == nil {
		return remoteIP
	}
	return first
}

func parseRemoteAddr(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
