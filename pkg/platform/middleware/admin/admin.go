package admin

import (
	"context"
	"log/slog"
	"net/http"

	request "verigate/pkg/platform/middleware/request"
	"verigate/pkg/secrets"
)

// Context key for storing admin actor identifier.
type contextKeyAdminActorID struct{}

// ContextKeyAdminActorID is exported for use in handlers and tests.
var ContextKeyAdminActorID = contextKeyAdminActorID{}

// GetAdminActorID retrieves the admin actor identifier from the context.
// Returns empty string if not set or if this is not an admin request.
func GetAdminActorID(ctx context.Context) string {
	if actorID, ok := ctx.Value(ContextKeyAdminActorID).(string); ok {
		return actorID
	}
	return ""
}

// RequireAdminToken guards management endpoints with a shared operator token.
// The token is never held in memory here; callers supply its bcrypt hash and
// each request is verified against that.
func RequireAdminToken(tokenHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if token == "" || secrets.Verify(token, tokenHash) != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", request.GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}

			ctx := r.Context()
			// Capture admin actor identifier for audit attribution.
			if actorID := r.Header.Get("X-Admin-Actor-ID"); actorID != "" {
				ctx = context.WithValue(ctx, ContextKeyAdminActorID, actorID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
