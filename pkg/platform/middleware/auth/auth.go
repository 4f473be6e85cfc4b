package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "verigate/pkg/domain"
	request "verigate/pkg/platform/middleware/request"
)

// Claims represents the claims we expect from the token validator.
type Claims struct {
	OrgID string
}

// TokenValidator validates relying-party API tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

type contextKeyOrgID struct{}

// GetOrgID returns the authenticated organization ID, or the nil ID when the
// request did not pass through RequireOrg.
func GetOrgID(ctx context.Context) id.OrgID {
	if orgID, ok := ctx.Value(contextKeyOrgID{}).(id.OrgID); ok {
		return orgID
	}
	return id.OrgID{}
}

// WithOrgID injects an organization ID into the context. Exported for tests.
func WithOrgID(ctx context.Context, orgID id.OrgID) context.Context {
	return context.WithValue(ctx, contextKeyOrgID{}, orgID)
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + errCode + `","error_description":"` + errDesc + `"}`))
}

// RequireOrg authenticates relying-party requests with a Bearer token and
// injects the token's organization ID into the context.
func RequireOrg(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing bearer token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "bearer token required")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			orgID, err := id.ParseOrgID(claims.OrgID)
			if err != nil || orgID.IsNil() {
				logger.WarnContext(ctx, "unauthorized access - token missing org claim",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOrgID(ctx, orgID)))
		})
	}
}
