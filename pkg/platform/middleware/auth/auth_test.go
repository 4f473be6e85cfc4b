package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	id "verigate/pkg/domain"
)

type stubValidator struct {
	claims *Claims
	err    error
}

func (s *stubValidator) ValidateToken(string) (*Claims, error) {
	return s.claims, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequireOrg(t *testing.T) {
	orgID := id.OrgID{}
	okValidator := &stubValidator{claims: &Claims{OrgID: "4f9f24ed-5f76-4c50-8e72-f5f1a1b0c001"}}

	t.Run("missing header rejected", func(t *testing.T) {
		h := RequireOrg(okValidator, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run")
		}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token rejected", func(t *testing.T) {
		bad := &stubValidator{err: errors.New("expired")}
		h := RequireOrg(bad, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run")
		}))
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token injects org into context", func(t *testing.T) {
		h := RequireOrg(okValidator, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID = GetOrgID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer good")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "4f9f24ed-5f76-4c50-8e72-f5f1a1b0c001", orgID.String())
	})

	t.Run("token without org claim rejected", func(t *testing.T) {
		empty := &stubValidator{claims: &Claims{}}
		h := RequireOrg(empty, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run")
		}))
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer good")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
