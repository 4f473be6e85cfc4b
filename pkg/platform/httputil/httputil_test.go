package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "verigate/pkg/domain-errors"
)

type testRequest struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type validatingRequest struct {
	Name string `json:"name"`
}

func (r *validatingRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDecodeJSON(t *testing.T) {
	t.Run("decodes valid body", func(t *testing.T) {
		body := bytes.NewBufferString(`{"name":"identity","value":3}`)
		r := httptest.NewRequest(http.MethodPost, "/", body)
		w := httptest.NewRecorder()

		req, ok := DecodeJSON[testRequest](w, r, testLogger(), context.Background(), "req-1")
		require.True(t, ok)
		assert.Equal(t, "identity", req.Name)
		assert.Equal(t, 3, req.Value)
	})

	t.Run("writes bad request on malformed body", func(t *testing.T) {
		body := bytes.NewBufferString(`{oops`)
		r := httptest.NewRequest(http.MethodPost, "/", body)
		w := httptest.NewRecorder()

		_, ok := DecodeJSON[testRequest](w, r, testLogger(), context.Background(), "req-1")
		require.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDecodeAndPrepare(t *testing.T) {
	t.Run("runs validation", func(t *testing.T) {
		body := bytes.NewBufferString(`{"name":""}`)
		r := httptest.NewRequest(http.MethodPost, "/", body)
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[validatingRequest](w, r, testLogger(), context.Background(), "req-1")
		require.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", dErrors.New(dErrors.CodeNotFound, "session not found"), http.StatusNotFound, "not_found"},
		{"expired maps to not found", dErrors.New(dErrors.CodeExpired, "session expired"), http.StatusNotFound, "expired"},
		{"validation", dErrors.New(dErrors.CodeValidation, "cycle detected"), http.StatusBadRequest, "validation_failed"},
		{"unavailable", dErrors.New(dErrors.CodeUnavailable, "store down"), http.StatusServiceUnavailable, "unavailable"},
		{"plain error falls back to 500", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tc.err)
			assert.Equal(t, tc.wantStatus, w.Code)

			var payload map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
			assert.Equal(t, tc.wantCode, payload["error"])
		})
	}
}
