// Package verifier provides clients for the external verification engine,
// which runs the actual credential exchange for a step's template.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"verigate/internal/orchestration/models"
	"verigate/internal/sentinel"
	id "verigate/pkg/domain"
)

// HTTPClient starts verification sessions over the engine's REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// HTTPClientOption configures the HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(client *http.Client) HTTPClientOption {
	return func(c *HTTPClient) {
		c.httpClient = client
	}
}

// NewHTTPClient creates a verification engine client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type startRequest struct {
	Template  string `json:"template"`
	Reference string `json:"reference"`
}

type startResponse struct {
	SessionID string `json:"session_id"`
	QRCodeURL string `json:"qr_code_url"`
}

// StartVerification asks the engine to open a verification session for the
// template; the orchestration session ID is passed as an opaque reference so
// the engine's completion callback can be correlated.
func (c *HTTPClient) StartVerification(ctx context.Context, template string, sessionID id.SessionID) (*models.VerificationHandle, error) {
	reqBody, err := json.Marshal(startRequest{Template: template, Reference: sessionID.String()})
	if err != nil {
		return nil, fmt.Errorf("marshal verification request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/verification/sessions", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: verification engine unreachable: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read verification response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		// continue to parse
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: unknown verification template %q", sentinel.ErrInvalidInput, template)
	default:
		return nil, fmt.Errorf("%w: verification engine returned %d", sentinel.ErrUnavailable, resp.StatusCode)
	}

	var startResp startResponse
	if err := json.Unmarshal(body, &startResp); err != nil {
		return nil, fmt.Errorf("parse verification response: %w", err)
	}

	return &models.VerificationHandle{
		SessionID: startResp.SessionID,
		Template:  template,
		QRCodeURL: startResp.QRCodeURL,
	}, nil
}
