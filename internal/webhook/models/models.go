// Package models defines webhook subscriptions and the event payloads
// delivered to them.
package models

import (
	"net/url"
	"slices"
	"strings"
	"time"

	id "verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"
)

// Event names emitted by the orchestration engine.
const (
	EventSessionStarted = "verification.session.started"
	EventStepCompleted  = "verification.step.completed"
	EventCompleted      = "verification.completed"
	EventFailed         = "verification.failed"
)

// EventWildcard subscribes to every event.
const EventWildcard = "*"

// Subscription is one registered webhook endpoint. The secret is generated
// server-side at registration and shown to the caller exactly once; API
// responses go through SubscriptionResponse, which omits it.
type Subscription struct {
	ID          id.SubscriptionID `json:"id"`
	OrgID       id.OrgID          `json:"organizationId"`
	URL         string            `json:"url"`
	Secret      string            `json:"secret"`
	Events      []string          `json:"events"`
	Description string            `json:"description,omitempty"`
	Enabled     bool              `json:"enabled"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Matches reports whether the subscription should receive the event.
func (s *Subscription) Matches(event string) bool {
	if !s.Enabled {
		return false
	}
	return slices.Contains(s.Events, event) || slices.Contains(s.Events, EventWildcard)
}

// Payload is the wire format POSTed to subscribers.
type Payload struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
}

// EventData carries the session context for one event.
type EventData struct {
	SessionID       string            `json:"sessionId"`
	OrchestrationID string            `json:"orchestrationId,omitempty"`
	StepID          string            `json:"stepId,omitempty"`
	Template        string            `json:"template,omitempty"`
	Status          string            `json:"status"`
	Result          map[string]string `json:"result,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// CreateSubscriptionRequest registers a new webhook endpoint.
type CreateSubscriptionRequest struct {
	URL         string   `json:"url"`
	Events      []string `json:"events"`
	Description string   `json:"description,omitempty"`
}

func (r *CreateSubscriptionRequest) Normalize() {
	r.URL = strings.TrimSpace(r.URL)
	r.Description = strings.TrimSpace(r.Description)
	for i := range r.Events {
		r.Events[i] = strings.TrimSpace(r.Events[i])
	}
}

func (r *CreateSubscriptionRequest) Validate() error {
	if err := validateURL(r.URL); err != nil {
		return err
	}
	if len(r.Events) == 0 {
		return dErrors.New(dErrors.CodeValidation, "events must not be empty")
	}
	for _, e := range r.Events {
		if e == "" {
			return dErrors.New(dErrors.CodeValidation, "events must not contain empty entries")
		}
	}
	return nil
}

// UpdateSubscriptionRequest modifies an existing registration. Nil fields are
// left unchanged; the secret is never updatable.
type UpdateSubscriptionRequest struct {
	URL         *string   `json:"url,omitempty"`
	Events      *[]string `json:"events,omitempty"`
	Description *string   `json:"description,omitempty"`
	Enabled     *bool     `json:"enabled,omitempty"`
}

func (r *UpdateSubscriptionRequest) Normalize() {
	if r.URL != nil {
		trimmed := strings.TrimSpace(*r.URL)
		r.URL = &trimmed
	}
}

func (r *UpdateSubscriptionRequest) Validate() error {
	if r.URL != nil {
		if err := validateURL(*r.URL); err != nil {
			return err
		}
	}
	if r.Events != nil && len(*r.Events) == 0 {
		return dErrors.New(dErrors.CodeValidation, "events must not be empty")
	}
	return nil
}

// validateURL enforces HTTPS-only endpoints.
func validateURL(raw string) error {
	if raw == "" {
		return dErrors.New(dErrors.CodeValidation, "url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return dErrors.New(dErrors.CodeValidation, "url must be a valid absolute URL")
	}
	if u.Scheme != "https" {
		return dErrors.New(dErrors.CodeValidation, "url must use https")
	}
	return nil
}

// SubscriptionResponse is the API view of a subscription, without the secret.
type SubscriptionResponse struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Events      []string  `json:"events"`
	Description string    `json:"description,omitempty"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"createdAt"`
}

func ToSubscriptionResponse(s *Subscription) *SubscriptionResponse {
	return &SubscriptionResponse{
		ID:          s.ID.String(),
		URL:         s.URL,
		Events:      append([]string{}, s.Events...),
		Description: s.Description,
		Enabled:     s.Enabled,
		CreatedAt:   s.CreatedAt,
	}
}

// CreatedSubscriptionResponse is returned once at registration time and is
// the only place the plaintext secret appears.
type CreatedSubscriptionResponse struct {
	SubscriptionResponse
	Secret string `json:"secret"`
}
