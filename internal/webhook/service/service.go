// Package service manages webhook subscription registrations. Signing
// secrets are generated server-side and returned exactly once.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"verigate/internal/audit"
	"verigate/internal/sentinel"
	"verigate/internal/webhook/models"
	"verigate/internal/webhook/store"
	id "verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/secrets"
)

type Option func(*Service)

// Service owns the subscription registry.
type Service struct {
	store   store.Store
	auditor *audit.Publisher
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(store store.Store, opts ...Option) *Service {
	svc := &Service{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithAuditor sets the audit publisher for the service.
func WithAuditor(a *audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = a
	}
}

// WithLogger sets the logger instance for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Register creates a subscription with a fresh signing secret. The plaintext
// secret appears only in this response; afterwards it exists solely for
// signing deliveries.
func (s *Service) Register(ctx context.Context, orgID id.OrgID, req *models.CreateSubscriptionRequest) (*models.CreatedSubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	secret, err := secrets.Generate()
	if err != nil {
		return nil, err
	}
	sub := &models.Subscription{
		ID:          id.NewSubscriptionID(),
		OrgID:       orgID,
		URL:         req.URL,
		Secret:      secret,
		Events:      req.Events,
		Description: req.Description,
		Enabled:     true,
		CreatedAt:   s.now(),
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist subscription")
	}
	s.emitAudit(ctx, orgID, audit.ActionSubscriptionCreated, sub.ID.String())
	if s.logger != nil {
		s.logger.InfoContext(ctx, "webhook subscription registered",
			"org_id", orgID.String(),
			"subscription_id", sub.ID.String(),
			"events", sub.Events,
		)
	}
	return &models.CreatedSubscriptionResponse{
		SubscriptionResponse: *models.ToSubscriptionResponse(sub),
		Secret:               secret,
	}, nil
}

// Get returns one subscription scoped to the organization.
func (s *Service) Get(ctx context.Context, orgID id.OrgID, subID id.SubscriptionID) (*models.SubscriptionResponse, error) {
	sub, err := s.load(ctx, orgID, subID)
	if err != nil {
		return nil, err
	}
	return models.ToSubscriptionResponse(sub), nil
}

// List returns all subscriptions of the organization in creation order.
func (s *Service) List(ctx context.Context, orgID id.OrgID) ([]*models.SubscriptionResponse, error) {
	subs, err := s.store.List(ctx, orgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list subscriptions")
	}
	out := make([]*models.SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, models.ToSubscriptionResponse(sub))
	}
	return out, nil
}

// Update applies partial changes. The secret is never updatable; rotate by
// deleting and re-registering.
func (s *Service) Update(ctx context.Context, orgID id.OrgID, subID id.SubscriptionID, req *models.UpdateSubscriptionRequest) (*models.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sub, err := s.load(ctx, orgID, subID)
	if err != nil {
		return nil, err
	}
	if req.URL != nil {
		sub.URL = *req.URL
	}
	if req.Events != nil {
		sub.Events = *req.Events
	}
	if req.Description != nil {
		sub.Description = *req.Description
	}
	if req.Enabled != nil {
		sub.Enabled = *req.Enabled
	}
	if err := s.store.Update(ctx, sub); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to update subscription")
	}
	s.emitAudit(ctx, orgID, audit.ActionSubscriptionUpdated, subID.String())
	return models.ToSubscriptionResponse(sub), nil
}

// Delete removes the subscription. Deliveries already in flight for it may
// still complete.
func (s *Service) Delete(ctx context.Context, orgID id.OrgID, subID id.SubscriptionID) error {
	if err := s.store.Delete(ctx, orgID, subID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "subscription not found")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to delete subscription")
	}
	s.emitAudit(ctx, orgID, audit.ActionSubscriptionDeleted, subID.String())
	return nil
}

func (s *Service) load(ctx context.Context, orgID id.OrgID, subID id.SubscriptionID) (*models.Subscription, error) {
	sub, err := s.store.Get(ctx, orgID, subID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "subscription not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load subscription")
	}
	return sub, nil
}

func (s *Service) emitAudit(ctx context.Context, orgID id.OrgID, action, subject string) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, audit.Event{
		OrgID:   orgID.String(),
		Action:  action,
		Outcome: audit.OutcomeSuccess,
		Reason:  subject,
	})
}
