// Package handler exposes webhook subscription management over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"verigate/internal/webhook/models"
	id "verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/httputil"
	"verigate/pkg/platform/middleware/auth"
	"verigate/pkg/platform/middleware/request"
)

//go:generate mockgen -source=handler.go -destination=mocks/mock_service.go -package=mocks Service

// Service defines the subscription operations the handler depends on.
type Service interface {
	Register(ctx context.Context, orgID id.OrgID, req *models.CreateSubscriptionRequest) (*models.CreatedSubscriptionResponse, error)
	Get(ctx context.Context, orgID id.OrgID, subID id.SubscriptionID) (*models.SubscriptionResponse, error)
	List(ctx context.Context, orgID id.OrgID) ([]*models.SubscriptionResponse, error)
	Update(ctx context.Context, orgID id.OrgID, subID id.SubscriptionID, req *models.UpdateSubscriptionRequest) (*models.SubscriptionResponse, error)
	Delete(ctx context.Context, orgID id.OrgID, subID id.SubscriptionID) error
}

// Handler handles webhook subscription endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a webhook Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register registers the subscription routes. The router is expected to
// enforce org-scoped API token authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/webhooks", h.handleRegister)
	r.Get("/webhooks", h.handleList)
	r.Get("/webhooks/{subscriptionID}", h.handleGet)
	r.Patch("/webhooks/{subscriptionID}", h.handleUpdate)
	r.Delete("/webhooks/{subscriptionID}", h.handleDelete)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	orgID, ok := h.requireOrg(ctx, w, requestID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CreateSubscriptionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	created, err := h.service.Register(ctx, orgID, req)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to register webhook subscription",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, ok := h.requireOrg(ctx, w, request.GetRequestID(ctx))
	if !ok {
		return
	}
	subs, err := h.service.List(ctx, orgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"subscriptions": subs})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, ok := h.requireOrg(ctx, w, request.GetRequestID(ctx))
	if !ok {
		return
	}
	subID, err := id.ParseSubscriptionID(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sub, err := h.service.Get(ctx, orgID, subID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	orgID, ok := h.requireOrg(ctx, w, requestID)
	if !ok {
		return
	}
	subID, err := id.ParseSubscriptionID(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateSubscriptionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sub, err := h.service.Update(ctx, orgID, subID, req)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to update webhook subscription",
			"request_id", requestID,
			"subscription_id", subID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, ok := h.requireOrg(ctx, w, request.GetRequestID(ctx))
	if !ok {
		return
	}
	subID, err := id.ParseSubscriptionID(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Delete(ctx, orgID, subID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireOrg(ctx context.Context, w http.ResponseWriter, requestID string) (id.OrgID, bool) {
	orgID := auth.GetOrgID(ctx)
	if orgID.IsNil() {
		h.logger.ErrorContext(ctx, "org missing from context despite auth middleware",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.OrgID{}, false
	}
	return orgID, true
}
