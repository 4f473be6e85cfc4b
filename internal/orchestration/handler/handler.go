// Package handler exposes the orchestration API over HTTP: a management
// surface for definitions and a relying-party surface for driving sessions.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"verigate/internal/orchestration/models"
	id "verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/httputil"
	"verigate/pkg/platform/middleware/auth"
	"verigate/pkg/platform/middleware/request"
	"verigate/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mock_service.go -package=mocks Service

// Service defines the orchestration operations the handler depends on.
type Service interface {
	CreateDefinition(ctx context.Context, orgID id.OrgID, req *models.CreateDefinitionRequest) (*models.Definition, error)
	GetDefinition(ctx context.Context, orgID id.OrgID, defID id.DefinitionID) (*models.Definition, error)
	StartOrchestration(ctx context.Context, orgID id.OrgID, defID id.DefinitionID, req *models.StartSessionRequest) (*models.Session, error)
	GetSession(ctx context.Context, orgID id.OrgID, sessionID id.SessionID) (*models.Session, error)
	CompleteStep(ctx context.Context, orgID id.OrgID, sessionID id.SessionID, stepID id.StepID, req *models.CompleteStepRequest) (*models.Session, error)
}

// Handler handles orchestration endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates an orchestration Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterAdmin registers the definition management routes. The router is
// expected to enforce operator authentication.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/orchestrations", h.handleCreateDefinition)
	r.Get("/admin/orchestrations/{orchestrationID}", h.handleGetDefinition)
}

// Register registers the relying-party routes. The router is expected to
// enforce org-scoped API token authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/orchestrations/{orchestrationID}/sessions", h.handleStartSession)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Post("/sessions/{sessionID}/steps/{stepID}/complete", h.handleCompleteStep)
}

func (h *Handler) handleCreateDefinition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateDefinitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	orgID, err := id.ParseOrgID(req.OrganizationID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "organizationId must be a valid UUID"))
		return
	}

	def, err := h.service.CreateDefinition(ctx, orgID, req)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create orchestration definition",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.ToDefinitionResponse(def))
}

func (h *Handler) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, err := id.ParseOrgID(r.URL.Query().Get("organizationId"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "organizationId query parameter must be a valid UUID"))
		return
	}
	defID, err := id.ParseDefinitionID(chi.URLParam(r, "orchestrationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	def, err := h.service.GetDefinition(ctx, orgID, defID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToDefinitionResponse(def))
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	orgID := auth.GetOrgID(ctx)
	if orgID.IsNil() {
		h.logger.ErrorContext(ctx, "org missing from context despite auth middleware",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	defID, err := id.ParseDefinitionID(chi.URLParam(r, "orchestrationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// The body is optional; an absent body starts a session without metadata.
	req := &models.StartSessionRequest{}
	if r.Body != nil && r.ContentLength != 0 {
		decoded, ok := httputil.DecodeJSON[models.StartSessionRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		req = decoded
	}
	enrichMetadata(ctx, req)

	session, err := h.service.StartOrchestration(ctx, orgID, defID, req)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to start orchestration session",
			"request_id", requestID,
			"definition_id", defID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, models.ToStatusResponse(session, h.lookupDefinition(ctx, orgID, session.DefinitionID), session.Verification))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID := auth.GetOrgID(ctx)
	if orgID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	session, err := h.service.GetSession(ctx, orgID, sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToStatusResponse(session, h.lookupDefinition(ctx, orgID, session.DefinitionID), session.Verification))
}

func (h *Handler) handleCompleteStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	orgID := auth.GetOrgID(ctx)
	if orgID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	stepID := id.StepID(chi.URLParam(r, "stepID"))
	if stepID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "step id is required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.CompleteStepRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	session, err := h.service.CompleteStep(ctx, orgID, sessionID, stepID, req)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to complete step",
			"request_id", requestID,
			"session_id", sessionID.String(),
			"step_id", stepID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.ToStatusResponse(session, h.lookupDefinition(ctx, orgID, session.DefinitionID), session.Verification))
}

// enrichMetadata records the requesting client's device and IP in the session
// metadata. Caller-supplied keys win on collision.
func enrichMetadata(ctx context.Context, req *models.StartSessionRequest) {
	device := requestcontext.Device(ctx)
	ip := requestcontext.ClientIP(ctx)
	if device == "" && ip == "" {
		return
	}
	if req.Metadata == nil {
		req.Metadata = make(map[string]string, 2)
	}
	if device != "" {
		if _, ok := req.Metadata["device"]; !ok {
			req.Metadata["device"] = device
		}
	}
	if ip != "" {
		if _, ok := req.Metadata["client_ip"]; !ok {
			req.Metadata["client_ip"] = ip
		}
	}
}

// lookupDefinition resolves a session's definition for response projection.
// The status projection tolerates a nil definition, so a lookup failure only
// costs the currentTemplate field, not the whole response.
func (h *Handler) lookupDefinition(ctx context.Context, orgID id.OrgID, defID id.DefinitionID) *models.Definition {
	def, err := h.service.GetDefinition(ctx, orgID, defID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to resolve definition for status response",
			"definition_id", defID.String(),
			"error", err,
		)
		return nil
	}
	return def
}
