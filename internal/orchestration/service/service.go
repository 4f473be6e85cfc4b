// Package service implements the orchestration engine: it owns the session
// state machine, resolves the next executable step after each completion, and
// finalizes sessions as COMPLETED or FAILED.
//
// Business-rule outcomes (duplicate completion, late completion, a rejecting
// branch, an unreachable step) are encoded in the returned session state, not
// surfaced as errors. Only infrastructure failures propagate to the caller.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"verigate/internal/audit"
	"verigate/internal/orchestration/graph"
	"verigate/internal/orchestration/metrics"
	"verigate/internal/orchestration/models"
	"verigate/internal/orchestration/store"
	"verigate/internal/orchestration/tracer"
	"verigate/internal/sentinel"
	wmodels "verigate/internal/webhook/models"
	id "verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"
)

const (
	defaultSessionTTL = 30 * time.Minute

	// casRetries bounds how often CompleteStep re-reads and re-resolves after
	// losing an optimistic-concurrency race on the session record.
	casRetries = 3
)

type Option func(*Service)

// Service sequences orchestration sessions over a shared session store.
// All state lives in the stores; the service itself is stateless and safe
// for concurrent use.
type Service struct {
	definitions store.DefinitionStore
	sessions    store.SessionStore
	verifier    Verifier
	notifier    Notifier
	auditor     *audit.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	tracer      tracer.Tracer
	sessionTTL  time.Duration
	stepEvents  bool
	now         func() time.Time
}

func NewService(definitions store.DefinitionStore, sessions store.SessionStore, verifier Verifier, opts ...Option) *Service {
	svc := &Service{
		definitions: definitions,
		sessions:    sessions,
		verifier:    verifier,
		tracer:      tracer.NewNoop(),
		sessionTTL:  defaultSessionTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.sessionTTL <= 0 {
		svc.sessionTTL = defaultSessionTTL
	}
	return svc
}

// WithNotifier sets the webhook dispatcher for lifecycle events.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithAuditor sets the audit publisher for the service.
func WithAuditor(a *audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = a
	}
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger instance for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer sets the tracer for the service.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithSessionTTL configures how long a session stays reachable in the store.
// If not set or set to zero/negative, defaults to 30 minutes.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithStepEvents enables a webhook event on every step completion, not only
// on terminal transitions.
func WithStepEvents(enabled bool) Option {
	return func(s *Service) {
		s.stepEvents = enabled
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

// CreateDefinition validates and persists a new orchestration definition.
// Definitions are immutable: a duplicate ID within the organization is a
// conflict, not an update.
func (s *Service) CreateDefinition(ctx context.Context, orgID id.OrgID, req *models.CreateDefinitionRequest) (*models.Definition, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	def := req.ToDefinition(orgID, s.now())
	if err := graph.Validate(def); err != nil {
		return nil, err
	}
	if err := s.definitions.Create(ctx, def); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "orchestration definition already exists: "+def.ID.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist definition")
	}
	s.emitAudit(ctx, audit.Event{
		OrgID:   orgID.String(),
		Action:  audit.ActionDefinitionCreated,
		Outcome: audit.OutcomeSuccess,
		Reason:  def.ID.String(),
	})
	s.logInfo(ctx, "orchestration definition created",
		"org_id", orgID.String(),
		"definition_id", def.ID.String(),
		"steps", len(def.Steps),
	)
	return def, nil
}

// GetDefinition returns a definition scoped to the organization.
func (s *Service) GetDefinition(ctx context.Context, orgID id.OrgID, defID id.DefinitionID) (*models.Definition, error) {
	def, err := s.definitions.Get(ctx, orgID, defID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "orchestration definition not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load definition")
	}
	return def, nil
}

// StartOrchestration creates a session for the definition pinned at its
// entry step and opens a verification exchange for that step's template.
func (s *Service) StartOrchestration(ctx context.Context, orgID id.OrgID, defID id.DefinitionID, req *models.StartSessionRequest) (*models.Session, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanStartOrchestration,
		tracer.String(tracer.AttrDefinitionID, defID.String()),
	)
	var spanErr error
	defer func() { span.End(spanErr) }()

	def, err := s.GetDefinition(ctx, orgID, defID)
	if err != nil {
		spanErr = err
		return nil, err
	}
	// Trust no caller to have validated independently.
	if err := graph.Validate(def); err != nil {
		spanErr = err
		return nil, &dErrors.Error{Code: dErrors.CodeInvariantViolation, Message: "stored definition is invalid", Err: err}
	}

	entry := def.EntryStep()
	now := s.now()
	session := &models.Session{
		ID:             id.NewSessionID(),
		DefinitionID:   def.ID,
		OrgID:          orgID,
		CurrentStepID:  entry.ID,
		CompletedSteps: make(map[id.StepID]models.StepResult),
		Status:         models.SessionInProgress,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.sessionTTL),
	}
	if req != nil && len(req.Metadata) > 0 {
		session.Metadata = req.Metadata
	}

	handle, err := s.verifier.StartVerification(ctx, entry.Template, session.ID)
	if err != nil {
		spanErr = err
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to start verification for entry step")
	}
	session.Verification = handle

	if err := s.sessions.Create(ctx, session, s.sessionTTL); err != nil {
		spanErr = err
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist session")
	}

	span.SetAttributes(
		tracer.String(tracer.AttrSessionID, session.ID.String()),
		tracer.String(tracer.AttrStepID, entry.ID.String()),
	)
	if s.metrics != nil {
		s.metrics.SessionsStarted.Inc()
	}
	s.emitAudit(ctx, audit.Event{
		OrgID:     orgID.String(),
		SessionID: session.ID.String(),
		Action:    audit.ActionSessionStarted,
		Outcome:   audit.OutcomeSuccess,
	})
	s.notify(orgID, wmodels.EventSessionStarted, wmodels.EventData{
		SessionID:       session.ID.String(),
		OrchestrationID: def.ID.String(),
		StepID:          entry.ID.String(),
		Template:        entry.Template,
		Status:          string(session.Status),
		Metadata:        session.Metadata,
	})
	s.logInfo(ctx, "orchestration session started",
		"org_id", orgID.String(),
		"session_id", session.ID.String(),
		"definition_id", def.ID.String(),
		"entry_step", entry.ID.String(),
	)
	return session, nil
}

// GetSession returns the current session snapshot scoped to the organization.
// Expired sessions are indistinguishable from missing ones.
func (s *Service) GetSession(ctx context.Context, orgID id.OrgID, sessionID id.SessionID) (*models.Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "session not found or expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load session")
	}
	if session.OrgID != orgID {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found or expired")
	}
	return session, nil
}

// CompleteStep records the external verifier's outcome for one step and
// advances or finalizes the session. Duplicate and late completions are
// absorbed: the current session is returned unchanged.
func (s *Service) CompleteStep(ctx context.Context, orgID id.OrgID, sessionID id.SessionID, stepID id.StepID, req *models.CompleteStepRequest) (*models.Session, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveCompleteStepLatency(time.Since(start))
		}
	}()

	ctx, span := s.tracer.Start(ctx, tracer.SpanCompleteStep,
		tracer.String(tracer.AttrSessionID, sessionID.String()),
		tracer.String(tracer.AttrStepID, stepID.String()),
	)
	var spanErr error
	defer func() { span.End(spanErr) }()

	if err := req.Validate(); err != nil {
		spanErr = err
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		session, err := s.GetSession(ctx, orgID, sessionID)
		if err != nil {
			spanErr = err
			return nil, err
		}

		// Completions arriving after finalization must never resurrect or
		// corrupt a terminal session.
		if session.Status.Terminal() {
			s.logInfo(ctx, "step completion after finalization absorbed",
				"session_id", sessionID.String(),
				"step_id", stepID.String(),
				"status", string(session.Status),
			)
			return session, nil
		}

		// Idempotent under at-least-once delivery from the external verifier.
		if session.HasResult(stepID) {
			if s.metrics != nil {
				s.metrics.DuplicateSteps.Inc()
			}
			span.AddEvent(tracer.EventDuplicateStep)
			return session, nil
		}

		def, err := s.GetDefinition(ctx, orgID, session.DefinitionID)
		if err != nil {
			spanErr = err
			return nil, err
		}
		step := def.FindStep(stepID)
		if step == nil {
			spanErr = dErrors.New(dErrors.CodeNotFound, "step not found in orchestration: "+stepID.String())
			return nil, spanErr
		}

		result := s.buildResult(req)
		session.CompletedSteps[stepID] = result
		if err := s.advance(ctx, session, def, step, result, span); err != nil {
			spanErr = err
			return nil, err
		}

		if err := s.sessions.Update(ctx, session); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				// Lost the write race; re-read and re-resolve from scratch.
				lastErr = err
				continue
			}
			spanErr = dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist session")
			return nil, spanErr
		}

		span.SetAttributes(tracer.String(tracer.AttrSessionState, string(session.Status)))
		s.recordCompletion(ctx, session, def, step, result)
		return session, nil
	}

	spanErr = dErrors.Wrap(lastErr, dErrors.CodeConflict, "session write contention")
	return nil, spanErr
}

// buildResult translates the verifier callback into the persisted record.
// Claims are only kept on success; an error string is only kept on failure.
func (s *Service) buildResult(req *models.CompleteStepRequest) models.StepResult {
	status := models.StepVerificationStatus(req.Status)
	result := models.StepResult{
		VerificationSessionID: req.VerificationSessionID,
		Status:                status,
		Success:               status == models.StepVerified,
		CompletedAt:           s.now(),
	}
	if result.Success {
		result.Claims = req.Claims
	} else {
		result.Error = req.Error
		if result.Error == "" {
			result.Error = "verification " + req.Status
		}
	}
	return result
}

// recordCompletion emits the metrics, audit trail, and webhook events for a
// persisted completion. Nothing here can fail the call.
func (s *Service) recordCompletion(ctx context.Context, session *models.Session, def *models.Definition, step *models.Step, result models.StepResult) {
	if s.metrics != nil {
		s.metrics.StepsCompleted.WithLabelValues(string(result.Status)).Inc()
	}
	s.emitAudit(ctx, audit.Event{
		OrgID:     session.OrgID.String(),
		SessionID: session.ID.String(),
		StepID:    step.ID.String(),
		Action:    audit.ActionStepCompleted,
		Outcome:   completionOutcome(result),
		Reason:    result.Error,
	})
	if s.stepEvents {
		s.notify(session.OrgID, wmodels.EventStepCompleted, wmodels.EventData{
			SessionID:       session.ID.String(),
			OrchestrationID: def.ID.String(),
			StepID:          step.ID.String(),
			Template:        step.Template,
			Status:          string(result.Status),
			Result:          result.Claims,
			Metadata:        session.Metadata,
		})
	}

	switch session.Status {
	case models.SessionCompleted:
		if s.metrics != nil {
			s.metrics.SessionsCompleted.Inc()
		}
		s.emitAudit(ctx, audit.Event{
			OrgID:     session.OrgID.String(),
			SessionID: session.ID.String(),
			Action:    audit.ActionSessionCompleted,
			Outcome:   audit.OutcomeSuccess,
		})
		s.notify(session.OrgID, wmodels.EventCompleted, wmodels.EventData{
			SessionID:       session.ID.String(),
			OrchestrationID: def.ID.String(),
			Status:          string(session.Status),
			Result:          completionClaims(session, def),
			Metadata:        session.Metadata,
		})
		s.logInfo(ctx, "orchestration session completed",
			"session_id", session.ID.String(),
			"steps", len(session.CompletedSteps),
		)
	case models.SessionFailed:
		if s.metrics != nil {
			s.metrics.SessionsFailed.WithLabelValues(failureLabel(session.FailureReason)).Inc()
		}
		s.emitAudit(ctx, audit.Event{
			OrgID:     session.OrgID.String(),
			SessionID: session.ID.String(),
			Action:    audit.ActionSessionFailed,
			Outcome:   audit.OutcomeFailure,
			Reason:    session.FailureReason,
		})
		s.notify(session.OrgID, wmodels.EventFailed, wmodels.EventData{
			SessionID:       session.ID.String(),
			OrchestrationID: def.ID.String(),
			Status:          string(session.Status),
			Result:          map[string]string{"reason": session.FailureReason},
			Metadata:        session.Metadata,
		})
		s.logWarn(ctx, "orchestration session failed",
			"session_id", session.ID.String(),
			"reason", session.FailureReason,
		)
	}
}

// completionClaims builds the result payload for a completed session,
// honoring the definition's includeData filter when one is configured.
func completionClaims(session *models.Session, def *models.Definition) map[string]string {
	claims := session.Claims()
	if def.OnComplete == nil || len(def.OnComplete.IncludeData) == 0 {
		return claims
	}
	filtered := make(map[string]string, len(def.OnComplete.IncludeData))
	for _, key := range def.OnComplete.IncludeData {
		if v, ok := claims[key]; ok {
			filtered[key] = v
		}
	}
	return filtered
}

func completionOutcome(result models.StepResult) string {
	if result.Success {
		return audit.OutcomeSuccess
	}
	return audit.OutcomeFailure
}

func (s *Service) notify(orgID id.OrgID, event string, data wmodels.EventData) {
	if s.notifier == nil {
		return
	}
	s.notifier.DispatchAsync(orgID, wmodels.Payload{
		Event:     event,
		Timestamp: s.now().UTC(),
		Data:      data,
	})
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.Timestamp = s.now()
	_ = s.auditor.Emit(ctx, event)
}

func (s *Service) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}

func (s *Service) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}

func (s *Service) logError(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.ErrorContext(ctx, msg, args...)
	}
}

// failureLabel maps free-form failure reasons onto a bounded metric label set.
func failureLabel(reason string) string {
	switch {
	case strings.HasPrefix(reason, rejectedPrefix):
		return "rejected"
	case strings.HasPrefix(reason, unreachablePrefix):
		return "unreachable_step"
	default:
		return "step_failed"
	}
}
