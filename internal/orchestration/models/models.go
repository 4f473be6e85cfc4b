// Package models defines the orchestration definitions and sessions that the
// engine sequences. Definitions are immutable once created; sessions are the
// mutable per-execution state.
package models

import (
	"time"

	id "verigate/pkg/domain"
)

// StepType identifies what kind of verification a step performs.
type StepType string

const (
	StepTypeIdentity StepType = "identity"
	StepTypePayment  StepType = "payment"
	StepTypeCustom   StepType = "custom"
)

// ConditionKind selects how a step condition is evaluated against claims.
type ConditionKind string

const (
	ConditionClaimEquals ConditionKind = "claim_equals"
	ConditionClaimExists ConditionKind = "claim_exists"
	ConditionAlways      ConditionKind = "always"
)

// RouteReject is the condition routing target that fails the whole
// orchestration instead of naming a next step.
const RouteReject = "reject"

// StepCondition governs which step is entered next once the current step's
// claims are known. Branching is layered on top of the static dependency
// graph: a condition never removes a dependency edge, it selects among
// otherwise-eligible next steps.
type StepCondition struct {
	Kind    ConditionKind `json:"type"`
	Claim   string        `json:"claim,omitempty"`
	Value   string        `json:"value,omitempty"`
	OnTrue  string        `json:"onTrue,omitempty"`
	OnFalse string        `json:"onFalse,omitempty"`
}

// Step is one unit of work in an orchestration, backed by a verification
// template executed by the external verification engine.
type Step struct {
	ID          id.StepID      `json:"id"`
	Type        StepType       `json:"type"`
	Template    string         `json:"template"`
	DisplayName string         `json:"name,omitempty"`
	DependsOn   []id.StepID    `json:"dependsOn,omitempty"`
	Condition   *StepCondition `json:"condition,omitempty"`
}

// CompletionTarget describes where results go when a session finishes.
type CompletionTarget struct {
	WebhookURL  string   `json:"webhook,omitempty"`
	RedirectURL string   `json:"redirect,omitempty"`
	IncludeData []string `json:"includeData,omitempty"`
}

// Definition is a reusable, immutable description of a multi-step
// verification workflow. A new version is a new ID.
type Definition struct {
	ID         id.DefinitionID   `json:"id"`
	OrgID      id.OrgID          `json:"organizationId"`
	Name       string            `json:"name"`
	Steps      []Step            `json:"steps"`
	OnComplete *CompletionTarget `json:"onComplete,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// FindStep returns the step with the given ID, or nil.
func (d *Definition) FindStep(stepID id.StepID) *Step {
	for i := range d.Steps {
		if d.Steps[i].ID == stepID {
			return &d.Steps[i]
		}
	}
	return nil
}

// EntryStep returns the first declared step with no dependencies.
// Declaration order is the documented tie-break when several qualify.
func (d *Definition) EntryStep() *Step {
	for i := range d.Steps {
		if len(d.Steps[i].DependsOn) == 0 {
			return &d.Steps[i]
		}
	}
	return nil
}

// SessionStatus is the lifecycle state of a session. COMPLETED and FAILED
// are terminal: no transition ever leaves them.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// StepVerificationStatus is the outcome reported by the external verifier.
type StepVerificationStatus string

const (
	StepVerified StepVerificationStatus = "verified"
	StepFailed   StepVerificationStatus = "failed"
	StepExpired  StepVerificationStatus = "expired"
)

// Valid reports whether the status is one the external verifier may report.
func (s StepVerificationStatus) Valid() bool {
	switch s {
	case StepVerified, StepFailed, StepExpired:
		return true
	}
	return false
}

// StepResult records the outcome of one step. Once written for a given step
// it is never overwritten; CompleteStep is a monotonic append.
type StepResult struct {
	VerificationSessionID string                 `json:"verificationSessionId"`
	Status                StepVerificationStatus `json:"status"`
	Success               bool                   `json:"success"`
	CompletedAt           time.Time              `json:"completedAt"`
	Claims                map[string]string      `json:"claims,omitempty"`
	Error                 string                 `json:"error,omitempty"`
}

// Session is one execution instance of a definition.
type Session struct {
	ID             id.SessionID             `json:"id"`
	DefinitionID   id.DefinitionID          `json:"orchestrationId"`
	OrgID          id.OrgID                 `json:"organizationId"`
	CurrentStepID  id.StepID                `json:"currentStepId,omitempty"` // empty once terminal
	Verification   *VerificationHandle      `json:"verification,omitempty"`  // handle for the current step
	CompletedSteps map[id.StepID]StepResult `json:"completedSteps"`
	Status         SessionStatus            `json:"status"`
	FailureReason  string                   `json:"failureReason,omitempty"`
	CreatedAt      time.Time                `json:"createdAt"`
	ExpiresAt      time.Time                `json:"expiresAt"`
	Metadata       map[string]string        `json:"metadata,omitempty"`

	// Version supports compare-and-swap writes in the session store so
	// concurrent completions cannot silently overwrite each other.
	Version int64 `json:"version"`
}

// HasResult reports whether a result is already recorded for the step.
func (s *Session) HasResult(stepID id.StepID) bool {
	_, ok := s.CompletedSteps[stepID]
	return ok
}

// Claims merges the claims of all successful steps, later steps winning on
// key collisions. This is the claim set conditions are evaluated against.
func (s *Session) Claims() map[string]string {
	merged := make(map[string]string)
	for _, result := range s.CompletedSteps {
		if !result.Success {
			continue
		}
		for k, v := range result.Claims {
			merged[k] = v
		}
	}
	return merged
}

// Clone returns a deep copy so callers can mutate without aliasing the
// store's snapshot.
func (s *Session) Clone() *Session {
	out := *s
	out.CompletedSteps = make(map[id.StepID]StepResult, len(s.CompletedSteps))
	for k, v := range s.CompletedSteps {
		if v.Claims != nil {
			claims := make(map[string]string, len(v.Claims))
			for ck, cv := range v.Claims {
				claims[ck] = cv
			}
			v.Claims = claims
		}
		out.CompletedSteps[k] = v
	}
	if s.Metadata != nil {
		out.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	if s.Verification != nil {
		handle := *s.Verification
		out.Verification = &handle
	}
	return &out
}

// VerificationHandle is the external verification engine's reference for the
// current step, handed back to the caller so it can drive the exchange.
type VerificationHandle struct {
	SessionID string `json:"sessionId"`
	Template  string `json:"template"`
	QRCodeURL string `json:"qrCodeUrl,omitempty"`
}
