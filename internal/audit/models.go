package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	OrgID     string    `json:"org_id"`
	SessionID string    `json:"session_id,omitempty"`
	StepID    string    `json:"step_id,omitempty"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Actor     string    `json:"actor,omitempty"`
}

const (
	ActionDefinitionCreated   = "orchestration_definition_created"
	ActionSessionStarted      = "orchestration_session_started"
	ActionStepCompleted       = "orchestration_step_completed"
	ActionSessionCompleted    = "orchestration_session_completed"
	ActionSessionFailed       = "orchestration_session_failed"
	ActionSubscriptionCreated = "webhook_subscription_created"
	ActionSubscriptionUpdated = "webhook_subscription_updated"
	ActionSubscriptionDeleted = "webhook_subscription_deleted"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
