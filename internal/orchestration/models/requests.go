package models

import (
	"strings"
	"time"

	id "verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"
)

// MaxSteps bounds definition size defensively; the validator walks the whole
// graph, so unbounded input would be an easy way to burn CPU.
const MaxSteps = 100

// CreateDefinitionRequest is the management API input for a new definition.
type CreateDefinitionRequest struct {
	ID             string                   `json:"id"`
	OrganizationID string                   `json:"organizationId"`
	Name           string                   `json:"name"`
	Steps          []StepRequest            `json:"steps"`
	OnComplete     *CompletionTargetRequest `json:"onComplete,omitempty"`
}

// StepRequest mirrors the step wire format.
type StepRequest struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Template  string            `json:"template"`
	Name      string            `json:"name,omitempty"`
	DependsOn []string          `json:"dependsOn,omitempty"`
	Condition *ConditionRequest `json:"condition,omitempty"`
}

// ConditionRequest mirrors the condition wire format.
type ConditionRequest struct {
	Type    string `json:"type"`
	Claim   string `json:"claim,omitempty"`
	Value   string `json:"value,omitempty"`
	OnTrue  string `json:"onTrue,omitempty"`
	OnFalse string `json:"onFalse,omitempty"`
}

// CompletionTargetRequest mirrors the onComplete wire format.
type CompletionTargetRequest struct {
	Webhook     string   `json:"webhook,omitempty"`
	Redirect    string   `json:"redirect,omitempty"`
	IncludeData []string `json:"includeData,omitempty"`
}

// Normalize trims identifier whitespace before validation.
func (r *CreateDefinitionRequest) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.Name = strings.TrimSpace(r.Name)
	for i := range r.Steps {
		r.Steps[i].ID = strings.TrimSpace(r.Steps[i].ID)
		r.Steps[i].Template = strings.TrimSpace(r.Steps[i].Template)
	}
}

// Validate checks wire-level shape. Graph-level rules (cycles, unresolvable
// dependencies) are the validator's job, invoked by the service; the
// organizationId field is parsed by the handler, which resolves the owning org
// before calling the service.
func (r *CreateDefinitionRequest) Validate() error {
	if r.ID == "" {
		return dErrors.New(dErrors.CodeValidation, "definition id is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "definition name is required")
	}
	if len(r.Steps) > MaxSteps {
		return dErrors.New(dErrors.CodeValidation, "definition exceeds maximum step count")
	}
	for i := range r.Steps {
		step := &r.Steps[i]
		if step.ID == "" {
			return dErrors.New(dErrors.CodeValidation, "every step needs an id")
		}
		if step.Template == "" {
			return dErrors.New(dErrors.CodeValidation, "step "+step.ID+" needs a template")
		}
		switch StepType(step.Type) {
		case StepTypeIdentity, StepTypePayment, StepTypeCustom:
		default:
			return dErrors.New(dErrors.CodeValidation, "step "+step.ID+" has unknown type")
		}
		if step.Condition != nil {
			if err := step.Condition.validate(step.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *ConditionRequest) validate(stepID string) error {
	switch ConditionKind(c.Type) {
	case ConditionClaimEquals:
		if c.Claim == "" {
			return dErrors.New(dErrors.CodeValidation, "claim_equals condition on step "+stepID+" needs a claim")
		}
	case ConditionClaimExists:
		if c.Claim == "" {
			return dErrors.New(dErrors.CodeValidation, "claim_exists condition on step "+stepID+" needs a claim")
		}
	case ConditionAlways:
	default:
		return dErrors.New(dErrors.CodeValidation, "condition on step "+stepID+" has unknown type")
	}
	return nil
}

// ToDefinition builds the immutable domain object.
func (r *CreateDefinitionRequest) ToDefinition(orgID id.OrgID, now time.Time) *Definition {
	steps := make([]Step, 0, len(r.Steps))
	for _, s := range r.Steps {
		dependsOn := make([]id.StepID, 0, len(s.DependsOn))
		for _, dep := range s.DependsOn {
			dependsOn = append(dependsOn, id.StepID(dep))
		}
		step := Step{
			ID:          id.StepID(s.ID),
			Type:        StepType(s.Type),
			Template:    s.Template,
			DisplayName: s.Name,
			DependsOn:   dependsOn,
		}
		if s.Condition != nil {
			step.Condition = &StepCondition{
				Kind:    ConditionKind(s.Condition.Type),
				Claim:   s.Condition.Claim,
				Value:   s.Condition.Value,
				OnTrue:  s.Condition.OnTrue,
				OnFalse: s.Condition.OnFalse,
			}
		}
		steps = append(steps, step)
	}

	def := &Definition{
		ID:        id.DefinitionID(r.ID),
		OrgID:     orgID,
		Name:      r.Name,
		Steps:     steps,
		CreatedAt: now,
	}
	if r.OnComplete != nil {
		def.OnComplete = &CompletionTarget{
			WebhookURL:  r.OnComplete.Webhook,
			RedirectURL: r.OnComplete.Redirect,
			IncludeData: r.OnComplete.IncludeData,
		}
	}
	return def
}

// StartSessionRequest starts one execution of a definition.
type StartSessionRequest struct {
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CompleteStepRequest is the external verifier's callback payload.
type CompleteStepRequest struct {
	VerificationSessionID string            `json:"verificationSessionId"`
	Status                string            `json:"status"`
	Claims                map[string]string `json:"claims,omitempty"`
	Error                 string            `json:"error,omitempty"`
}

// Validate checks the reported status is one of the known verifier outcomes.
func (r *CompleteStepRequest) Validate() error {
	if r.VerificationSessionID == "" {
		return dErrors.New(dErrors.CodeValidation, "verificationSessionId is required")
	}
	if !StepVerificationStatus(r.Status).Valid() {
		return dErrors.New(dErrors.CodeValidation, "status must be verified, failed, or expired")
	}
	return nil
}
