package models

import "time"

// SessionStatusResponse is the API projection of a session. It deliberately
// exposes step IDs rather than full results; claims only travel over the
// signed webhook channel.
type SessionStatusResponse struct {
	OrchestrationSessionID string              `json:"orchestrationSessionId"`
	CurrentStep            string              `json:"currentStep,omitempty"`
	CurrentTemplate        string              `json:"currentTemplate,omitempty"`
	Status                 string              `json:"status"`
	CompletedSteps         []string            `json:"completedSteps"`
	Verification           *VerificationHandle `json:"verification,omitempty"`
	ExpiresAt              string              `json:"expiresAt,omitempty"`
}

// ToStatusResponse projects a session for API consumers. The definition is
// needed to resolve the current step's template; pass nil when unavailable
// and the template is simply omitted.
func ToStatusResponse(s *Session, def *Definition, verification *VerificationHandle) *SessionStatusResponse {
	resp := &SessionStatusResponse{
		OrchestrationSessionID: s.ID.String(),
		Status:                 string(s.Status),
		CompletedSteps:         make([]string, 0, len(s.CompletedSteps)),
		Verification:           verification,
		ExpiresAt:              s.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if s.CurrentStepID != "" {
		resp.CurrentStep = s.CurrentStepID.String()
		if def != nil {
			if step := def.FindStep(s.CurrentStepID); step != nil {
				resp.CurrentTemplate = step.Template
			}
		}
	}
	// Stable order: definition declaration order when available.
	if def != nil {
		for _, step := range def.Steps {
			if s.HasResult(step.ID) {
				resp.CompletedSteps = append(resp.CompletedSteps, step.ID.String())
			}
		}
	} else {
		for stepID := range s.CompletedSteps {
			resp.CompletedSteps = append(resp.CompletedSteps, stepID.String())
		}
	}
	return resp
}

// DefinitionResponse is the management API projection of a definition.
type DefinitionResponse struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organizationId"`
	Name           string            `json:"name"`
	Steps          []Step            `json:"steps"`
	OnComplete     *CompletionTarget `json:"onComplete,omitempty"`
	CreatedAt      string            `json:"createdAt"`
}

// ToDefinitionResponse projects a definition for API consumers.
func ToDefinitionResponse(d *Definition) *DefinitionResponse {
	return &DefinitionResponse{
		ID:             d.ID.String(),
		OrganizationID: d.OrgID.String(),
		Name:           d.Name,
		Steps:          d.Steps,
		OnComplete:     d.OnComplete,
		CreatedAt:      d.CreatedAt.UTC().Format(time.RFC3339),
	}
}
