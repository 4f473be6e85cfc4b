package service

import (
	"context"

	"verigate/internal/orchestration/models"
	"verigate/internal/orchestration/tracer"
	id "verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"
)

const (
	rejectedPrefix    = "rejected by condition on step "
	unreachablePrefix = "no reachable step after "
)

// advance applies the finalization rules after a result has been recorded:
// one failing step fails the whole orchestration; all steps successful
// completes it; otherwise the next eligible step is resolved and a
// verification exchange is opened for it.
func (s *Service) advance(ctx context.Context, session *models.Session, def *models.Definition, completed *models.Step, result models.StepResult, span tracer.Span) error {
	if !result.Success {
		finalize(session, models.SessionFailed, "step "+completed.ID.String()+" "+string(result.Status))
		return nil
	}
	if allStepsSucceeded(session, def) {
		finalize(session, models.SessionCompleted, "")
		return nil
	}

	next, rejected := resolveNext(session, def, completed)
	if rejected {
		span.AddEvent(tracer.EventBranchRejected)
		finalize(session, models.SessionFailed, rejectedPrefix+completed.ID.String())
		return nil
	}
	if next == nil {
		// A dependency can never be satisfied along the taken branch. This is
		// a definition or branching bug, surfaced in the session status.
		span.AddEvent(tracer.EventUnreachableStep)
		s.logWarn(ctx, "no eligible next step, failing session",
			"session_id", session.ID.String(),
			"completed_step", completed.ID.String(),
		)
		finalize(session, models.SessionFailed, unreachablePrefix+completed.ID.String())
		return nil
	}

	session.CurrentStepID = next.ID
	handle, err := s.verifier.StartVerification(ctx, next.Template, session.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to start verification for step "+next.ID.String())
	}
	session.Verification = handle
	return nil
}

// finalize moves the session into a terminal state, or records completion of
// an intermediate step. Terminal sessions carry no current step or handle.
func finalize(session *models.Session, status models.SessionStatus, reason string) {
	session.Status = status
	session.FailureReason = reason
	if status.Terminal() {
		session.CurrentStepID = ""
		session.Verification = nil
	}
}

// allStepsSucceeded reports whether every step in the definition has a
// recorded successful result.
func allStepsSucceeded(session *models.Session, def *models.Definition) bool {
	for i := range def.Steps {
		result, ok := session.CompletedSteps[def.Steps[i].ID]
		if !ok || !result.Success {
			return false
		}
	}
	return true
}

// resolveNext picks the step to enter after a successful completion.
//
// The candidate set is every not-yet-completed step whose dependencies are
// all completed successfully. A condition on the just-completed step routes
// within that set: "reject" fails the orchestration outright, a step ID
// routes there if eligible, and anything else falls back to the first
// eligible candidate in declaration order.
func resolveNext(session *models.Session, def *models.Definition, completed *models.Step) (next *models.Step, rejected bool) {
	candidates := eligibleSteps(session, def)

	if cond := completed.Condition; cond != nil {
		route := cond.OnFalse
		if evaluateCondition(cond, session.Claims()) {
			route = cond.OnTrue
		}
		if route == models.RouteReject {
			return nil, true
		}
		if route != "" {
			for _, c := range candidates {
				if c.ID == id.StepID(route) {
					return c, false
				}
			}
		}
	}

	if len(candidates) > 0 {
		return candidates[0], false
	}
	return nil, false
}

// eligibleSteps returns incomplete steps whose every dependency has a
// successful result, in declaration order.
func eligibleSteps(session *models.Session, def *models.Definition) []*models.Step {
	var out []*models.Step
	for i := range def.Steps {
		step := &def.Steps[i]
		if session.HasResult(step.ID) {
			continue
		}
		if dependenciesSatisfied(session, step) {
			out = append(out, step)
		}
	}
	return out
}

func dependenciesSatisfied(session *models.Session, step *models.Step) bool {
	for _, dep := range step.DependsOn {
		result, ok := session.CompletedSteps[dep]
		if !ok || !result.Success {
			return false
		}
	}
	return true
}

// evaluateCondition resolves a branching condition against the merged claims
// of all successful steps.
func evaluateCondition(cond *models.StepCondition, claims map[string]string) bool {
	switch cond.Kind {
	case models.ConditionAlways:
		return true
	case models.ConditionClaimExists:
		_, ok := claims[cond.Claim]
		return ok
	case models.ConditionClaimEquals:
		v, ok := claims[cond.Claim]
		return ok && v == cond.Value
	}
	return false
}
