package graph

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"verigate/internal/orchestration/models"
	id "verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"
)

// ValidateSuite tests the structural rules for step dependency graphs.
//
// Justification: the validator is the only thing standing between a
// malformed definition and an engine that can deadlock or spin. Cycle
// detection in particular must terminate on every finite graph.
type ValidateSuite struct {
	suite.Suite
}

func TestValidateSuite(t *testing.T) {
	suite.Run(t, new(ValidateSuite))
}

func def(steps ...models.Step) *models.Definition {
	return &models.Definition{ID: "test-def", Name: "Test", Steps: steps}
}

func step(stepID string, deps ...string) models.Step {
	dependsOn := make([]id.StepID, 0, len(deps))
	for _, d := range deps {
		dependsOn = append(dependsOn, id.StepID(d))
	}
	return models.Step{
		ID:        id.StepID(stepID),
		Type:      models.StepTypeIdentity,
		Template:  "template-" + stepID,
		DependsOn: dependsOn,
	}
}

func (s *ValidateSuite) TestValidGraphs() {
	s.Run("single step", func() {
		s.NoError(Validate(def(step("a"))))
	})

	s.Run("linear chain", func() {
		s.NoError(Validate(def(step("a"), step("b", "a"), step("c", "b"))))
	})

	s.Run("diamond", func() {
		s.NoError(Validate(def(
			step("a"),
			step("b", "a"),
			step("c", "a"),
			step("d", "b", "c"),
		)))
	})

	s.Run("multiple entry points", func() {
		s.NoError(Validate(def(step("a"), step("b"), step("c", "a", "b"))))
	})
}

func (s *ValidateSuite) TestEmptyDefinition() {
	err := Validate(def())
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Contains(err.Error(), "no steps")
}

func (s *ValidateSuite) TestDuplicateStepIDs() {
	err := Validate(def(step("a"), step("a")))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Contains(err.Error(), "duplicate step id")
}

func (s *ValidateSuite) TestUnknownDependency() {
	err := Validate(def(step("a"), step("b", "ghost")))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Contains(err.Error(), "unknown step")
}

func (s *ValidateSuite) TestSelfReference() {
	err := Validate(def(step("a"), step("b", "b")))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Contains(err.Error(), "depends on itself")
}

func (s *ValidateSuite) TestNoEntryStep() {
	err := Validate(def(step("a", "b"), step("b", "a")))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	// The mutual dependency also means no entry step; that check fires first.
	s.Contains(err.Error(), "no entry step")
}

func (s *ValidateSuite) TestCycles() {
	s.Run("length-2 cycle behind an entry step", func() {
		err := Validate(def(step("entry"), step("a", "b"), step("b", "a")))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "cycle")
	})

	s.Run("length-3 cycle", func() {
		err := Validate(def(step("entry"), step("a", "c"), step("b", "a"), step("c", "b")))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "cycle")
	})

	s.Run("cycle error names an involved step", func() {
		err := Validate(def(step("entry"), step("x", "y"), step("y", "x")))
		s.Require().Error(err)
		// Either member of the cycle is acceptable.
		msg := err.Error()
		s.True(strings.Contains(msg, "x") || strings.Contains(msg, "y"),
			"error %q should name a step in the cycle", msg)
	})
}

func (s *ValidateSuite) TestConditionRoutes() {
	withCondition := func(st models.Step, onTrue, onFalse string) models.Step {
		st.Condition = &models.StepCondition{
			Kind:    models.ConditionClaimExists,
			Claim:   "age_over_18",
			OnTrue:  onTrue,
			OnFalse: onFalse,
		}
		return st
	}

	s.Run("routes to known step and reject", func() {
		s.NoError(Validate(def(
			withCondition(step("a"), "b", models.RouteReject),
			step("b", "a"),
		)))
	})

	s.Run("route to unknown step rejected", func() {
		err := Validate(def(
			withCondition(step("a"), "ghost", ""),
			step("b", "a"),
		))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "unknown step")
	})
}

func (s *ValidateSuite) TestLargeGraphTerminates() {
	// A long chain exercises the iterative DFS; a recursive one would be
	// at risk of stack growth here.
	steps := make([]models.Step, 0, 100)
	steps = append(steps, step("s0"))
	for i := 1; i < 100; i++ {
		steps = append(steps, step(
			fmt.Sprintf("s%d", i),
			fmt.Sprintf("s%d", i-1),
		))
	}
	s.NoError(Validate(def(steps...)))
}
