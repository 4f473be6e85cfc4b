// Package graph validates orchestration step dependency graphs.
//
// The checks run in a fixed order and short-circuit on the first failure:
// at least one step, unique step IDs, resolvable dependencies, no
// self-reference, at least one entry step, no cycles, and resolvable
// condition routes. Complexity is O(steps + edges) on any finite graph.
package graph

import (
	id "verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"

	"verigate/internal/orchestration/models"
)

// Validate checks the structural invariants of a definition's step graph.
// It is pure and side-effect free; both the management API and the engine
// call it - external callers are never trusted to have validated.
func Validate(def *models.Definition) error {
	if len(def.Steps) == 0 {
		return dErrors.New(dErrors.CodeValidation, "definition has no steps")
	}

	steps := make(map[id.StepID]*models.Step, len(def.Steps))
	for i := range def.Steps {
		step := &def.Steps[i]
		if _, dup := steps[step.ID]; dup {
			return dErrors.New(dErrors.CodeValidation, "duplicate step id: "+step.ID.String())
		}
		steps[step.ID] = step
	}

	hasEntry := false
	for i := range def.Steps {
		step := &def.Steps[i]
		if len(step.DependsOn) == 0 {
			hasEntry = true
		}
		for _, dep := range step.DependsOn {
			if dep == step.ID {
				return dErrors.New(dErrors.CodeValidation, "step depends on itself: "+step.ID.String())
			}
			if _, ok := steps[dep]; !ok {
				return dErrors.New(dErrors.CodeValidation,
					"step "+step.ID.String()+" depends on unknown step "+dep.String())
			}
		}
	}

	if !hasEntry {
		return dErrors.New(dErrors.CodeValidation, "definition has no entry step (every step has dependencies)")
	}

	if cycleStep, found := findCycle(def.Steps); found {
		return dErrors.New(dErrors.CodeValidation, "dependency cycle involving step "+cycleStep.String())
	}

	for i := range def.Steps {
		step := &def.Steps[i]
		if step.Condition == nil {
			continue
		}
		for _, target := range []string{step.Condition.OnTrue, step.Condition.OnFalse} {
			if target == "" || target == models.RouteReject {
				continue
			}
			if _, ok := steps[id.StepID(target)]; !ok {
				return dErrors.New(dErrors.CodeValidation,
					"condition on step "+step.ID.String()+" routes to unknown step "+target)
			}
		}
	}

	return nil
}

// visit states for the DFS color marking.
const (
	unvisited = iota
	onStack
	done
)

// findCycle runs an iterative depth-first search over the dependency edges.
// A back-edge into the current stack is a cycle. The explicit stack keeps
// pathological graphs from exhausting goroutine stack space.
func findCycle(steps []models.Step) (id.StepID, bool) {
	state := make(map[id.StepID]int, len(steps))
	adjacency := make(map[id.StepID][]id.StepID, len(steps))
	for i := range steps {
		adjacency[steps[i].ID] = steps[i].DependsOn
	}

	type frame struct {
		step id.StepID
		next int // index of the next dependency edge to follow
	}

	for i := range steps {
		root := steps[i].ID
		if state[root] != unvisited {
			continue
		}

		stack := []frame{{step: root}}
		state[root] = onStack

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := adjacency[top.step]

			if top.next >= len(deps) {
				state[top.step] = done
				stack = stack[:len(stack)-1]
				continue
			}

			dep := deps[top.next]
			top.next++

			switch state[dep] {
			case onStack:
				return dep, true
			case unvisited:
				state[dep] = onStack
				stack = append(stack, frame{step: dep})
			}
		}
	}

	return "", false
}
