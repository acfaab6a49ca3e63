package engine

import (
	"github.com/ariadne-labs/ariadne/pkg/schema"
)

// DAG is the dependency graph of a research plan. Built from the plan's
// steps, used by the executor to determine visit order.
type DAG struct {
	Steps   map[string]*schema.WorkflowStep // step ID → step
	Edges   map[string][]string             // step ID → dependencies
	Reverse map[string][]string             // step ID → dependents
	Sorted  []string                        // topological visit order
}

// validStepTypes is the set of recognized step types.
var validStepTypes = map[schema.StepType]bool{
	schema.StepTypeSearch:    true,
	schema.StepTypeAnalysis:  true,
	schema.StepTypeRetrieval: true,
	schema.StepTypeSynthesis: true,
}

// ParseDAG validates a plan's steps and computes a topological visit order
// using Kahn's algorithm. Ties between ready steps are broken by declaration
// order, so sibling steps run in the order the planner emitted them. Cycles
// and self-dependencies are rejected.
func ParseDAG(steps []schema.WorkflowStep) (*DAG, error) {
	if len(steps) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "plan has no steps")
	}

	dag := &DAG{
		Steps:   make(map[string]*schema.WorkflowStep, len(steps)),
		Edges:   make(map[string][]string, len(steps)),
		Reverse: make(map[string][]string, len(steps)),
	}

	declIndex := make(map[string]int, len(steps))

	// First pass: register steps, check duplicates and types.
	for i := range steps {
		step := &steps[i]
		if step.ID == "" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "step at index %d has empty ID", i)
		}
		if _, exists := dag.Steps[step.ID]; exists {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "duplicate step ID: %s", step.ID)
		}
		if !validStepTypes[step.Type] {
			return nil, schema.NewErrorf(schema.ErrCodeUnknownStep, "step %s has unknown type: %s", step.ID, step.Type)
		}
		dag.Steps[step.ID] = step
		declIndex[step.ID] = i
	}

	// Second pass: build adjacency lists. A dependency on a step not present
	// in the plan is kept out of the ordering graph; the executor's gate will
	// see it as never completed and skip the dependent.
	for i := range steps {
		step := &steps[i]
		seen := make(map[string]bool, len(step.DependsOn))
		var deps []string
		for _, dep := range step.DependsOn {
			if dep == step.ID {
				return nil, schema.NewErrorf(schema.ErrCodeCycleDetected, "step %s depends on itself", step.ID)
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			if _, exists := dag.Steps[dep]; !exists {
				continue
			}
			deps = append(deps, dep)
			dag.Reverse[dep] = append(dag.Reverse[dep], step.ID)
		}
		dag.Edges[step.ID] = deps
	}

	// Kahn's algorithm with a declaration-order priority queue.
	inDegree := make(map[string]int, len(dag.Steps))
	for id := range dag.Steps {
		inDegree[id] = len(dag.Edges[id])
	}

	var ready []string
	for i := range steps {
		if inDegree[steps[i].ID] == 0 {
			ready = append(ready, steps[i].ID)
		}
	}

	sorted := make([]string, 0, len(dag.Steps))
	for len(ready) > 0 {
		// Pick the ready step declared earliest.
		best := 0
		for i := 1; i < len(ready); i++ {
			if declIndex[ready[i]] < declIndex[ready[best]] {
				best = i
			}
		}
		node := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		sorted = append(sorted, node)

		for _, dep := range dag.Reverse[node] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(sorted) != len(dag.Steps) {
		return nil, schema.NewError(schema.ErrCodeCycleDetected, "plan contains a dependency cycle")
	}

	dag.Sorted = sorted
	return dag, nil
}
