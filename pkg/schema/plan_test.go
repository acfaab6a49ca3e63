package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanStatusTerminal(t *testing.T) {
	assert.False(t, PlanStatusPlanning.Terminal())
	assert.False(t, PlanStatusExecuting.Terminal())
	assert.True(t, PlanStatusCompleted.Terminal())
	assert.True(t, PlanStatusFailed.Terminal())
	assert.True(t, PlanStatusError.Terminal())
}

func TestPlanClone(t *testing.T) {
	plan := &WorkflowPlan{
		ID:     "p1",
		Query:  "q",
		UserID: "u1",
		Steps: []WorkflowStep{
			{ID: "a", Type: StepTypeSearch, DependsOn: []string{"x"}},
		},
		Results: map[string]*StepResult{
			"a": {Status: StepStatusCompleted, Payload: map[string]any{"k": "v"}},
		},
		Errors:    []string{"e1"},
		Status:    PlanStatusExecuting,
		CreatedAt: time.Now().UTC(),
	}

	clone := plan.Clone()
	require.NotSame(t, plan, clone)

	clone.Steps[0].DependsOn[0] = "mutated"
	clone.Results["a"].Payload["k"] = "mutated"
	clone.Errors[0] = "mutated"

	assert.Equal(t, "x", plan.Steps[0].DependsOn[0])
	assert.Equal(t, "v", plan.Results["a"].Payload["k"])
	assert.Equal(t, "e1", plan.Errors[0])
}

func TestPlanCloneNil(t *testing.T) {
	var plan *WorkflowPlan
	assert.Nil(t, plan.Clone())
}

func TestPlanStepLookup(t *testing.T) {
	plan := &WorkflowPlan{
		Steps: []WorkflowStep{
			{ID: "a", Type: StepTypeSearch},
			{ID: "b", Type: StepTypeSynthesis},
		},
	}

	require.NotNil(t, plan.Step("b"))
	assert.Equal(t, StepTypeSynthesis, plan.Step("b").Type)
	assert.Nil(t, plan.Step("missing"))
}
