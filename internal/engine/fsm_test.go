package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariadne-labs/ariadne/internal/store"
	"github.com/ariadne-labs/ariadne/pkg/schema"
)

func TestFSMValidTransitions(t *testing.T) {
	st := store.NewMemoryStore()
	fsm := NewPlanFSM(st)
	ctx := context.Background()

	require.NoError(t, fsm.Transition(ctx, "p1", schema.PlanStatusPlanning, schema.PlanStatusExecuting))
	require.NoError(t, fsm.Transition(ctx, "p1", schema.PlanStatusExecuting, schema.PlanStatusCompleted))

	events, err := st.GetEvents(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, schema.EventPlanStarted, events[0].Type)
	assert.Equal(t, schema.EventPlanCompleted, events[1].Type)
}

func TestFSMFailureTransitions(t *testing.T) {
	st := store.NewMemoryStore()
	fsm := NewPlanFSM(st)
	ctx := context.Background()

	require.NoError(t, fsm.Transition(ctx, "p1", schema.PlanStatusExecuting, schema.PlanStatusFailed))
	require.NoError(t, fsm.Transition(ctx, "p2", schema.PlanStatusExecuting, schema.PlanStatusError))

	events, err := st.GetEvents(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, schema.EventPlanFailed, events[0].Type)
}

func TestFSMRejectsInvalidTransitions(t *testing.T) {
	fsm := NewPlanFSM(store.NewMemoryStore())
	ctx := context.Background()

	cases := []struct {
		from, to schema.PlanStatus
	}{
		{schema.PlanStatusPlanning, schema.PlanStatusCompleted},
		{schema.PlanStatusPlanning, schema.PlanStatusFailed},
		{schema.PlanStatusExecuting, schema.PlanStatusPlanning},
	}
	for _, tc := range cases {
		err := fsm.Transition(ctx, "p1", tc.from, tc.to)
		require.Error(t, err, "%s -> %s", tc.from, tc.to)
		assert.Equal(t, schema.ErrCodeInvalidTransition, err.(*schema.AriadneError).Code)
	}
}

func TestFSMTerminalStatesAreImmutable(t *testing.T) {
	fsm := NewPlanFSM(store.NewMemoryStore())
	ctx := context.Background()

	terminals := []schema.PlanStatus{
		schema.PlanStatusCompleted,
		schema.PlanStatusFailed,
		schema.PlanStatusError,
	}
	targets := []schema.PlanStatus{
		schema.PlanStatusPlanning,
		schema.PlanStatusExecuting,
		schema.PlanStatusCompleted,
		schema.PlanStatusFailed,
		schema.PlanStatusError,
	}
	for _, from := range terminals {
		assert.True(t, from.Terminal())
		for _, to := range targets {
			err := fsm.Transition(ctx, "p1", from, to)
			require.Error(t, err, "%s -> %s", from, to)
			assert.Equal(t, schema.ErrCodeInvalidTransition, err.(*schema.AriadneError).Code)
		}
	}
}

func TestFSMHooks(t *testing.T) {
	fsm := NewPlanFSM(store.NewMemoryStore())
	ctx := context.Background()

	var order []string
	fsm.OnBefore(schema.PlanStatusPlanning, schema.PlanStatusExecuting, func(from, to string) error {
		order = append(order, "before:"+from+"->"+to)
		return nil
	})
	fsm.OnAfter(schema.PlanStatusPlanning, schema.PlanStatusExecuting, func(from, to string) error {
		order = append(order, "after:"+from+"->"+to)
		return nil
	})

	require.NoError(t, fsm.Transition(ctx, "p1", schema.PlanStatusPlanning, schema.PlanStatusExecuting))
	assert.Equal(t, []string{"before:planning->executing", "after:planning->executing"}, order)
}

func TestFSMBeforeHookBlocksTransition(t *testing.T) {
	st := store.NewMemoryStore()
	fsm := NewPlanFSM(st)
	ctx := context.Background()

	fsm.OnBefore(schema.PlanStatusPlanning, schema.PlanStatusExecuting, func(from, to string) error {
		return schema.NewError(schema.ErrCodeExecution, "not yet")
	})

	err := fsm.Transition(ctx, "p1", schema.PlanStatusPlanning, schema.PlanStatusExecuting)
	require.Error(t, err)

	// No event emitted when a before hook rejects.
	events, err2 := st.GetEvents(ctx, "p1", 0)
	require.NoError(t, err2)
	assert.Empty(t, events)
}
