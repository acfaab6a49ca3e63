package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariadne-labs/ariadne/pkg/schema"
)

func testPlan(id, userID string) *schema.WorkflowPlan {
	now := time.Now().UTC()
	return &schema.WorkflowPlan{
		ID:     id,
		Query:  "what is quantum computing",
		UserID: userID,
		Steps: []schema.WorkflowStep{
			{ID: "web_search", Type: schema.StepTypeSearch, Name: "Web Search"},
		},
		Results:   map[string]*schema.StepResult{},
		Status:    schema.PlanStatusPlanning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAndGetPlan(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreatePlan(ctx, testPlan("p1", "u1")))

	got, err := s.GetPlan(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, schema.PlanStatusPlanning, got.Status)
}

func TestCreatePlanConflict(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreatePlan(ctx, testPlan("p1", "u1")))
	err := s.CreatePlan(ctx, testPlan("p1", "u1"))
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConflict, err.(*schema.AriadneError).Code)
}

func TestGetPlanNotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.GetPlan(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, err.(*schema.AriadneError).Code)
}

func TestSavePlan(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	plan := testPlan("p1", "u1")
	require.NoError(t, s.CreatePlan(ctx, plan))

	plan.Status = schema.PlanStatusCompleted
	require.NoError(t, s.SavePlan(ctx, plan))

	got, err := s.GetPlan(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, schema.PlanStatusCompleted, got.Status)
}

func TestSavePlanNotFound(t *testing.T) {
	s := NewMemoryStore()

	err := s.SavePlan(context.Background(), testPlan("missing", "u1"))
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, err.(*schema.AriadneError).Code)
}

func TestStoreIsolatesCallerMutations(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	plan := testPlan("p1", "u1")
	require.NoError(t, s.CreatePlan(ctx, plan))

	// Mutating the caller's copy must not leak into the store.
	plan.Status = schema.PlanStatusError
	plan.Errors = append(plan.Errors, "oops")

	got, err := s.GetPlan(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, schema.PlanStatusPlanning, got.Status)
	assert.Empty(t, got.Errors)

	// And mutating a retrieved copy must not change later reads.
	got.Steps[0].Name = "changed"
	again, err := s.GetPlan(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Web Search", again.Steps[0].Name)
}

func TestListPlansOrderAndFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreatePlan(ctx, testPlan("p1", "u1")))
	require.NoError(t, s.CreatePlan(ctx, testPlan("p2", "u2")))
	require.NoError(t, s.CreatePlan(ctx, testPlan("p3", "u1")))

	all, err := s.ListPlans(ctx, PlanFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Most recent first.
	assert.Equal(t, "p3", all[0].ID)
	assert.Equal(t, "p1", all[2].ID)

	mine, err := s.ListPlans(ctx, PlanFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "p3", mine[0].ID)

	status := schema.PlanStatusPlanning
	limited, err := s.ListPlans(ctx, PlanFilter{Status: &status, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "p2", limited[0].ID)
}

func TestAppendEventSequencesPerPlan(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendEvent(ctx, &Event{PlanID: "p1", Type: schema.EventStepCompleted}))
	}
	require.NoError(t, s.AppendEvent(ctx, &Event{PlanID: "p2", Type: schema.EventPlanCreated}))

	p1Events, err := s.GetEvents(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, p1Events, 3)
	for i, e := range p1Events {
		assert.Equal(t, int64(i+1), e.Sequence)
		assert.False(t, e.Timestamp.IsZero())
	}

	// Sequences are per plan, not global.
	p2Events, err := s.GetEvents(ctx, "p2", 0)
	require.NoError(t, err)
	require.Len(t, p2Events, 1)
	assert.Equal(t, int64(1), p2Events[0].Sequence)
}

func TestGetEventsSince(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendEvent(ctx, &Event{PlanID: "p1", Type: schema.EventStepCompleted}))
	}

	tail, err := s.GetEvents(ctx, "p1", 2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, int64(3), tail[0].Sequence)
}

func TestScheduledQueryCRUD(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	sq := &ScheduledQuery{
		ID:       "sched_1",
		Query:    "latest quantum research",
		UserID:   "u1",
		CronExpr: "0 9 * * *",
		Enabled:  true,
	}
	require.NoError(t, s.CreateScheduledQuery(ctx, sq))

	err := s.CreateScheduledQuery(ctx, sq)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConflict, err.(*schema.AriadneError).Code)

	got, err := s.GetScheduledQuery(ctx, "sched_1")
	require.NoError(t, err)
	assert.Equal(t, "latest quantum research", got.Query)
	assert.False(t, got.CreatedAt.IsZero())

	disabled := false
	now := time.Now().UTC()
	require.NoError(t, s.UpdateScheduledQuery(ctx, "sched_1", ScheduledQueryUpdate{
		Enabled:   &disabled,
		LastRunAt: &now,
	}))

	got, err = s.GetScheduledQuery(ctx, "sched_1")
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	require.NotNil(t, got.LastRunAt)

	enabled, err := s.ListScheduledQueries(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	all, err := s.ListScheduledQueries(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteScheduledQuery(ctx, "sched_1"))
	err = s.DeleteScheduledQuery(ctx, "sched_1")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, err.(*schema.AriadneError).Code)
}
