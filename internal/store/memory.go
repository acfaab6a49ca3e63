package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariadne-labs/ariadne/pkg/schema"
)

// MemoryStore is the default in-process Store implementation. Plans are
// deep-copied on the way in and out so callers never share mutable state with
// the store.
type MemoryStore struct {
	mu sync.RWMutex

	plans     map[string]*schema.WorkflowPlan
	planOrder []string

	events  map[string][]*Event
	eventID int64

	scheduled map[string]*ScheduledQuery
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans:     make(map[string]*schema.WorkflowPlan),
		events:    make(map[string][]*Event),
		scheduled: make(map[string]*ScheduledQuery),
	}
}

func (s *MemoryStore) CreatePlan(ctx context.Context, plan *schema.WorkflowPlan) error {
	if plan == nil || plan.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "plan id must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.plans[plan.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "plan %q already exists", plan.ID)
	}
	s.plans[plan.ID] = plan.Clone()
	s.planOrder = append(s.planOrder, plan.ID)
	return nil
}

func (s *MemoryStore) GetPlan(ctx context.Context, id string) (*schema.WorkflowPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[id]
	if !ok {
		return nil, storeNotFound("plan", id)
	}
	return plan.Clone(), nil
}

func (s *MemoryStore) SavePlan(ctx context.Context, plan *schema.WorkflowPlan) error {
	if plan == nil || plan.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "plan id must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.plans[plan.ID]; !exists {
		return storeNotFound("plan", plan.ID)
	}
	s.plans[plan.ID] = plan.Clone()
	return nil
}

func (s *MemoryStore) ListPlans(ctx context.Context, filter PlanFilter) ([]*schema.WorkflowPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*schema.WorkflowPlan
	// Most recent first.
	for i := len(s.planOrder) - 1; i >= 0; i-- {
		plan := s.plans[s.planOrder[i]]
		if filter.UserID != "" && plan.UserID != filter.UserID {
			continue
		}
		if filter.Status != nil && plan.Status != *filter.Status {
			continue
		}
		out = append(out, plan.Clone())
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) AppendEvent(ctx context.Context, event *Event) error {
	if event == nil || event.PlanID == "" {
		return schema.NewError(schema.ErrCodeValidation, "event plan id must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.eventID++
	stored := *event
	stored.ID = s.eventID
	stored.Sequence = int64(len(s.events[event.PlanID])) + 1
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now().UTC()
	}
	s.events[event.PlanID] = append(s.events[event.PlanID], &stored)

	event.ID = stored.ID
	event.Sequence = stored.Sequence
	return nil
}

func (s *MemoryStore) GetEvents(ctx context.Context, planID string, since int64) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Event
	for _, e := range s.events[planID] {
		if e.Sequence <= since {
			continue
		}
		clone := *e
		out = append(out, &clone)
	}
	return out, nil
}

func (s *MemoryStore) CreateScheduledQuery(ctx context.Context, sq *ScheduledQuery) error {
	if sq == nil || sq.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "scheduled query id must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.scheduled[sq.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "scheduled query %q already exists", sq.ID)
	}
	clone := *sq
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now().UTC()
	}
	clone.UpdatedAt = clone.CreatedAt
	s.scheduled[sq.ID] = &clone
	return nil
}

func (s *MemoryStore) GetScheduledQuery(ctx context.Context, id string) (*ScheduledQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sq, ok := s.scheduled[id]
	if !ok {
		return nil, storeNotFound("scheduled_query", id)
	}
	clone := *sq
	return &clone, nil
}

func (s *MemoryStore) UpdateScheduledQuery(ctx context.Context, id string, update ScheduledQueryUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sq, ok := s.scheduled[id]
	if !ok {
		return storeNotFound("scheduled_query", id)
	}
	if update.Enabled != nil {
		sq.Enabled = *update.Enabled
	}
	if update.LastRunAt != nil {
		sq.LastRunAt = update.LastRunAt
	}
	if update.NextRunAt != nil {
		sq.NextRunAt = update.NextRunAt
	}
	sq.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ListScheduledQueries(ctx context.Context, enabledOnly bool) ([]*ScheduledQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ScheduledQuery
	for _, sq := range s.scheduled {
		if enabledOnly && !sq.Enabled {
			continue
		}
		clone := *sq
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeleteScheduledQuery(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scheduled[id]; !ok {
		return storeNotFound("scheduled_query", id)
	}
	delete(s.scheduled, id)
	return nil
}

// Migrate is a no-op for the in-memory store.
func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
