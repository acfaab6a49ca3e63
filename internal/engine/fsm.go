package engine

import (
	"context"
	"sync"

	"github.com/ariadne-labs/ariadne/internal/store"
	"github.com/ariadne-labs/ariadne/pkg/schema"
)

// TransitionHook is called before or after a state transition.
type TransitionHook func(from, to string) error

// EventAppender is satisfied by the Store; used by the FSM to emit events on
// transitions.
type EventAppender interface {
	AppendEvent(ctx context.Context, event *store.Event) error
}

type planHookKey struct {
	from, to schema.PlanStatus
}

// PlanFSM manages plan lifecycle state transitions. Terminal states have no
// outgoing transitions; once a plan is completed, failed, or errored it never
// changes again.
type PlanFSM struct {
	mu       sync.Mutex
	appender EventAppender
	before   map[planHookKey][]TransitionHook
	after    map[planHookKey][]TransitionHook
}

// NewPlanFSM creates a PlanFSM that emits events via the given appender.
func NewPlanFSM(appender EventAppender) *PlanFSM {
	return &PlanFSM{
		appender: appender,
		before:   make(map[planHookKey][]TransitionHook),
		after:    make(map[planHookKey][]TransitionHook),
	}
}

// OnBefore registers a hook called before a plan transition.
func (f *PlanFSM) OnBefore(from, to schema.PlanStatus, hook TransitionHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := planHookKey{from, to}
	f.before[key] = append(f.before[key], hook)
}

// OnAfter registers a hook called after a plan transition.
func (f *PlanFSM) OnAfter(from, to schema.PlanStatus, hook TransitionHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := planHookKey{from, to}
	f.after[key] = append(f.after[key], hook)
}

// Transition validates and executes a plan state transition, emitting the
// corresponding event. The caller is responsible for persisting the new
// status to the store.
func (f *PlanFSM) Transition(ctx context.Context, planID string, from, to schema.PlanStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !isValidPlanTransition(from, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid plan transition: %s -> %s", from, to).
			WithDetails(map[string]any{"plan_id": planID, "from": string(from), "to": string(to)})
	}

	key := planHookKey{from, to}

	for _, hook := range f.before[key] {
		if err := hook(string(from), string(to)); err != nil {
			return err
		}
	}

	if eventType := planEventType(to); eventType != "" {
		event := &store.Event{
			PlanID: planID,
			Type:   eventType,
		}
		if err := f.appender.AppendEvent(ctx, event); err != nil {
			return schema.NewErrorf(schema.ErrCodeStore, "emit plan event: %s", err.Error()).WithCause(err)
		}
	}

	for _, hook := range f.after[key] {
		if err := hook(string(from), string(to)); err != nil {
			return err
		}
	}

	return nil
}

func isValidPlanTransition(from, to schema.PlanStatus) bool {
	allowed, ok := ValidPlanTransitions[from]
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == to {
			return true
		}
	}
	return false
}

func planEventType(to schema.PlanStatus) string {
	switch to {
	case schema.PlanStatusExecuting:
		return schema.EventPlanStarted
	case schema.PlanStatusCompleted:
		return schema.EventPlanCompleted
	case schema.PlanStatusFailed, schema.PlanStatusError:
		return schema.EventPlanFailed
	default:
		return ""
	}
}

// ValidPlanTransitions defines the allowed state transitions for plans.
var ValidPlanTransitions = map[schema.PlanStatus][]schema.PlanStatus{
	schema.PlanStatusPlanning:  {schema.PlanStatusExecuting},
	schema.PlanStatusExecuting: {schema.PlanStatusCompleted, schema.PlanStatusFailed, schema.PlanStatusError},
	schema.PlanStatusCompleted: {},
	schema.PlanStatusFailed:    {},
	schema.PlanStatusError:     {},
}
