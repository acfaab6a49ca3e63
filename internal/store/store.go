package store

import (
	"context"

	"github.com/ariadne-labs/ariadne/pkg/schema"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use. The engine's contracts
// do not change across implementations: a durable deployment swaps the
// in-memory store for the libSQL one behind this interface.
type Store interface {
	// Plans
	CreatePlan(ctx context.Context, plan *schema.WorkflowPlan) error
	GetPlan(ctx context.Context, id string) (*schema.WorkflowPlan, error)
	SavePlan(ctx context.Context, plan *schema.WorkflowPlan) error
	ListPlans(ctx context.Context, filter PlanFilter) ([]*schema.WorkflowPlan, error)

	// Event Sourcing (append-only)
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, planID string, since int64) ([]*Event, error)

	// Scheduled Queries
	CreateScheduledQuery(ctx context.Context, sq *ScheduledQuery) error
	GetScheduledQuery(ctx context.Context, id string) (*ScheduledQuery, error)
	UpdateScheduledQuery(ctx context.Context, id string, update ScheduledQueryUpdate) error
	ListScheduledQueries(ctx context.Context, enabledOnly bool) ([]*ScheduledQuery, error)
	DeleteScheduledQuery(ctx context.Context, id string) error

	// Maintenance
	Migrate(ctx context.Context) error

	// Lifecycle
	Close() error
}
