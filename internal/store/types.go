package store

import (
	"encoding/json"
	"time"

	"github.com/ariadne-labs/ariadne/pkg/schema"
)

// Event is one append-only execution log entry. Sequence is assigned by the
// store, monotonically increasing per plan.
type Event struct {
	ID        int64           `json:"id,omitempty"`
	PlanID    string          `json:"plan_id"`
	StepID    string          `json:"step_id,omitempty"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
}

// PlanFilter narrows ListPlans results.
type PlanFilter struct {
	UserID string
	Status *schema.PlanStatus
	Limit  int
	Offset int
}

// ScheduledQuery is a recurring research query driven by a cron expression.
type ScheduledQuery struct {
	ID        string     `json:"id"`
	Query     string     `json:"query"`
	UserID    string     `json:"user_id"`
	CronExpr  string     `json:"cron_expr"`
	Enabled   bool       `json:"enabled"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ScheduledQueryUpdate applies a partial update. Nil fields are unchanged.
type ScheduledQueryUpdate struct {
	Enabled   *bool
	LastRunAt *time.Time
	NextRunAt *time.Time
}
