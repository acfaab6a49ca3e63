package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/ariadne-labs/ariadne/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
// Plans are persisted as a JSON definition blob alongside the columns the
// query paths filter on.
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// --- Plans ---

func (s *LibSQLStore) CreatePlan(ctx context.Context, plan *schema.WorkflowPlan) error {
	if plan == nil || plan.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "plan id must not be empty")
	}
	def, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plans (id, user_id, query, status, definition, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.UserID, plan.Query, string(plan.Status), string(def),
		timeOrNow(plan.CreatedAt), timeOrNow(plan.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetPlan(ctx context.Context, id string) (*schema.WorkflowPlan, error) {
	var defJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT definition FROM plans WHERE id = ?`, id,
	).Scan(&defJSON)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("plan", id)
	}
	if err != nil {
		return nil, err
	}
	plan := &schema.WorkflowPlan{}
	if err := json.Unmarshal([]byte(defJSON), plan); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	return plan, nil
}

func (s *LibSQLStore) SavePlan(ctx context.Context, plan *schema.WorkflowPlan) error {
	if plan == nil || plan.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "plan id must not be empty")
	}
	def, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE plans SET status = ?, definition = ?, updated_at = ? WHERE id = ?`,
		string(plan.Status), string(def), timeOrNow(plan.UpdatedAt), plan.ID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "plan", plan.ID)
}

func (s *LibSQLStore) ListPlans(ctx context.Context, filter PlanFilter) ([]*schema.WorkflowPlan, error) {
	query := `SELECT definition FROM plans`
	var where []string
	var args []any

	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*schema.WorkflowPlan
	for rows.Next() {
		var defJSON string
		if err := rows.Scan(&defJSON); err != nil {
			return nil, err
		}
		plan := &schema.WorkflowPlan{}
		if err := json.Unmarshal([]byte(defJSON), plan); err != nil {
			return nil, fmt.Errorf("unmarshal plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// --- Events ---

func (s *LibSQLStore) AppendEvent(ctx context.Context, event *Event) error {
	if event == nil || event.PlanID == "" {
		return schema.NewError(schema.ErrCodeValidation, "event plan id must not be empty")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Get next sequence number for this plan
	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM events WHERE plan_id = ?`, event.PlanID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	event.Sequence = seq

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (plan_id, step_id, event_type, payload, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.PlanID, nullStr(event.StepID), event.Type, nullRaw(event.Payload),
		timeOrNow(event.Timestamp), seq,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

func (s *LibSQLStore) GetEvents(ctx context.Context, planID string, since int64) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, plan_id, step_id, event_type, payload, timestamp, sequence
		 FROM events WHERE plan_id = ? AND sequence > ? ORDER BY sequence ASC`,
		planID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var stepID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.PlanID, &stepID, &e.Type, &payload, &e.Timestamp, &e.Sequence); err != nil {
			return nil, err
		}
		e.StepID = stepID.String
		e.Payload = rawOrNil(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Scheduled Queries ---

func (s *LibSQLStore) CreateScheduledQuery(ctx context.Context, sq *ScheduledQuery) error {
	if sq == nil || sq.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "scheduled query id must not be empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_queries (id, query, user_id, cron_expr, enabled, last_run_at, next_run_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sq.ID, sq.Query, sq.UserID, sq.CronExpr, boolToInt(sq.Enabled),
		nullTime(sq.LastRunAt), nullTime(sq.NextRunAt),
		timeOrNow(sq.CreatedAt), timeOrNow(sq.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetScheduledQuery(ctx context.Context, id string) (*ScheduledQuery, error) {
	sq := &ScheduledQuery{}
	var enabled int
	var lastRun, nextRun sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, query, user_id, cron_expr, enabled, last_run_at, next_run_at, created_at, updated_at
		 FROM scheduled_queries WHERE id = ?`, id,
	).Scan(&sq.ID, &sq.Query, &sq.UserID, &sq.CronExpr, &enabled, &lastRun, &nextRun, &sq.CreatedAt, &sq.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("scheduled_query", id)
	}
	if err != nil {
		return nil, err
	}
	sq.Enabled = enabled != 0
	if lastRun.Valid {
		sq.LastRunAt = &lastRun.Time
	}
	if nextRun.Valid {
		sq.NextRunAt = &nextRun.Time
	}
	return sq, nil
}

func (s *LibSQLStore) UpdateScheduledQuery(ctx context.Context, id string, update ScheduledQueryUpdate) error {
	var sets []string
	var args []any

	if update.Enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, boolToInt(*update.Enabled))
	}
	if update.LastRunAt != nil {
		sets = append(sets, "last_run_at = ?")
		args = append(args, *update.LastRunAt)
	}
	if update.NextRunAt != nil {
		sets = append(sets, "next_run_at = ?")
		args = append(args, *update.NextRunAt)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE scheduled_queries SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "scheduled_query", id)
}

func (s *LibSQLStore) ListScheduledQueries(ctx context.Context, enabledOnly bool) ([]*ScheduledQuery, error) {
	query := `SELECT id, query, user_id, cron_expr, enabled, last_run_at, next_run_at, created_at, updated_at FROM scheduled_queries`
	if enabledOnly {
		query += " WHERE enabled = 1"
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ScheduledQuery
	for rows.Next() {
		sq := &ScheduledQuery{}
		var enabled int
		var lastRun, nextRun sql.NullTime
		if err := rows.Scan(&sq.ID, &sq.Query, &sq.UserID, &sq.CronExpr, &enabled, &lastRun, &nextRun, &sq.CreatedAt, &sq.UpdatedAt); err != nil {
			return nil, err
		}
		sq.Enabled = enabled != 0
		if lastRun.Valid {
			sq.LastRunAt = &lastRun.Time
		}
		if nextRun.Valid {
			sq.NextRunAt = &nextRun.Time
		}
		out = append(out, sq)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) DeleteScheduledQuery(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_queries WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "scheduled_query", id)
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.AriadneError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Store = (*LibSQLStore)(nil)
