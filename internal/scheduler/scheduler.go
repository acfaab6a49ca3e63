package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ariadne-labs/ariadne/internal/store"
)

// PlanRunner is the interface the scheduler uses to create and run plans.
// Satisfied by the engine (avoids import cycle).
type PlanRunner interface {
	RunQuery(ctx context.Context, query, userID string) (string, error)
}

// Scheduler polls the store for due scheduled research queries and runs them.
type Scheduler struct {
	store  store.Store
	runner PlanRunner
	parser cron.Parser
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{} // query IDs currently executing (dedup)
}

// NewScheduler creates a new Scheduler.
func NewScheduler(s store.Store, runner PlanRunner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    s,
		runner:   runner,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger.With(slog.String("component", "scheduler")),
		inflight: make(map[string]struct{}),
	}
}

// Start launches the background scheduling loop with a 60s ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	// Run an initial tick immediately.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick checks all enabled scheduled queries and runs those that are due.
func (s *Scheduler) tick(ctx context.Context) {
	queries, err := s.store.ListScheduledQueries(ctx, true)
	if err != nil {
		s.logger.Error("failed to list scheduled queries", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	for _, sq := range queries {
		if sq.NextRunAt != nil && sq.NextRunAt.After(now) {
			continue
		}
		if !s.tryAcquire(sq.ID) {
			continue // already running (dedup)
		}
		if err := s.run(ctx, sq, now); err != nil {
			s.logger.Error("failed to run scheduled query",
				slog.String("query_id", sq.ID),
				slog.String("error", err.Error()),
			)
		}
		s.release(sq.ID)
	}
}

// run executes a scheduled query and updates its timestamps.
func (s *Scheduler) run(ctx context.Context, sq *store.ScheduledQuery, now time.Time) error {
	s.logger.Info("running scheduled query",
		slog.String("query_id", sq.ID),
		slog.String("user_id", sq.UserID),
	)

	planID, err := s.runner.RunQuery(ctx, sq.Query, sq.UserID)
	if err != nil {
		s.logger.Error("scheduled query execution failed",
			slog.String("query_id", sq.ID),
			slog.String("error", err.Error()),
		)
	} else {
		s.logger.Info("scheduled query started",
			slog.String("query_id", sq.ID),
			slog.String("plan_id", planID),
		)
	}

	nextRun, nerr := s.CalculateNextRun(sq.CronExpr, now)
	if nerr != nil {
		return fmt.Errorf("calculate next run for query %q: %w", sq.ID, nerr)
	}

	return s.store.UpdateScheduledQuery(ctx, sq.ID, store.ScheduledQueryUpdate{
		LastRunAt: &now,
		NextRunAt: &nextRun,
	})
}

// tryAcquire returns true and marks the query as in-flight if it is not
// already running.
func (s *Scheduler) tryAcquire(id string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[id]; ok {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

// release removes the query from the in-flight set.
func (s *Scheduler) release(id string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, id)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
