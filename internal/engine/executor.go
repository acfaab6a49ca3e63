package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ariadne-labs/ariadne/internal/capability"
	"github.com/ariadne-labs/ariadne/internal/expressions"
	"github.com/ariadne-labs/ariadne/internal/logging"
	"github.com/ariadne-labs/ariadne/internal/memory"
	"github.com/ariadne-labs/ariadne/internal/store"
	"github.com/ariadne-labs/ariadne/internal/streaming"
	"github.com/ariadne-labs/ariadne/pkg/schema"
)

const retrievalMaxResults = 5

// Config wires the engine's collaborators.
type Config struct {
	Registry *capability.Registry
	Memory   *memory.Graph
	Store    store.Store
	Hub      streaming.EventHub
	Logger   *slog.Logger
	Workers  int
}

// Engine orchestrates research plans: it creates them with the rule-based
// planner, executes them step by step in topological order, and exposes
// read-only status and results projections. At most one execution is in
// flight per plan id at any time.
type Engine struct {
	registry *capability.Registry
	memory   *memory.Graph
	store    store.Store
	hub      streaming.EventHub
	fsm      *PlanFSM
	pool     *WorkerPool
	cel      *expressions.CELEngine
	jq       *expressions.GoJQEngine
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewEngine creates an Engine from the given config.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "registry is required")
	}
	if cfg.Memory == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "memory graph is required")
	}
	if cfg.Store == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "store is required")
	}
	if cfg.Hub == nil {
		cfg.Hub = streaming.NewMemoryHub()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	cel, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}

	return &Engine{
		registry: cfg.Registry,
		memory:   cfg.Memory,
		store:    cfg.Store,
		hub:      cfg.Hub,
		fsm:      NewPlanFSM(cfg.Store),
		pool:     NewWorkerPool(cfg.Workers),
		cel:      cel,
		jq:       expressions.NewGoJQEngine(),
		logger:   cfg.Logger.With(slog.String("component", "engine")),
	}, nil
}

// CreatePlan decomposes a query into a research plan owned by userID. The
// plan starts in status planning; nothing is executed.
func (e *Engine) CreatePlan(ctx context.Context, query, userID string) (*schema.WorkflowPlan, error) {
	plan, err := NewPlan(query, userID)
	if err != nil {
		return nil, err
	}

	if err := e.store.CreatePlan(ctx, plan); err != nil {
		return nil, err
	}
	e.appendEvent(ctx, plan.ID, "", schema.EventPlanCreated, map[string]any{"query": query})

	ctx = logging.WithIDs(ctx, plan.ID, "", userID)
	e.logger.InfoContext(ctx, "plan created",
		slog.Int("steps", len(plan.Steps)),
		slog.String("query", truncate(query, 50)))

	return plan, nil
}

// ExecutePlan runs a plan to a terminal state and returns the final plan.
// Concurrent calls for the same plan id beyond the first fail fast with a
// conflict error; calls on a terminal plan fail with an invalid transition.
func (e *Engine) ExecutePlan(ctx context.Context, planID, callerID string) (*schema.WorkflowPlan, error) {
	if err := e.acquire(planID); err != nil {
		return nil, err
	}
	defer e.release(planID)

	plan, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.UserID != callerID {
		return nil, schema.NewErrorf(schema.ErrCodeUnauthorized, "caller %q does not own plan %q", callerID, planID)
	}

	ctx = logging.WithIDs(ctx, planID, "", callerID)

	if err := e.fsm.Transition(ctx, planID, plan.Status, schema.PlanStatusExecuting); err != nil {
		return nil, err
	}
	plan.Status = schema.PlanStatusExecuting
	plan.UpdatedAt = time.Now().UTC()
	if err := e.store.SavePlan(ctx, plan); err != nil {
		return nil, err
	}
	e.publish(ctx, planID, "", schema.EventPlanStarted, nil)
	e.logger.InfoContext(ctx, "plan execution started")

	dag, err := ParseDAG(plan.Steps)
	if err != nil {
		return e.finish(ctx, plan, schema.PlanStatusError, fmt.Sprintf("plan validation failed: %s", err.Error()))
	}

	for _, stepID := range dag.Sorted {
		step := plan.Step(stepID)
		stepCtx := logging.WithStepID(ctx, stepID)

		result := e.runStep(stepCtx, plan, step)
		plan.Results[stepID] = result
		plan.UpdatedAt = time.Now().UTC()

		switch result.Status {
		case schema.StepStatusSkipped:
			e.appendEvent(stepCtx, planID, stepID, schema.EventStepSkipped, map[string]any{"reason": result.Reason})
			e.publish(stepCtx, planID, stepID, schema.EventStepSkipped, result.Reason)
			e.logger.InfoContext(stepCtx, "step skipped", slog.String("reason", result.Reason))

		case schema.StepStatusCompleted:
			e.appendEvent(stepCtx, planID, stepID, schema.EventStepCompleted, nil)
			e.publish(stepCtx, planID, stepID, schema.EventStepCompleted, nil)
			e.logger.InfoContext(stepCtx, "step completed",
				slog.String("capability", result.CapabilityUsed))

		case schema.StepStatusError:
			plan.Errors = append(plan.Errors, fmt.Sprintf("Step %s: %s", stepID, result.Error))
			e.appendEvent(stepCtx, planID, stepID, schema.EventStepFailed, map[string]any{"error": result.Error})
			e.publish(stepCtx, planID, stepID, schema.EventStepFailed, result.Error)
			e.logger.ErrorContext(stepCtx, "step failed", slog.String("error", result.Error))
			// Fail fast: no step after a fatal one executes.
			return e.finish(ctx, plan, schema.PlanStatusFailed, "")
		}
	}

	if final, err := e.finish(ctx, plan, schema.PlanStatusCompleted, ""); err != nil {
		return final, err
	}

	e.persistSynthesis(ctx, plan)
	return plan, nil
}

// ExecutePlanAsync schedules a plan run on the worker pool. The run outlives
// the caller's context cancellation.
func (e *Engine) ExecutePlanAsync(ctx context.Context, planID, callerID string) error {
	runCtx := context.WithoutCancel(ctx)
	return e.pool.Submit(runCtx, func(ctx context.Context) error {
		_, err := e.ExecutePlan(ctx, planID, callerID)
		if err != nil {
			e.logger.ErrorContext(ctx, "async plan execution failed",
				slog.String("plan_id", planID), slog.String("error", err.Error()))
		}
		return err
	})
}

// RunQuery creates a plan for the query and schedules it on the worker pool.
// Used by the scheduler for recurring research queries.
func (e *Engine) RunQuery(ctx context.Context, query, userID string) (string, error) {
	plan, err := e.CreatePlan(ctx, query, userID)
	if err != nil {
		return "", err
	}
	if err := e.ExecutePlanAsync(ctx, plan.ID, userID); err != nil {
		return "", err
	}
	return plan.ID, nil
}

// Status returns a read-only status projection of a plan. Safe to call
// repeatedly, including on terminal plans.
func (e *Engine) Status(ctx context.Context, planID, callerID string) (*schema.PlanSummary, error) {
	plan, err := e.ownedPlan(ctx, planID, callerID)
	if err != nil {
		return nil, err
	}

	done := 0
	for _, r := range plan.Results {
		if r != nil && r.Status != "" {
			done++
		}
	}

	return &schema.PlanSummary{
		PlanID:     plan.ID,
		Query:      plan.Query,
		Status:     plan.Status,
		TotalSteps: len(plan.Steps),
		DoneSteps:  done,
		HasErrors:  len(plan.Errors) > 0,
		ErrorCount: len(plan.Errors),
		CreatedAt:  plan.CreatedAt,
		UpdatedAt:  plan.UpdatedAt,
	}, nil
}

// PlanResults is the detailed results projection returned by Results.
type PlanResults struct {
	PlanID  string                        `json:"plan_id"`
	Query   string                        `json:"query"`
	Results map[string]*schema.StepResult `json:"results"`
	Errors  []string                      `json:"errors"`
	Status  schema.PlanStatus             `json:"status"`
	Summary schema.ExecutionSummary       `json:"execution_summary"`
}

// Results returns the detailed results of a plan. When filter is a non-empty
// jq expression it is applied to the results document and the projected value
// is returned instead.
func (e *Engine) Results(ctx context.Context, planID, callerID, filter string) (any, error) {
	plan, err := e.ownedPlan(ctx, planID, callerID)
	if err != nil {
		return nil, err
	}

	results := &PlanResults{
		PlanID:  plan.ID,
		Query:   plan.Query,
		Results: plan.Results,
		Errors:  plan.Errors,
		Status:  plan.Status,
		Summary: summarize(plan),
	}
	if filter == "" {
		return results, nil
	}

	// Round-trip through JSON so jq sees plain maps and slices.
	raw, err := json.Marshal(results)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "marshal results: %s", err.Error()).WithCause(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "unmarshal results: %s", err.Error()).WithCause(err)
	}
	return e.jq.Evaluate(ctx, filter, doc)
}

// Events returns the append-only event log of a plan past the given sequence.
func (e *Engine) Events(ctx context.Context, planID, callerID string, since int64) ([]*store.Event, error) {
	if _, err := e.ownedPlan(ctx, planID, callerID); err != nil {
		return nil, err
	}
	return e.store.GetEvents(ctx, planID, since)
}

// ListCapabilities lists the registered capability providers.
func (e *Engine) ListCapabilities(ctx context.Context) []capability.Info {
	return e.registry.List()
}

// Memory returns the engine's context memory graph.
func (e *Engine) Memory() *memory.Graph { return e.memory }

// Shutdown stops the worker pool, waiting for in-flight runs.
func (e *Engine) Shutdown() {
	e.pool.Shutdown()
}

// --- execution internals ---

func (e *Engine) acquire(planID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight == nil {
		e.inflight = make(map[string]struct{})
	}
	if _, busy := e.inflight[planID]; busy {
		return schema.NewErrorf(schema.ErrCodeConflict, "plan %q is already executing", planID)
	}
	e.inflight[planID] = struct{}{}
	return nil
}

func (e *Engine) release(planID string) {
	e.mu.Lock()
	delete(e.inflight, planID)
	e.mu.Unlock()
}

func (e *Engine) ownedPlan(ctx context.Context, planID, callerID string) (*schema.WorkflowPlan, error) {
	plan, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.UserID != callerID {
		return nil, schema.NewErrorf(schema.ErrCodeUnauthorized, "caller %q does not own plan %q", callerID, planID)
	}
	return plan, nil
}

// runStep gates on dependencies and an optional guard condition, then
// dispatches by step type. Faults are returned as error results, never
// panics.
func (e *Engine) runStep(ctx context.Context, plan *schema.WorkflowPlan, step *schema.WorkflowStep) *schema.StepResult {
	now := time.Now().UTC()

	for _, dep := range step.DependsOn {
		r, ok := plan.Results[dep]
		if !ok || r == nil || r.Status != schema.StepStatusCompleted {
			return &schema.StepResult{
				Status:    schema.StepStatusSkipped,
				Reason:    "dependency not met",
				Timestamp: now,
			}
		}
	}

	if step.Condition != "" {
		pass, err := e.cel.EvaluateBool(ctx, step.Condition, conditionData(plan))
		if err != nil {
			return &schema.StepResult{
				Status:    schema.StepStatusError,
				Error:     fmt.Sprintf("condition evaluation failed: %s", err.Error()),
				Timestamp: now,
			}
		}
		if !pass {
			return &schema.StepResult{
				Status:    schema.StepStatusSkipped,
				Reason:    "condition not met",
				Timestamp: now,
			}
		}
	}

	switch step.Type {
	case schema.StepTypeSearch, schema.StepTypeAnalysis:
		return e.runCapabilityStep(ctx, plan, step)
	case schema.StepTypeRetrieval:
		return e.runRetrievalStep(ctx, plan)
	case schema.StepTypeSynthesis:
		return e.runSynthesisStep(plan)
	default:
		return &schema.StepResult{
			Status:    schema.StepStatusError,
			Error:     fmt.Sprintf("unknown step type: %s", step.Type),
			Timestamp: now,
		}
	}
}

func (e *Engine) runCapabilityStep(ctx context.Context, plan *schema.WorkflowPlan, step *schema.WorkflowStep) *schema.StepResult {
	now := time.Now().UTC()

	cap, err := e.registry.Get(step.Capability)
	if err != nil {
		return &schema.StepResult{
			Status:    schema.StepStatusError,
			Error:     fmt.Sprintf("capability %q not available", step.Capability),
			Timestamp: now,
		}
	}

	query := plan.Query
	if step.Type == schema.StepTypeAnalysis {
		query = "analysis_" + truncate(plan.Query, 50)
	}

	input := capability.Input{
		Query:  query,
		UserID: plan.UserID,
		Context: map[string]any{
			"step_id": step.ID,
			"user_id": plan.UserID,
		},
	}

	output, err := e.invoke(ctx, cap, input)
	if err != nil {
		if ae, ok := err.(*schema.AriadneError); ok && ae.Code == schema.ErrCodeTimeout {
			return &schema.StepResult{
				Status:         schema.StepStatusError,
				Error:          ae.Message,
				CapabilityUsed: cap.Name(),
				Timestamp:      time.Now().UTC(),
			}
		}
		return &schema.StepResult{
			Status:         schema.StepStatusError,
			Error:          fmt.Sprintf("capability execution failed: %s", err.Error()),
			CapabilityUsed: cap.Name(),
			Timestamp:      time.Now().UTC(),
		}
	}
	if !output.Success {
		return &schema.StepResult{
			Status:         schema.StepStatusError,
			Error:          output.ErrorMessage,
			CapabilityUsed: cap.Name(),
			Timestamp:      time.Now().UTC(),
		}
	}

	return &schema.StepResult{
		Status:         schema.StepStatusCompleted,
		Payload:        output.Data,
		CapabilityUsed: cap.Name(),
		Timestamp:      time.Now().UTC(),
	}
}

// invoke runs a capability bounded by its declared timeout. The timeout is
// enforced here as an external cancellation boundary; the provider itself is
// not trusted to honor it.
func (e *Engine) invoke(ctx context.Context, cap capability.Capability, input capability.Input) (*capability.Output, error) {
	timeout := cap.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type invokeResult struct {
		output *capability.Output
		err    error
	}
	done := make(chan invokeResult, 1)

	go func() {
		out, err := cap.Execute(callCtx, input)
		done <- invokeResult{out, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeExecution, "%s", res.err.Error()).WithCause(res.err)
		}
		if res.output == nil {
			return nil, schema.NewErrorf(schema.ErrCodeExecution, "capability %q returned no output", cap.Name())
		}
		return res.output, nil
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, schema.NewErrorf(schema.ErrCodeExecution, "execution cancelled: %s", ctx.Err().Error()).WithCause(ctx.Err())
		}
		return nil, schema.NewErrorf(schema.ErrCodeTimeout,
			"capability %q exceeded its %s timeout", cap.Name(), timeout)
	}
}

func (e *Engine) runRetrievalStep(ctx context.Context, plan *schema.WorkflowPlan) *schema.StepResult {
	contexts, err := e.memory.RetrieveContext(ctx, plan.Query, plan.UserID, retrievalMaxResults)
	if err != nil {
		return &schema.StepResult{
			Status:    schema.StepStatusError,
			Error:     fmt.Sprintf("context retrieval failed: %s", err.Error()),
			Timestamp: time.Now().UTC(),
		}
	}

	// Empty result is not an error.
	return &schema.StepResult{
		Status: schema.StepStatusCompleted,
		Payload: map[string]any{
			"contexts": contexts,
			"count":    len(contexts),
		},
		CapabilityUsed: "memory_graph",
		Timestamp:      time.Now().UTC(),
	}
}

func (e *Engine) runSynthesisStep(plan *schema.WorkflowPlan) *schema.StepResult {
	sources := make(map[string]any)
	for _, step := range plan.Steps {
		if step.Type == schema.StepTypeSynthesis {
			continue
		}
		if r, ok := plan.Results[step.ID]; ok && r != nil && r.Status == schema.StepStatusCompleted {
			sources[step.ID] = r.Payload
		}
	}

	return &schema.StepResult{
		Status: schema.StepStatusCompleted,
		Payload: map[string]any{
			"query":               plan.Query,
			"sources":             sources,
			"synthesis_timestamp": time.Now().UTC().Format(time.RFC3339),
		},
		CapabilityUsed: "synthesis",
		Timestamp:      time.Now().UTC(),
	}
}

// finish transitions the plan to a terminal status and persists it. An extra
// error message, when non-empty, is appended to the plan's error list first.
func (e *Engine) finish(ctx context.Context, plan *schema.WorkflowPlan, status schema.PlanStatus, errMsg string) (*schema.WorkflowPlan, error) {
	if errMsg != "" {
		plan.Errors = append(plan.Errors, errMsg)
	}
	if err := e.fsm.Transition(ctx, plan.ID, plan.Status, status); err != nil {
		return plan, err
	}
	plan.Status = status
	plan.UpdatedAt = time.Now().UTC()
	if err := e.store.SavePlan(ctx, plan); err != nil {
		return plan, err
	}

	switch status {
	case schema.PlanStatusCompleted:
		e.publish(ctx, plan.ID, "", schema.EventPlanCompleted, nil)
		e.logger.InfoContext(ctx, "plan completed")
	default:
		e.publish(ctx, plan.ID, "", schema.EventPlanFailed, plan.Errors)
		e.logger.WarnContext(ctx, "plan terminated",
			slog.String("status", string(status)),
			slog.Int("errors", len(plan.Errors)))
	}
	return plan, nil
}

// persistSynthesis stores a completed plan's synthesis payload in the memory
// graph. Failures are logged; they do not change the plan's terminal status.
func (e *Engine) persistSynthesis(ctx context.Context, plan *schema.WorkflowPlan) {
	synthesis, ok := plan.Results[StepSynthesis]
	if !ok || synthesis == nil || synthesis.Status != schema.StepStatusCompleted {
		return
	}

	content, err := json.Marshal(synthesis.Payload)
	if err != nil {
		e.logger.WarnContext(ctx, "marshal synthesis payload", slog.String("error", err.Error()))
		return
	}

	contextID, err := e.memory.StoreContext(ctx, plan.Query, map[string]any{
		"content":         string(content),
		"plan_id":         plan.ID,
		"relevance_score": 1.0,
	}, plan.UserID)
	if err != nil {
		e.logger.WarnContext(ctx, "store synthesis context", slog.String("error", err.Error()))
		return
	}

	e.appendEvent(ctx, plan.ID, "", schema.EventContextStored, map[string]any{"context_id": contextID})
	e.publish(ctx, plan.ID, "", schema.EventContextStored, contextID)
}

// conditionData builds the CEL activation for step guard conditions.
func conditionData(plan *schema.WorkflowPlan) map[string]any {
	steps := make(map[string]any, len(plan.Results))
	for id, r := range plan.Results {
		if r != nil && r.Status == schema.StepStatusCompleted {
			steps[id] = r.Payload
		}
	}
	return map[string]any{
		"query": plan.Query,
		"steps": steps,
		"plan": map[string]any{
			"plan_id": plan.ID,
			"user_id": plan.UserID,
			"status":  string(plan.Status),
		},
	}
}

func summarize(plan *schema.WorkflowPlan) schema.ExecutionSummary {
	completed := 0
	used := make(map[string]struct{})
	for _, r := range plan.Results {
		if r == nil {
			continue
		}
		if r.Status == schema.StepStatusCompleted {
			completed++
		}
		if r.CapabilityUsed != "" {
			used[r.CapabilityUsed] = struct{}{}
		}
	}

	summary := schema.ExecutionSummary{
		TotalSteps:     len(plan.Steps),
		CompletedSteps: completed,
	}
	if len(plan.Steps) > 0 {
		summary.SuccessRate = float64(completed) / float64(len(plan.Steps))
	}
	for name := range used {
		summary.CapabilitiesUsed = append(summary.CapabilitiesUsed, name)
	}
	sort.Strings(summary.CapabilitiesUsed)
	return summary
}

// appendEvent writes to the append-only event log; failures are logged, never
// propagated into plan execution.
func (e *Engine) appendEvent(ctx context.Context, planID, stepID, eventType string, payload map[string]any) {
	event := &store.Event{
		PlanID: planID,
		StepID: stepID,
		Type:   eventType,
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			event.Payload = raw
		}
	}
	if err := e.store.AppendEvent(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "append event", slog.String("error", err.Error()))
	}
}

func (e *Engine) publish(ctx context.Context, planID, stepID, eventType string, payload any) {
	_ = e.hub.Publish(ctx, streaming.StreamEvent{
		PlanID:    planID,
		StepID:    stepID,
		EventType: eventType,
		Payload:   payload,
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n])
}
