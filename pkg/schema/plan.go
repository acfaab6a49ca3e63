package schema

import "time"

// PlanStatus enumerates the lifecycle states of a research plan.
type PlanStatus string

const (
	PlanStatusPlanning  PlanStatus = "planning"
	PlanStatusExecuting PlanStatus = "executing"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusFailed    PlanStatus = "failed"
	PlanStatusError     PlanStatus = "error"
)

// Terminal reports whether a plan status is final. Terminal plans are
// immutable; no transition leaves them.
func (s PlanStatus) Terminal() bool {
	return s == PlanStatusCompleted || s == PlanStatusFailed || s == PlanStatusError
}

// StepType enumerates the kinds of steps in a research plan.
type StepType string

const (
	StepTypeSearch    StepType = "search"
	StepTypeAnalysis  StepType = "analysis"
	StepTypeRetrieval StepType = "retrieval"
	StepTypeSynthesis StepType = "synthesis"
)

// StepStatus enumerates the outcome of a single executed step.
type StepStatus string

const (
	StepStatusCompleted StepStatus = "completed"
	StepStatusSkipped   StepStatus = "skipped"
	StepStatusError     StepStatus = "error"
)

// WorkflowStep is one unit of plan execution.
type WorkflowStep struct {
	ID               string   `json:"id"`
	Type             StepType `json:"type"`
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	DependsOn        []string `json:"depends_on,omitempty"`
	EstimatedSeconds int      `json:"estimated_seconds,omitempty"` // informational only
	Capability       string   `json:"capability,omitempty"`        // empty for built-in retrieval/synthesis
	Condition        string   `json:"condition,omitempty"`         // optional CEL guard, evaluated before dispatch
}

// StepResult records the outcome of one step within a plan run.
type StepResult struct {
	Status         StepStatus     `json:"status"`
	Payload        map[string]any `json:"payload,omitempty"`
	CapabilityUsed string         `json:"capability_used,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	Reason         string         `json:"reason,omitempty"` // set when skipped
	Error          string         `json:"error,omitempty"`  // set when errored
}

// WorkflowPlan is a dependency-ordered set of steps generated for one query,
// owned by one user. It is created once by the planner and mutated only by
// its own execution run; once terminal it is immutable.
type WorkflowPlan struct {
	ID        string                 `json:"plan_id"`
	Query     string                 `json:"query"`
	UserID    string                 `json:"user_id"`
	Steps     []WorkflowStep         `json:"steps"`
	Results   map[string]*StepResult `json:"results"`
	Errors    []string               `json:"errors"`
	Status    PlanStatus             `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Clone returns a deep copy of the plan. Step payload maps are copied one
// level deep, which is sufficient because step payloads are write-once.
func (p *WorkflowPlan) Clone() *WorkflowPlan {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Steps = make([]WorkflowStep, len(p.Steps))
	for i, s := range p.Steps {
		clone.Steps[i] = s
		clone.Steps[i].DependsOn = append([]string(nil), s.DependsOn...)
	}
	clone.Errors = append([]string(nil), p.Errors...)
	clone.Results = make(map[string]*StepResult, len(p.Results))
	for id, r := range p.Results {
		if r == nil {
			clone.Results[id] = nil
			continue
		}
		rc := *r
		if r.Payload != nil {
			rc.Payload = make(map[string]any, len(r.Payload))
			for k, v := range r.Payload {
				rc.Payload[k] = v
			}
		}
		clone.Results[id] = &rc
	}
	return &clone
}

// Step returns the step with the given id, or nil.
func (p *WorkflowPlan) Step(id string) *WorkflowStep {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}

// PlanSummary is the read-only status projection returned by Status queries.
type PlanSummary struct {
	PlanID       string     `json:"plan_id"`
	Query        string     `json:"query"`
	Status       PlanStatus `json:"status"`
	TotalSteps   int        `json:"total_steps"`
	DoneSteps    int        `json:"done_steps"`
	HasErrors    bool       `json:"has_errors"`
	ErrorCount   int        `json:"error_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ExecutionSummary aggregates step outcomes for Results queries.
type ExecutionSummary struct {
	TotalSteps       int      `json:"total_steps"`
	CompletedSteps   int      `json:"completed_steps"`
	SuccessRate      float64  `json:"success_rate"`
	CapabilitiesUsed []string `json:"capabilities_used"`
}
