package schema

// Event types emitted to the event log and the streaming hub.
const (
	EventPlanCreated   = "plan_created"
	EventPlanStarted   = "plan_started"
	EventPlanCompleted = "plan_completed"
	EventPlanFailed    = "plan_failed"

	EventStepCompleted = "step_completed"
	EventStepSkipped   = "step_skipped"
	EventStepFailed    = "step_failed"

	EventContextStored = "context_stored"
)
