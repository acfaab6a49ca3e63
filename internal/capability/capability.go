package capability

import (
	"context"
	"time"
)

// Capability is a named, pluggable unit of work (search, document processing,
// transformation) dispatched by the workflow engine.
type Capability interface {
	Name() string
	Description() string
	Version() string

	// Timeout is the declared execution bound. The capability does not enforce
	// it internally; the caller applies it as an external cancellation boundary.
	Timeout() time.Duration

	Execute(ctx context.Context, input Input) (*Output, error)

	// Validate checks the input without executing. Implementations report
	// malformed input as an error; Execute additionally surfaces validation
	// failures as Success=false outputs rather than panicking.
	Validate(input Input) error
}

// Input is the data provided to a capability at execution time.
type Input struct {
	Query     string         `json:"query"`
	Context   map[string]any `json:"context,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
}

// Output is the result of a capability execution. Validation failures are
// returned as Success=false outputs, never thrown.
type Output struct {
	Success         bool           `json:"success"`
	Data            map[string]any `json:"data,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	ExecutionTimeMs int64          `json:"execution_time_ms,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Failure builds a Success=false output with the given message.
func Failure(msg string) *Output {
	return &Output{Success: false, ErrorMessage: msg}
}

// Info is a summary of a registered capability for listing.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
}
