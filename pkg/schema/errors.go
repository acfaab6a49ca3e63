package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeNotFound              = "NOT_FOUND"
	ErrCodeUnauthorized          = "UNAUTHORIZED"
	ErrCodeConflict              = "CONFLICT"
	ErrCodeTimeout               = "TIMEOUT_ERROR"
	ErrCodeExecution             = "EXECUTION_ERROR"
	ErrCodeCapabilityUnavailable = "CAPABILITY_UNAVAILABLE"
	ErrCodeInvalidTransition     = "INVALID_TRANSITION"
	ErrCodeCycleDetected         = "CYCLE_DETECTED"
	ErrCodeUnknownStep           = "UNKNOWN_STEP_TYPE"
	ErrCodeStore                 = "STORE_ERROR"
)

// AriadneError is the structured error type for all engine operations.
type AriadneError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	StepID  string         `json:"step_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *AriadneError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.StepID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AriadneError) Unwrap() error {
	return e.Cause
}

// NewError creates a new AriadneError.
func NewError(code, message string) *AriadneError {
	return &AriadneError{Code: code, Message: message}
}

// NewErrorf creates a new AriadneError with a formatted message.
func NewErrorf(code, format string, args ...any) *AriadneError {
	return &AriadneError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStep attaches a step ID to the error.
func (e *AriadneError) WithStep(stepID string) *AriadneError {
	e.StepID = stepID
	return e
}

// WithCause attaches an underlying cause.
func (e *AriadneError) WithCause(err error) *AriadneError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *AriadneError) WithDetails(details map[string]any) *AriadneError {
	e.Details = details
	return e
}
