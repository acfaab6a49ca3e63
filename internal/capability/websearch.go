package capability

import (
	"context"
	"strings"
	"time"
)

const webSearchInputSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["query"],
  "properties": {
    "query": { "type": "string", "minLength": 1 },
    "context": { "type": "object" },
    "user_id": { "type": "string" },
    "session_id": { "type": "string" }
  }
}`

// WebSearch is the built-in web search provider. The actual search backend
// is out of scope; it returns a structured stub payload so the engine and
// downstream synthesis can be exercised end to end.
type WebSearch struct {
	schema *inputSchema
}

// NewWebSearch creates the web_search capability.
func NewWebSearch() *WebSearch {
	return &WebSearch{schema: newInputSchema(webSearchInputSchema)}
}

func (w *WebSearch) Name() string           { return "web_search" }
func (w *WebSearch) Description() string    { return "Search the web for information" }
func (w *WebSearch) Version() string        { return "1.0.0" }
func (w *WebSearch) Timeout() time.Duration { return 30 * time.Second }

func (w *WebSearch) Validate(input Input) error {
	return w.schema.Validate(input)
}

func (w *WebSearch) Execute(ctx context.Context, input Input) (*Output, error) {
	start := time.Now()
	if err := w.Validate(input); err != nil {
		return Failure(err.Error()), nil
	}
	if strings.TrimSpace(input.Query) == "" {
		return Failure("query is blank"), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Output{
		Success: true,
		Data: map[string]any{
			"query":   input.Query,
			"results": []any{},
		},
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		Metadata:        map[string]any{"capability": "web_search", "status": "stub"},
	}, nil
}
