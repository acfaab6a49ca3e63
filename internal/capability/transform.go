package capability

import (
	"context"
	"strings"
	"time"

	"github.com/ariadne-labs/ariadne/internal/expressions"
)

const transformInputSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["query"],
  "properties": {
    "query": { "type": "string", "minLength": 1 },
    "context": {
      "type": "object",
      "properties": {
        "expression": { "type": "string", "minLength": 1 }
      }
    },
    "user_id": { "type": "string" },
    "session_id": { "type": "string" }
  }
}`

// Transform is the built-in data transformation provider. It evaluates an
// Expr expression from the input context over the accumulated step payloads,
// so plans can reshape upstream results without a custom capability.
type Transform struct {
	engine *expressions.ExprEngine
	schema *inputSchema
}

// NewTransform creates the transform capability.
func NewTransform() *Transform {
	return &Transform{
		engine: expressions.NewExprEngine(),
		schema: newInputSchema(transformInputSchema),
	}
}

func (t *Transform) Name() string           { return "transform" }
func (t *Transform) Description() string    { return "Evaluate an expression over step context" }
func (t *Transform) Version() string        { return "1.0.0" }
func (t *Transform) Timeout() time.Duration { return 30 * time.Second }

func (t *Transform) Validate(input Input) error {
	return t.schema.Validate(input)
}

func (t *Transform) Execute(ctx context.Context, input Input) (*Output, error) {
	start := time.Now()
	if err := t.Validate(input); err != nil {
		return Failure(err.Error()), nil
	}

	expression, _ := input.Context["expression"].(string)
	if strings.TrimSpace(expression) == "" {
		return Failure("context.expression is required"), nil
	}

	env := map[string]any{
		"query": input.Query,
	}
	for k, v := range input.Context {
		if k == "expression" {
			continue
		}
		env[k] = v
	}

	result, err := t.engine.Evaluate(ctx, expression, env)
	if err != nil {
		return Failure(err.Error()), nil
	}

	return &Output{
		Success: true,
		Data: map[string]any{
			"result":     result,
			"expression": expression,
		},
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		Metadata:        map[string]any{"capability": "transform", "engine": t.engine.Name()},
	}, nil
}
