package expressions

import "context"

// Engine evaluates expressions during plan execution.
// Three implementations: CEL (step guard conditions), GoJQ (result
// projections), Expr (the transform capability).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
