package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariadne-labs/ariadne/pkg/schema"
)

func TestExprEvaluate(t *testing.T) {
	e := NewExprEngine()
	ctx := context.Background()

	out, err := e.Evaluate(ctx, "a + b", map[string]any{"a": 2, "b": 3})
	require.NoError(t, err)
	assert.Equal(t, 5, out)
}

func TestExprArrayOperations(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), "filter(items, # > 2)", map[string]any{
		"items": []any{1, 2, 3, 4},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{3, 4}, out)
}

func TestExprUndefinedVariablesAllowed(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), "missing ?? \"fallback\"", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", out)
}

func TestExprEmptyExpression(t *testing.T) {
	e := NewExprEngine()

	_, err := e.Evaluate(context.Background(), "", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.AriadneError).Code)
}

func TestExprCompileError(t *testing.T) {
	e := NewExprEngine()

	_, err := e.Evaluate(context.Background(), "a +", map[string]any{"a": 1})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.AriadneError).Code)
}

func TestExprCompileCache(t *testing.T) {
	e := NewExprEngine()
	ctx := context.Background()

	const expression = "x * x"
	_, err := e.Evaluate(ctx, expression, map[string]any{"x": 3})
	require.NoError(t, err)

	e.mu.RLock()
	_, cached := e.cache[expression]
	e.mu.RUnlock()
	assert.True(t, cached)

	out, err := e.Evaluate(ctx, expression, map[string]any{"x": 4})
	require.NoError(t, err)
	assert.Equal(t, 16, out)
}
