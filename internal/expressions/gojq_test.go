package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariadne-labs/ariadne/pkg/schema"
)

func TestGoJQSingleResult(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), ".results.web_search.status", map[string]any{
		"results": map[string]any{
			"web_search": map[string]any{"status": "completed"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "completed", out)
}

func TestGoJQMultipleResults(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), ".items[]", map[string]any{
		"items": []any{"a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out)
}

func TestGoJQNoResults(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), ".items[]", map[string]any{
		"items": []any{},
	})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestGoJQParseError(t *testing.T) {
	e := NewGoJQEngine()

	_, err := e.Evaluate(context.Background(), ".[", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.AriadneError).Code)
}

func TestGoJQRuntimeError(t *testing.T) {
	e := NewGoJQEngine()

	_, err := e.Evaluate(context.Background(), `error("boom")`, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeExecution, err.(*schema.AriadneError).Code)
}

func TestGoJQEmptyExpression(t *testing.T) {
	e := NewGoJQEngine()

	_, err := e.Evaluate(context.Background(), "", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.AriadneError).Code)
}

func TestGoJQEnvSandboxed(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), `env | length`, map[string]any{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, out)
}

func TestGoJQCompileCache(t *testing.T) {
	e := NewGoJQEngine()
	ctx := context.Background()

	const expression = ".count + 1"
	out, err := e.Evaluate(ctx, expression, map[string]any{"count": 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, out)

	e.mu.RLock()
	_, cached := e.cache[expression]
	e.mu.RUnlock()
	assert.True(t, cached)
}
