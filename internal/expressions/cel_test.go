package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariadne-labs/ariadne/pkg/schema"
)

func TestCELEvaluateBool(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := e.EvaluateBool(ctx, `query.contains("quantum")`, map[string]any{
		"query": "what is quantum computing",
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.EvaluateBool(ctx, `query.contains("quantum")`, map[string]any{
		"query": "cooking pasta",
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCELStepsAccess(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	ok, err := e.EvaluateBool(context.Background(), `"web_search" in steps`, map[string]any{
		"steps": map[string]any{"web_search": map[string]any{"status": "completed"}},
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCELMissingVariablesDefault(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	// Unset query and steps default to zero values instead of erroring.
	ok, err := e.EvaluateBool(context.Background(), `query == "" && size(steps) == 0`, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCELEvaluateBoolNonBoolean(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.EvaluateBool(context.Background(), `query`, map[string]any{"query": "text"})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.AriadneError).Code)
}

func TestCELEmptyExpression(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), "", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.AriadneError).Code)
}

func TestCELCompileError(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), `query ==`, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.AriadneError).Code)
}

func TestCELCompileCache(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	ctx := context.Background()

	const expression = `query != ""`
	_, err = e.Evaluate(ctx, expression, map[string]any{"query": "a"})
	require.NoError(t, err)

	e.mu.RLock()
	_, cached := e.cache[expression]
	e.mu.RUnlock()
	assert.True(t, cached)

	// Second evaluation reuses the cached program.
	ok, err := e.EvaluateBool(ctx, expression, map[string]any{"query": "b"})
	require.NoError(t, err)
	assert.True(t, ok)
}
