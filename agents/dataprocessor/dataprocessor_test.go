package dataprocessor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalhq/orcha/agent"
)

func TestAnalyze_TruncatesOversizedList(t *testing.T) {
	a := New(agent.Descriptor{Config: map[string]any{"max_rows": 2}})
	items := []any{"a", "b", "c", "d"}

	result := a.ExecuteOperation(context.Background(), "analyze", map[string]any{
		"step_id": "q1",
		"input":   items,
	}, nil)

	require.True(t, result.IsOK())
	out, ok := result.Output.([]any)
	require.True(t, ok)
	assert.Len(t, out, 2)
}

func TestAnalyze_PassesThroughShortInput(t *testing.T) {
	a := New(agent.Descriptor{})
	result := a.ExecuteOperation(context.Background(), "analyze", map[string]any{
		"step_id": "q1",
		"input":   "a scalar result",
	}, nil)

	require.True(t, result.IsOK())
	assert.Equal(t, "a scalar result", result.Output)
}

func TestAnalyze_UnknownOperation(t *testing.T) {
	a := New(agent.Descriptor{})
	result := a.ExecuteOperation(context.Background(), "bogus", nil, nil)
	assert.False(t, result.IsOK())
}
