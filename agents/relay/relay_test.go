package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalhq/orcha/agent"
)

func TestRelay_ForwardsParamsAndStampsMetadata(t *testing.T) {
	a := New(agent.Descriptor{Name: "relay"})

	result := a.ExecuteOperation(context.Background(), "relay", map[string]any{
		"agent":     "books",
		"operation": "list_books",
		"params":    map[string]any{"author": "Pushkin"},
	}, nil)

	require.True(t, result.IsOK())
	assert.Equal(t, map[string]any{"author": "Pushkin"}, result.Output)
	require.Contains(t, result.Metadata, "relayed_via")
	assert.Equal(t, "relay", result.Metadata["relayed_via"])
}

func TestRelay_UnknownOperation(t *testing.T) {
	a := New(agent.Descriptor{})
	result := a.ExecuteOperation(context.Background(), "bogus", nil, nil)
	assert.False(t, result.IsOK())
}
