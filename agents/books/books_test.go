package books

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fractalhq/orcha/agent"
)

func TestListBooks_MissingAuthor(t *testing.T) {
	a := New(agent.Descriptor{Config: map[string]any{"db_uri": "localhost:0"}})
	result := a.ExecuteOperation(context.Background(), "list_books", map[string]any{}, nil)
	assert.False(t, result.IsOK())
}

func TestListBooks_UnknownOperation(t *testing.T) {
	a := New(agent.Descriptor{})
	result := a.ExecuteOperation(context.Background(), "bogus", nil, nil)
	assert.False(t, result.IsOK())
}

func TestNew_DefaultsAddrWhenUnconfigured(t *testing.T) {
	a := New(agent.Descriptor{})
	assert.Equal(t, defaultAddr, a.addr)
}

func TestNew_ReadsDBURIFromConfig(t *testing.T) {
	a := New(agent.Descriptor{Config: map[string]any{"db_uri": "redis://example:6380/0"}})
	assert.Equal(t, "redis://example:6380/0", a.addr)
}
