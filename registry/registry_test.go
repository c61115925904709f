package registry

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalhq/orcha/agent"
	"github.com/fractalhq/orcha/envelope"
)

type fakeOp struct {
	kind   agent.OperationKind
	params map[string]any
	run    func(ctx context.Context, params map[string]any, ectx agent.ExecutionContext) envelope.Result
}

func (o fakeOp) Kind() agent.OperationKind        { return o.kind }
func (o fakeOp) Description() string              { return "fake op" }
func (o fakeOp) ParamsSchema() map[string]any     { return o.params }
func (o fakeOp) OutputsSchema() map[string]any    { return nil }
func (o fakeOp) Run(ctx context.Context, params map[string]any, ectx agent.ExecutionContext, self agent.Agent) envelope.Result {
	return o.run(ctx, params, ectx)
}

type fakeAgent struct {
	name     string
	ops      map[string]agent.Runner
	initHits *int32
}

func (a *fakeAgent) Descriptor() agent.Descriptor {
	return agent.Descriptor{Name: agent.Ident(a.name), Title: a.name}
}
func (a *fakeAgent) Operations() map[string]agent.Runner { return a.ops }
func (a *fakeAgent) ExecuteOperation(ctx context.Context, opName string, params map[string]any, ectx agent.ExecutionContext) envelope.Result {
	op, ok := a.ops[opName]
	if !ok {
		return envelope.Err("no such operation", "dispatch")
	}
	return op.Run(ctx, params, ectx, a)
}
func (a *fakeAgent) Init(ctx context.Context) error {
	atomic.AddInt32(a.initHits, 1)
	return nil
}

func newFakeAgent(name string, initHits *int32) *fakeAgent {
	return &fakeAgent{
		name: name,
		ops: map[string]agent.Runner{
			"lookup": fakeOp{
				kind:   agent.KindDirect,
				params: map[string]any{"required": []string{"isbn"}},
				run: func(ctx context.Context, params map[string]any, ectx agent.ExecutionContext) envelope.Result {
					return envelope.Ok("data_fetch", map[string]any{"title": "Dune"}, "found book")
				},
			},
		},
		initHits: initHits,
	}
}

func TestDispatch_Success(t *testing.T) {
	var hits int32
	r := New()
	r.RegisterTool("books", func() agent.Agent { return newFakeAgent("books", &hits) })

	result := r.Dispatch(context.Background(), agent.NamespaceTools, "books", "lookup",
		map[string]any{"isbn": "123"}, nil)

	require.True(t, result.IsOK())
	assert.Equal(t, "books", result.Agent)
	assert.Equal(t, "lookup", result.Operation)
	assert.NotEmpty(t, result.Metadata["elapsed"])
}

func TestDispatch_MissingRequiredParam(t *testing.T) {
	var hits int32
	r := New()
	r.RegisterTool("books", func() agent.Agent { return newFakeAgent("books", &hits) })

	result := r.Dispatch(context.Background(), agent.NamespaceTools, "books", "lookup",
		map[string]any{}, nil)

	assert.False(t, result.IsOK())
	assert.Contains(t, result.Error, "isbn")
}

func TestDispatch_UnknownAgent(t *testing.T) {
	r := New()
	result := r.Dispatch(context.Background(), agent.NamespaceTools, "missing", "op", nil, nil)
	assert.False(t, result.IsOK())
}

func TestInstantiate_InitRunsOnce(t *testing.T) {
	var hits int32
	r := New()
	r.RegisterTool("books", func() agent.Agent { return newFakeAgent("books", &hits) })

	for i := 0; i < 5; i++ {
		_, err := r.Instantiate(context.Background(), agent.NamespaceTools, "books")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSnapshot_OnlyToolsNamespace(t *testing.T) {
	var hits int32
	r := New()
	r.RegisterTool("books", func() agent.Agent { return newFakeAgent("books", &hits) })
	r.RegisterControl("planner", func() agent.Agent { return newFakeAgent("planner", &hits) })

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "books", snap[0].Agent)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits), "Snapshot must not instantiate/init agents")
}
