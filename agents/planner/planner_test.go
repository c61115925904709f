package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalhq/orcha/agent"
	"github.com/fractalhq/orcha/model"
	"github.com/fractalhq/orcha/telemetry"
)

type fakeClient struct {
	resp *model.Response
	err  error
}

func (f fakeClient) Complete(context.Context, *model.Request) (*model.Response, error) {
	return f.resp, f.err
}
func (f fakeClient) Stream(context.Context, *model.Request) (model.Streamer, error) { return nil, nil }

type fakeEctx struct{ client model.Client }

func (f fakeEctx) GetQuestion() string            { return "who wrote Eugene Onegin?" }
func (f fakeEctx) GetFinalAnswer() (any, bool)     { return nil, false }
func (f fakeEctx) SetFinalAnswer(any)              {}
func (f fakeEctx) ModelClient(string) (model.Client, bool) {
	if f.client == nil {
		return nil, false
	}
	return f.client, true
}
func (f fakeEctx) Logger() telemetry.Logger   { return telemetry.NewNoopLogger() }
func (f fakeEctx) Metrics() telemetry.Metrics { return telemetry.NewNoopMetrics() }
func (f fakeEctx) Tracer() telemetry.Tracer   { return telemetry.NewNoopTracer() }

func TestPlanner_Run_Success(t *testing.T) {
	a := New(agent.Descriptor{Config: map[string]any{"llm_profile": "default"}})
	ectx := fakeEctx{client: fakeClient{resp: &model.Response{
		RawText: `{"plan": {"subquestions": [{"id": "q1", "text": "who wrote Eugene Onegin?"}]}}`,
		JSONAnswer: map[string]any{
			"plan": map[string]any{
				"subquestions": []any{
					map[string]any{"id": "q1", "text": "who wrote Eugene Onegin?"},
				},
			},
		},
	}}}

	result := a.ExecuteOperation(context.Background(), "plan", map[string]any{
		"question":              ectx.GetQuestion(),
		"tool_registry_snapshot": []any{},
	}, ectx)

	require.True(t, result.IsOK())
	out, ok := result.Output.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, out, "plan")
}

func TestPlanner_Run_MissingModelClientErrors(t *testing.T) {
	a := New(agent.Descriptor{})
	ectx := fakeEctx{}

	result := a.ExecuteOperation(context.Background(), "plan", map[string]any{
		"question": "anything",
	}, ectx)

	assert.False(t, result.IsOK())
	assert.NotEmpty(t, result.Error)
}

func TestPlanner_Run_UnknownOperation(t *testing.T) {
	a := New(agent.Descriptor{})
	result := a.ExecuteOperation(context.Background(), "bogus", nil, fakeEctx{})
	assert.False(t, result.IsOK())
}
