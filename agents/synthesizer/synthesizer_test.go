package synthesizer

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

func (f fakeEctx) GetQuestion() string        { return "who wrote Eugene Onegin?" }
func (f fakeEctx) GetFinalAnswer() (any, bool) { return nil, false }
func (f fakeEctx) SetFinalAnswer(any)          {}
func (f fakeEctx) ModelClient(string) (model.Client, bool) {
	if f.client == nil {
		return nil, false
	}
	return f.client, true
}
func (f fakeEctx) Logger() telemetry.Logger   { return telemetry.NewNoopLogger() }
func (f fakeEctx) Metrics() telemetry.Metrics { return telemetry.NewNoopMetrics() }
func (f fakeEctx) Tracer() telemetry.Tracer   { return telemetry.NewNoopTracer() }

func TestSynthesizer_Run_Success(t *testing.T) {
	a := New(agent.Descriptor{})
	ectx := fakeEctx{client: fakeClient{resp: &model.Response{
		JSONAnswer: map[string]any{"final_answer": "Alexander Pushkin", "confidence": 0.9},
	}}}

	result := a.ExecuteOperation(context.Background(), "synthesize", map[string]any{
		"question":     ectx.GetQuestion(),
		"step_outputs": map[string]any{"q1": "Alexander Pushkin"},
	}, ectx)

	require.True(t, result.IsOK())
	out, ok := result.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alexander Pushkin", out["final_answer"])
}

func TestSynthesizer_Run_ModelError(t *testing.T) {
	a := New(agent.Descriptor{})
	result := a.ExecuteOperation(context.Background(), "synthesize", map[string]any{
		"question": "x",
	}, fakeEctx{})
	assert.False(t, result.IsOK())
}
