package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalhq/orcha/agent"
	"github.com/fractalhq/orcha/envelope"
	"github.com/fractalhq/orcha/execctx"
	"github.com/fractalhq/orcha/plan"
	"github.com/fractalhq/orcha/registry"
)

type fakeOp struct {
	kind    agent.OperationKind
	params  map[string]any
	outputs map[string]any
	run     func(ctx context.Context, params map[string]any, ectx agent.ExecutionContext) agent.Result
}

func (f *fakeOp) Kind() agent.OperationKind     { return f.kind }
func (f *fakeOp) Description() string           { return "fake" }
func (f *fakeOp) ParamsSchema() map[string]any  { return f.params }
func (f *fakeOp) OutputsSchema() map[string]any { return f.outputs }
func (f *fakeOp) Run(ctx context.Context, params map[string]any, ectx agent.ExecutionContext, self agent.Agent) agent.Result {
	return f.run(ctx, params, ectx)
}

type fakeAgent struct {
	name string
	ops  map[string]agent.Runner
}

func (f *fakeAgent) Descriptor() agent.Descriptor { return agent.Descriptor{Name: agent.Ident(f.name)} }
func (f *fakeAgent) Operations() map[string]agent.Runner { return f.ops }
func (f *fakeAgent) ExecuteOperation(ctx context.Context, opName string, params map[string]any, ectx agent.ExecutionContext) agent.Result {
	op, ok := f.ops[opName]
	if !ok {
		return envelope.Err("no such operation", "dispatch")
	}
	return op.Run(ctx, params, ectx, f)
}

func planOp(subquestions []map[string]any) *fakeOp {
	return &fakeOp{kind: agent.KindControl, run: func(_ context.Context, _ map[string]any, _ agent.ExecutionContext) agent.Result {
		return envelope.Ok("planning", map[string]any{
			"plan": map[string]any{"subquestions": subquestions},
		}, "planned")
	}}
}

func failingOp(stage string) *fakeOp {
	return &fakeOp{kind: agent.KindControl, run: func(_ context.Context, _ map[string]any, _ agent.ExecutionContext) agent.Result {
		return envelope.Err("boom", stage)
	}}
}

func buildCommonRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	reg.RegisterControl("validator", func() agent.Agent {
		return &fakeAgent{name: "validator", ops: map[string]agent.Runner{
			"validate_result": &fakeOp{kind: agent.KindValidation, run: func(_ context.Context, _ map[string]any, _ agent.ExecutionContext) agent.Result {
				return envelope.Ok("result_validation", map[string]any{"is_valid": true, "confidence": 0.95}, "valid")
			}},
		}}
	})
	reg.RegisterControl("synthesizer", func() agent.Agent {
		return &fakeAgent{name: "synthesizer", ops: map[string]agent.Runner{
			"synthesize": &fakeOp{kind: agent.KindSemantic, run: func(_ context.Context, params map[string]any, _ agent.ExecutionContext) agent.Result {
				return envelope.Ok("synthesis", map[string]any{"final_answer": "Eugene Onegin and Ruslan and Ludmila"}, "synthesized")
			}},
		}}
	})
	return reg
}

func TestGraph_ScenarioA_SingleStepSuccess(t *testing.T) {
	reg := buildCommonRegistry(t)
	reg.RegisterControl("planner", func() agent.Agent {
		return &fakeAgent{name: "planner", ops: map[string]agent.Runner{
			"plan": planOp([]map[string]any{{"id": "q1", "text": "list books by Pushkin", "depends_on": []string{}}}),
		}}
	})
	reg.RegisterControl("reasoner", func() agent.Agent {
		return &fakeAgent{name: "reasoner", ops: map[string]agent.Runner{
			"decide_next_stage": &fakeOp{kind: agent.KindSemantic, run: func(_ context.Context, _ map[string]any, _ agent.ExecutionContext) agent.Result {
				return envelope.Ok("reasoning", map[string]any{
					"hypotheses": []map[string]any{
						{"agent": "books", "operation": "list_books", "params": map[string]any{"author": "Pushkin"}, "confidence": 0.9},
					},
					"postprocessing":  map[string]any{"needed": false},
					"validation":      map[string]any{"needed": true},
					"final_decision":  map[string]any{"selected_hypothesis": 0},
					"reasoning":       []string{"only one plausible tool"},
				}, "decided")
			}},
		}}
	})
	reg.RegisterTool("books", func() agent.Agent {
		return &fakeAgent{name: "books", ops: map[string]agent.Runner{
			"list_books": &fakeOp{kind: agent.KindDirect, run: func(_ context.Context, _ map[string]any, _ agent.ExecutionContext) agent.Result {
				return envelope.Ok("data_fetch", []map[string]string{
					{"title": "Eugene Onegin"}, {"title": "Ruslan and Ludmila"},
				}, "fetched")
			}},
		}}
	})

	g := New(reg, DefaultConfig())
	ectx, err := execctx.New("List the books written by Pushkin")
	require.NoError(t, err)

	out, err := g.Invoke(context.Background(), ectx)
	require.NoError(t, err)

	answer, ok := out.GetFinalAnswer()
	require.True(t, ok)
	assert.Contains(t, answer, "Eugene Onegin")
	assert.Contains(t, answer, "Ruslan and Ludmila")

	st, ok := out.StepState("q1")
	require.True(t, ok)
	assert.True(t, st.FullyCompleted())
	assert.Len(t, st.AgentCalls, 2)
}

func TestGraph_ScenarioC_RetryThenSuccess(t *testing.T) {
	reg := buildCommonRegistry(t)
	reg.RegisterControl("planner", func() agent.Agent {
		return &fakeAgent{name: "planner", ops: map[string]agent.Runner{
			"plan": planOp([]map[string]any{{"id": "q1", "text": "find pushkin books", "depends_on": []string{}}}),
		}}
	})
	attempt := 0
	reg.RegisterControl("reasoner", func() agent.Agent {
		return &fakeAgent{name: "reasoner", ops: map[string]agent.Runner{
			"decide_next_stage": &fakeOp{kind: agent.KindSemantic, run: func(_ context.Context, _ map[string]any, _ agent.ExecutionContext) agent.Result {
				attempt++
				return envelope.Ok("reasoning", map[string]any{
					"hypotheses": []map[string]any{
						{"agent": "books", "operation": "list_books", "params": map[string]any{"attempt": attempt}, "confidence": 0.9},
					},
					"postprocessing": map[string]any{"needed": false},
					"validation":     map[string]any{"needed": true},
					"final_decision": map[string]any{"selected_hypothesis": 0},
					"reasoning":      []string{"retry with adjusted params"},
				}, "decided")
			}},
		}}
	})
	fetchCount := 0
	reg.RegisterTool("books", func() agent.Agent {
		return &fakeAgent{name: "books", ops: map[string]agent.Runner{
			"list_books": &fakeOp{kind: agent.KindDirect, run: func(_ context.Context, _ map[string]any, _ agent.ExecutionContext) agent.Result {
				fetchCount++
				if fetchCount == 1 {
					return envelope.Ok("data_fetch", []map[string]string{}, "empty")
				}
				return envelope.Ok("data_fetch", []map[string]string{{"title": "Eugene Onegin"}}, "fetched")
			}},
		}}
	})
	// Override validator: invalid on first call, valid on second.
	validateCount := 0
	reg.RegisterControl("validator", func() agent.Agent {
		return &fakeAgent{name: "validator", ops: map[string]agent.Runner{
			"validate_result": &fakeOp{kind: agent.KindValidation, run: func(_ context.Context, _ map[string]any, _ agent.ExecutionContext) agent.Result {
				validateCount++
				if validateCount == 1 {
					return envelope.Ok("result_validation", map[string]any{"is_valid": false, "confidence": 0.8}, "empty result")
				}
				return envelope.Ok("result_validation", map[string]any{"is_valid": true, "confidence": 0.9}, "valid")
			}},
		}}
	})

	g := New(reg, DefaultConfig())
	ectx, err := execctx.New("Find books by Pushkin")
	require.NoError(t, err)

	out, err := g.Invoke(context.Background(), ectx)
	require.NoError(t, err)

	st, ok := out.StepState("q1")
	require.True(t, ok)
	assert.Equal(t, 1, st.RetryCount)
	assert.True(t, st.FullyCompleted())
	assert.Equal(t, 2, fetchCount)
}

func TestGraph_ScenarioD_RetryExhaustion(t *testing.T) {
	reg := buildCommonRegistry(t)
	reg.RegisterControl("planner", func() agent.Agent {
		return &fakeAgent{name: "planner", ops: map[string]agent.Runner{
			"plan": planOp([]map[string]any{{"id": "q1", "text": "find pushkin books", "depends_on": []string{}}}),
		}}
	})
	reg.RegisterControl("reasoner", func() agent.Agent {
		return &fakeAgent{name: "reasoner", ops: map[string]agent.Runner{
			"decide_next_stage": &fakeOp{kind: agent.KindSemantic, run: func(_ context.Context, _ map[string]any, _ agent.ExecutionContext) agent.Result {
				return envelope.Ok("reasoning", map[string]any{
					"hypotheses": []map[string]any{
						{"agent": "books", "operation": "list_books", "params": map[string]any{}, "confidence": 0.9},
					},
					"postprocessing": map[string]any{"needed": false},
					"validation":     map[string]any{"needed": true},
					"final_decision": map[string]any{"selected_hypothesis": 0},
					"reasoning":      []string{"same hypothesis every time"},
				}, "decided")
			}},
		}}
	})
	reg.RegisterTool("books", func() agent.Agent {
		return &fakeAgent{name: "books", ops: map[string]agent.Runner{
			"list_books": &fakeOp{kind: agent.KindDirect, run: func(_ context.Context, _ map[string]any, _ agent.ExecutionContext) agent.Result {
				return envelope.Ok("data_fetch", []map[string]string{}, "empty")
			}},
		}}
	})
	reg.RegisterControl("validator", func() agent.Agent {
		return &fakeAgent{name: "validator", ops: map[string]agent.Runner{
			"validate_result": &fakeOp{kind: agent.KindValidation, run: func(_ context.Context, _ map[string]any, _ agent.ExecutionContext) agent.Result {
				return envelope.Ok("result_validation", map[string]any{"is_valid": false, "confidence": 0.7}, "still empty")
			}},
		}}
	})

	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	g := New(reg, cfg)
	ectx, err := execctx.New("Find books by Pushkin")
	require.NoError(t, err)

	out, err := g.Invoke(context.Background(), ectx)
	require.NoError(t, err)

	st, ok := out.StepState("q1")
	require.True(t, ok)
	assert.Equal(t, cfg.MaxRetries, st.RetryCount)
	assert.True(t, st.FullyCompleted())

	answer, ok := out.GetFinalAnswer()
	require.True(t, ok)
	assert.NotEmpty(t, answer)
}

func TestGraph_ScenarioE_NoViableHypothesis(t *testing.T) {
	reg := buildCommonRegistry(t)
	reg.RegisterControl("planner", func() agent.Agent {
		return &fakeAgent{name: "planner", ops: map[string]agent.Runner{
			"plan": planOp([]map[string]any{{"id": "q1", "text": "ambiguous question", "depends_on": []string{}}}),
		}}
	})
	reg.RegisterControl("reasoner", func() agent.Agent {
		return &fakeAgent{name: "reasoner", ops: map[string]agent.Runner{
			"decide_next_stage": &fakeOp{kind: agent.KindSemantic, run: func(_ context.Context, _ map[string]any, _ agent.ExecutionContext) agent.Result {
				return envelope.Ok("reasoning", map[string]any{
					"hypotheses": []map[string]any{
						{"agent": "books", "operation": "list_books", "confidence": 0.3},
						{"agent": "docsearch", "operation": "search", "confidence": 0.3},
						{"agent": "dataanalysis", "operation": "analyze", "confidence": 0.3},
					},
					"postprocessing": map[string]any{"needed": false},
					"validation":     map[string]any{"needed": false},
					"final_decision": map[string]any{"selected_hypothesis": 1},
					"reasoning":      []string{"no hypothesis is confident enough"},
				}, "decided")
			}},
		}}
	})

	g := New(reg, DefaultConfig())
	ectx, err := execctx.New("An ambiguous question")
	require.NoError(t, err)

	out, err := g.Invoke(context.Background(), ectx)
	require.NoError(t, err)

	st, ok := out.StepState("q1")
	require.True(t, ok)
	assert.True(t, st.FullyCompleted())
	assert.Nil(t, st.RawOutput)
	require.NotNil(t, st.Decision)
	assert.Equal(t, -1, st.Decision.FinalDecision.SelectedHypothesis)
}

func TestGraph_ScenarioF_PlannerFallback(t *testing.T) {
	reg := buildCommonRegistry(t)
	reg.RegisterControl("planner", func() agent.Agent {
		return &fakeAgent{name: "planner", ops: map[string]agent.Runner{
			"plan": failingOp("planning"),
		}}
	})
	reg.RegisterControl("reasoner", func() agent.Agent {
		return &fakeAgent{name: "reasoner", ops: map[string]agent.Runner{
			"decide_next_stage": &fakeOp{kind: agent.KindSemantic, run: func(_ context.Context, _ map[string]any, _ agent.ExecutionContext) agent.Result {
				return envelope.Ok("reasoning", map[string]any{
					"hypotheses":     []map[string]any{},
					"postprocessing": map[string]any{"needed": false},
					"validation":     map[string]any{"needed": false},
					"final_decision": map[string]any{"selected_hypothesis": -1},
					"reasoning":      []string{"no tools fit the trivial question"},
				}, "decided")
			}},
		}}
	})

	g := New(reg, DefaultConfig())
	ectx, err := execctx.New("A question the planner chokes on")
	require.NoError(t, err)

	out, err := g.Invoke(context.Background(), ectx)
	require.NoError(t, err)

	p, ok := out.GetPlan()
	require.True(t, ok)
	require.Len(t, p.SubQuestions, 1)

	foundFallback := false
	for _, evt := range out.History() {
		if evt.Type == "planner_fallback" {
			foundFallback = true
		}
	}
	assert.True(t, foundFallback)

	answer, ok := out.GetFinalAnswer()
	require.True(t, ok)
	assert.NotEmpty(t, answer)
}

// TestGraph_ScenarioB_DependentSubQuestions covers spec.md §8's two-step
// dependency scenario: q2 depends_on q1, so the scheduler must not run q2's
// reasoning step until q1 has fully completed. The q2 reasoner fake proves
// this by reading its own step_outputs param rather than by timing: that
// param is only populated with q1's RawOutput once q1 is done (execctx's
// GetRelevantStepOutputsForReasoner), so if the scheduler ever reordered the
// steps, q2's hypothesis would be built from a missing title and the test's
// own title-presence assertion would fail along with the final answer check.
func TestGraph_ScenarioB_DependentSubQuestions(t *testing.T) {
	reg := buildCommonRegistry(t)
	reg.RegisterControl("planner", func() agent.Agent {
		return &fakeAgent{name: "planner", ops: map[string]agent.Runner{
			"plan": planOp([]map[string]any{
				{"id": "q1", "text": "list books by Pushkin", "depends_on": []string{}},
				{"id": "q2", "text": "find where the first title is shelved", "depends_on": []string{"q1"}},
			}),
		}}
	})
	reg.RegisterTool("books", func() agent.Agent {
		return &fakeAgent{name: "books", ops: map[string]agent.Runner{
			"list_books": &fakeOp{kind: agent.KindDirect, run: func(_ context.Context, _ map[string]any, _ agent.ExecutionContext) agent.Result {
				return envelope.Ok("data_fetch", []map[string]string{
					{"title": "Ruslan and Ludmila"},
				}, "fetched")
			}},
		}}
	})

	var q2SawQ1Output bool
	var q2Title string
	reg.RegisterTool("docsearch", func() agent.Agent {
		return &fakeAgent{name: "docsearch", ops: map[string]agent.Runner{
			"search_documents": &fakeOp{kind: agent.KindDirect, run: func(_ context.Context, params map[string]any, _ agent.ExecutionContext) agent.Result {
				title, _ := params["title"].(string)
				return envelope.Ok("data_fetch", map[string]any{"shelf": "Russian Classics", "title": title}, "fetched")
			}},
		}}
	})

	reg.RegisterControl("reasoner", func() agent.Agent {
		return &fakeAgent{name: "reasoner", ops: map[string]agent.Runner{
			"decide_next_stage": &fakeOp{kind: agent.KindSemantic, run: func(_ context.Context, params map[string]any, _ agent.ExecutionContext) agent.Result {
				subquestion, _ := params["subquestion"].(string)
				if subquestion == "list books by Pushkin" {
					return envelope.Ok("reasoning", map[string]any{
						"hypotheses": []map[string]any{
							{"agent": "books", "operation": "list_books", "params": map[string]any{"author": "Pushkin"}, "confidence": 0.9},
						},
						"postprocessing": map[string]any{"needed": false},
						"validation":     map[string]any{"needed": true},
						"final_decision": map[string]any{"selected_hypothesis": 0},
						"reasoning":      []string{"only one plausible tool"},
					}, "decided")
				}

				stepOutputs, _ := params["step_outputs"].(map[plan.SubQuestionID]any)
				q1Output, ok := stepOutputs["q1"].([]map[string]string)
				if ok && len(q1Output) > 0 {
					q2SawQ1Output = true
					q2Title = q1Output[0]["title"]
				}
				return envelope.Ok("reasoning", map[string]any{
					"hypotheses": []map[string]any{
						{"agent": "docsearch", "operation": "search_documents", "params": map[string]any{"title": q2Title}, "confidence": 0.9},
					},
					"postprocessing": map[string]any{"needed": false},
					"validation":     map[string]any{"needed": true},
					"final_decision": map[string]any{"selected_hypothesis": 0},
					"reasoning":      []string{"resolved from q1's fetched title"},
				}, "decided")
			}},
		}}
	})
	reg.RegisterControl("synthesizer", func() agent.Agent {
		return &fakeAgent{name: "synthesizer", ops: map[string]agent.Runner{
			"synthesize": &fakeOp{kind: agent.KindSemantic, run: func(_ context.Context, params map[string]any, _ agent.ExecutionContext) agent.Result {
				stepOutputs, _ := params["step_outputs"].(map[plan.SubQuestionID]any)
				shelfInfo, _ := stepOutputs["q2"].(map[string]any)
				answer := fmt.Sprintf("%v is shelved in %v", shelfInfo["title"], shelfInfo["shelf"])
				return envelope.Ok("synthesis", map[string]any{"final_answer": answer}, "synthesized")
			}},
		}}
	})

	g := New(reg, DefaultConfig())
	ectx, err := execctx.New("Where is the first book Pushkin wrote shelved?")
	require.NoError(t, err)

	out, err := g.Invoke(context.Background(), ectx)
	require.NoError(t, err)

	assert.True(t, q2SawQ1Output, "q2's reasoner must see q1's completed output before deciding, proving the scheduler enforced dependency order")

	q1State, ok := out.StepState("q1")
	require.True(t, ok)
	assert.True(t, q1State.FullyCompleted())
	q2State, ok := out.StepState("q2")
	require.True(t, ok)
	assert.True(t, q2State.FullyCompleted())

	answer, ok := out.GetFinalAnswer()
	require.True(t, ok)
	assert.Contains(t, answer, "Ruslan and Ludmila")
}
