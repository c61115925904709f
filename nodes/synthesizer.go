package nodes

import (
	"context"
	"fmt"

	"github.com/fractalhq/orcha/agent"
	"github.com/fractalhq/orcha/execctx"
	"github.com/fractalhq/orcha/plan"
	"github.com/fractalhq/orcha/registry"
)

type synthesisOutput struct {
	FinalAnswer any     `mapstructure:"final_answer"`
	Confidence  float64 `mapstructure:"confidence"`
	Reasoning   string  `mapstructure:"reasoning"`
	Explanation string  `mapstructure:"explanation"`
}

// Synthesizer aggregates every step's output into the final answer (spec.md
// §4.6). If the synthesizer agent is unavailable or errors, it falls back to
// the last completed step's output coerced to a string, or the canonical
// "could not produce an answer" when nothing succeeded, and records
// memory["failure_reasons"] with every step's error (spec.md §7).
func Synthesizer(ctx context.Context, ectx *execctx.Context, reg *registry.Registry) {
	p, _ := ectx.GetPlan()
	stepOutputs := make(map[plan.SubQuestionID]any, len(p.SubQuestions))
	var lastOutput any
	var failures []string
	for _, sq := range p.SubQuestions {
		st, ok := ectx.StepState(sq.ID)
		if !ok {
			continue
		}
		if st.Error != "" {
			failures = append(failures, fmt.Sprintf("%s: %s", sq.ID, st.Error))
			continue
		}
		stepOutputs[sq.ID] = st.RawOutput
		if st.RawOutput != nil {
			lastOutput = st.RawOutput
		}
	}

	result := reg.Dispatch(ctx, agent.NamespaceControl, SynthesizerAgent, "synthesize", map[string]any{
		"question":     ectx.GetQuestion(),
		"plan":         p,
		"step_outputs": stepOutputs,
	}, ectx)
	ectx.AppendHistoryEvent("tool_executed", "", map[string]any{
		"agent":     SynthesizerAgent,
		"operation": "synthesize",
		"status":    string(result.Status),
	})

	if result.IsOK() {
		var out synthesisOutput
		if err := decode(result.Output, &out); err == nil && out.FinalAnswer != nil {
			ectx.SetFinalAnswer(out.FinalAnswer)
			return
		}
	}

	fallback := "could not produce an answer"
	if lastOutput != nil {
		fallback = fmt.Sprintf("%v", lastOutput)
	}
	ectx.SetFinalAnswer(fallback)
	ectx.AppendHistoryEvent("synthesis_fallback", "", map[string]any{
		"reason": synthesisFallbackReason(result),
	})
	if len(failures) > 0 {
		ectx.Memory()["failure_reasons"] = failures
	}
}

func synthesisFallbackReason(result agent.Result) string {
	if result.Error != "" {
		return result.Error
	}
	return "synthesizer output missing final_answer"
}
