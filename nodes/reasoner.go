package nodes

import (
	"context"
	"fmt"

	"github.com/fractalhq/orcha/agent"
	"github.com/fractalhq/orcha/execctx"
	"github.com/fractalhq/orcha/plan"
	"github.com/fractalhq/orcha/registry"
	"github.com/fractalhq/orcha/step"
)

// Reasoner calls the reasoner agent's decide_next_stage operation for the
// context's current step, applies the deterministic selection override, and
// records the resulting decision (spec.md §4.5). Returns the route the
// driver should take next: RouteExecutor if a tool call is now pending,
// RouteScheduler otherwise (structural failure, or nothing left to do).
func Reasoner(ctx context.Context, ectx *execctx.Context, reg *registry.Registry) Route {
	id, ok := ectx.GetCurrentStepID()
	if !ok {
		return RouteScheduler
	}
	st, ok := ectx.StepState(id)
	if !ok || st.FullyCompleted() {
		return RouteScheduler
	}

	sq, _ := func() (plan.SubQuestion, bool) {
		p, _ := ectx.GetPlan()
		return p.Get(id)
	}()

	result := reg.Dispatch(ctx, agent.NamespaceControl, ReasonerAgent, "decide_next_stage", map[string]any{
		"subquestion":            sq.Text,
		"step_state":             stepStateSummary(st),
		"step_outputs":           ectx.GetRelevantStepOutputsForReasoner(id),
		"tool_registry_snapshot": reg.Snapshot(),
	}, ectx)

	if !result.IsOK() {
		ectx.FailStep(id, fmt.Sprintf("reasoner: %s", result.Error))
		return RouteScheduler
	}

	var decision step.Decision
	if err := decode(result.Output, &decision); err != nil {
		ectx.FailStep(id, fmt.Sprintf("reasoner: malformed decision: %v", err))
		return RouteScheduler
	}
	if err := validateDecisionShape(decision); err != nil {
		ectx.FailStep(id, fmt.Sprintf("reasoner: %v", err))
		return RouteScheduler
	}

	applyDeterministicSelection(&decision)
	ectx.RecordReasonerDecision(id, decision)

	if _, err := ectx.GetCurrentToolCall(id); err == nil && !ectx.IsStepFullyCompleted(id) {
		return RouteExecutor
	}
	return RouteScheduler
}

// validateDecisionShape checks the structural invariants spec.md §4.5 step 4
// requires before the decision is trusted: confidences in [0,1] and a
// non-empty reasoning trail.
func validateDecisionShape(d step.Decision) error {
	if len(d.Reasoning) == 0 {
		return fmt.Errorf("decision has empty reasoning")
	}
	for i, h := range d.Hypotheses {
		if h.Confidence < 0 || h.Confidence > 1 {
			return fmt.Errorf("hypothesis %d confidence %v out of [0,1]", i, h.Confidence)
		}
	}
	if d.Postprocessing.Confidence < 0 || d.Postprocessing.Confidence > 1 {
		return fmt.Errorf("postprocessing confidence out of [0,1]")
	}
	if d.Validation.Confidence < 0 || d.Validation.Confidence > 1 {
		return fmt.Errorf("validation confidence out of [0,1]")
	}
	return nil
}

// applyDeterministicSelection re-selects the hypothesis regardless of the
// reasoner's own final_decision.selected_hypothesis: filter hypotheses with
// confidence >= 0.5, pick the highest-confidence survivor, or -1 if none
// survive (spec.md §4.5 step 3, §8 property 9).
func applyDeterministicSelection(d *step.Decision) {
	best := -1
	bestConfidence := -1.0
	for i, h := range d.Hypotheses {
		if h.Confidence < 0.5 {
			continue
		}
		if h.Confidence > bestConfidence {
			best = i
			bestConfidence = h.Confidence
		}
	}
	d.FinalDecision.SelectedHypothesis = best
}

// stepStateSummary builds the compact step-state view the reasoner contract
// expects: retry count and the last validation feedback, without exposing
// the full internal step.State.
func stepStateSummary(st *step.State) map[string]any {
	summary := map[string]any{
		"retry_count": st.RetryCount,
	}
	if st.ValidationResult != nil {
		summary["last_validation"] = map[string]any{
			"is_valid":   st.ValidationResult.IsValid,
			"confidence": st.ValidationResult.Confidence,
			"reasoning":  st.ValidationResult.Reasoning,
		}
	}
	return summary
}
