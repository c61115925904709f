package nodes

import (
	"context"

	"github.com/fractalhq/orcha/agent"
	"github.com/fractalhq/orcha/execctx"
	"github.com/fractalhq/orcha/plan"
	"github.com/fractalhq/orcha/registry"
)

type planOutput struct {
	Plan plan.Plan `mapstructure:"plan"`
}

// Planner calls the planner agent once, converts its output into the
// immutable plan DAG, and falls back to a trivial single-step plan on any
// structural failure so downstream stages still run (spec.md §4.4).
func Planner(ctx context.Context, ectx *execctx.Context, reg *registry.Registry) {
	snapshot := reg.Snapshot()
	result := reg.Dispatch(ctx, agent.NamespaceControl, PlannerAgent, "plan", map[string]any{
		"question":              ectx.GetQuestion(),
		"tool_registry_snapshot": snapshot,
	}, ectx)

	p, ok := acceptPlan(result)
	if !ok {
		p = plan.Trivial(ectx.GetQuestion())
		ectx.AppendHistoryEvent("planner_fallback", "", map[string]any{
			"reason": planFallbackReason(result),
		})
	}
	ectx.SetPlan(p)
}

func acceptPlan(result agent.Result) (plan.Plan, bool) {
	if !result.IsOK() {
		return plan.Plan{}, false
	}
	var out planOutput
	if err := decode(result.Output, &out); err != nil {
		return plan.Plan{}, false
	}
	if err := out.Plan.Validate(); err != nil {
		return plan.Plan{}, false
	}
	return out.Plan, true
}

func planFallbackReason(result agent.Result) string {
	if result.Error != "" {
		return result.Error
	}
	return "planner output failed structural validation"
}
