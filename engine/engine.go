// Package engine implements the tail-recursive graph driver spec.md §9
// prescribes in place of the original's re-entrant coroutine loop: a state
// machine of {current node, context} dispatched by node kind, with no
// language-level coroutines (spec.md §4.7, §9 "Coroutine-like control
// flow"). Graph.Invoke is the engine's single public entry point.
package engine

import (
	"context"
	"fmt"

	"github.com/fractalhq/orcha/execctx"
	"github.com/fractalhq/orcha/nodes"
	"github.com/fractalhq/orcha/plan"
	"github.com/fractalhq/orcha/registry"
)

// Config holds the per-invocation tunables spec.md §3 and §5 name: the
// state machine's retry ceiling and the hard loop-iteration bound that
// guarantees progress even if a reasoner keeps toggling flags.
type Config struct {
	MaxRetries int
	LoopBudget int
}

// DefaultConfig returns MAX_RETRIES=2, loop budget=12 (spec.md §3, §5).
func DefaultConfig() Config {
	return Config{MaxRetries: nodes.DefaultMaxRetries, LoopBudget: nodes.DefaultLoopBudget}
}

// Graph composes the registry and config needed to drive one invocation.
// A single Graph may serve many concurrent invocations: it holds no
// per-invocation state (spec.md §5 — shared caches only, ExecutionContext
// never shared).
type Graph struct {
	Registry *registry.Registry
	Config   Config
}

// New constructs a Graph. A zero Config is replaced with DefaultConfig.
func New(reg *registry.Registry, cfg Config) *Graph {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = nodes.DefaultMaxRetries
	}
	if cfg.LoopBudget <= 0 {
		cfg.LoopBudget = nodes.DefaultLoopBudget
	}
	return &Graph{Registry: reg, Config: cfg}
}

// Invoke runs the whole graph for one execution context and returns it
// (spec.md §6: invoke(context) → context). The context must already have
// its question set; Invoke runs the planner once, then alternates
// scheduler/reasoner/executor until every step is done, then synthesizes.
// The invocation itself never fails: errors are recorded as values on the
// context (step errors, fallbacks, a cancelled event) and Invoke's error
// return is reserved for a genuinely unreachable route.
func (g *Graph) Invoke(ctx context.Context, ectx *execctx.Context) (*execctx.Context, error) {
	if !ectx.IsPlanSet() {
		nodes.Planner(ctx, ectx, g.Registry)
	}

	iterations := make(map[plan.SubQuestionID]int)
	route := nodes.RouteScheduler

	for {
		if err := ctx.Err(); err != nil {
			ectx.AppendHistoryEvent("cancelled", "", map[string]any{"error": err.Error()})
			return ectx, nil
		}

		switch route {
		case nodes.RouteScheduler:
			route = nodes.Scheduler(ectx)

		case nodes.RouteReasoner:
			id, _ := ectx.GetCurrentStepID()
			if g.exceedsLoopBudget(iterations, id) {
				ectx.FailStep(id, "loop_budget_exhausted")
				route = nodes.RouteScheduler
				continue
			}
			route = nodes.Reasoner(ctx, ectx, g.Registry)

		case nodes.RouteExecutor:
			id, _ := ectx.GetCurrentStepID()
			if g.exceedsLoopBudget(iterations, id) {
				ectx.FailStep(id, "loop_budget_exhausted")
				route = nodes.RouteScheduler
				continue
			}
			nodes.Executor(ctx, ectx, g.Registry, g.Config.MaxRetries)
			route = nodes.RouteScheduler

		case nodes.RouteSynthesizer:
			nodes.Synthesizer(ctx, ectx, g.Registry)
			return ectx, nil

		default:
			return ectx, fmt.Errorf("engine: unknown route %q", route)
		}
	}
}

// exceedsLoopBudget increments the step's iteration counter and reports
// whether it has now exceeded the configured bound (spec.md §5, "Bounded
// loops").
func (g *Graph) exceedsLoopBudget(iterations map[plan.SubQuestionID]int, id plan.SubQuestionID) bool {
	if id == "" {
		return false
	}
	iterations[id]++
	return iterations[id] > g.Config.LoopBudget
}
