// Package dataprocessor implements the canonical "analyze" control agent
// dispatched during a sub-question's process stage (spec.md §4.3, §4.5):
// a deterministic, non-LLM operation that bounds and shapes the fetch
// stage's raw output before validation/synthesis sees it.
package dataprocessor

import (
	"context"
	"fmt"

	"github.com/fractalhq/orcha/agent"
	"github.com/fractalhq/orcha/config"
	"github.com/fractalhq/orcha/envelope"
)

const defaultMaxItems = 20

// Agent is the data-processing control agent.
type Agent struct {
	desc     agent.Descriptor
	maxItems int
}

// New builds a dataprocessor agent from its descriptor, reading the
// recognized max_rows config key as the item-count bound (spec.md §6).
func New(desc agent.Descriptor) *Agent {
	maxItems := defaultMaxItems
	if v, ok := config.IntValue(desc.Config, "max_rows"); ok && v > 0 {
		maxItems = v
	}
	return &Agent{desc: desc, maxItems: maxItems}
}

func (a *Agent) Descriptor() agent.Descriptor { return a.desc }

func (a *Agent) Operations() map[string]agent.Runner {
	return map[string]agent.Runner{"analyze": analyzeOp{}}
}

func (a *Agent) ExecuteOperation(ctx context.Context, opName string, params map[string]any, ectx agent.ExecutionContext) agent.Result {
	op, ok := a.Operations()[opName]
	if !ok {
		return envelope.Err(fmt.Sprintf("dataprocessor: no operation %q", opName), "data_processing")
	}
	return op.Run(ctx, params, ectx, a)
}

type analyzeOp struct{}

func (analyzeOp) Kind() agent.OperationKind { return agent.KindDirect }

func (analyzeOp) Description() string {
	return "Bounds and shapes a fetch stage's raw output for downstream use."
}

func (analyzeOp) ParamsSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"step_id"},
		"properties": map[string]any{
			"step_id": map[string]any{"type": "string"},
			"input":   map[string]any{},
		},
	}
}

func (analyzeOp) OutputsSchema() map[string]any {
	return map[string]any{"type": "object"}
}

func (analyzeOp) Run(_ context.Context, params map[string]any, _ agent.ExecutionContext, self agent.Agent) agent.Result {
	a, ok := self.(*Agent)
	if !ok {
		return envelope.Err("dataprocessor: unexpected self type", "data_processing")
	}

	shaped, truncated := shape(params["input"], a.maxItems)
	summary := "processed fetch output"
	if truncated {
		summary = fmt.Sprintf("processed fetch output (truncated to %d items)", a.maxItems)
	}
	return envelope.Ok("data_processing", shaped, summary)
}

// shape bounds any list-valued input (or list-valued map entries) to
// maxItems, leaving scalars and short lists untouched.
func shape(input any, maxItems int) (any, bool) {
	switch v := input.(type) {
	case []any:
		if len(v) > maxItems {
			return append([]any(nil), v[:maxItems]...), true
		}
		return v, false
	case map[string]any:
		out := make(map[string]any, len(v))
		truncated := false
		for k, val := range v {
			if list, ok := val.([]any); ok && len(list) > maxItems {
				out[k] = append([]any(nil), list[:maxItems]...)
				truncated = true
				continue
			}
			out[k] = val
		}
		return out, truncated
	default:
		return input, false
	}
}
