// Package relay implements the fifth control agent named in spec.md's
// glossary but otherwise unspecified: a minimal pass-through that
// nodes.Executor routes a tool call through when the target operation is
// tagged requires_relay in the tool-registry snapshot (SPEC_FULL.md §4.6).
// It forwards the call's params unchanged and stamps which agent relayed
// it; nodes.Executor still dispatches the real call afterward.
package relay

import (
	"context"
	"fmt"

	"github.com/fractalhq/orcha/agent"
	"github.com/fractalhq/orcha/envelope"
)

// Agent is the relay control agent.
type Agent struct {
	desc agent.Descriptor
}

// New builds a relay agent from its descriptor.
func New(desc agent.Descriptor) *Agent {
	return &Agent{desc: desc}
}

func (a *Agent) Descriptor() agent.Descriptor { return a.desc }

func (a *Agent) Operations() map[string]agent.Runner {
	return map[string]agent.Runner{"relay": relayOp{}}
}

func (a *Agent) ExecuteOperation(ctx context.Context, opName string, params map[string]any, ectx agent.ExecutionContext) agent.Result {
	op, ok := a.Operations()[opName]
	if !ok {
		return envelope.Err(fmt.Sprintf("relay: no operation %q", opName), "relay")
	}
	return op.Run(ctx, params, ectx, a)
}

type relayOp struct{}

func (relayOp) Kind() agent.OperationKind { return agent.KindControl }

func (relayOp) Description() string {
	return "Forwards a tool call's params unchanged, stamping which agent relayed it."
}

func (relayOp) ParamsSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"agent", "operation"},
		"properties": map[string]any{
			"agent":     map[string]any{"type": "string"},
			"operation": map[string]any{"type": "string"},
			"params":    map[string]any{"type": "object"},
		},
	}
}

func (relayOp) OutputsSchema() map[string]any {
	return map[string]any{"type": "object"}
}

func (relayOp) Run(_ context.Context, params map[string]any, _ agent.ExecutionContext, self agent.Agent) agent.Result {
	a, ok := self.(*Agent)
	if !ok {
		return envelope.Err("relay: unexpected self type", "relay")
	}
	target, _ := params["agent"].(string)
	targetOp, _ := params["operation"].(string)
	return envelope.Ok("relay", params["params"], fmt.Sprintf("relayed %s.%s", target, targetOp),
		envelope.WithMetadata(map[string]any{"relayed_via": string(a.desc.Name)}))
}
