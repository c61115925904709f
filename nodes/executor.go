package nodes

import (
	"context"

	"github.com/fractalhq/orcha/agent"
	"github.com/fractalhq/orcha/execctx"
	"github.com/fractalhq/orcha/registry"
	"github.com/fractalhq/orcha/step"
)

// Executor computes the current step's tool call, dispatches it through the
// registry, and records the outcome. It always routes back to the
// scheduler, never directly to the reasoner (spec.md §4.5, REDESIGN FLAGS:
// executor → scheduler topology).
func Executor(ctx context.Context, ectx *execctx.Context, reg *registry.Registry, maxRetries int) {
	id, ok := ectx.GetCurrentStepID()
	if !ok {
		return
	}
	hyp, err := ectx.GetCurrentToolCall(id)
	if err != nil {
		return
	}
	stage := ectx.GetCurrentStage(id)
	namespace := namespaceFor(stage, hyp.Agent)

	var relayedVia string
	if needsRelay(reg, hyp.Agent, hyp.Operation) {
		relayResult := reg.Dispatch(ctx, agent.NamespaceControl, RelayAgent, "relay", map[string]any{
			"agent":     hyp.Agent,
			"operation": hyp.Operation,
			"params":    hyp.Params,
		}, ectx)
		if relayResult.IsOK() {
			relayedVia = RelayAgent
		}
	}

	result := reg.Dispatch(ctx, namespace, hyp.Agent, hyp.Operation, hyp.Params, ectx)

	ectx.RecordToolExecutionResult(id, stage, hyp.Agent, hyp.Operation,
		string(result.Status), result.Summary, result.Error, result.Output,
		maxRetries, relayedVia)
}

// namespaceFor picks the registry namespace to dispatch a stage's tool call
// through: fetch calls resolve to whatever tool agent the reasoner selected
// (always tools-namespace, spec.md §4.2); process/validate use the canonical
// control agents.
func namespaceFor(stage step.Stage, agentName string) agent.Namespace {
	switch agentName {
	case DataProcessorAgent, ValidatorAgent:
		return agent.NamespaceControl
	}
	if stage == step.StageProcess || stage == step.StageValidate {
		return agent.NamespaceControl
	}
	return agent.NamespaceTools
}

// needsRelay reports whether the tool-registry snapshot tags agentName's
// opName operation as requiring relay (SPEC_FULL.md §4.6).
func needsRelay(reg *registry.Registry, agentName, opName string) bool {
	for _, spec := range reg.Snapshot() {
		if spec.Agent == agentName && spec.Operation == opName {
			return spec.HasTag(RequiresRelayTag)
		}
	}
	return false
}
