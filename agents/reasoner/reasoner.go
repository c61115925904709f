// Package reasoner implements the control agent behind nodes.Reasoner: the
// "decide_next_stage" operation proposes hypothesis tool calls for a
// sub-question's fetch stage and flags whether postprocessing/validation
// are needed (spec.md §4.5). The engine's deterministic selection override
// is applied by nodes.Reasoner, not here — this agent only proposes.
package reasoner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fractalhq/orcha/agent"
	"github.com/fractalhq/orcha/agents/internal/llmcall"
	"github.com/fractalhq/orcha/config"
	"github.com/fractalhq/orcha/envelope"
)

const defaultProfile = "default"

// Agent is the reasoner control agent.
type Agent struct {
	desc    agent.Descriptor
	profile string
}

// New builds a reasoner agent from its descriptor.
func New(desc agent.Descriptor) *Agent {
	profile, ok := config.StringValue(desc.Config, "llm_profile")
	if !ok || profile == "" {
		profile = defaultProfile
	}
	return &Agent{desc: desc, profile: profile}
}

func (a *Agent) Descriptor() agent.Descriptor { return a.desc }

func (a *Agent) Operations() map[string]agent.Runner {
	return map[string]agent.Runner{"decide_next_stage": decideOp{}}
}

func (a *Agent) ExecuteOperation(ctx context.Context, opName string, params map[string]any, ectx agent.ExecutionContext) agent.Result {
	op, ok := a.Operations()[opName]
	if !ok {
		return envelope.Err(fmt.Sprintf("reasoner: no operation %q", opName), "reasoning")
	}
	return op.Run(ctx, params, ectx, a)
}

type decideOp struct{}

func (decideOp) Kind() agent.OperationKind { return agent.KindControl }

func (decideOp) Description() string {
	return "Proposes hypothesis tool calls and postprocessing/validation flags for a sub-question."
}

func (decideOp) ParamsSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"subquestion", "step_state", "tool_registry_snapshot"},
		"properties": map[string]any{
			"subquestion":            map[string]any{"type": "string"},
			"step_state":             map[string]any{"type": "object"},
			"step_outputs":           map[string]any{"type": "object"},
			"tool_registry_snapshot": map[string]any{"type": "array"},
		},
	}
}

func (decideOp) OutputsSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"hypotheses", "postprocessing", "validation", "final_decision", "reasoning"},
		"properties": map[string]any{
			"hypotheses":     map[string]any{"type": "array"},
			"postprocessing": map[string]any{"type": "object"},
			"validation":     map[string]any{"type": "object"},
			"final_decision": map[string]any{"type": "object"},
			"reasoning":      map[string]any{"type": "array"},
		},
	}
}

func (decideOp) Run(ctx context.Context, params map[string]any, ectx agent.ExecutionContext, self agent.Agent) agent.Result {
	a, ok := self.(*Agent)
	if !ok {
		return envelope.Err("reasoner: unexpected self type", "reasoning")
	}

	subquestion, _ := params["subquestion"].(string)
	stateJSON, _ := json.Marshal(params["step_state"])
	outputsJSON, _ := json.Marshal(params["step_outputs"])
	snapshotJSON, _ := json.Marshal(params["tool_registry_snapshot"])

	system := "You are the reasoning stage of a multi-agent research system. " +
		"Given a sub-question, its prior state, and the outputs of sub-questions " +
		"it depends on, propose one or more candidate tool calls (hypotheses) " +
		"that would answer it, each with a confidence in [0,1]. Also decide " +
		"whether the fetch result needs postprocessing (data shaping/aggregation) " +
		"or validation (checking the result actually answers the sub-question), " +
		"each with its own confidence in [0,1]. Respond with exactly one JSON " +
		"object: " +
		`{"hypotheses": [{"agent": "...", "operation": "...", "params": {}, "confidence": 0.0, "reason": "..."}], ` +
		`"postprocessing": {"needed": false, "confidence": 0.0, "reason": "..."}, ` +
		`"validation": {"needed": false, "confidence": 0.0, "reason": "..."}, ` +
		`"final_decision": {"selected_hypothesis": -1, "explanation": "..."}, ` +
		`"reasoning": ["..."]}. ` +
		"final_decision.selected_hypothesis is advisory only; the engine applies " +
		"its own deterministic selection over your hypotheses."
	user := fmt.Sprintf(
		"Sub-question: %s\n\nStep state: %s\n\nDependency outputs: %s\n\nAvailable tools:\n%s",
		subquestion, string(stateJSON), string(outputsJSON), string(snapshotJSON))

	out, resp, err := llmcall.JSON(ctx, llmcall.Request{
		Ectx:        ectx,
		Profile:     a.profile,
		System:      system,
		User:        user,
		Temperature: 0.3,
		MaxTokens:   1536,
	})
	if err != nil {
		return envelope.Err(err.Error(), "reasoning", envelope.WithPrompt(user))
	}

	return envelope.Ok("reasoning", out, "proposed hypotheses and stage flags",
		envelope.WithPrompt(user),
		envelope.WithRawResponse(resp.RawText),
		envelope.WithTokensUsed(resp.TokensUsed))
}
