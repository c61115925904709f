// Package synthesizer implements the control agent behind nodes.Synthesizer:
// the "synthesize" operation aggregates every sub-question's output into a
// single final answer (spec.md §4.6).
package synthesizer

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

// Agent is the synthesizer control agent.
type Agent struct {
	desc    agent.Descriptor
	profile string
}

// New builds a synthesizer agent from its descriptor.
func New(desc agent.Descriptor) *Agent {
	profile, ok := config.StringValue(desc.Config, "llm_profile")
	if !ok || profile == "" {
		profile = defaultProfile
	}
	return &Agent{desc: desc, profile: profile}
}

func (a *Agent) Descriptor() agent.Descriptor { return a.desc }

func (a *Agent) Operations() map[string]agent.Runner {
	return map[string]agent.Runner{"synthesize": synthesizeOp{}}
}

func (a *Agent) ExecuteOperation(ctx context.Context, opName string, params map[string]any, ectx agent.ExecutionContext) agent.Result {
	op, ok := a.Operations()[opName]
	if !ok {
		return envelope.Err(fmt.Sprintf("synthesizer: no operation %q", opName), "synthesis")
	}
	return op.Run(ctx, params, ectx, a)
}

type synthesizeOp struct{}

func (synthesizeOp) Kind() agent.OperationKind { return agent.KindControl }

func (synthesizeOp) Description() string {
	return "Aggregates every sub-question's output into a single final answer."
}

func (synthesizeOp) ParamsSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"question", "step_outputs"},
		"properties": map[string]any{
			"question":     map[string]any{"type": "string"},
			"plan":         map[string]any{"type": "object"},
			"step_outputs": map[string]any{"type": "object"},
		},
	}
}

func (synthesizeOp) OutputsSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"final_answer"},
		"properties": map[string]any{
			"final_answer": map[string]any{},
			"confidence":   map[string]any{"type": "number"},
			"reasoning":    map[string]any{"type": "string"},
			"explanation":  map[string]any{"type": "string"},
		},
	}
}

func (synthesizeOp) Run(ctx context.Context, params map[string]any, ectx agent.ExecutionContext, self agent.Agent) agent.Result {
	a, ok := self.(*Agent)
	if !ok {
		return envelope.Err("synthesizer: unexpected self type", "synthesis")
	}

	question, _ := params["question"].(string)
	outputsJSON, _ := json.Marshal(params["step_outputs"])

	system := "You synthesize the final answer to a user's question from the " +
		"outputs of its sub-questions. Respond with exactly one JSON object: " +
		`{"final_answer": "...", "confidence": 0.0, "reasoning": "...", "explanation": "..."}.`
	user := fmt.Sprintf("Question: %s\n\nSub-question outputs: %s", question, string(outputsJSON))

	out, resp, err := llmcall.JSON(ctx, llmcall.Request{
		Ectx:        ectx,
		Profile:     a.profile,
		System:      system,
		User:        user,
		Temperature: 0.2,
		MaxTokens:   1536,
	})
	if err != nil {
		return envelope.Err(err.Error(), "synthesis", envelope.WithPrompt(user))
	}

	return envelope.Ok("synthesis", out, "synthesized final answer",
		envelope.WithPrompt(user),
		envelope.WithRawResponse(resp.RawText),
		envelope.WithTokensUsed(resp.TokensUsed))
}
