// Package planner implements the control agent behind nodes.Planner: the
// "plan" operation decomposes a question into an ordered sub-question DAG
// by prompting an LLM with the tool-registry snapshot (spec.md §4.4).
package planner

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

// Agent is the planner control agent. Construct with New, passing the
// descriptor read from the agents.yaml config file.
type Agent struct {
	desc    agent.Descriptor
	profile string
}

// New builds a planner agent from its descriptor, reading the recognized
// llm_profile config key (spec.md §6).
func New(desc agent.Descriptor) *Agent {
	profile, ok := config.StringValue(desc.Config, "llm_profile")
	if !ok || profile == "" {
		profile = defaultProfile
	}
	return &Agent{desc: desc, profile: profile}
}

func (a *Agent) Descriptor() agent.Descriptor { return a.desc }

func (a *Agent) Operations() map[string]agent.Runner {
	return map[string]agent.Runner{"plan": planOp{}}
}

func (a *Agent) ExecuteOperation(ctx context.Context, opName string, params map[string]any, ectx agent.ExecutionContext) agent.Result {
	op, ok := a.Operations()[opName]
	if !ok {
		return envelope.Err(fmt.Sprintf("planner: no operation %q", opName), "planning")
	}
	return op.Run(ctx, params, ectx, a)
}

type planOp struct{}

func (planOp) Kind() agent.OperationKind { return agent.KindControl }

func (planOp) Description() string {
	return "Decomposes a question into an ordered sub-question DAG."
}

func (planOp) ParamsSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"question", "tool_registry_snapshot"},
		"properties": map[string]any{
			"question":              map[string]any{"type": "string"},
			"tool_registry_snapshot": map[string]any{"type": "array"},
		},
	}
}

func (planOp) OutputsSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"plan"},
		"properties": map[string]any{
			"plan": map[string]any{"type": "object"},
		},
	}
}

func (planOp) Run(ctx context.Context, params map[string]any, ectx agent.ExecutionContext, self agent.Agent) agent.Result {
	a, ok := self.(*Agent)
	if !ok {
		return envelope.Err("planner: unexpected self type", "planning")
	}

	question, _ := params["question"].(string)
	snapshotJSON, _ := json.Marshal(params["tool_registry_snapshot"])

	system := "You are the planning stage of a multi-agent research system. " +
		"Decompose the user's question into an ordered list of sub-questions " +
		"that, answered in order, answer the original question; independent " +
		"sub-questions may omit depends_on, dependent ones must list the ids " +
		"they need answered first. Respond with exactly one JSON object: " +
		`{"plan": {"subquestions": [{"id": "q1", "text": "...", "depends_on": []}]}}. ` +
		"The tool list below is context for what information is retrievable; " +
		"do not select or call a tool here."
	user := fmt.Sprintf("Question: %s\n\nAvailable tools:\n%s", question, string(snapshotJSON))

	out, resp, err := llmcall.JSON(ctx, llmcall.Request{
		Ectx:        ectx,
		Profile:     a.profile,
		System:      system,
		User:        user,
		Temperature: 0.2,
		MaxTokens:   1024,
	})
	if err != nil {
		return envelope.Err(err.Error(), "planning", envelope.WithPrompt(user))
	}

	return envelope.Ok("planning", out, "produced a sub-question plan",
		envelope.WithPrompt(user),
		envelope.WithRawResponse(resp.RawText),
		envelope.WithTokensUsed(resp.TokensUsed))
}
