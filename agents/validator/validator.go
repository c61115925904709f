// Package validator implements the control agent the executor dispatches
// during a sub-question's validate stage: the "validate_result" operation judges
// whether a processed result actually answers its sub-question (spec.md
// §4.5, §8 scenario C/D).
package validator

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

// Agent is the validator control agent.
type Agent struct {
	desc    agent.Descriptor
	profile string
}

// New builds a validator agent from its descriptor.
func New(desc agent.Descriptor) *Agent {
	profile, ok := config.StringValue(desc.Config, "llm_profile")
	if !ok || profile == "" {
		profile = defaultProfile
	}
	return &Agent{desc: desc, profile: profile}
}

func (a *Agent) Descriptor() agent.Descriptor { return a.desc }

func (a *Agent) Operations() map[string]agent.Runner {
	return map[string]agent.Runner{"validate_result": validateOp{}}
}

func (a *Agent) ExecuteOperation(ctx context.Context, opName string, params map[string]any, ectx agent.ExecutionContext) agent.Result {
	op, ok := a.Operations()[opName]
	if !ok {
		return envelope.Err(fmt.Sprintf("validator: no operation %q", opName), "result_validation")
	}
	return op.Run(ctx, params, ectx, a)
}

type validateOp struct{}

func (validateOp) Kind() agent.OperationKind { return agent.KindValidation }

func (validateOp) Description() string {
	return "Judges whether a sub-question's result is valid and sufficient."
}

func (validateOp) ParamsSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"subquestion", "result"},
		"properties": map[string]any{
			"subquestion": map[string]any{"type": "string"},
			"result":      map[string]any{},
		},
	}
}

func (validateOp) OutputsSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"is_valid", "confidence"},
		"properties": map[string]any{
			"is_valid":    map[string]any{"type": "boolean"},
			"confidence":  map[string]any{"type": "number"},
			"reasoning":   map[string]any{"type": "string"},
			"explanation": map[string]any{"type": "string"},
		},
	}
}

func (validateOp) Run(ctx context.Context, params map[string]any, ectx agent.ExecutionContext, self agent.Agent) agent.Result {
	a, ok := self.(*Agent)
	if !ok {
		return envelope.Err("validator: unexpected self type", "result_validation")
	}

	subquestion, _ := params["subquestion"].(string)
	resultJSON, _ := json.Marshal(params["result"])

	system := "You judge whether a sub-question has been sufficiently answered. " +
		"Respond with exactly one JSON object: " +
		`{"is_valid": true, "confidence": 0.0, "reasoning": "...", "explanation": "..."}.`
	user := fmt.Sprintf("Sub-question: %s\n\nCandidate result: %s", subquestion, string(resultJSON))

	out, resp, err := llmcall.JSON(ctx, llmcall.Request{
		Ectx:        ectx,
		Profile:     a.profile,
		System:      system,
		User:        user,
		Temperature: 0.0,
		MaxTokens:   512,
	})
	if err != nil {
		return envelope.Err(err.Error(), "result_validation", envelope.WithPrompt(user))
	}

	return envelope.Ok("result_validation", out, "judged result validity",
		envelope.WithPrompt(user),
		envelope.WithRawResponse(resp.RawText),
		envelope.WithTokensUsed(resp.TokensUsed))
}
