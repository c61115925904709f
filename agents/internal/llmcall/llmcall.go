// Package llmcall is the shared request/parse helper for the LLM-backed
// control agents (planner, reasoner, validator, synthesizer): resolve a
// model client by profile, send a system/user turn, and require a
// JSON-shaped answer back (spec.md §6, "json_answer" extraction rule).
package llmcall

import (
	"context"
	"fmt"

	"github.com/fractalhq/orcha/agent"
	"github.com/fractalhq/orcha/model"
)

// Request is one system/user completion turn against a named LLM profile.
type Request struct {
	Ectx        agent.ExecutionContext
	Profile     string
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// JSON sends the turn and requires the response to contain an extractable
// JSON object (model.Response.JSONAnswer), returning it alongside the full
// response so callers can attach prompt/raw-response/token diagnostics to
// their envelope.Result.
func JSON(ctx context.Context, req Request) (map[string]any, *model.Response, error) {
	client, ok := req.Ectx.ModelClient(req.Profile)
	if !ok {
		return nil, nil, fmt.Errorf("llmcall: no model client for profile %q", req.Profile)
	}
	resp, err := client.Complete(ctx, &model.Request{
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: req.System},
			{Role: model.RoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("llmcall: complete: %w", err)
	}
	if resp.JSONAnswer == nil {
		return nil, resp, fmt.Errorf("llmcall: model response contained no JSON answer")
	}
	return resp.JSONAnswer, resp, nil
}
