// Package openai implements model.Client on top of the OpenAI Chat
// Completions API (github.com/openai/openai-go), the second of Orcha's
// interchangeable LLM backend adapters.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/fractalhq/orcha/model"
)

// Options configures the adapter.
type Options struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// Client implements model.Client via the OpenAI Chat Completions API.
type Client struct {
	client       openai.Client
	defaultModel string
}

// New constructs an OpenAI-backed model client.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	modelID := strings.TrimSpace(opts.DefaultModel)
	if modelID == "" {
		modelID = "gpt-4o"
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &Client{client: openai.NewClient(reqOpts...), defaultModel: modelID}, nil
}

// Complete renders a chat completion using the configured OpenAI client.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	params := openai.ChatCompletionNewParams{
		Model:    c.defaultModel,
		Messages: encodeMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}
	if req.TopP > 0 {
		params.TopP = openai.Float(float64(req.TopP))
	}
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: response had no choices")
	}
	raw := resp.Choices[0].Message.Content
	return &model.Response{
		RawText:    raw,
		Answer:     raw,
		JSONAnswer: model.ExtractJSONAnswer(raw),
		TokensUsed: int(resp.Usage.TotalTokens),
	}, nil
}

// Stream is unsupported by this adapter; callers fall back to Complete.
func (c *Client) Stream(context.Context, *model.Request) (model.Streamer, error) {
	return nil, errors.New("openai: streaming not implemented")
}

func encodeMessages(msgs []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case model.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case model.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		}
	}
	return out
}
