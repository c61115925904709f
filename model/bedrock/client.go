// Package bedrock implements model.Client on top of the AWS Bedrock
// Converse API, the third of Orcha's interchangeable LLM backend adapters.
package bedrock

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/fractalhq/orcha/model"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client this
// adapter needs, satisfied by *bedrockruntime.Client or a test fake.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the adapter.
type Options struct {
	DefaultModel string
	MaxTokens    int
}

// Client implements model.Client via AWS Bedrock Converse.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
	maxTokens    int
}

// New builds an adapter around an existing RuntimeClient.
func New(runtime RuntimeClient, opts Options) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if strings.TrimSpace(opts.DefaultModel) == "" {
		return nil, errors.New("bedrock: default model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{runtime: runtime, defaultModel: opts.DefaultModel, maxTokens: maxTokens}, nil
}

// Complete issues a Converse call and translates the response.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("bedrock: messages are required")
	}
	input := c.buildConverseInput(req)
	output, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return nil, errors.New("bedrock: converse: " + err.Error())
	}
	return translateOutput(output), nil
}

// Stream is unsupported by this adapter; callers fall back to Complete.
func (c *Client) Stream(context.Context, *model.Request) (model.Streamer, error) {
	return nil, errors.New("bedrock: streaming not implemented")
}

func (c *Client) buildConverseInput(req *model.Request) *bedrockruntime.ConverseInput {
	var system []brtypes.SystemContentBlock
	var conversation []brtypes.Message
	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleSystem:
			if m.Content != "" {
				system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Content})
			}
		case model.RoleUser:
			conversation = append(conversation, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
			})
		case model.RoleAssistant:
			conversation = append(conversation, brtypes.Message{
				Role:    brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
			})
		}
	}
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.defaultModel),
		Messages: conversation,
	}
	if len(system) > 0 {
		input.System = system
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	cfg := &brtypes.InferenceConfiguration{MaxTokens: aws.Int32(int32(maxTokens))}
	if req.Temperature > 0 {
		cfg.Temperature = aws.Float32(req.Temperature)
	}
	if req.TopP > 0 {
		cfg.TopP = aws.Float32(req.TopP)
	}
	input.InferenceConfig = cfg
	return input
}

func translateOutput(output *bedrockruntime.ConverseOutput) *model.Response {
	var text strings.Builder
	var tokensUsed int
	if output.Usage != nil {
		tokensUsed = int(aws.ToInt32(output.Usage.InputTokens) + aws.ToInt32(output.Usage.OutputTokens))
	}
	if msgOutput, ok := output.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msgOutput.Value.Content {
			if tb, ok := block.(*brtypes.ContentBlockMemberText); ok {
				text.WriteString(tb.Value)
			}
		}
	}
	raw := text.String()
	return &model.Response{
		RawText:    raw,
		Answer:     raw,
		JSONAnswer: model.ExtractJSONAnswer(raw),
		TokensUsed: tokensUsed,
	}
}
