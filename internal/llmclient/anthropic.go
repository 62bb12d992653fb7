package llmclient

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient adapts the Anthropic Messages API onto Client.
type AnthropicClient struct {
	sdk       anthropic.Client
	MaxTokens int64
}

// NewAnthropicClient builds a client authenticated with apiKey. maxTokens
// is the per-call response budget passed to every Messages.New request.
func NewAnthropicClient(apiKey string, maxTokens int64) *AnthropicClient {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicClient{
		sdk:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		MaxTokens: maxTokens,
	}
}

func (c *AnthropicClient) Chat(ctx context.Context, system string, msgs []Message, tools []ToolSchema, model string) (Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: c.MaxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	for _, m := range msgs {
		switch m.Role {
		case "user":
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case "tool":
			params.Messages = append(params.Messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolID, m.Content, false),
			))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	for _, t := range tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.Parameters,
				},
			},
		})
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("llmclient: anthropic chat: %w", err)
	}

	var resp Response
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Blocks = append(resp.Blocks, ContentBlock{Text: variant.Text})
		case anthropic.ToolUseBlock:
			tc := ToolCall{ID: variant.ID, Name: variant.Name, Args: variant.Input}
			resp.ToolCalls = append(resp.ToolCalls, tc)
			resp.Blocks = append(resp.Blocks, ContentBlock{ToolCall: &tc})
		}
	}
	return resp, nil
}
