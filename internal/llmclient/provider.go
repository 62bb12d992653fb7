package llmclient

import (
	"context"
	"encoding/json"
)

// ToolCall is one tool invocation the model asked the caller to perform.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// ContentBlock is one piece of a model response: text or a tool call.
type ContentBlock struct {
	Text     string
	ToolCall *ToolCall
}

// Message is one turn exchanged with the model, provider-agnostic.
type Message struct {
	Role     string // "system" | "user" | "assistant" | "tool"
	Content  string
	ToolID   string // set on role "tool": which call this answers
	ToolUses []ToolCall
}

// ToolSchema describes one callable tool for the model's function-calling
// surface.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Response is the model's reply to one Chat call.
type Response struct {
	Blocks    []ContentBlock
	ToolCalls []ToolCall
}

// Client is the provider-agnostic model surface the agent brain drives.
type Client interface {
	Chat(ctx context.Context, system string, msgs []Message, tools []ToolSchema, model string) (Response, error)
}
