package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alvesfc/openbotx/internal/llmclient"
	"github.com/alvesfc/openbotx/internal/memoryindex"
	"github.com/alvesfc/openbotx/internal/model"
)

// noBackendInvoker is the default ToolInvoker wired when no agent-facing
// tool backend is configured. §1 places "the specific set of agent-facing
// tools" out of scope; this returns a clear, honest failure per call
// rather than pretending a tool ran.
type noBackendInvoker struct{}

func (noBackendInvoker) Invoke(ctx context.Context, call llmclient.ToolCall) model.ToolResult {
	return model.ToolResult{
		ToolName: call.Name,
		Err:      "no tool backend configured for this deployment",
	}
}

// memorySearchInvoker handles the one tool this deployment genuinely backs
// ("memory_search", against the already-built memory index) and falls back
// to next for everything else, since §1 keeps the rest of the agent-facing
// tool catalog out of scope.
type memorySearchInvoker struct {
	engine *memoryindex.Engine
	next   agentbrainToolInvoker
}

// agentbrainToolInvoker is a narrowed alias so this file doesn't need to
// import agentbrain just for its ToolInvoker interface name.
type agentbrainToolInvoker interface {
	Invoke(ctx context.Context, call llmclient.ToolCall) model.ToolResult
}

func newMemorySearchInvoker(engine *memoryindex.Engine, next agentbrainToolInvoker) agentbrainToolInvoker {
	if engine == nil {
		return next
	}
	return memorySearchInvoker{engine: engine, next: next}
}

type memorySearchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

func (m memorySearchInvoker) Invoke(ctx context.Context, call llmclient.ToolCall) model.ToolResult {
	if call.Name != "memory_search" {
		return m.next.Invoke(ctx, call)
	}

	var args memorySearchArgs
	if err := json.Unmarshal(call.Args, &args); err != nil {
		return model.ToolResult{ToolName: call.Name, Err: fmt.Sprintf("invalid arguments: %v", err)}
	}

	hits, err := m.engine.Search(ctx, args.Query, memoryindex.SearchOptions{MaxResults: args.MaxResults})
	if err != nil {
		return model.ToolResult{ToolName: call.Name, Err: err.Error()}
	}

	var parts []model.ContentPart
	for _, h := range hits {
		parts = append(parts, model.TextPart(fmt.Sprintf("%s:%d-%d: %s", h.Path, h.StartLine, h.EndLine, h.Snippet)))
	}
	return model.ToolResult{ToolName: call.Name, Contents: parts}
}
