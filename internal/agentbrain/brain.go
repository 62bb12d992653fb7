package agentbrain

import (
	"context"
	"fmt"

	"github.com/alvesfc/openbotx/internal/llmclient"
	"github.com/alvesfc/openbotx/internal/model"
	"github.com/alvesfc/openbotx/internal/toolpolicy"
)

// ToolInvoker runs one model-requested tool call and reports its result.
type ToolInvoker interface {
	Invoke(ctx context.Context, call llmclient.ToolCall) model.ToolResult
}

// Request carries everything one Process call needs beyond the brain's own
// fixed configuration.
type Request struct {
	Message      model.InboundMessage
	Directives   model.ParsedDirectives
	History      []model.Turn
	UserSummary  string
	ConvSummary  string
	Sections     []Section
	ToolCatalog  []toolpolicy.ToolInfo
	MatchedSkill []string // not read by Process; skill bodies reach the prompt through Sections
	Model        string
}

// Brain is the agent brain (§4.K): one initialized-flag-guarded instance
// per construction; not re-entrant per instance, but separate instances
// may run concurrently.
type Brain struct {
	client      llmclient.Client
	policy      toolpolicy.Policy
	invoker     ToolInvoker
	initialized bool
}

// NewBrain constructs an uninitialized Brain.
func NewBrain(client llmclient.Client, policy toolpolicy.Policy, invoker ToolInvoker) *Brain {
	return &Brain{client: client, policy: policy, invoker: invoker}
}

// Init marks the brain ready for use. Process refuses to run before Init.
func (b *Brain) Init() {
	b.initialized = true
}

// Process builds the system prompt, supplies the filtered tool catalog and
// history to the model, invokes any requested tools, and aggregates the
// result into an AgentResponse.
func (b *Brain) Process(ctx context.Context, req Request) (model.AgentResponse, error) {
	if !b.initialized {
		return model.AgentResponse{}, fmt.Errorf("agentbrain: Process called before Init")
	}

	system := BuildSystemPrompt(req.Sections, req.Directives.Verbosity)

	tools := b.policy.Filter(req.ToolCatalog, req.Directives.Profile, req.Directives.Elevated)
	schemas := make([]llmclient.ToolSchema, len(tools))
	for i, t := range tools {
		schemas[i] = llmclient.ToolSchema{Name: t.Name}
	}

	msgs := make([]llmclient.Message, 0, len(req.History)+1)
	for _, turn := range req.History {
		msgs = append(msgs, llmclient.Message{Role: string(turn.Role), Content: turn.Content})
	}
	msgs = append(msgs, llmclient.Message{Role: "user", Content: req.Directives.CleanText})

	resp, err := b.client.Chat(ctx, system, msgs, schemas, req.Model)
	if err != nil {
		return model.AgentResponse{}, fmt.Errorf("agentbrain: chat: %w", err)
	}

	var out model.AgentResponse
	for _, block := range resp.Blocks {
		switch {
		case block.ToolCall != nil:
			result := b.invoker.Invoke(ctx, *block.ToolCall)
			out.ToolsCalled = append(out.ToolsCalled, block.ToolCall.Name)
			out.Contents = append(out.Contents, result.Contents...)
		case block.Text != "":
			out.Contents = append(out.Contents, model.TextPart(block.Text))
		}
	}
	return out, nil
}
