package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alvesfc/openbotx/internal/agentbrain"
	"github.com/alvesfc/openbotx/internal/attachments"
	"github.com/alvesfc/openbotx/internal/channelstore"
	"github.com/alvesfc/openbotx/internal/directives"
	"github.com/alvesfc/openbotx/internal/model"
	"github.com/alvesfc/openbotx/internal/obs"
	"github.com/alvesfc/openbotx/internal/security"
	"github.com/alvesfc/openbotx/internal/tokenbudget"
	"github.com/alvesfc/openbotx/internal/toolpolicy"
	"github.com/alvesfc/openbotx/internal/validator"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SkillGenerator is invoked when the agent brain reports needs_learning;
// its internals are opaque to the orchestrator, per §4.N step 12.
type SkillGenerator interface {
	Generate(ctx context.Context, msg model.InboundMessage, resp model.AgentResponse) error
}

// SectionBuilder produces the system-prompt sections for one message,
// e.g. folding in matched skill bodies and the current directives.
type SectionBuilder func(msg model.InboundMessage, matchedSkills []string) []agentbrain.Section

// Sender delivers an OutboundMessage to its destination gateway,
// down-converted to the gateway's declared capabilities before this is
// called.
type Sender func(ctx context.Context, out model.OutboundMessage) error

// Orchestrator wires every pipeline stage into the single per-message
// traversal §4.N describes.
type Orchestrator struct {
	Validator      validator.Policy
	Attachments    *attachments.Processor
	Security       security.Filter
	Store          *channelstore.Store
	ToolCatalog    []toolpolicy.ToolInfo
	Brain          *agentbrain.Brain
	Sections       SectionBuilder
	Skills         *SkillRegistryAdapter
	SkillGenerator SkillGenerator
	TokenBudget    int
	Model          string
	LogPayloads    bool
}

// SkillRegistryAdapter narrows skills.Registry to the one method the
// orchestrator needs, letting the package stay independent of the skills
// package's concrete Definition type.
type SkillRegistryAdapter struct {
	Find func(text string, limit int) []string
}

// Process runs the full pipeline for one inbound message, early-exiting on
// validation or security rejection, and sends exactly one outbound
// response via send. A failure to persist the turns is logged and the
// response is still sent; a channel-load, compaction or agent-brain error
// is returned without sending anything.
func (o *Orchestrator) Process(ctx context.Context, msg model.InboundMessage, caps []model.ResponseCapability, send Sender) error {
	if msg.CorrelationID == "" {
		msg.CorrelationID = model.CorrelationID(uuid.NewString())
	}
	logger := log.With().Str("correlation_id", string(msg.CorrelationID)).Str("channel_id", msg.ChannelID).Logger()
	logger.Debug().Msg("orchestrator_span_start")
	defer logger.Debug().Msg("orchestrator_span_end")

	if o.LogPayloads {
		if raw, err := json.Marshal(msg); err == nil {
			logger.Debug().RawJSON("payload", obs.RedactJSON(raw)).Msg("orchestrator_inbound_payload")
		}
	}

	if ok, errs := o.Validator.Validate(msg); !ok {
		return send(ctx, rejectionResponse(msg, joinErrors(errs)))
	}

	parsed := directives.Parse(msg.Text)
	msg.Directives = &parsed

	if o.Attachments != nil {
		o.Attachments.Process(ctx, &msg)
	}

	cleanText := parsed.CleanText
	if ok, v := o.Security.Scan(cleanText); !ok {
		logger.Warn().Str("violation_kind", string(v.Kind)).Str("violation_label", v.Label).Msg("orchestrator_security_violation")
		return send(ctx, rejectionResponse(msg, o.Security.RejectionText()))
	}

	cc, err := o.Store.Load(msg.ChannelID)
	if err != nil {
		return fmt.Errorf("orchestrator: load channel context: %w", err)
	}

	compacted, err := o.Store.GetCompacted(msg.ChannelID, o.TokenBudget)
	if err != nil {
		return fmt.Errorf("orchestrator: compact history: %w", err)
	}

	promptTokens := tokenbudget.Estimate(cleanText)
	for _, t := range compacted.KeptTurns {
		promptTokens += tokenbudget.Estimate(t.Content)
	}
	logger.Debug().Int("prompt_tokens", promptTokens).Msg("orchestrator_prompt_estimate")

	var matched []string
	if o.Skills != nil && o.Skills.Find != nil {
		matched = o.Skills.Find(cleanText, 5)
	}
	var sections []agentbrain.Section
	if o.Sections != nil {
		sections = o.Sections(msg, matched)
	}

	resp, err := o.Brain.Process(ctx, agentbrain.Request{
		Message:     msg,
		Directives:  parsed,
		History:     compacted.KeptTurns,
		UserSummary: cc.UserSummary,
		ConvSummary: compacted.Summary,
		Sections:    sections,
		ToolCatalog: o.ToolCatalog,
		Model:       o.Model,
	})
	if err != nil {
		return fmt.Errorf("orchestrator: agent brain: %w", err)
	}

	if resp.NeedsLearning && o.SkillGenerator != nil {
		if err := o.SkillGenerator.Generate(ctx, msg, resp); err != nil {
			logger.Warn().Err(err).Msg("orchestrator_skill_generation_failed")
		}
	}

	updatedCC, err := o.Store.AddTurn(msg.ChannelID, model.RoleUser, cleanText, nil)
	if err == nil {
		updatedCC, err = o.Store.AddTurn(msg.ChannelID, model.RoleAssistant, assistantText(resp), nil)
	}
	if err != nil {
		logger.Warn().Err(err).Bool("turn_not_persisted", true).Msg("orchestrator_persist_turn_failed")
	}

	if o.Store.NeedsSummarization(updatedCC) || compacted.SummaryUpdated {
		channelID := msg.ChannelID
		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := o.Store.TriggerSummarization(bgCtx, channelID); err != nil {
				log.Warn().Err(err).Str("channel_id", channelID).Msg("orchestrator_background_summarization_failed")
			}
		}()
	}

	out := model.OutboundMessage{
		ChannelID:     msg.ChannelID,
		CorrelationID: msg.CorrelationID,
		Contents:      downConvertContents(resp.Contents, caps),
	}
	return send(ctx, out)
}

func assistantText(resp model.AgentResponse) string {
	for _, c := range resp.Contents {
		if c.Kind == model.ContentKindText {
			return c.Text
		}
	}
	return ""
}

func rejectionResponse(msg model.InboundMessage, text string) model.OutboundMessage {
	return model.OutboundMessage{
		ChannelID:     msg.ChannelID,
		CorrelationID: msg.CorrelationID,
		Contents:      []model.ContentPart{model.TextPart(text)},
	}
}

func joinErrors(errs []validator.ValidationError) string {
	if len(errs) == 0 {
		return "message rejected"
	}
	out := errs[0].Message
	for _, e := range errs[1:] {
		out += "; " + e.Message
	}
	return out
}

// downConvertContents drops any content part whose kind is not in caps,
// implementing §4.O's "down-convert an AgentResponse into a
// capability-compatible OutboundMessage".
func downConvertContents(parts []model.ContentPart, caps []model.ResponseCapability) []model.ContentPart {
	allowed := make(map[model.ResponseCapability]bool, len(caps))
	for _, c := range caps {
		allowed[c] = true
	}
	if len(allowed) == 0 {
		allowed[model.CapabilityText] = true
	}

	out := make([]model.ContentPart, 0, len(parts))
	for _, p := range parts {
		capability, ok := kindToCapability(p.Kind)
		if !ok || allowed[capability] {
			out = append(out, p)
		}
	}
	return out
}

func kindToCapability(kind model.ContentKind) (model.ResponseCapability, bool) {
	switch kind {
	case model.ContentKindText:
		return model.CapabilityText, true
	case model.ContentKindAudio:
		return model.CapabilityAudio, true
	case model.ContentKindImage:
		return model.CapabilityImage, true
	case model.ContentKindVideo:
		return model.CapabilityVideo, true
	default:
		return "", false
	}
}
