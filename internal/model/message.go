// Package model holds the plain data types shared across the pipeline:
// inbound messages, attachments, parsed directives, channel context, memory
// chunks, skill-adjacent wire types, and gateway bookkeeping records. None
// of these types carry behavior beyond small invariant helpers; the
// packages that own a stage of the pipeline operate on them.
package model

import "time"

// ContentKind identifies the shape of an inbound message's payload.
type ContentKind string

const (
	ContentKindText  ContentKind = "text"
	ContentKindAudio ContentKind = "audio"
	ContentKindImage ContentKind = "image"
	ContentKindVideo ContentKind = "video"
	ContentKindFile  ContentKind = "file"
)

// MessageStatus tracks an inbound message through the pipeline.
type MessageStatus string

const (
	StatusPending    MessageStatus = "pending"
	StatusProcessing MessageStatus = "processing"
	StatusCompleted  MessageStatus = "completed"
	StatusFailed     MessageStatus = "failed"
	StatusRejected   MessageStatus = "rejected"
)

// CorrelationID propagates a single pipeline traversal's identity into log
// lines and the eventual outbound response.
type CorrelationID string

// InboundMessage is the unit of work the orchestrator drives through the
// pipeline from gateway ingress to gateway egress.
type InboundMessage struct {
	ID            string            `json:"id"`
	ChannelID     string            `json:"channel_id"`
	UserID        string            `json:"user_id,omitempty"`
	Transport     string            `json:"transport"`
	Kind          ContentKind       `json:"kind"`
	Text          string            `json:"text,omitempty"`
	Attachments   []Attachment      `json:"attachments,omitempty"`
	Status        MessageStatus     `json:"status"`
	CorrelationID CorrelationID     `json:"correlation_id"`
	Timestamp     time.Time         `json:"timestamp"`
	ReplyToID     string            `json:"reply_to_id,omitempty"`
	Directives    *ParsedDirectives `json:"directives,omitempty"`
}

// HasContent reports the §3 invariant: at least one of text or attachments
// must be non-empty once validation has run.
func (m InboundMessage) HasContent() bool {
	return m.Text != "" || len(m.Attachments) > 0
}

// Attachment is a single non-text (or pre-conversion) payload carried by an
// inbound message.
type Attachment struct {
	ID        string            `json:"id"`
	Filename  string            `json:"filename"`
	MediaType string            `json:"media_type"`
	ByteSize  int64             `json:"byte_size"`
	Bytes     []byte            `json:"-"`
	URL       string            `json:"url,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Resolvable reports whether the attachment has either in-memory bytes or a
// resolvable URL, the §3 invariant required before the agent stage.
func (a Attachment) Resolvable() bool {
	return len(a.Bytes) > 0 || a.URL != ""
}

// PromptVerbosity is the verbosity mode a directive can request for system
// prompt assembly.
type PromptVerbosity string

const (
	VerbosityFull    PromptVerbosity = "full"
	VerbosityMinimal PromptVerbosity = "minimal"
	VerbosityNone    PromptVerbosity = "none"
)

// ToolProfile tags which tool groups are eligible for a message.
type ToolProfile string

const (
	ProfileMinimal   ToolProfile = "minimal"
	ProfileCoding    ToolProfile = "coding"
	ProfileMessaging ToolProfile = "messaging"
	ProfileFull      ToolProfile = "full"
)

// ParsedDirectives is the output of the directive parser (§4.B).
type ParsedDirectives struct {
	Recognized []string          `json:"recognized"`
	CleanText  string            `json:"clean_text"`
	Verbosity  PromptVerbosity   `json:"verbosity"`
	Profile    ToolProfile       `json:"profile"`
	Elevated   bool              `json:"elevated"`
	Scalars    map[string]string `json:"scalars,omitempty"`
}

// Role identifies the speaker of a channel turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a channel's persisted history.
type Turn struct {
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ChannelContext is the per-channel persisted state owned by the context
// store (§4.E).
type ChannelContext struct {
	ChannelID           string    `json:"channel_id"`
	Turns               []Turn    `json:"turns"`
	LegacySummary       string    `json:"legacy_summary,omitempty"`
	UserSummary         string    `json:"user_summary,omitempty"`
	ConversationSummary string    `json:"conversation_summary,omitempty"`
	LastSummarizedAt    time.Time `json:"last_summarized_at,omitempty"`
	CachedTotalTokens   int       `json:"cached_total_tokens"`
}

// SummaryRecord is the structured payload persisted by save_summary.
type SummaryRecord struct {
	UserSummary         string    `json:"user_summary"`
	ConversationSummary string    `json:"conversation_summary"`
	UpdatedAt           time.Time `json:"updated_at"`
}
