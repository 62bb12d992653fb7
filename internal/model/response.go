package model

// ContentPart is one item of an AgentResponse's content union. Exactly one
// of the typed fields is populated, selected by Kind.
type ContentPart struct {
	Kind  ContentKind `json:"kind"`
	Text  string      `json:"text,omitempty"`
	Image *ImageRef   `json:"image,omitempty"`
	Audio *AudioRef   `json:"audio,omitempty"`
	Video *VideoRef   `json:"video,omitempty"`
	File  *FileRef    `json:"file,omitempty"`
}

// ImageRef, AudioRef, VideoRef and FileRef describe a non-text content part
// either by inline bytes or by a resolvable URL.
type ImageRef struct {
	URL       string `json:"url,omitempty"`
	Bytes     []byte `json:"-"`
	MediaType string `json:"media_type"`
}

type AudioRef struct {
	URL       string `json:"url,omitempty"`
	Bytes     []byte `json:"-"`
	MediaType string `json:"media_type"`
}

type VideoRef struct {
	URL       string `json:"url,omitempty"`
	Bytes     []byte `json:"-"`
	MediaType string `json:"media_type"`
}

type FileRef struct {
	URL       string `json:"url,omitempty"`
	Bytes     []byte `json:"-"`
	Filename  string `json:"filename"`
	MediaType string `json:"media_type"`
}

// TextPart builds a text ContentPart.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: ContentKindText, Text: text}
}

// ToolResult is the aggregated output of one tool invocation during an
// agent turn.
type ToolResult struct {
	ToolName string        `json:"tool_name"`
	Contents []ContentPart `json:"contents"`
	Err      string        `json:"error,omitempty"`
}

// AgentResponse is the structured output of the agent brain (§4.K).
type AgentResponse struct {
	Contents      []ContentPart `json:"contents"`
	ToolsCalled   []string      `json:"tools_called"`
	NeedsLearning bool          `json:"needs_learning,omitempty"`
}

// OutboundMessage is what a gateway actually sends back to its transport,
// down-converted from an AgentResponse to the gateway's declared
// response_capabilities.
type OutboundMessage struct {
	ChannelID     string        `json:"channel_id"`
	CorrelationID CorrelationID `json:"correlation_id"`
	Contents      []ContentPart `json:"contents"`
}
