package summarizer

import (
	"context"
	"strings"

	"github.com/alvesfc/openbotx/internal/llmclient"
	"github.com/alvesfc/openbotx/internal/model"
	"github.com/rs/zerolog/log"
)

// MaxSentencesPerField caps how much of the model's reply each summary
// field retains, enforcing §4.L's "at most a few sentences".
const MaxSentencesPerField = 3

const systemPrompt = `You maintain two running summaries of a conversation: a user-profile
summary (stable facts about the user) and a conversation summary (what is
currently being discussed). Only state facts explicitly present in the
conversation; never infer or invent information. Reply with exactly two
lines, "USER: <summary>" and "CONVERSATION: <summary>", each at most a
few sentences.`

// Summarizer calls an llmclient.Client to produce the two summary fields.
// It satisfies channelstore.Summarizer.
type Summarizer struct {
	Client llmclient.Client
	Model  string
}

// New builds a Summarizer over client, using model for every call.
func New(client llmclient.Client, model string) *Summarizer {
	return &Summarizer{Client: client, Model: model}
}

// Summarize never returns a non-nil error: any internal failure yields
// ("", "", nil) per §4.L, and the existing summaries are left for the
// caller to keep unchanged in that case. The same method serves a plain
// turn list or a synthetic one built from an observation list — callers
// convert observations into user-role turns before calling.
func (s *Summarizer) Summarize(ctx context.Context, turns []model.Turn, existingUser, existingConversation string) (string, string, error) {
	if s.Client == nil || len(turns) == 0 {
		return "", "", nil
	}

	msgs := []llmclient.Message{
		{Role: "user", Content: "Existing user summary: " + existingUser},
		{Role: "user", Content: "Existing conversation summary: " + existingConversation},
	}
	for _, t := range turns {
		msgs = append(msgs, llmclient.Message{Role: string(t.Role), Content: t.Content})
	}

	resp, err := s.Client.Chat(ctx, systemPrompt, msgs, nil, s.Model)
	if err != nil {
		log.Warn().Err(err).Msg("summarizer_chat_failed")
		return "", "", nil
	}

	var full strings.Builder
	for _, b := range resp.Blocks {
		full.WriteString(b.Text)
	}

	user, conv := parseSummaryReply(full.String())
	return truncateSentences(user, MaxSentencesPerField), truncateSentences(conv, MaxSentencesPerField), nil
}

func parseSummaryReply(text string) (user, conversation string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(strings.ToUpper(line), "USER:"):
			user = strings.TrimSpace(line[len("USER:"):])
		case strings.HasPrefix(strings.ToUpper(line), "CONVERSATION:"):
			conversation = strings.TrimSpace(line[len("CONVERSATION:"):])
		}
	}
	return user, conversation
}

// truncateSentences keeps at most max sentences (split on '.', '!', '?'),
// re-joined with the original terminator.
func truncateSentences(text string, max int) string {
	if text == "" {
		return ""
	}
	var sentences []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			sentences = append(sentences, strings.TrimSpace(text[start:i+1]))
			start = i + 1
		}
	}
	if start < len(text) && strings.TrimSpace(text[start:]) != "" {
		sentences = append(sentences, strings.TrimSpace(text[start:]))
	}
	if len(sentences) > max {
		sentences = sentences[:max]
	}
	return strings.Join(sentences, " ")
}
