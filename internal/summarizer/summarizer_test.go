package summarizer

import (
	"context"
	"errors"
	"testing"

	"github.com/alvesfc/openbotx/internal/llmclient"
	"github.com/alvesfc/openbotx/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	text string
	err  error
}

func (s *stubClient) Chat(ctx context.Context, system string, msgs []llmclient.Message, tools []llmclient.ToolSchema, m string) (llmclient.Response, error) {
	if s.err != nil {
		return llmclient.Response{}, s.err
	}
	return llmclient.Response{Blocks: []llmclient.ContentBlock{{Text: s.text}}}, nil
}

func TestSummarize_EmptyTurnsReturnsEmpty(t *testing.T) {
	t.Parallel()

	s := New(&stubClient{}, "test-model")
	user, conv, err := s.Summarize(context.Background(), nil, "old user", "old conv")
	require.NoError(t, err)
	assert.Empty(t, user)
	assert.Empty(t, conv)
}

func TestSummarize_ParsesUserAndConversationLines(t *testing.T) {
	t.Parallel()

	s := New(&stubClient{text: "USER: likes go.\nCONVERSATION: discussing a rewrite."}, "test-model")
	user, conv, err := s.Summarize(context.Background(), []model.Turn{{Role: model.RoleUser, Content: "hi"}}, "", "")
	require.NoError(t, err)
	assert.Equal(t, "likes go.", user)
	assert.Equal(t, "discussing a rewrite.", conv)
}

func TestSummarize_ClientErrorYieldsEmptyNotError(t *testing.T) {
	t.Parallel()

	s := New(&stubClient{err: errors.New("boom")}, "test-model")
	user, conv, err := s.Summarize(context.Background(), []model.Turn{{Role: model.RoleUser, Content: "hi"}}, "", "")
	require.NoError(t, err)
	assert.Empty(t, user)
	assert.Empty(t, conv)
}

func TestTruncateSentences_CapsAtMax(t *testing.T) {
	t.Parallel()

	got := truncateSentences("One. Two. Three. Four.", 2)
	assert.Equal(t, "One. Two.", got)
}

func TestTruncateSentences_EmptyStaysEmpty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", truncateSentences("", 3))
}
