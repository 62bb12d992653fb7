package channelstore

import (
	"context"
	"sync"
	"testing"

	"github.com/alvesfc/openbotx/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSummarizer struct {
	calls int
	mu    sync.Mutex
}

func (s *stubSummarizer) Summarize(ctx context.Context, turns []model.Turn, existingUser, existingConversation string) (string, string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return "user summary", "conversation summary", nil
}

func TestSanitizeChannelID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "sock-abc_123", SanitizeChannelID("sock-abc:123"))
	assert.Equal(t, "cli_default", SanitizeChannelID("cli default"))
	assert.Equal(t, "already_ok-1", SanitizeChannelID("already_ok-1"))
}

func TestStore_LoadMissingChannelReturnsEmptyContext(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir(), nil, CompactorOptions{})
	cc, err := s.Load("c1")
	require.NoError(t, err)
	assert.Empty(t, cc.Turns)
	assert.Equal(t, "c1", cc.ChannelID)
}

func TestStore_AddTurnPersistsAndCacheMatchesDisk(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir(), nil, CompactorOptions{})
	cc, err := s.AddTurn("c1", model.RoleUser, "hello", nil)
	require.NoError(t, err)
	require.Len(t, cc.Turns, 1)

	cc2, err := s.AddTurn("c1", model.RoleAssistant, "hi", nil)
	require.NoError(t, err)
	require.Len(t, cc2.Turns, 2)

	// A fresh store pointed at the same dir must reconstruct identical state.
	s2 := NewStore(s.dir, nil, CompactorOptions{})
	cc3, err := s2.Load("c1")
	require.NoError(t, err)
	require.Len(t, cc3.Turns, 2)
	assert.Equal(t, "hello", cc3.Turns[0].Content)
	assert.Equal(t, "hi", cc3.Turns[1].Content)
}

func TestStore_SaveSummaryAndLoadRoundTrips(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir(), nil, CompactorOptions{})
	require.NoError(t, s.SaveSummary("c1", "likes cats", "talking about pets"))

	cc, err := s.Load("c1")
	require.NoError(t, err)
	assert.Equal(t, "likes cats", cc.UserSummary)
	assert.Equal(t, "talking about pets", cc.ConversationSummary)
}

func TestStore_NeedsSummarization(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir(), nil, CompactorOptions{})
	s.threshold = 5

	cc := model.ChannelContext{CachedTotalTokens: 3}
	assert.False(t, s.NeedsSummarization(cc))

	cc.CachedTotalTokens = 10
	assert.True(t, s.NeedsSummarization(cc))
}

func TestStore_TriggerSummarizationRunsAndPersists(t *testing.T) {
	t.Parallel()

	sum := &stubSummarizer{}
	s := NewStore(t.TempDir(), sum, CompactorOptions{})
	s.threshold = 1 // needs summarization once there's more than one token of content

	_, err := s.AddTurn("c1", model.RoleUser, "hello world this has tokens", nil)
	require.NoError(t, err)

	ok, err := s.TriggerSummarization(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, sum.calls)

	cc, err := s.Load("c1")
	require.NoError(t, err)
	assert.Equal(t, "user summary", cc.UserSummary)
	assert.Equal(t, "conversation summary", cc.ConversationSummary)
}

func TestStore_TriggerSummarizationSkipsWhenNotNeeded(t *testing.T) {
	t.Parallel()

	sum := &stubSummarizer{}
	s := NewStore(t.TempDir(), sum, CompactorOptions{})

	_, err := s.AddTurn("c1", model.RoleUser, "hi", nil)
	require.NoError(t, err)

	ok, err := s.TriggerSummarization(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, sum.calls)
}

func TestStore_ClearRemovesPersistedStateAndCache(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir(), nil, CompactorOptions{})
	_, err := s.AddTurn("c1", model.RoleUser, "hi", nil)
	require.NoError(t, err)
	require.NoError(t, s.SaveSummary("c1", "u", "c"))

	require.NoError(t, s.Clear("c1"))

	cc, err := s.Load("c1")
	require.NoError(t, err)
	assert.Empty(t, cc.Turns)
	assert.Empty(t, cc.UserSummary)
}

func TestStore_ListChannels(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir(), nil, CompactorOptions{})
	_, err := s.AddTurn("alpha", model.RoleUser, "hi", nil)
	require.NoError(t, err)
	_, err = s.AddTurn("beta", model.RoleUser, "hi", nil)
	require.NoError(t, err)

	got, err := s.ListChannels()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, got)
}

func TestStore_PerChannelTurnOrderingUnderConcurrency(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir(), nil, CompactorOptions{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.AddTurn("c1", model.RoleUser, "turn", nil)
		}()
	}
	wg.Wait()

	cc, err := s.Load("c1")
	require.NoError(t, err)
	assert.Len(t, cc.Turns, 20)
}
