package channelstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/alvesfc/openbotx/internal/compactor"
	"github.com/alvesfc/openbotx/internal/model"
	"github.com/alvesfc/openbotx/internal/tokenbudget"
	"github.com/rs/zerolog/log"
)

var unsafeKeyCharRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeChannelID replaces any character outside [A-Za-z0-9_-] with "_"
// before deriving a storage key, per §4.E.
func SanitizeChannelID(channelID string) string {
	return unsafeKeyCharRe.ReplaceAllString(channelID, "_")
}

// Summarizer is the secondary-model call the store delegates to when
// summarization is triggered.
type Summarizer interface {
	Summarize(ctx context.Context, turns []model.Turn, existingUser, existingConversation string) (userSummary, conversationSummary string, err error)
}

// CompactorOptions carries the per-invocation strategy/budget the store
// passes through to the compactor package.
type CompactorOptions struct {
	Strategy          compactor.Strategy
	MinMessagesToKeep int
}

// SummarizationThreshold is the default cached-token-count threshold above
// which NeedsSummarization reports true.
const SummarizationThreshold = 3000

// Store is the channel context store (§4.E): a per-channel cache backed by
// a directory of history/summary files, one pair per sanitized channel id.
type Store struct {
	dir           string
	summarizer    Summarizer
	compactorOpts CompactorOptions
	threshold     int

	mu           sync.Mutex
	cache        map[string]*model.ChannelContext
	chanLocks    map[string]*sync.Mutex
	inFlightSumm map[string]bool
}

// NewStore builds a Store rooted at dir; dir is created on the first write
// if absent.
func NewStore(dir string, summarizer Summarizer, compactorOpts CompactorOptions) *Store {
	return &Store{
		dir:           dir,
		summarizer:    summarizer,
		compactorOpts: compactorOpts,
		threshold:     SummarizationThreshold,
		cache:         make(map[string]*model.ChannelContext),
		chanLocks:     make(map[string]*sync.Mutex),
		inFlightSumm:  make(map[string]bool),
	}
}

func (s *Store) lockFor(channelID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.chanLocks[channelID]
	if !ok {
		l = &sync.Mutex{}
		s.chanLocks[channelID] = l
	}
	return l
}

func (s *Store) historyPath(key string) string {
	return filepath.Join(s.dir, key+".history.md")
}

func (s *Store) summaryPath(key string) string {
	return filepath.Join(s.dir, key+".summary.json")
}

// Load reads a channel's context from cache, or deserializes it from disk
// on a cache miss. A channel with no persisted state returns a fresh,
// empty context rather than an error.
func (s *Store) Load(channelID string) (model.ChannelContext, error) {
	key := SanitizeChannelID(channelID)

	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		cc := *cached
		s.mu.Unlock()
		return cc, nil
	}
	s.mu.Unlock()

	cc := model.ChannelContext{ChannelID: channelID}

	if raw, err := os.ReadFile(s.historyPath(key)); err == nil {
		turns, perr := Parse(string(raw))
		if perr != nil {
			log.Warn().Err(perr).Str("channel_id", channelID).Msg("channelstore_history_parse_failed")
		} else {
			cc.Turns = turns
		}
	} else if !os.IsNotExist(err) {
		log.Warn().Err(err).Str("channel_id", channelID).Msg("channelstore_history_read_failed")
	}

	if raw, err := os.ReadFile(s.summaryPath(key)); err == nil {
		rec, perr := ParseSummary(raw)
		if perr != nil {
			log.Warn().Err(perr).Str("channel_id", channelID).Msg("channelstore_summary_parse_failed")
		} else {
			cc.UserSummary = rec.UserSummary
			cc.ConversationSummary = rec.ConversationSummary
			cc.LastSummarizedAt = rec.UpdatedAt
		}
	} else if !os.IsNotExist(err) {
		log.Warn().Err(err).Str("channel_id", channelID).Msg("channelstore_summary_read_failed")
	}

	cc.CachedTotalTokens = estimateContextTokens(cc)

	s.mu.Lock()
	stored := cc
	s.cache[key] = &stored
	s.mu.Unlock()

	return cc, nil
}

// Save atomically replaces the persistent history record and refreshes the
// cache to match.
func (s *Store) Save(cc model.ChannelContext) error {
	key := SanitizeChannelID(cc.ChannelID)
	if err := s.writeAtomic(s.historyPath(key), []byte(Serialize(cc.Turns))); err != nil {
		return fmt.Errorf("persistence error: save channel %s: %w", cc.ChannelID, err)
	}

	s.mu.Lock()
	stored := cc
	s.cache[key] = &stored
	s.mu.Unlock()
	return nil
}

// AddTurn loads, appends, and saves in one call under the channel's lock,
// returning the updated context.
func (s *Store) AddTurn(channelID string, role model.Role, content string, metadata map[string]string) (model.ChannelContext, error) {
	lock := s.lockFor(SanitizeChannelID(channelID))
	lock.Lock()
	defer lock.Unlock()

	cc, err := s.Load(channelID)
	if err != nil {
		return cc, err
	}
	cc.Turns = append(cc.Turns, model.Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	})
	cc.CachedTotalTokens = estimateContextTokens(cc)
	if err := s.Save(cc); err != nil {
		return cc, err
	}
	return cc, nil
}

// SaveSummary atomically replaces the persistent summary record.
func (s *Store) SaveSummary(channelID, userSummary, conversationSummary string) error {
	key := SanitizeChannelID(channelID)
	rec := model.SummaryRecord{
		UserSummary:         userSummary,
		ConversationSummary: conversationSummary,
		UpdatedAt:           time.Now().UTC(),
	}
	raw, err := SerializeSummary(rec)
	if err != nil {
		return fmt.Errorf("serialize summary for %s: %w", channelID, err)
	}
	if err := s.writeAtomic(s.summaryPath(key), raw); err != nil {
		return fmt.Errorf("persistence error: save summary %s: %w", channelID, err)
	}

	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		cached.UserSummary = userSummary
		cached.ConversationSummary = conversationSummary
		cached.LastSummarizedAt = rec.UpdatedAt
	}
	s.mu.Unlock()
	return nil
}

// NeedsSummarization reports whether cc's cached token estimate exceeds
// the configured threshold.
func (s *Store) NeedsSummarization(cc model.ChannelContext) bool {
	threshold := s.threshold
	if threshold <= 0 {
		threshold = SummarizationThreshold
	}
	return cc.CachedTotalTokens > threshold
}

// TriggerSummarization runs the summarizer and persists its output if
// NeedsSummarization(load(channelID)) holds, coalescing concurrent callers
// for the same channel into at most one in-flight summarization.
func (s *Store) TriggerSummarization(ctx context.Context, channelID string) (bool, error) {
	key := SanitizeChannelID(channelID)

	s.mu.Lock()
	if s.inFlightSumm[key] {
		s.mu.Unlock()
		return false, nil
	}
	s.inFlightSumm[key] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inFlightSumm, key)
		s.mu.Unlock()
	}()

	cc, err := s.Load(channelID)
	if err != nil {
		return false, err
	}
	if !s.NeedsSummarization(cc) {
		return false, nil
	}
	if s.summarizer == nil {
		return false, nil
	}

	userSummary, conversationSummary, err := s.summarizer.Summarize(ctx, cc.Turns, cc.UserSummary, cc.ConversationSummary)
	if err != nil {
		log.Warn().Err(err).Str("channel_id", channelID).Msg("channelstore_summarization_failed")
		return false, nil
	}
	if userSummary == "" && conversationSummary == "" {
		return false, nil
	}

	if err := s.SaveSummary(channelID, userSummary, conversationSummary); err != nil {
		return false, err
	}
	return true, nil
}

// GetCompacted fits the channel's history within budget via the
// compactor package, using the strategy configured at construction time.
func (s *Store) GetCompacted(channelID string, budget int) (compactor.CompactionResult, error) {
	cc, err := s.Load(channelID)
	if err != nil {
		return compactor.CompactionResult{}, err
	}
	strategy := s.compactorOpts.Strategy
	if strategy == "" {
		strategy = compactor.StrategyAdaptive
	}
	return compactor.Compact(cc.Turns, cc.ConversationSummary, compactor.Options{
		Strategy:          strategy,
		Budget:            budget,
		MinMessagesToKeep: s.compactorOpts.MinMessagesToKeep,
	}), nil
}

// Clear removes both persisted records and evicts the channel from cache.
func (s *Store) Clear(channelID string) error {
	key := SanitizeChannelID(channelID)
	for _, p := range []string{s.historyPath(key), s.summaryPath(key)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("persistence error: clear %s: %w", channelID, err)
		}
	}
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	return nil
}

// ListChannels returns every channel id currently known to the store
// (discovered from persisted history files plus whatever is cached).
func (s *Store) ListChannels() ([]string, error) {
	seen := make(map[string]string) // key -> channelID

	s.mu.Lock()
	for key, cc := range s.cache {
		seen[key] = cc.ChannelID
	}
	s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return sortedValues(seen), nil
		}
		return nil, fmt.Errorf("list channels: %w", err)
	}
	const suffix = ".history.md"
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			key := name[:len(name)-len(suffix)]
			if _, ok := seen[key]; !ok {
				seen[key] = key
			}
		}
	}
	return sortedValues(seen), nil
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s *Store) writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func estimateContextTokens(cc model.ChannelContext) int {
	total := 0
	for _, t := range cc.Turns {
		total += tokenbudget.Estimate(t.Content)
	}
	total += tokenbudget.Estimate(cc.UserSummary) + tokenbudget.Estimate(cc.ConversationSummary)
	return total
}
