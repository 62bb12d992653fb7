package compactor

import (
	"strings"

	"github.com/alvesfc/openbotx/internal/model"
	"github.com/alvesfc/openbotx/internal/tokenbudget"
)

// Strategy selects how turns are fit into a token budget.
type Strategy string

const (
	StrategyAdaptive    Strategy = "adaptive"
	StrategyProgressive Strategy = "progressive"
	StrategyTruncate    Strategy = "truncate"
)

// Options configures one Compact invocation.
type Options struct {
	Strategy          Strategy
	Budget            int
	MinMessagesToKeep int // only honored by StrategyAdaptive
}

// CompactionResult is the outcome of fitting history + summary within a
// token budget, per §4.F.
type CompactionResult struct {
	KeptTurns      []model.Turn
	Summary        string
	TokensBefore   int
	TokensAfter    int
	TurnsRemoved   int
	SummaryUpdated bool
}

// Compact applies opts.Strategy to turns and existingSummary. The caller is
// responsible for actually invoking the model to condense the aggregate
// text progressive returns when SummaryUpdated is true.
func Compact(turns []model.Turn, existingSummary string, opts Options) CompactionResult {
	tokensBefore := sumTokens(turns) + tokenbudget.Estimate(existingSummary)

	switch opts.Strategy {
	case StrategyProgressive:
		recentBudget := (opts.Budget * 70) / 100
		kept, older := fitNewestToOldest(turns, recentBudget)
		summary := existingSummary
		summaryUpdated := false
		if len(older) > 0 {
			summary = prepareSummary(older)
			summaryUpdated = true
		}
		return CompactionResult{
			KeptTurns:      kept,
			Summary:        summary,
			TokensBefore:   tokensBefore,
			TokensAfter:    sumTokens(kept) + tokenbudget.Estimate(summary),
			TurnsRemoved:   len(older),
			SummaryUpdated: summaryUpdated,
		}

	case StrategyTruncate:
		available := opts.Budget - tokenbudget.Estimate(existingSummary)
		kept, older := fitNewestToOldest(turns, available)
		return CompactionResult{
			KeptTurns:    kept,
			Summary:      existingSummary,
			TokensBefore: tokensBefore,
			TokensAfter:  sumTokens(kept) + tokenbudget.Estimate(existingSummary),
			TurnsRemoved: len(older),
		}

	default: // StrategyAdaptive
		available := opts.Budget - tokenbudget.Estimate(existingSummary)
		kept, older := fitNewestToOldest(turns, available)
		if opts.MinMessagesToKeep > 0 && len(kept) < opts.MinMessagesToKeep {
			n := opts.MinMessagesToKeep
			if n > len(turns) {
				n = len(turns)
			}
			kept = turns[len(turns)-n:]
			older = turns[:len(turns)-n]
		}
		return CompactionResult{
			KeptTurns:    kept,
			Summary:      existingSummary,
			TokensBefore: tokensBefore,
			TokensAfter:  sumTokens(kept) + tokenbudget.Estimate(existingSummary),
			TurnsRemoved: len(older),
		}
	}
}

// fitNewestToOldest walks turns from the end backward, prepending each turn
// that still fits within available tokens, and returns the kept turns (in
// original order) alongside everything older that did not fit.
func fitNewestToOldest(turns []model.Turn, available int) (kept, older []model.Turn) {
	if available < 0 {
		available = 0
	}
	used := 0
	i := len(turns) - 1
	for ; i >= 0; i-- {
		cost := tokenbudget.Estimate(turns[i].Content)
		if used+cost > available {
			break
		}
		used += cost
	}
	// i now points at the last turn that did not fit (or -1 if all fit).
	cut := i + 1
	kept = append([]model.Turn(nil), turns[cut:]...)
	older = append([]model.Turn(nil), turns[:cut]...)
	return kept, older
}

func sumTokens(turns []model.Turn) int {
	total := 0
	for _, t := range turns {
		total += tokenbudget.Estimate(t.Content)
	}
	return total
}

// prepareSummary deterministically concatenates turns into plain text for
// the caller to pass to a model for actual summarization.
func prepareSummary(turns []model.Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	return b.String()
}
