package agentbrain

import (
	"sort"
	"strings"

	"github.com/alvesfc/openbotx/internal/model"
)

// Section is one named block of the system prompt. It is suppressed below
// MinVerbosity and omitted entirely when Content is empty.
type Section struct {
	Name         string
	Content      string
	MinVerbosity model.PromptVerbosity
	Priority     int
}

var verbosityRank = map[model.PromptVerbosity]int{
	model.VerbosityNone:    0,
	model.VerbosityMinimal: 1,
	model.VerbosityFull:    2,
}

// BuildSystemPrompt sorts sections by priority, drops empty ones and ones
// whose MinVerbosity exceeds active, and joins the survivors with blank
// lines.
func BuildSystemPrompt(sections []Section, active model.PromptVerbosity) string {
	activeRank, ok := verbosityRank[active]
	if !ok {
		activeRank = verbosityRank[model.VerbosityFull]
	}

	kept := make([]Section, 0, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s.Content) == "" {
			continue
		}
		minRank, ok := verbosityRank[s.MinVerbosity]
		if !ok {
			minRank = verbosityRank[model.VerbosityNone]
		}
		if activeRank < minRank {
			continue
		}
		kept = append(kept, s)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Priority < kept[j].Priority })

	parts := make([]string, len(kept))
	for i, s := range kept {
		parts[i] = s.Content
	}
	return strings.Join(parts, "\n\n")
}
