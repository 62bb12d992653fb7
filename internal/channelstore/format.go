package channelstore

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/alvesfc/openbotx/internal/model"
)

const historyHeader = "# Conversation History"

var turnHeaderRe = regexp.MustCompile(`^## (User|Assistant) - (.+)$`)

// Serialize renders turns into the on-disk history format: a fixed first
// line, then one `## <Role> - <RFC3339>` header per turn followed by its
// content lines.
func Serialize(turns []model.Turn) string {
	var b strings.Builder
	b.WriteString(historyHeader)
	b.WriteString("\n")
	for _, t := range turns {
		b.WriteString(fmt.Sprintf("## %s - %s\n", roleLabel(t.Role), t.Timestamp.UTC().Format(time.RFC3339)))
		b.WriteString(t.Content)
		if !strings.HasSuffix(t.Content, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Parse reads the on-disk history format back into turns. It recovers each
// turn's role, content and second-precision timestamp as Serialize wrote
// them; turn metadata is not part of the format and comes back empty.
func Parse(raw string) ([]model.Turn, error) {
	lines := strings.Split(raw, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r") != historyHeader {
		return nil, fmt.Errorf("history file missing required first line %q", historyHeader)
	}

	var turns []model.Turn
	var cur *model.Turn
	var content []string

	flush := func() {
		if cur == nil {
			return
		}
		// Serialize always terminates a turn's content with a newline, which
		// contributes exactly one trailing empty element once the file is
		// split on "\n"; drop it to invert that.
		if n := len(content); n > 0 && content[n-1] == "" {
			content = content[:n-1]
		}
		cur.Content = strings.Join(content, "\n")
		turns = append(turns, *cur)
		cur = nil
		content = nil
	}

	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if m := turnHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			ts, err := time.Parse(time.RFC3339, m[2])
			if err != nil {
				return nil, fmt.Errorf("parse turn timestamp %q: %w", m[2], err)
			}
			role := model.RoleUser
			if m[1] == "Assistant" {
				role = model.RoleAssistant
			}
			cur = &model.Turn{Role: role, Timestamp: ts}
			continue
		}
		if cur != nil {
			content = append(content, line)
		}
	}
	flush()

	return turns, nil
}

func roleLabel(r model.Role) string {
	if r == model.RoleAssistant {
		return "Assistant"
	}
	return "User"
}
