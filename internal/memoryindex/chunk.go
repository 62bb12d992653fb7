package memoryindex

import (
	"strings"

	"github.com/alvesfc/openbotx/internal/model"
	"github.com/alvesfc/openbotx/internal/tokenbudget"
)

// ChunkOptions carries the token budget a file or text blob is split
// against.
type ChunkOptions struct {
	ChunkSizeTokens    int
	ChunkOverlapTokens int
}

// DefaultChunkOptions mirrors sensible defaults for prose-ish source text.
var DefaultChunkOptions = ChunkOptions{ChunkSizeTokens: 400, ChunkOverlapTokens: 50}

// ChunkText splits text into line-based chunks per §4.G: walk lines in
// order, closing the current chunk once the next line would exceed
// ChunkSizeTokens, then seeding the next chunk with the tail of the closed
// one whose cumulative token count is <= ChunkOverlapTokens. start_line and
// end_line are absolute, 1-based, inclusive. Chunks carry no ID, hash, or
// embedding; the caller assigns those.
func ChunkText(text string, path string, source model.ChunkSource, opts ChunkOptions) []model.Chunk {
	if opts.ChunkSizeTokens <= 0 {
		opts = DefaultChunkOptions
	}
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil
	}

	var chunks []model.Chunk
	var cur []string
	curTokens := 0
	startLine := 1

	flush := func(endLine int) {
		if len(cur) == 0 {
			return
		}
		body := strings.Join(cur, "\n")
		chunks = append(chunks, model.Chunk{
			Path:      path,
			Source:    source,
			StartLine: startLine,
			EndLine:   endLine,
			Hash:      ContentHash(body),
			Text:      body,
		})
	}

	for i, line := range lines {
		lineNo := i + 1
		lineTokens := tokenbudget.Estimate(line)

		if len(cur) > 0 && curTokens+lineTokens > opts.ChunkSizeTokens {
			flush(lineNo - 1)

			tail, tailTokens, tailStart := overlapTail(cur, lineNo, opts.ChunkOverlapTokens)
			cur = tail
			curTokens = tailTokens
			startLine = tailStart
		}

		cur = append(cur, line)
		curTokens += lineTokens
	}
	flush(len(lines))

	return chunks
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// overlapTail returns the trailing lines of a just-closed chunk whose
// cumulative token count (counted from the end) is <= budget, along with
// their total token count and the absolute line number the first carried
// line started at. closedEndLineExclusive is the absolute line number just
// past the closed chunk's last line.
func overlapTail(closed []string, closedEndLineExclusive int, budget int) ([]string, int, int) {
	if budget <= 0 || len(closed) == 0 {
		return nil, 0, closedEndLineExclusive
	}
	closedEndLine := closedEndLineExclusive - 1

	total := 0
	keepFrom := len(closed)
	for i := len(closed) - 1; i >= 0; i-- {
		t := tokenbudget.Estimate(closed[i])
		if total+t > budget {
			break
		}
		total += t
		keepFrom = i
	}
	tail := append([]string(nil), closed[keepFrom:]...)
	startLine := closedEndLine - len(tail) + 1
	return tail, total, startLine
}
