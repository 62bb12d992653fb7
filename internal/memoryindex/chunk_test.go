package memoryindex

import (
	"strings"
	"testing"

	"github.com/alvesfc/openbotx/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_SingleChunkWhenSmall(t *testing.T) {
	t.Parallel()

	text := "line one\nline two\nline three"
	chunks := ChunkText(text, "p.txt", model.SourceMemory, ChunkOptions{ChunkSizeTokens: 1000, ChunkOverlapTokens: 100})
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
	assert.Equal(t, text, chunks[0].Text)
	assert.True(t, chunks[0].Valid())
}

func TestChunkText_SplitsWhenOverBudget(t *testing.T) {
	t.Parallel()

	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "word"
	}
	text := strings.Join(lines, "\n")

	chunks := ChunkText(text, "p.txt", model.SourceMemory, ChunkOptions{ChunkSizeTokens: 5, ChunkOverlapTokens: 0})
	require.True(t, len(chunks) > 1)

	// absolute line numbers cover the whole file with no gaps, in order.
	assert.Equal(t, 1, chunks[0].StartLine)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndLine+1, chunks[i].StartLine)
	}
	assert.Equal(t, 20, chunks[len(chunks)-1].EndLine)
}

func TestChunkText_OverlapCarriesTailLines(t *testing.T) {
	t.Parallel()

	lines := make([]string, 10)
	for i := range lines {
		lines[i] = "word"
	}
	text := strings.Join(lines, "\n")

	chunks := ChunkText(text, "p.txt", model.SourceMemory, ChunkOptions{ChunkSizeTokens: 3, ChunkOverlapTokens: 2})
	require.True(t, len(chunks) > 1)

	// with overlap, the second chunk must start at or before the first
	// chunk's end line (i.e. some lines are re-included).
	assert.True(t, chunks[1].StartLine <= chunks[0].EndLine)
}

func TestChunkText_EmptyTextYieldsNoChunks(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ChunkText("", "p.txt", model.SourceMemory, ChunkOptions{}))
}

func TestChunkText_DefaultsAppliedWhenSizeNotSet(t *testing.T) {
	t.Parallel()

	chunks := ChunkText("one line", "p.txt", model.SourceMemory, ChunkOptions{})
	require.Len(t, chunks, 1)
}

func TestChunkText_HashReflectsContent(t *testing.T) {
	t.Parallel()

	a := ChunkText("same text", "p.txt", model.SourceMemory, ChunkOptions{ChunkSizeTokens: 100})
	b := ChunkText("same text", "other.txt", model.SourceMemory, ChunkOptions{ChunkSizeTokens: 100})
	assert.Equal(t, a[0].Hash, b[0].Hash)

	c := ChunkText("different text", "p.txt", model.SourceMemory, ChunkOptions{ChunkSizeTokens: 100})
	assert.NotEqual(t, a[0].Hash, c[0].Hash)
}
