package gateway

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alvesfc/openbotx/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTerminal(input string) (*Terminal, *bytes.Buffer) {
	var out bytes.Buffer
	term := &Terminal{
		In:        bufio.NewReader(strings.NewReader(input)),
		Out:       bufio.NewWriter(&out),
		ChannelID: "default",
	}
	return term, &out
}

func TestTerminal_ChannelIDIsPrefixed(t *testing.T) {
	t.Parallel()

	term, _ := newTestTerminal("")
	assert.Equal(t, "term-default", term.channelID())
}

func TestTerminal_RunEmitsOneMessagePerLine(t *testing.T) {
	t.Parallel()

	term, _ := newTestTerminal("hello\nworld\n")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []model.InboundMessage
	term.Run(ctx, func(m model.InboundMessage) { got = append(got, m) })

	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[0].Text)
	assert.Equal(t, "world", got[1].Text)
	assert.Equal(t, "term-default", got[0].ChannelID)
}

func TestTerminal_RunStopsOnStopWord(t *testing.T) {
	t.Parallel()

	term, _ := newTestTerminal("hello\nquit\nnever seen\n")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []model.InboundMessage
	term.Run(ctx, func(m model.InboundMessage) { got = append(got, m) })

	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Text)
}

func TestTerminal_FileCommandBuildsAttachment(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("file contents"), 0o644))

	term, _ := newTestTerminal("/file " + path + " see attached\n")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []model.InboundMessage
	term.Run(ctx, func(m model.InboundMessage) { got = append(got, m) })

	require.Len(t, got, 1)
	require.Len(t, got[0].Attachments, 1)
	assert.Equal(t, "note.txt", got[0].Attachments[0].Filename)
	assert.Equal(t, "see attached", got[0].Text)
	assert.NotEmpty(t, got[0].Attachments[0].MediaType)
}

func TestTerminal_SendWritesTextToOut(t *testing.T) {
	t.Parallel()

	term, out := newTestTerminal("")
	ok := term.Send(context.Background(), model.OutboundMessage{
		Contents: []model.ContentPart{model.TextPart("reply text")},
	})
	assert.True(t, ok)
	assert.Contains(t, out.String(), "reply text")
}

func TestTerminal_ResponseCapabilitiesIsTextOnly(t *testing.T) {
	t.Parallel()

	term, _ := newTestTerminal("")
	assert.Equal(t, []model.ResponseCapability{model.CapabilityText}, term.ResponseCapabilities())
}
