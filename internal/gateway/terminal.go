package gateway

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/alvesfc/openbotx/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TerminalTag is the channel-id prefix for the terminal gateway.
const TerminalTag = "term"

var stopWords = map[string]bool{"quit": true, "exit": true, "bye": true}

// Terminal is a line-oriented gateway over an io.Reader/io.Writer pair,
// defaulting to stdin/stdout. One connected "channel" per process.
type Terminal struct {
	In        *bufio.Reader
	Out       *bufio.Writer
	ChannelID string // raw id before the "term-" prefix; defaults to "default"
	UserID    string

	mu      sync.Mutex
	running bool
}

// NewTerminal builds a Terminal reading stdin and writing stdout.
func NewTerminal() *Terminal {
	return &Terminal{
		In:        bufio.NewReader(os.Stdin),
		Out:       bufio.NewWriter(os.Stdout),
		ChannelID: "default",
	}
}

func (t *Terminal) channelID() string {
	return ChannelID(TerminalTag, t.ChannelID)
}

// Initialize is a no-op; the terminal gateway has no external resources to
// acquire ahead of Start.
func (t *Terminal) Initialize(ctx context.Context) error { return nil }

// Start marks the gateway ready; Run performs the actual I/O loop.
func (t *Terminal) Start(ctx context.Context) error {
	t.mu.Lock()
	t.running = true
	t.mu.Unlock()
	return nil
}

// Stop marks the gateway as no longer accepting sends. The blocking stdin
// read in Run is abandoned once ctx is cancelled by the caller.
func (t *Terminal) Stop(ctx context.Context) error {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
	return nil
}

// ResponseCapabilities reports that the terminal can only render text.
func (t *Terminal) ResponseCapabilities() []model.ResponseCapability {
	return []model.ResponseCapability{model.CapabilityText}
}

// Send prints every text content part to stdout.
func (t *Terminal) Send(ctx context.Context, out model.OutboundMessage) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, part := range out.Contents {
		if part.Kind == model.ContentKindText && part.Text != "" {
			if _, err := fmt.Fprintln(t.Out, part.Text); err != nil {
				return false
			}
		}
	}
	return t.Out.Flush() == nil
}

// Run polls stdin a line at a time on a background goroutine and feeds
// parsed InboundMessages to inbound, returning as soon as ctx is done or a
// stop word is read.
func (t *Terminal) Run(ctx context.Context, inbound func(model.InboundMessage)) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := t.In.ReadString('\n')
			line = strings.TrimRight(line, "\r\n")
			if line != "" {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if stopWords[strings.ToLower(strings.TrimSpace(line))] {
				log.Info().Str("channel_id", t.channelID()).Msg("gateway_terminal_stop_requested")
				return
			}
			msg, ok := t.parseLine(line)
			if ok {
				inbound(msg)
			}
		}
	}
}

func (t *Terminal) parseLine(line string) (model.InboundMessage, bool) {
	base := model.InboundMessage{
		ID:        uuid.NewString(),
		ChannelID: t.channelID(),
		UserID:    t.UserID,
		Transport: "terminal",
		Kind:      model.ContentKindText,
		Timestamp: time.Now().UTC(),
	}

	if rest, ok := strings.CutPrefix(line, "/file "); ok {
		path, text, _ := strings.Cut(strings.TrimSpace(rest), " ")
		attachment, err := buildFileAttachment(path)
		if err != nil {
			fmt.Fprintln(t.Out, "error reading file:", err)
			t.Out.Flush()
			return model.InboundMessage{}, false
		}
		base.Text = text
		base.Kind = model.ContentKindFile
		base.Attachments = []model.Attachment{attachment}
		return base, true
	}

	base.Text = line
	return base, true
}

func buildFileAttachment(path string) (model.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Attachment{}, err
	}
	mediaType := http.DetectContentType(data)
	return model.Attachment{
		ID:        uuid.NewString(),
		Filename:  filepath.Base(path),
		MediaType: mediaType,
		ByteSize:  int64(len(data)),
		Bytes:     data,
	}, nil
}
