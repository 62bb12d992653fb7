package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/alvesfc/openbotx/internal/model"
	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperConverter transcribes WAV audio attachments with a local
// whisper.cpp model, satisfying attachments.Converter for the "audio"
// media-type category.
type WhisperConverter struct {
	model whisper.Model

	// whisper.cpp contexts are not safe for concurrent Process calls
	// against the same loaded model; serialize transcriptions.
	mu sync.Mutex
}

// NewWhisperConverter loads the ggml model at modelPath.
func NewWhisperConverter(modelPath string) (*WhisperConverter, error) {
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: load model %s: %w", modelPath, err)
	}
	return &WhisperConverter{model: m}, nil
}

// Close releases the underlying whisper.cpp model.
func (w *WhisperConverter) Close() error {
	return w.model.Close()
}

// Convert decodes a's WAV bytes and runs them through the loaded model,
// returning the concatenated segment text.
func (w *WhisperConverter) Convert(ctx context.Context, a model.Attachment) (string, error) {
	if len(a.Bytes) == 0 {
		return "", fmt.Errorf("transcribe: %s has no attached bytes", a.Filename)
	}

	samples, err := decodeWAV(bytes.NewReader(a.Bytes))
	if err != nil {
		return "", fmt.Errorf("transcribe: decode %s: %w", a.Filename, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("transcribe: new context for %s: %w", a.Filename, err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("transcribe: process %s: %w", a.Filename, err)
	}

	var text strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if err != nil {
			break
		}
		if text.Len() > 0 {
			text.WriteString(" ")
		}
		text.WriteString(strings.TrimSpace(segment.Text))
	}
	return text.String(), nil
}
