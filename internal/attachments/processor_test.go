package attachments

import (
	"context"
	"errors"
	"testing"

	"github.com/alvesfc/openbotx/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_AppendsConvertedTextInOrder(t *testing.T) {
	t.Parallel()

	p := NewProcessor(map[string]Converter{
		"audio": ConverterFunc(func(ctx context.Context, a model.Attachment) (string, error) {
			return "transcript of " + a.Filename, nil
		}),
	})

	msg := &model.InboundMessage{
		Text: "please review",
		Attachments: []model.Attachment{
			{Filename: "a.wav", MediaType: "audio/wav"},
			{Filename: "b.wav", MediaType: "audio/wav"},
		},
	}

	p.Process(context.Background(), msg)

	assert.Contains(t, msg.Text, "please review")
	idxA := indexOf(msg.Text, "transcript of a.wav")
	idxB := indexOf(msg.Text, "transcript of b.wav")
	require.GreaterOrEqual(t, idxA, 0)
	require.GreaterOrEqual(t, idxB, 0)
	assert.Less(t, idxA, idxB)
}

func TestProcess_FailureDegradesToIgnoredAndNeverFailsMessage(t *testing.T) {
	t.Parallel()

	p := NewProcessor(map[string]Converter{
		"audio": ConverterFunc(func(ctx context.Context, a model.Attachment) (string, error) {
			return "", errors.New("boom")
		}),
	})

	msg := &model.InboundMessage{
		Text:        "hello",
		Attachments: []model.Attachment{{Filename: "a.wav", MediaType: "audio/wav"}},
	}

	assert.NotPanics(t, func() { p.Process(context.Background(), msg) })
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "true", msg.Attachments[0].Metadata["ignored"])
	assert.Equal(t, "boom", msg.Attachments[0].Metadata["warning"])
}

func TestProcess_NoConverterForMediaTypeLeavesAttachmentUntouched(t *testing.T) {
	t.Parallel()

	p := NewProcessor(map[string]Converter{})
	msg := &model.InboundMessage{
		Text:        "hi",
		Attachments: []model.Attachment{{Filename: "f.png", MediaType: "image/png"}},
	}
	p.Process(context.Background(), msg)
	assert.Equal(t, "hi", msg.Text)
	assert.Nil(t, msg.Attachments[0].Metadata)
}

func TestProcess_NoAttachmentsIsNoop(t *testing.T) {
	t.Parallel()

	p := NewProcessor(map[string]Converter{"audio": ConverterFunc(func(ctx context.Context, a model.Attachment) (string, error) {
		return "x", nil
	})})
	msg := &model.InboundMessage{Text: "hi"}
	p.Process(context.Background(), msg)
	assert.Equal(t, "hi", msg.Text)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
