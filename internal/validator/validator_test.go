package validator

import (
	"testing"

	"github.com/alvesfc/openbotx/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basePolicy() Policy {
	return Policy{
		MaxTextLength:      100,
		MaxAttachments:     2,
		MaxAttachmentBytes: 1024,
		AllowedMediaTypes:  []string{"audio/*", "image/png"},
		UserBlocklist:      map[string]bool{"blocked-user": true},
		RequireText:        false,
	}
}

func TestValidate_OK(t *testing.T) {
	t.Parallel()

	msg := model.InboundMessage{ChannelID: "c1", Text: "hello"}
	ok, errs := basePolicy().Validate(msg)
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestValidate_TextTooLong(t *testing.T) {
	t.Parallel()

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	msg := model.InboundMessage{ChannelID: "c1", Text: string(long)}
	ok, errs := basePolicy().Validate(msg)
	assert.False(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrTextTooLong, errs[0].Kind)
}

func TestValidate_TooManyAttachments(t *testing.T) {
	t.Parallel()

	msg := model.InboundMessage{
		ChannelID: "c1",
		Text:      "hi",
		Attachments: []model.Attachment{
			{ID: "1", MediaType: "image/png"},
			{ID: "2", MediaType: "image/png"},
			{ID: "3", MediaType: "image/png"},
		},
	}
	ok, errs := basePolicy().Validate(msg)
	assert.False(t, ok)
	assert.Contains(t, kinds(errs), ErrTooManyAttachments)
}

func TestValidate_AttachmentTooLarge(t *testing.T) {
	t.Parallel()

	msg := model.InboundMessage{
		ChannelID:   "c1",
		Text:        "hi",
		Attachments: []model.Attachment{{ID: "1", MediaType: "image/png", ByteSize: 2048}},
	}
	ok, errs := basePolicy().Validate(msg)
	assert.False(t, ok)
	assert.Contains(t, kinds(errs), ErrAttachmentTooLarge)
}

func TestValidate_MediaTypeWildcardAndExact(t *testing.T) {
	t.Parallel()

	p := basePolicy()
	okMsg := model.InboundMessage{
		ChannelID:   "c1",
		Text:        "hi",
		Attachments: []model.Attachment{{ID: "1", MediaType: "audio/wav"}, {ID: "2", MediaType: "image/png"}},
	}
	ok, errs := p.Validate(okMsg)
	assert.True(t, ok)
	assert.Empty(t, errs)

	badMsg := model.InboundMessage{
		ChannelID:   "c1",
		Text:        "hi",
		Attachments: []model.Attachment{{ID: "1", MediaType: "video/mp4"}},
	}
	ok, errs = p.Validate(badMsg)
	assert.False(t, ok)
	assert.Contains(t, kinds(errs), ErrMediaTypeNotAllowed)
}

func TestValidate_EmptyChannelID(t *testing.T) {
	t.Parallel()

	msg := model.InboundMessage{Text: "hi"}
	ok, errs := basePolicy().Validate(msg)
	assert.False(t, ok)
	assert.Contains(t, kinds(errs), ErrEmptyChannelID)
}

func TestValidate_BlockedUser(t *testing.T) {
	t.Parallel()

	msg := model.InboundMessage{ChannelID: "c1", Text: "hi", UserID: "blocked-user"}
	ok, errs := basePolicy().Validate(msg)
	assert.False(t, ok)
	assert.Contains(t, kinds(errs), ErrBlockedUser)
}

func TestValidate_RequireTextMissingContent(t *testing.T) {
	t.Parallel()

	p := basePolicy()
	p.RequireText = true
	msg := model.InboundMessage{ChannelID: "c1"}
	ok, errs := p.Validate(msg)
	assert.False(t, ok)
	assert.Contains(t, kinds(errs), ErrMissingContent)
}

func TestValidate_NeverMutatesMessage(t *testing.T) {
	t.Parallel()

	msg := model.InboundMessage{ChannelID: "c1", Text: "hello", UserID: "u1"}
	before := msg
	_, _ = basePolicy().Validate(msg)
	assert.Equal(t, before, msg)
}

func kinds(errs []ValidationError) []ErrorKind {
	out := make([]ErrorKind, len(errs))
	for i, e := range errs {
		out[i] = e.Kind
	}
	return out
}
