package attachments

import (
	"context"
	"strings"
	"sync"

	"github.com/alvesfc/openbotx/internal/model"
)

// Converter turns one attachment's bytes/URL into text.
type Converter interface {
	Convert(ctx context.Context, a model.Attachment) (string, error)
}

// ConverterFunc adapts a plain function to Converter.
type ConverterFunc func(ctx context.Context, a model.Attachment) (string, error)

func (f ConverterFunc) Convert(ctx context.Context, a model.Attachment) (string, error) {
	return f(ctx, a)
}

// Processor converts attachments whose media-type category (the part
// before "/") has a registered Converter.
type Processor struct {
	// Converters is keyed by media-type category, e.g. "audio".
	Converters map[string]Converter
}

// NewProcessor builds a Processor from a category→Converter map.
func NewProcessor(converters map[string]Converter) *Processor {
	return &Processor{Converters: converters}
}

type conversionOutcome struct {
	index int
	text  string
	err   error
}

// Process converts every eligible attachment on msg concurrently, appends
// successful conversions to msg.Text (in original attachment order) with a
// marker, and records failures as a warning in the attachment's metadata
// rather than failing. It waits for every conversion before returning.
func (p *Processor) Process(ctx context.Context, msg *model.InboundMessage) {
	if len(msg.Attachments) == 0 || len(p.Converters) == 0 {
		return
	}

	results := make([]conversionOutcome, len(msg.Attachments))
	var wg sync.WaitGroup
	for i, a := range msg.Attachments {
		category, _, _ := strings.Cut(a.MediaType, "/")
		conv, ok := p.Converters[category]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(i int, a model.Attachment) {
			defer wg.Done()
			text, err := conv.Convert(ctx, a)
			results[i] = conversionOutcome{index: i, text: text, err: err}
		}(i, a)
	}
	wg.Wait()

	var appended strings.Builder
	for i := range msg.Attachments {
		r := results[i]
		switch {
		case r.err != nil:
			if msg.Attachments[i].Metadata == nil {
				msg.Attachments[i].Metadata = make(map[string]string)
			}
			msg.Attachments[i].Metadata["ignored"] = "true"
			msg.Attachments[i].Metadata["warning"] = r.err.Error()
		case r.text != "":
			appended.WriteString(" [attachment:")
			appended.WriteString(msg.Attachments[i].Filename)
			appended.WriteString("] ")
			appended.WriteString(r.text)
		}
	}

	if appended.Len() > 0 {
		msg.Text = strings.TrimSpace(msg.Text + appended.String())
	}
}
