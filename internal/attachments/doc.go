// Package attachments converts non-text message attachments (e.g. audio)
// into text via pluggable external converters, appending the result to the
// message's cleaned text. A conversion failure degrades the attachment to
// "ignored" rather than failing the message.
package attachments
