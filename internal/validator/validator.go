package validator

import (
	"strings"

	"github.com/alvesfc/openbotx/internal/model"
)

// ErrorKind tags why a message failed validation.
type ErrorKind string

const (
	ErrTextTooLong         ErrorKind = "text_too_long"
	ErrTooManyAttachments  ErrorKind = "too_many_attachments"
	ErrAttachmentTooLarge  ErrorKind = "attachment_too_large"
	ErrMediaTypeNotAllowed ErrorKind = "media_type_not_allowed"
	ErrEmptyChannelID      ErrorKind = "empty_channel_id"
	ErrBlockedUser         ErrorKind = "blocked_user"
	ErrMissingContent      ErrorKind = "missing_content"
)

// ValidationError is one policy violation found on a message.
type ValidationError struct {
	Kind    ErrorKind
	Message string
}

func (e ValidationError) Error() string { return e.Message }

// Policy is the configured set of limits and allowlists a message is
// checked against.
type Policy struct {
	MaxTextLength      int
	MaxAttachments     int
	MaxAttachmentBytes int64
	AllowedMediaTypes  []string // exact match or "kind/*" category wildcard
	UserBlocklist      map[string]bool
	RequireText        bool
}

// Validate checks msg against p and returns (ok, violations). It never
// mutates msg.
func (p Policy) Validate(msg model.InboundMessage) (bool, []ValidationError) {
	var errs []ValidationError

	if p.MaxTextLength > 0 && len(msg.Text) > p.MaxTextLength {
		errs = append(errs, ValidationError{Kind: ErrTextTooLong, Message: "text exceeds maximum length"})
	}

	if p.MaxAttachments > 0 && len(msg.Attachments) > p.MaxAttachments {
		errs = append(errs, ValidationError{Kind: ErrTooManyAttachments, Message: "too many attachments"})
	}

	for _, a := range msg.Attachments {
		if p.MaxAttachmentBytes > 0 && a.ByteSize > p.MaxAttachmentBytes {
			errs = append(errs, ValidationError{Kind: ErrAttachmentTooLarge, Message: "attachment " + a.Filename + " exceeds maximum size"})
		}
		if len(p.AllowedMediaTypes) > 0 && !mediaTypeAllowed(a.MediaType, p.AllowedMediaTypes) {
			errs = append(errs, ValidationError{Kind: ErrMediaTypeNotAllowed, Message: "media type not allowed: " + a.MediaType})
		}
	}

	if strings.TrimSpace(msg.ChannelID) == "" {
		errs = append(errs, ValidationError{Kind: ErrEmptyChannelID, Message: "channel id must not be empty"})
	}

	if msg.UserID != "" && p.UserBlocklist[msg.UserID] {
		errs = append(errs, ValidationError{Kind: ErrBlockedUser, Message: "user is blocked"})
	}

	if p.RequireText && msg.Text == "" && len(msg.Attachments) == 0 {
		errs = append(errs, ValidationError{Kind: ErrMissingContent, Message: "message requires text or an attachment"})
	}

	return len(errs) == 0, errs
}

func mediaTypeAllowed(mediaType string, allowed []string) bool {
	kind, _, ok := strings.Cut(mediaType, "/")
	for _, rule := range allowed {
		if rule == mediaType {
			return true
		}
		if ok {
			if category, suffix, hasSuffix := strings.Cut(rule, "/"); hasSuffix && suffix == "*" && category == kind {
				return true
			}
		}
	}
	return false
}
