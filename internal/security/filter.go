package security

import (
	"regexp"
	"strings"
)

// ViolationKind classifies why a rule rejected a message.
type ViolationKind string

const (
	ViolationPromptInjection ViolationKind = "prompt_injection"
	ViolationForbiddenAction ViolationKind = "forbidden_action"
	ViolationUnauthorized    ViolationKind = "unauthorized"
	ViolationRateLimit       ViolationKind = "rate_limit"
)

// Rule is one pattern rule: exactly one of Pattern (regex) or Contains
// (case-insensitive substring) must be set.
type Rule struct {
	Kind     ViolationKind
	Label    string
	Pattern  *regexp.Regexp
	Contains string
}

// Violation describes a matched rule.
type Violation struct {
	Kind  ViolationKind
	Label string
}

// Filter holds a configured rule set plus the rejection text emitted for
// any violation.
type Filter struct {
	Rules        []Rule
	RejectionMsg string
}

// Scan checks text against every rule in order and returns the first
// match, if any. ok is false iff a violation was found.
func (f Filter) Scan(text string) (ok bool, violation *Violation) {
	lowered := strings.ToLower(text)
	for _, r := range f.Rules {
		if r.Pattern != nil && r.Pattern.MatchString(text) {
			return false, &Violation{Kind: r.Kind, Label: r.Label}
		}
		if r.Contains != "" && strings.Contains(lowered, strings.ToLower(r.Contains)) {
			return false, &Violation{Kind: r.Kind, Label: r.Label}
		}
	}
	return true, nil
}

// RejectionText returns the configured rejection string, falling back to
// a generic message if none was configured.
func (f Filter) RejectionText() string {
	if f.RejectionMsg != "" {
		return f.RejectionMsg
	}
	return "This message was blocked by the security filter."
}
