package directives

import (
	"regexp"
	"strings"

	"github.com/alvesfc/openbotx/internal/model"
)

// directiveRe matches a word-boundary-delimited /<word> token, optionally
// followed by :<value> for scalar extraction. Group 1 is the character (or
// start-of-string) preceding the slash, group 2 is the word, group 3 is the
// optional scalar value.
var directiveRe = regexp.MustCompile(`(?i)(^|\s)/([A-Za-z][A-Za-z0-9_-]*)(?::(\S+))?`)

var collapseWhitespaceRe = regexp.MustCompile(`\s+`)

var verbosityHints = map[string]model.PromptVerbosity{
	"think":     model.VerbosityFull,
	"verbose":   model.VerbosityFull,
	"reasoning": model.VerbosityFull,
	"quiet":     model.VerbosityMinimal,
	"silent":    model.VerbosityNone,
}

var profileTokens = map[string]model.ToolProfile{
	"minimal":   model.ProfileMinimal,
	"coding":    model.ProfileCoding,
	"messaging": model.ProfileMessaging,
	"full":      model.ProfileFull,
}

// Parse extracts recognized directive tokens from raw user text and
// returns the cleaned text alongside the parsed directive state. Parse is
// pure: the same input always yields the same output.
func Parse(text string) model.ParsedDirectives {
	out := model.ParsedDirectives{
		Verbosity: model.VerbosityFull,
	}

	matches := directiveRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		out.CleanText = strings.TrimSpace(collapseWhitespaceRe.ReplaceAllString(text, " "))
		return out
	}

	var b strings.Builder
	last := 0

	for _, m := range matches {
		prefixEnd := m[3] // end of group 1 == start of the '/'
		fullEnd := m[1]
		word := strings.ToLower(text[m[4]:m[5]])
		hasValue := m[6] >= 0
		var value string
		if hasValue {
			value = text[m[6]:m[7]]
		}

		remove := true
		switch {
		case isVerbosityHint(word):
			out.Verbosity = verbosityHints[word]
			out.Recognized = append(out.Recognized, "/"+word)
		case isProfileToken(word):
			out.Profile = profileTokens[word]
			out.Recognized = append(out.Recognized, "/"+word)
		case word == "elevated":
			out.Elevated = true
			out.Recognized = append(out.Recognized, "/"+word)
		case hasValue:
			if out.Scalars == nil {
				out.Scalars = make(map[string]string)
			}
			out.Scalars[word] = value
			out.Recognized = append(out.Recognized, "/"+word+":"+value)
		default:
			remove = false
		}

		if remove {
			b.WriteString(text[last:prefixEnd])
			last = fullEnd
		}
	}
	b.WriteString(text[last:])

	out.CleanText = strings.TrimSpace(collapseWhitespaceRe.ReplaceAllString(b.String(), " "))
	return out
}

func isVerbosityHint(word string) bool {
	_, ok := verbosityHints[word]
	return ok
}

func isProfileToken(word string) bool {
	_, ok := profileTokens[word]
	return ok
}
