package memoryindex

import "strings"

const snippetStride = 50

// SelectSnippet implements §4.G's snippet rule: slide a maxLength-wide
// window across text in 50-character strides, pick the window covering the
// most distinct query terms (first occurrence wins ties), and mark
// truncation with leading/trailing ellipsis.
func SelectSnippet(text string, queryTerms []string, maxLength int) string {
	if maxLength <= 0 || len(text) <= maxLength {
		return text
	}
	lower := strings.ToLower(text)
	terms := uniqueLower(queryTerms)

	bestStart := 0
	bestCount := -1
	for start := 0; start < len(text); start += snippetStride {
		end := start + maxLength
		if end > len(text) {
			end = len(text)
		}
		window := lower[start:end]
		count := distinctTermsIn(window, terms)
		if count > bestCount {
			bestCount = count
			bestStart = start
		}
		if end == len(text) {
			break
		}
	}

	end := bestStart + maxLength
	if end > len(text) {
		end = len(text)
	}
	snippet := text[bestStart:end]

	if bestStart > 0 {
		snippet = "…" + snippet
	}
	if end < len(text) {
		snippet = snippet + "…"
	}
	return snippet
}

func uniqueLower(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func distinctTermsIn(window string, terms []string) int {
	count := 0
	for _, t := range terms {
		if strings.Contains(window, t) {
			count++
		}
	}
	return count
}
