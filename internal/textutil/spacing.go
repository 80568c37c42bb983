package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s{2,}`)

// HasIrregularSpacing reports runs of two or more whitespace characters or
// whitespace at either end of the text.
func HasIrregularSpacing(text string) bool {
	if text == "" {
		return false
	}
	if strings.TrimSpace(text) != text {
		return true
	}
	return whitespaceRun.MatchString(text)
}

// NormalizeSpacing trims the text and collapses every whitespace run to a
// single space.
func NormalizeSpacing(text string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(text), " ")
}

// FirstSentence returns the first sentence of text with whitespace collapsed,
// clipped to limit runes. Empty input yields fallback.
func FirstSentence(text, fallback string, limit int) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if cleaned == "" {
		return fallback
	}
	sentence := cleaned
	if idx := strings.IndexAny(cleaned, ".!?"); idx >= 0 {
		sentence = strings.TrimSpace(cleaned[:idx])
	}
	if sentence == "" {
		sentence = cleaned
	}
	if limit > 0 {
		runes := []rune(sentence)
		if len(runes) > limit {
			sentence = string(runes[:limit])
		}
	}
	return sentence
}

// Preview flattens text to one line and clips it to limit runes with an
// ellipsis.
func Preview(text string, limit int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if limit <= 3 || len(runes) <= limit {
		return flat
	}
	return string(runes[:limit-3]) + "..."
}
