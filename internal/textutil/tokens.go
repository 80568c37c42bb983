package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Tokenize splits text into lowercase word tokens. A word is a run of
// letters, digits, marks or underscores.
func Tokenize(text string) []string {
	normalized := norm.NFC.String(strings.ToLower(text))
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_')
	})
}

// DriftRatio measures how much of the original vocabulary is missing from the
// current text: 1 - |set(original) ∩ set(current)| / |set(original)|.
// An original without tokens has no drift.
func DriftRatio(original, current string) float64 {
	originalSet := tokenSet(original)
	if len(originalSet) == 0 {
		return 0
	}
	currentSet := tokenSet(current)
	overlap := 0
	for token := range originalSet {
		if _, ok := currentSet[token]; ok {
			overlap++
		}
	}
	return 1 - float64(overlap)/float64(len(originalSet))
}

func tokenSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}
