package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ContainsFold reports whether substr occurs in s under Unicode case folding.
func ContainsFold(s, substr string) bool {
	start, _ := indexFold(s, substr)
	return start >= 0
}

// ReplaceFold replaces every case-insensitive occurrence of old in s with
// replacement. Matches do not overlap and scanning resumes after each
// replacement.
func ReplaceFold(s, old, replacement string) string {
	if old == "" {
		return s
	}
	var b strings.Builder
	rest := s
	for {
		start, end := indexFold(rest, old)
		if start < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:start])
		b.WriteString(replacement)
		rest = rest[end:]
	}
}

func indexFold(s, substr string) (int, int) {
	if substr == "" {
		return 0, 0
	}
	for i := 0; i < len(s); {
		if n, ok := prefixFold(s[i:], substr); ok {
			return i, i + n
		}
		_, width := utf8.DecodeRuneInString(s[i:])
		i += width
	}
	return -1, -1
}

// prefixFold matches prefix against the start of s and returns the number of
// bytes of s consumed.
func prefixFold(s, prefix string) (int, bool) {
	consumed := 0
	for _, want := range prefix {
		if consumed >= len(s) {
			return 0, false
		}
		got, width := utf8.DecodeRuneInString(s[consumed:])
		if !equalFoldRune(got, want) {
			return 0, false
		}
		consumed += width
	}
	return consumed, true
}

func equalFoldRune(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}
