package canon

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var listSeparator = regexp.MustCompile(`[;,]`)

// TermList is a list of glossary tokens. Files may spell it as a list or as a
// single string separated by ';' or ','.
type TermList []string

// SplitTerms splits a separated string into a deduplicated token list.
func SplitTerms(value string) TermList {
	return Dedupe(listSeparator.Split(value, -1))
}

// Dedupe trims values and drops empty and case-insensitive duplicates,
// keeping the first spelling.
func Dedupe(values []string) TermList {
	out := make(TermList, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, raw := range values {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}
		key := strings.ToLower(token)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, token)
	}
	return out
}

// UnmarshalYAML accepts a scalar or a sequence.
func (l *TermList) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case yaml.ScalarNode:
		*l = SplitTerms(value.Value)
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = Dedupe(items)
	default:
		return fmt.Errorf("line %d: expected a string or a list of terms", value.Line)
	}
	return nil
}

// UnmarshalJSON accepts a string or an array of strings.
func (l *TermList) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		*l = Dedupe(items)
		return nil
	}
	var text *string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("expected a string or a list of terms: %w", err)
	}
	if text == nil {
		*l = TermList{}
		return nil
	}
	*l = SplitTerms(*text)
	return nil
}

// MarshalJSON always writes an array.
func (l TermList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}
