package review

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Decision is the reviewer's verdict on a finding.
type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
	DecisionDefer    Decision = "defer"
)

// ParseDecision normalizes a decision value; unknown values become pending.
func ParseDecision(value string) Decision {
	switch Decision(strings.ToLower(strings.TrimSpace(value))) {
	case DecisionAccepted:
		return DecisionAccepted
	case DecisionRejected:
		return DecisionRejected
	case DecisionDefer:
		return DecisionDefer
	default:
		return DecisionPending
	}
}

// ValidDecision reports whether value names a decision exactly.
func ValidDecision(value string) bool {
	switch Decision(strings.ToLower(strings.TrimSpace(value))) {
	case DecisionPending, DecisionAccepted, DecisionRejected, DecisionDefer:
		return true
	default:
		return false
	}
}

// Suggestion is one proposed replacement value for a finding's field.
type Suggestion struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	ProposedValue string `json:"proposed_value"`
}

// Reference points at supporting material for a finding.
type Reference struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// Finding is a detected content problem.
type Finding struct {
	ID             string       `json:"id"`
	Stage          Stage        `json:"stage"`
	Severity       Severity     `json:"severity"`
	Category       string       `json:"category"`
	PageNumber     int          `json:"page_number"`
	Field          string       `json:"field"`
	Evidence       string       `json:"evidence"`
	Suggestions    []Suggestion `json:"suggestions"`
	Decision       Decision     `json:"decision"`
	SelectedOption string       `json:"selected_option"`
	Notes          string       `json:"notes"`
	ResolvedBy     string       `json:"resolved_by,omitempty"`
	ResolvedAt     string       `json:"resolved_at,omitempty"`
	References     []Reference  `json:"references,omitempty"`
	Impact         string       `json:"impact"`
	ApplyError     string       `json:"apply_error,omitempty"`
	Open           bool         `json:"open"`
}

// Suggestion returns the suggestion with the given option id.
func (f *Finding) Suggestion(option string) (Suggestion, bool) {
	option = strings.ToUpper(strings.TrimSpace(option))
	for _, s := range f.Suggestions {
		if s.ID == option {
			return s, true
		}
	}
	return Suggestion{}, false
}

// Subject identifies the content a finding is about.
type Subject struct {
	Stage      Stage
	Severity   Severity
	PageNumber int
	Category   string
	Field      string
	// Discriminator separates findings of one category on the same field,
	// such as two different forbidden glossary terms.
	Discriminator string
	// Value is the current content of the field.
	Value string
}

const identityHashLen = 12

// Identity returns the content-addressed finding id: a readable
// stage/severity/page/category tag followed by a truncated SHA-256 of the
// subject. Identical content always yields the same id.
func Identity(s Subject) string {
	h := sha256.New()
	for _, part := range []string{
		string(s.Stage),
		string(s.Severity),
		fmt.Sprintf("%d", s.PageNumber),
		s.Category,
		s.Field,
		s.Discriminator,
		s.Value,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	digest := hex.EncodeToString(h.Sum(nil))[:identityHashLen]
	return fmt.Sprintf("%s-%s-p%02d-%s-%s", s.Stage, s.Severity, s.PageNumber, s.Category, digest)
}

// NewFinding builds a pending finding for subject with its identity and impact.
func NewFinding(s Subject, evidence string, suggestions []Suggestion) Finding {
	return Finding{
		ID:          Identity(s),
		Stage:       s.Stage,
		Severity:    s.Severity,
		Category:    s.Category,
		PageNumber:  s.PageNumber,
		Field:       s.Field,
		Evidence:    evidence,
		Suggestions: suggestions,
		Decision:    DecisionPending,
		Impact:      s.Severity.Impact(),
		Open:        true,
	}
}

// FilterSeverity returns the findings of one severity band.
func FilterSeverity(findings []Finding, sev Severity) []Finding {
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

// IsOpen applies the convergence rule to a finding. Accepted findings are
// resolved unless their suggestion could not be applied; rejected and
// deferred findings stay open only in blocking bands; pending findings are
// always open.
func IsOpen(f Finding, blocking bool) bool {
	if f.ApplyError != "" {
		return true
	}
	switch f.Decision {
	case DecisionAccepted:
		return false
	case DecisionRejected, DecisionDefer:
		return blocking
	default:
		return true
	}
}

// MarkOpen sets the open flag on every finding and returns the open count.
func MarkOpen(findings []Finding, blocking bool) int {
	open := 0
	for i := range findings {
		findings[i].Open = IsOpen(findings[i], blocking)
		if findings[i].Open {
			open++
		}
	}
	return open
}
