package audit

import (
	"folio/internal/canon"
	"folio/internal/review"
	"folio/internal/story"
)

// Canon is the book context an audit runs against.
type Canon interface {
	Glossary() []canon.Entry
	References(storyID string) []review.Reference
}

// Auditor detects the findings of one stage.
type Auditor interface {
	Stage() review.Stage
	Audit(st *story.Story, ref Canon) []review.Finding
}

// Suite dispatches audits to the auditor of each stage.
type Suite struct {
	auditors map[review.Stage]Auditor
}

// NewSuite creates the text and prompt auditors.
func NewSuite(opts Options) *Suite {
	return &Suite{auditors: map[review.Stage]Auditor{
		review.StageText:   NewTextAuditor(opts),
		review.StagePrompt: NewPromptAuditor(opts),
	}}
}

// Detect runs the auditor of stage and keeps the findings of one severity
// band; an empty severity keeps every finding. Findings carry the story's
// references and are pending and open.
func (s *Suite) Detect(stage review.Stage, st *story.Story, severity review.Severity, ref Canon) []review.Finding {
	auditor, ok := s.auditors[stage]
	if !ok || st == nil {
		return []review.Finding{}
	}
	findings := auditor.Audit(st, ref)
	if severity != "" {
		findings = review.FilterSeverity(findings, severity)
	}
	var refs []review.Reference
	if ref != nil {
		refs = ref.References(st.StoryID)
	}
	for i := range findings {
		findings[i].References = refs
	}
	return findings
}

func glossaryOf(ref Canon) []canon.Entry {
	if ref == nil {
		return nil
	}
	return ref.Glossary()
}

func suggestions(pairs ...string) []review.Suggestion {
	out := make([]review.Suggestion, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, review.Suggestion{
			ID:            string(rune('A' + len(out))),
			Label:         pairs[i],
			ProposedValue: pairs[i+1],
		})
	}
	return out
}
