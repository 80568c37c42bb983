package audit

import (
	"fmt"
	"strings"

	"folio/internal/review"
	"folio/internal/story"
	"folio/internal/textutil"
)

// Text finding categories.
const (
	CategoryMissingText    = "missing_text"
	CategoryMojibake       = "encoding_mojibake"
	CategoryForbiddenTerm  = "glossary_forbidden_term"
	CategorySemanticDrift  = "semantic_drift_proxy"
	CategorySpacingCleanup = "spacing_cleanup"
)

// TextPlaceholder is proposed for pages without text.
const TextPlaceholder = "Texto pendiente de revision editorial."

// TextAuditor checks page text.
type TextAuditor struct {
	opts Options
}

func NewTextAuditor(opts Options) *TextAuditor {
	return &TextAuditor{opts: opts}
}

func (a *TextAuditor) Stage() review.Stage { return review.StageText }

// Audit checks every page. A page without text only yields missing_text.
func (a *TextAuditor) Audit(st *story.Story, ref Canon) []review.Finding {
	var findings []review.Finding
	glossary := glossaryOf(ref)
	for _, page := range st.Pages {
		raw := page.Text.Current
		current := strings.TrimSpace(raw)
		original := strings.TrimSpace(page.Text.Original)
		subject := func(sev review.Severity, category, discriminator string) review.Subject {
			return review.Subject{
				Stage:         review.StageText,
				Severity:      sev,
				PageNumber:    page.PageNumber,
				Category:      category,
				Field:         story.FieldText,
				Discriminator: discriminator,
				Value:         raw,
			}
		}

		if current == "" {
			findings = append(findings, review.NewFinding(
				subject(review.SeverityCritical, CategoryMissingText, ""),
				"page has no current text",
				suggestions(
					"Use original text", original,
					"Editorial placeholder", TextPlaceholder,
					"Keep empty", "",
				),
			))
			continue
		}

		if textutil.HasMojibake(current) {
			findings = append(findings, review.NewFinding(
				subject(review.SeverityMajor, CategoryMojibake, ""),
				"mojibake characters in text.current",
				mojibakeSuggestions(current, original, raw, "Revert to original text", "Keep current text"),
			))
		}

		for _, entry := range glossary {
			for _, token := range entry.Forbidden {
				if !textutil.ContainsFold(current, token) {
					continue
				}
				target := entry.Target()
				findings = append(findings, review.NewFinding(
					subject(a.opts.GlossarySeverity, CategoryForbiddenTerm, entry.Key()+"\x00"+strings.ToLower(token)),
					fmt.Sprintf("forbidden glossary term %q (glossary: %s, use %q)", token, entry.Term, target),
					suggestions(
						"Replace with preferred term", textutil.ReplaceFold(current, token, target),
						"Revert to original text", original,
						"Keep current text", raw,
					),
				))
			}
		}

		if original != "" {
			if drift := textutil.DriftRatio(original, current); drift >= a.opts.DriftThreshold {
				halved := []rune(current)
				halved = halved[:max(len(halved)/2, 1)]
				findings = append(findings, review.NewFinding(
					subject(review.SeverityMajor, CategorySemanticDrift, ""),
					fmt.Sprintf("high drift from original text (ratio=%.2f)", drift),
					suggestions(
						"Revert to original", original,
						"Keep current", raw,
						"Reduce drift", string(halved),
					),
				))
			}
		}

		if textutil.HasIrregularSpacing(raw) {
			findings = append(findings, review.NewFinding(
				subject(review.SeverityMinor, CategorySpacingCleanup, ""),
				"repeated or surrounding whitespace",
				suggestions(
					"Normalize spacing", textutil.NormalizeSpacing(raw),
					"Revert to original text", original,
					"Keep current text", raw,
				),
			))
		}
	}
	return findings
}

// mojibakeSuggestions offers the encoding repair only when it removes the
// garbling and the original only when it is clean. Keeping the current value
// is always the last option.
func mojibakeSuggestions(current, original, raw, revertLabel, keepLabel string) []review.Suggestion {
	var pairs []string
	if repaired := textutil.RepairMojibake(current); repaired != current && !textutil.HasMojibake(repaired) {
		pairs = append(pairs, "Apply encoding repair", repaired)
	}
	if original != "" && original != current && !textutil.HasMojibake(original) {
		pairs = append(pairs, revertLabel, original)
	}
	pairs = append(pairs, keepLabel, raw)
	return suggestions(pairs...)
}
