package audit

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"folio/internal/review"
	"folio/internal/story"
	"folio/internal/textutil"
)

// Prompt finding categories.
const (
	CategoryMissingPrompt    = "missing_prompt"
	CategoryNotStructured    = "missing_structured_v1"
	CategoryPromptTooShort   = "prompt_too_short"
	CategoryDraftMarker      = "draft_marker"
	templatePlaceholderStart = "{{"
)

var templatePlaceholder = regexp.MustCompile(`\{\{[^}]*\}\}`)

// PromptAuditor checks the image prompts of every slot on a page.
type PromptAuditor struct {
	opts Options
}

func NewPromptAuditor(opts Options) *PromptAuditor {
	return &PromptAuditor{opts: opts}
}

func (a *PromptAuditor) Stage() review.Stage { return review.StagePrompt }

// Audit checks the main slot of every page and the secondary slot when the
// page has one. An empty prompt only yields missing_prompt.
func (a *PromptAuditor) Audit(st *story.Story, _ Canon) []review.Finding {
	var findings []review.Finding
	for _, page := range st.Pages {
		pageText := strings.TrimSpace(page.Text.Current)
		for _, name := range page.SlotNames() {
			findings = append(findings, a.auditSlot(page.PageNumber, name, page.Slot(name), pageText)...)
		}
	}
	return findings
}

func (a *PromptAuditor) auditSlot(pageNumber int, name string, slot *story.ImageSlot, pageText string) []review.Finding {
	raw := slot.Prompt.Current
	current := strings.TrimSpace(raw)
	original := strings.TrimSpace(slot.Prompt.Original)
	field := story.PromptField(name)
	subject := func(sev review.Severity, category string) review.Subject {
		return review.Subject{
			Stage:      review.StagePrompt,
			Severity:   sev,
			PageNumber: pageNumber,
			Category:   category,
			Field:      field,
			Value:      raw,
		}
	}

	if current == "" {
		return []review.Finding{review.NewFinding(
			subject(review.SeverityCritical, CategoryMissingPrompt),
			fmt.Sprintf("%s prompt is empty", name),
			suggestions(
				"Generate structured prompt from page text", StructuredPrompt(pageText, original),
				"Use original prompt", original,
				"Keep empty", "",
			),
		)}
	}

	var findings []review.Finding
	if textutil.HasMojibake(current) {
		findings = append(findings, review.NewFinding(
			subject(review.SeverityMajor, CategoryMojibake),
			fmt.Sprintf("mojibake characters in %s", field),
			mojibakeSuggestions(current, original, raw, "Revert to original prompt", "Keep current prompt"),
		))
	}

	if !IsStructuredPrompt(current) {
		findings = append(findings, review.NewFinding(
			subject(review.SeverityMajor, CategoryNotStructured),
			"prompt does not follow the structured v1 template",
			suggestions(
				"Convert to structured template", StructuredPrompt(pageText, current),
				"Structured template from original", StructuredPrompt(pageText, original),
				"Keep current prompt", raw,
			),
		))
	}

	if length := utf8.RuneCountInString(current); length < a.opts.PromptMinLength {
		findings = append(findings, review.NewFinding(
			subject(review.SeverityMinor, CategoryPromptTooShort),
			fmt.Sprintf("prompt is too short for visual continuity (%d < %d characters)", length, a.opts.PromptMinLength),
			suggestions(
				"Expand to structured template", StructuredPrompt(pageText, current),
				"Use original prompt", original,
				"Keep current prompt", raw,
			),
		))
	}

	if markers := a.draftMarkers(current); len(markers) > 0 {
		findings = append(findings, review.NewFinding(
			subject(review.SeverityInfo, CategoryDraftMarker),
			fmt.Sprintf("draft markers remain: %s", strings.Join(markers, ", ")),
			suggestions(
				"Strip draft markers", a.StripDraftMarkers(current),
				"Keep current prompt", raw,
			),
		))
	}
	return findings
}

// draftMarkers lists the configured markers present in prompt, in config
// order. Markers match case-sensitively so ordinary words like "todo" pass.
func (a *PromptAuditor) draftMarkers(prompt string) []string {
	var found []string
	for _, marker := range a.opts.DraftMarkers {
		if marker == "" {
			continue
		}
		if marker == templatePlaceholderStart {
			if templatePlaceholder.MatchString(prompt) {
				found = append(found, marker)
			}
			continue
		}
		if strings.Contains(prompt, marker) {
			found = append(found, marker)
		}
	}
	return found
}

// HasDraftMarkers reports whether any configured draft marker remains.
func (a *PromptAuditor) HasDraftMarkers(prompt string) bool {
	return len(a.draftMarkers(prompt)) > 0
}

// StripDraftMarkers removes every draft marker and template placeholder and
// tidies the remaining whitespace line by line.
func (a *PromptAuditor) StripDraftMarkers(prompt string) string {
	cleaned := templatePlaceholder.ReplaceAllString(prompt, "")
	for _, marker := range a.opts.DraftMarkers {
		if marker == "" || marker == templatePlaceholderStart {
			continue
		}
		cleaned = strings.ReplaceAll(cleaned, marker, "")
	}
	lines := strings.Split(cleaned, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = textutil.NormalizeSpacing(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
