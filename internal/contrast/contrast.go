// Package contrast re-checks a story after suggestions were applied. Its
// alerts are the acceptance oracle of a pass: a band converges only when no
// finding is open and no alert remains.
package contrast

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"folio/internal/audit"
	"folio/internal/review"
	"folio/internal/story"
	"folio/internal/textutil"
)

// DefaultDriftThreshold is the drift ratio at which text has moved too far
// from its original.
const DefaultDriftThreshold = 0.85

// Checker evaluates contrast rules for one stage and severity band.
type Checker struct {
	opts           audit.Options
	driftThreshold float64
	prompts        *audit.PromptAuditor
}

// NewChecker creates a checker sharing the auditors' options.
func NewChecker(opts audit.Options, driftThreshold float64) *Checker {
	if driftThreshold <= 0 {
		driftThreshold = DefaultDriftThreshold
	}
	return &Checker{
		opts:           opts,
		driftThreshold: driftThreshold,
		prompts:        audit.NewPromptAuditor(opts),
	}
}

// Check returns the open alerts of a severity band. reference is the
// canonical document the alerts are contrasted against, if any.
func (c *Checker) Check(stage review.Stage, severity review.Severity, st *story.Story, ref audit.Canon, reference string) []review.Alert {
	alerts := []review.Alert{}
	if st == nil {
		return alerts
	}
	for _, page := range st.Pages {
		switch stage {
		case review.StageText:
			alerts = append(alerts, c.checkText(severity, page, ref, reference)...)
		case review.StagePrompt:
			for _, name := range page.SlotNames() {
				alerts = append(alerts, c.checkPrompt(severity, page.PageNumber, name, page.Slot(name), reference)...)
			}
		}
	}
	return alerts
}

func alertID(stage review.Stage, severity review.Severity, page int, parts ...string) string {
	id := fmt.Sprintf("contrast-%s-%s-p%02d", stage, severity, page)
	for _, part := range parts {
		id += "-" + part
	}
	return id
}

func (c *Checker) checkText(severity review.Severity, page story.Page, ref audit.Canon, reference string) []review.Alert {
	current := strings.TrimSpace(page.Text.Current)
	original := strings.TrimSpace(page.Text.Original)
	alert := func(evidence string, parts ...string) review.Alert {
		return review.Alert{
			ID:         alertID(review.StageText, severity, page.PageNumber, parts...),
			Stage:      review.StageText,
			Severity:   severity,
			PageNumber: page.PageNumber,
			Field:      story.FieldText,
			Evidence:   evidence,
			Reference:  reference,
			Status:     review.AlertOpen,
		}
	}

	var alerts []review.Alert
	switch severity {
	case review.SeverityCritical:
		if current == "" {
			alerts = append(alerts, alert("text is still empty after applying changes"))
		}
	case review.SeverityMajor:
		if textutil.HasMojibake(current) {
			alerts = append(alerts, alert("mojibake characters remain in text.current", "mojibake"))
		}
		if current != "" && original != "" {
			if drift := textutil.DriftRatio(original, current); drift >= c.driftThreshold {
				alerts = append(alerts, alert(fmt.Sprintf("excessive drift from canon (ratio=%.2f)", drift), "drift"))
			}
		}
	case review.SeverityMinor:
		if textutil.HasIrregularSpacing(page.Text.Current) {
			alerts = append(alerts, alert("irregular whitespace remains"))
		}
	}

	if severity == c.opts.GlossarySeverity && current != "" && ref != nil {
		for _, entry := range ref.Glossary() {
			for _, token := range entry.Forbidden {
				if textutil.ContainsFold(current, token) {
					alerts = append(alerts, alert(
						fmt.Sprintf("forbidden glossary term %q still present", token),
						"forbidden", textutil.SanitizeToken(token),
					))
				}
			}
		}
	}
	return alerts
}

func (c *Checker) checkPrompt(severity review.Severity, pageNumber int, name string, slot *story.ImageSlot, reference string) []review.Alert {
	current := strings.TrimSpace(slot.Prompt.Current)
	alert := func(evidence string, parts ...string) review.Alert {
		return review.Alert{
			ID:         alertID(review.StagePrompt, severity, pageNumber, append([]string{name}, parts...)...),
			Stage:      review.StagePrompt,
			Severity:   severity,
			PageNumber: pageNumber,
			Field:      story.PromptField(name),
			Evidence:   evidence,
			Reference:  reference,
			Status:     review.AlertOpen,
		}
	}

	var alerts []review.Alert
	switch severity {
	case review.SeverityCritical:
		if current == "" {
			alerts = append(alerts, alert(name+" prompt is still empty after applying changes"))
		}
	case review.SeverityMajor:
		if current != "" && !audit.IsStructuredPrompt(current) {
			alerts = append(alerts, alert("prompt still does not follow the structured v1 template"))
		}
		if textutil.HasMojibake(current) {
			alerts = append(alerts, alert("mojibake characters remain in the prompt", "mojibake"))
		}
	case review.SeverityMinor:
		if current != "" && utf8.RuneCountInString(current) < c.opts.PromptMinLength {
			alerts = append(alerts, alert("prompt is still too short for visual continuity"))
		}
	case review.SeverityInfo:
		if c.prompts.HasDraftMarkers(current) {
			alerts = append(alerts, alert("draft markers remain in the prompt"))
		}
	}
	return alerts
}
