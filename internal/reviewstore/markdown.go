package reviewstore

import (
	"fmt"
	"strings"

	"folio/internal/review"
	"folio/internal/textutil"
)

const previewLimit = 120

// RenderMarkdown produces the human-readable review of a findings view.
func RenderMarkdown(doc *FindingsDoc) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Review %s - %s (%s)\n\n", doc.StoryID, doc.Stage, doc.SeverityBand)
	fmt.Fprintf(&b, "- Story: `%s`\n", doc.StoryRelPath)
	fmt.Fprintf(&b, "- Status: `%s`\n", doc.Status)
	fmt.Fprintf(&b, "- Pass: `%d` (%s)\n", doc.PassIndex, doc.Mode)
	if doc.CanonicalReference != "" {
		fmt.Fprintf(&b, "- Canonical reference: `%s`\n", doc.CanonicalReference)
	}
	fmt.Fprintf(&b, "- Generated at: `%s`\n\n", doc.GeneratedAt)

	b.WriteString("## Metrics\n\n")
	for _, sev := range review.Severities {
		fmt.Fprintf(&b, "- %s_open: `%d`\n", sev, doc.Metrics.Get(sev))
	}
	fmt.Fprintf(&b, "- open_for_convergence: `%d`\n\n", doc.OpenFindings)

	b.WriteString("## Findings\n\n")
	if len(doc.Findings) == 0 {
		b.WriteString("- No findings.\n")
		return b.String()
	}
	for _, f := range doc.Findings {
		fmt.Fprintf(&b, "- [%s] `%s` p%02d `%s`\n", f.Severity, f.ID, f.PageNumber, f.Field)
		fmt.Fprintf(&b, "  evidence: %s\n", f.Evidence)
		option := f.SelectedOption
		if option == "" {
			option = "-"
		}
		fmt.Fprintf(&b, "  decision: %s | option: %s | open: %t\n", f.Decision, option, f.Open)
		if f.ApplyError != "" {
			fmt.Fprintf(&b, "  apply error: %s\n", f.ApplyError)
		}
		for _, s := range f.Suggestions {
			fmt.Fprintf(&b, "  - %s: %s -> `%s`\n", s.ID, s.Label, textutil.Preview(s.ProposedValue, previewLimit))
		}
		b.WriteString("\n")
	}
	return b.String()
}
