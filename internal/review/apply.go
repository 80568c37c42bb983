package review

import (
	"fmt"

	"folio/internal/story"
)

// Apply writes the selected suggestion of every accepted finding into the
// story. Findings whose option or target cannot be resolved get ApplyError
// set and are skipped; the remaining findings are still applied. It reports
// whether any field changed.
func Apply(st *story.Story, findings []Finding) bool {
	changed := false
	for i := range findings {
		f := &findings[i]
		f.ApplyError = ""
		if f.Decision != DecisionAccepted {
			continue
		}
		suggestion, ok := f.Suggestion(f.SelectedOption)
		if !ok {
			f.ApplyError = fmt.Sprintf("selected option %q is not offered", f.SelectedOption)
			continue
		}
		current, err := st.FieldValue(f.PageNumber, f.Field)
		if err != nil {
			f.ApplyError = err.Error()
			continue
		}
		if current == suggestion.ProposedValue {
			continue
		}
		if err := st.SetFieldValue(f.PageNumber, f.Field, suggestion.ProposedValue); err != nil {
			f.ApplyError = err.Error()
			continue
		}
		changed = true
	}
	return changed
}
