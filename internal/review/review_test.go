package review

import (
	"strings"
	"testing"

	"folio/internal/story"
)

func TestIdentityIsContentAddressed(t *testing.T) {
	base := Subject{Stage: StageText, Severity: SeverityCritical, PageNumber: 1, Category: "missing_text", Field: story.FieldText}
	first := Identity(base)
	if first != Identity(base) {
		t.Fatal("identity must be deterministic")
	}
	if !strings.HasPrefix(first, "text-critical-p01-missing_text-") {
		t.Fatalf("unexpected readable prefix %q", first)
	}
	changed := base
	changed.Value = "nuevo contenido"
	if Identity(changed) == first {
		t.Fatal("identity must change with content")
	}
	other := base
	other.Discriminator = "niebla"
	if Identity(other) == first {
		t.Fatal("identity must change with discriminator")
	}
}

func TestPolicyTable(t *testing.T) {
	policy := DefaultPolicy()
	cases := []struct {
		sev      Severity
		passes   int
		blocking bool
	}{
		{SeverityCritical, 5, true},
		{SeverityMajor, 4, true},
		{SeverityMinor, 3, false},
		{SeverityInfo, 2, false},
	}
	for _, tc := range cases {
		band := policy.Band(tc.sev)
		if band.MaxPasses != tc.passes || band.Blocking != tc.blocking {
			t.Fatalf("%s: got %+v", tc.sev, band)
		}
	}

	custom, err := NewPolicy(map[string]int{"minor": 1}, []string{"critical"})
	if err != nil {
		t.Fatalf("NewPolicy failed: %v", err)
	}
	if custom.Band(SeverityMinor).MaxPasses != 1 {
		t.Fatalf("expected minor override, got %+v", custom.Band(SeverityMinor))
	}
	if custom.IsBlocking(SeverityMajor) {
		t.Fatal("expected major to become non-blocking")
	}
	if _, err := NewPolicy(map[string]int{"urgent": 2}, nil); err == nil {
		t.Fatal("expected unknown severity error")
	}
}

func TestIsOpen(t *testing.T) {
	cases := []struct {
		decision Decision
		applyErr string
		blocking bool
		want     bool
	}{
		{DecisionAccepted, "", true, false},
		{DecisionAccepted, "", false, false},
		{DecisionAccepted, "page 3 not found", true, true},
		{DecisionRejected, "", true, true},
		{DecisionRejected, "", false, false},
		{DecisionDefer, "", true, true},
		{DecisionDefer, "", false, false},
		{DecisionPending, "", true, true},
		{DecisionPending, "", false, true},
	}
	for _, tc := range cases {
		got := IsOpen(Finding{Decision: tc.decision, ApplyError: tc.applyErr}, tc.blocking)
		if got != tc.want {
			t.Fatalf("IsOpen(%s, err=%q, blocking=%v) = %v, want %v", tc.decision, tc.applyErr, tc.blocking, got, tc.want)
		}
	}
}

func TestMetricsKeepDecisionSeparateFromConvergence(t *testing.T) {
	findings := []Finding{
		{Severity: SeverityCritical, Decision: DecisionRejected},
		{Severity: SeverityMinor, Decision: DecisionRejected},
		{Severity: SeverityMinor, Decision: DecisionAccepted},
	}
	m := ComputeMetrics(findings)
	if m.CriticalOpen != 1 || m.MinorOpen != 1 {
		t.Fatalf("unexpected metrics %+v", m)
	}
	minor := FilterSeverity(findings, SeverityMinor)
	if open := MarkOpen(minor, false); open != 0 {
		t.Fatalf("expected rejected minor to be resolved for convergence, got %d open", open)
	}
	if minor[0].Decision != DecisionRejected {
		t.Fatal("convergence must not rewrite the decision")
	}
}

func newStory() *story.Story {
	return &story.Story{StoryID: "01", Pages: []story.Page{{
		PageNumber: 1,
		Text:       story.Versioned{Original: "original", Current: ""},
		Images:     story.Images{Main: &story.ImageSlot{}},
	}}}
}

func TestApplyAcceptedSuggestion(t *testing.T) {
	st := newStory()
	findings := []Finding{{
		PageNumber:     1,
		Field:          story.FieldText,
		Decision:       DecisionAccepted,
		SelectedOption: "a",
		Suggestions:    []Suggestion{{ID: "A", ProposedValue: "original"}},
	}}
	if !Apply(st, findings) {
		t.Fatal("expected change")
	}
	if st.Pages[0].Text.Current != "original" {
		t.Fatalf("unexpected text %q", st.Pages[0].Text.Current)
	}
	if Apply(st, findings) {
		t.Fatal("second application must be a no-op")
	}
}

func TestApplySkipsUnresolvableTargets(t *testing.T) {
	st := newStory()
	findings := []Finding{
		{PageNumber: 7, Field: story.FieldText, Decision: DecisionAccepted, SelectedOption: "A",
			Suggestions: []Suggestion{{ID: "A", ProposedValue: "x"}}},
		{PageNumber: 1, Field: story.FieldSecondaryPrompt, Decision: DecisionAccepted, SelectedOption: "A",
			Suggestions: []Suggestion{{ID: "A", ProposedValue: "x"}}},
		{PageNumber: 1, Field: story.FieldText, Decision: DecisionAccepted, SelectedOption: "Z",
			Suggestions: []Suggestion{{ID: "A", ProposedValue: "x"}}},
		{PageNumber: 1, Field: story.FieldText, Decision: DecisionRejected, SelectedOption: "A",
			Suggestions: []Suggestion{{ID: "A", ProposedValue: "x"}}},
		{PageNumber: 1, Field: story.FieldMainPrompt, Decision: DecisionAccepted, SelectedOption: "A",
			Suggestions: []Suggestion{{ID: "A", ProposedValue: "prompt"}}},
	}
	if !Apply(st, findings) {
		t.Fatal("expected the valid finding to be applied")
	}
	for i := 0; i < 3; i++ {
		if findings[i].ApplyError == "" {
			t.Fatalf("finding %d: expected apply error", i)
		}
		if !IsOpen(findings[i], false) {
			t.Fatalf("finding %d: expected to remain open", i)
		}
	}
	if findings[3].ApplyError != "" || findings[4].ApplyError != "" {
		t.Fatal("unexpected apply errors on valid findings")
	}
	if st.Pages[0].Text.Current != "" {
		t.Fatal("rejected finding must not be applied")
	}
	if st.Pages[0].Images.Main.Prompt.Current != "prompt" {
		t.Fatal("expected main prompt update")
	}
}
