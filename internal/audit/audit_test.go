package audit_test

import (
	"strings"
	"testing"

	"folio/internal/audit"
	"folio/internal/canon"
	"folio/internal/review"
	"folio/internal/story"
	"folio/internal/testsupport"
)

type fakeCanon struct {
	glossary []canon.Entry
	refs     []review.Reference
}

func (f fakeCanon) Glossary() []canon.Entry { return f.glossary }

func (f fakeCanon) References(string) []review.Reference { return f.refs }

const cleanText = "Vin camina por la ciudad. La bruma cubre los tejados."

func structured(text string) string {
	return audit.StructuredPrompt(text, "Vin sobre los tejados al anochecer.")
}

func categories(findings []review.Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Category)
	}
	return out
}

func TestTextAuditorCategories(t *testing.T) {
	tests := []struct {
		name     string
		page     story.Page
		severity review.Severity
		want     []string
	}{
		{
			name: "clean page",
			page: testsupport.NewPage(1, cleanText, structured(cleanText)),
			want: []string{},
		},
		{
			name:     "missing text stops other checks",
			page:     testsupport.NewPage(1, "Ã original", "", testsupport.WithCurrentText("   ")),
			severity: review.SeverityCritical,
			want:     []string{audit.CategoryMissingText},
		},
		{
			name:     "mojibake",
			page:     testsupport.NewPage(1, "Canción de cuna.", "", testsupport.WithCurrentText("CanciÃ³n de cuna.")),
			severity: review.SeverityMajor,
			want:     []string{audit.CategoryMojibake},
		},
		{
			name:     "semantic drift",
			page:     testsupport.NewPage(1, "uno dos tres cuatro cinco", "", testsupport.WithCurrentText("seis siete ocho nueve diez")),
			severity: review.SeverityMajor,
			want:     []string{audit.CategorySemanticDrift},
		},
		{
			name:     "spacing",
			page:     testsupport.NewPage(1, cleanText, "", testsupport.WithCurrentText("Vin  camina por la ciudad. La bruma cubre los tejados. ")),
			severity: review.SeverityMinor,
			want:     []string{audit.CategorySpacingCleanup},
		},
	}
	suite := audit.NewSuite(audit.DefaultOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := testsupport.NewStory("01", tt.page)
			got := categories(suite.Detect(review.StageText, st, tt.severity, nil))
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("categories = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTextAuditorSuggestions(t *testing.T) {
	suite := audit.NewSuite(audit.DefaultOptions())
	st := testsupport.NewStory("01",
		testsupport.NewPage(1, "Texto base.", "", testsupport.WithCurrentText("")),
		testsupport.NewPage(2, "Canción de cuna", "", testsupport.WithCurrentText("CanciÃ³n de cuna")),
	)
	findings := suite.Detect(review.StageText, st, "", nil)
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %v", categories(findings))
	}
	missing := findings[0]
	if missing.Severity != review.SeverityCritical || missing.Impact != "high" || !missing.Open {
		t.Fatalf("unexpected missing_text finding: %+v", missing)
	}
	if a, _ := missing.Suggestion("A"); a.ProposedValue != "Texto base." {
		t.Fatalf("option A = %q", a.ProposedValue)
	}
	if b, _ := missing.Suggestion("B"); b.ProposedValue != audit.TextPlaceholder {
		t.Fatalf("option B = %q", b.ProposedValue)
	}
	if !strings.HasPrefix(missing.ID, "text-critical-p01-missing_text-") {
		t.Fatalf("id = %q", missing.ID)
	}
	if a, _ := findings[1].Suggestion("A"); a.ProposedValue != "Canción de cuna" {
		t.Fatalf("mojibake repair = %q", a.ProposedValue)
	}
}

func TestMojibakeSuggestionsSkipNoOpRepair(t *testing.T) {
	tests := []struct {
		name     string
		original string
		current  string
		want     []string
	}{
		{"repairable", "Canción", "CanciÃ³n", []string{"Canción", "Canción", "CanciÃ³n"}},
		{"irreparable with clean original", "Vin camina.", "Vin camina \ufffd.", []string{"Vin camina.", "Vin camina \ufffd."}},
		{"irreparable without original", "", "Vin camina \ufffd.", []string{"Vin camina \ufffd."}},
		{"garbled original", "Vin \ufffd", "Vin camina \ufffd.", []string{"Vin camina \ufffd."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := testsupport.NewStory("01", testsupport.NewPage(1, tt.original, "", testsupport.WithCurrentText(tt.current)))
			findings := audit.NewSuite(audit.DefaultOptions()).Detect(review.StageText, st, review.SeverityMajor, nil)
			var mojibake *review.Finding
			for i := range findings {
				if findings[i].Category == audit.CategoryMojibake {
					mojibake = &findings[i]
				}
			}
			if mojibake == nil {
				t.Fatalf("no mojibake finding in %v", categories(findings))
			}
			got := make([]string, 0, len(mojibake.Suggestions))
			for _, s := range mojibake.Suggestions {
				got = append(got, s.ProposedValue)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("suggestions = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGlossaryForbiddenTerm(t *testing.T) {
	ref := fakeCanon{
		glossary: canon.MergeEntries([]canon.Entry{
			{Term: "bruma", Canonical: "Bruma", Forbidden: canon.TermList{"niebla", "mist"}},
		}),
		refs: []review.Reference{{Kind: canon.RefCanonicalPDF, Path: "saga/01.pdf"}},
	}
	text := "La Niebla cubre la ciudad y la niebla no se va."
	st := testsupport.NewStory("01", testsupport.NewPage(1, text, ""))

	opts := audit.DefaultOptions()
	findings := audit.NewSuite(opts).Detect(review.StageText, st, review.SeverityMajor, ref)
	if len(findings) != 1 {
		t.Fatalf("expected one finding per token, got %v", categories(findings))
	}
	f := findings[0]
	if f.Category != audit.CategoryForbiddenTerm {
		t.Fatalf("category = %q", f.Category)
	}
	a, _ := f.Suggestion("A")
	if a.ProposedValue != "La Bruma cubre la ciudad y la Bruma no se va." {
		t.Fatalf("replacement = %q", a.ProposedValue)
	}
	if len(f.References) != 1 || f.References[0].Path != "saga/01.pdf" {
		t.Fatalf("references = %+v", f.References)
	}

	opts.GlossarySeverity = review.SeverityCritical
	critical := audit.NewSuite(opts).Detect(review.StageText, st, review.SeverityCritical, ref)
	if len(critical) != 1 || critical[0].Severity != review.SeverityCritical {
		t.Fatalf("configured severity ignored: %+v", critical)
	}
}

func TestDetectIsIdempotent(t *testing.T) {
	suite := audit.NewSuite(audit.DefaultOptions())
	st := testsupport.NewStory("01",
		testsupport.NewPage(1, "uno dos", "corto TODO", testsupport.WithCurrentText("tres  cuatro")),
		testsupport.NewPage(2, "", ""),
	)
	for _, stage := range review.Stages {
		first := suite.Detect(stage, st, "", nil)
		second := suite.Detect(stage, st.Clone(), "", nil)
		if len(first) != len(second) {
			t.Fatalf("%s: finding count changed %d -> %d", stage, len(first), len(second))
		}
		for i := range first {
			if first[i].ID != second[i].ID {
				t.Fatalf("%s: id changed %s -> %s", stage, first[i].ID, second[i].ID)
			}
		}
	}
}

func TestPromptAuditorCategories(t *testing.T) {
	good := structured(cleanText)
	tests := []struct {
		name string
		page story.Page
		want []string
	}{
		{
			name: "structured prompt",
			page: testsupport.NewPage(1, cleanText, good),
			want: []string{},
		},
		{
			name: "missing prompt stops other checks",
			page: testsupport.NewPage(1, cleanText, "", testsupport.WithCurrentPrompt(" ")),
			want: []string{audit.CategoryMissingPrompt},
		},
		{
			name: "short unstructured draft",
			page: testsupport.NewPage(1, cleanText, "Vin TODO"),
			want: []string{audit.CategoryNotStructured, audit.CategoryPromptTooShort, audit.CategoryDraftMarker},
		},
		{
			name: "mojibake",
			page: testsupport.NewPage(1, cleanText, strings.Replace(good, "anatomía", "anatomÃ­a", 1)),
			want: []string{audit.CategoryMojibake},
		},
		{
			name: "template placeholder",
			page: testsupport.NewPage(1, cleanText, good+"\nNOTA: {{personaje}}"),
			want: []string{audit.CategoryDraftMarker},
		},
		{
			name: "lowercase todo is prose",
			page: testsupport.NewPage(1, cleanText, good+"\nNOTA: todo el pueblo mira"),
			want: []string{},
		},
		{
			name: "secondary slot audited",
			page: testsupport.NewPage(1, cleanText, good, testsupport.WithSecondaryPrompt("")),
			want: []string{audit.CategoryMissingPrompt},
		},
	}
	suite := audit.NewSuite(audit.DefaultOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := testsupport.NewStory("01", tt.page)
			got := categories(suite.Detect(review.StagePrompt, st, "", nil))
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("categories = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPromptSuggestionsResolveFindings(t *testing.T) {
	suite := audit.NewSuite(audit.DefaultOptions())
	st := testsupport.NewStory("01", testsupport.NewPage(1, cleanText, "Vin TODO"))
	findings := suite.Detect(review.StagePrompt, st, review.SeverityMajor, nil)
	if len(findings) != 1 {
		t.Fatalf("expected missing_structured_v1, got %v", categories(findings))
	}
	a, _ := findings[0].Suggestion("A")
	if !audit.IsStructuredPrompt(a.ProposedValue) {
		t.Fatalf("option A is not structured:\n%s", a.ProposedValue)
	}
	if !strings.Contains(a.ProposedValue, "SUJETO: Vin camina por la ciudad") {
		t.Fatalf("subject not taken from page text:\n%s", a.ProposedValue)
	}
}

func TestIsStructuredPrompt(t *testing.T) {
	prompt := audit.StructuredPrompt("", "")
	if !audit.IsStructuredPrompt(prompt) {
		t.Fatalf("template must be structured:\n%s", prompt)
	}
	lower := strings.ToLower(prompt)
	if !audit.IsStructuredPrompt(lower) {
		t.Fatal("labels must match case-insensitively")
	}
	missing := strings.Replace(prompt, "RESTRICCIONES:", "RESTRICCIONES -", 1)
	if audit.IsStructuredPrompt(missing) {
		t.Fatal("prompt without RESTRICCIONES label must not be structured")
	}
	if !strings.Contains(prompt, "SUJETO: Personaje principal de la página.") {
		t.Fatalf("fallback subject missing:\n%s", prompt)
	}
}

func TestStripDraftMarkers(t *testing.T) {
	auditor := audit.NewPromptAuditor(audit.DefaultOptions())
	got := auditor.StripDraftMarkers("SUJETO: Vin TODO\nESCENA: {{escena}}\nFIXME")
	if got != "SUJETO: Vin\nESCENA:" {
		t.Fatalf("stripped = %q", got)
	}
	if auditor.HasDraftMarkers(got) {
		t.Fatal("markers remain after strip")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithGlossarySeverity("critical"))
	opts, err := audit.OptionsFromConfig(cfg.Audit)
	if err != nil {
		t.Fatalf("OptionsFromConfig: %v", err)
	}
	if opts.GlossarySeverity != review.SeverityCritical || opts.PromptMinLength != 24 {
		t.Fatalf("opts = %+v", opts)
	}
	cfg.Audit.GlossarySeverity = "urgent"
	if _, err := audit.OptionsFromConfig(cfg.Audit); err == nil {
		t.Fatal("expected invalid severity error")
	}
}
