package cascade_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"folio/internal/audit"
	"folio/internal/cascade"
	"folio/internal/config"
	"folio/internal/logging"
	"folio/internal/review"
	"folio/internal/reviewstore"
	"folio/internal/services"
	"folio/internal/story"
	"folio/internal/testsupport"
)

const (
	book     = "cosmere/nacidos"
	pageText = "Vin camina por los tejados."
)

var cleanPrompt = audit.StructuredPrompt(pageText, "Tejados de Luthadel bajo la bruma.")

func newEngine(t *testing.T, cfg *config.Config) *cascade.Engine {
	t.Helper()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := 0
	engine, err := cascade.NewEngine(cfg, logging.NewNop(),
		cascade.WithClock(func() time.Time { return fixed }),
		cascade.WithRunIDs(func() string {
			runs++
			return fmt.Sprintf("run-%d", runs)
		}),
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func cleanPage(n int, opts ...testsupport.PageOption) story.Page {
	return testsupport.NewPage(n, pageText, cleanPrompt, opts...)
}

func findingIDs(findings []review.Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.ID)
	}
	return out
}

func TestDetectionIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SaveStory(t, cfg, book, testsupport.NewStory("01",
		cleanPage(1, testsupport.WithCurrentText("Ã‰l  observa la ceniza")),
		cleanPage(2, testsupport.WithCurrentText("")),
	))
	engine := newEngine(t, cfg)
	ctx := context.Background()

	first, err := engine.RunDetectionPass(ctx, book, "01", review.StageText, review.SeverityMajor, 1)
	if err != nil {
		t.Fatalf("first detection: %v", err)
	}
	second, err := engine.RunDetectionPass(ctx, book, "01", review.StageText, review.SeverityMajor, 1)
	if err != nil {
		t.Fatalf("second detection: %v", err)
	}
	a, b := findingIDs(first.Findings), findingIDs(second.Findings)
	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("findings differ: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("findings differ: %v vs %v", a, b)
		}
	}
	if first.AppliedChanges || second.AppliedChanges {
		t.Fatal("detection must not modify the story")
	}
	if got := testsupport.LoadStory(t, cfg, book, "01").Pages[0].Text.Current; got != "Ã‰l  observa la ceniza" {
		t.Fatalf("story modified: %q", got)
	}
	passes, err := engine.Passes(book, "01")
	if err != nil {
		t.Fatalf("Passes: %v", err)
	}
	if len(passes.Passes) != 0 {
		t.Fatalf("detection logged passes: %+v", passes.Passes)
	}
}

func TestDecisionSurvivesRedetection(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SaveStory(t, cfg, book, testsupport.NewStory("01",
		cleanPage(1, testsupport.WithOriginalText("uno dos tres cuatro"), testsupport.WithCurrentText("cinco seis siete ocho")),
	))
	engine := newEngine(t, cfg)
	ctx := context.Background()

	res, err := engine.RunDetectionPass(ctx, book, "01", review.StageText, review.SeverityMajor, 1)
	if err != nil {
		t.Fatalf("detection: %v", err)
	}
	if len(res.Findings) != 1 || res.Findings[0].Category != audit.CategorySemanticDrift {
		t.Fatalf("findings = %+v", res.Findings)
	}
	id := res.Findings[0].ID
	rec, err := engine.Choose(ctx, cascade.ChoiceRequest{
		Book: book, StoryID: "01", FindingID: id,
		Decision: review.DecisionAccepted, Option: "b",
	})
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if rec.SelectedOption != "B" || rec.ResolvedBy != "tester" {
		t.Fatalf("record = %+v", rec)
	}

	again, err := engine.RunDetectionPass(ctx, book, "01", review.StageText, review.SeverityMajor, 2)
	if err != nil {
		t.Fatalf("detection: %v", err)
	}
	got := again.Findings[0]
	if got.ID != id || got.Decision != review.DecisionAccepted || got.SelectedOption != "B" || got.Open {
		t.Fatalf("decision not carried: %+v", got)
	}
}

func TestChooseRefusesDeferInBlockingBand(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SaveStory(t, cfg, book, testsupport.NewStory("01", cleanPage(1, testsupport.WithCurrentText(""))))
	engine := newEngine(t, cfg)
	ctx := context.Background()

	res, err := engine.RunDetectionPass(ctx, book, "01", review.StageText, review.SeverityCritical, 1)
	if err != nil {
		t.Fatalf("detection: %v", err)
	}
	_, err = engine.Choose(ctx, cascade.ChoiceRequest{
		Book: book, StoryID: "01", FindingID: res.Findings[0].ID, Decision: review.DecisionDefer,
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = engine.Choose(ctx, cascade.ChoiceRequest{
		Book: book, StoryID: "01", FindingID: "text-critical-p01-missing_text-000000000000", Decision: review.DecisionRejected,
	})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMissingTextAcceptedConvergesOnSecondPass(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithManualDecisions())
	testsupport.SaveStory(t, cfg, book, testsupport.NewStory("01", cleanPage(1, testsupport.WithCurrentText(""))))
	engine := newEngine(t, cfg)
	ctx := context.Background()

	first, err := engine.RunDecisionPass(ctx, book, "01", review.StageText, review.SeverityCritical, 1)
	if err != nil {
		t.Fatalf("pass 1: %v", err)
	}
	if first.Converged || first.OpenFindings != 1 || first.OpenAlerts != 1 {
		t.Fatalf("pass 1 = %+v", first)
	}
	if st := testsupport.LoadStory(t, cfg, book, "01"); st.Status != story.StatusTextBlocked {
		t.Fatalf("status after pass 1 = %s", st.Status)
	}
	if first.Findings[0].Category != audit.CategoryMissingText {
		t.Fatalf("finding = %+v", first.Findings[0])
	}

	if _, err := engine.Choose(ctx, cascade.ChoiceRequest{
		Book: book, StoryID: "01", FindingID: first.Findings[0].ID,
		Decision: review.DecisionAccepted, Option: "A",
	}); err != nil {
		t.Fatalf("Choose: %v", err)
	}

	second, err := engine.RunDecisionPass(ctx, book, "01", review.StageText, review.SeverityCritical, 2)
	if err != nil {
		t.Fatalf("pass 2: %v", err)
	}
	if !second.Converged || second.AlertsOpen != 0 || !second.AppliedChanges {
		t.Fatalf("pass 2 = %+v", second)
	}
	st := testsupport.LoadStory(t, cfg, book, "01")
	if st.Pages[0].Text.Current != pageText || st.Status != story.StatusTextReviewed {
		t.Fatalf("story = %q %s", st.Pages[0].Text.Current, st.Status)
	}

	major, err := engine.RunDecisionPass(ctx, book, "01", review.StageText, review.SeverityMajor, 1)
	if err != nil {
		t.Fatalf("major pass: %v", err)
	}
	if !major.Converged {
		t.Fatalf("major pass = %+v", major)
	}

	log, err := engine.Passes(book, "01")
	if err != nil {
		t.Fatalf("Passes: %v", err)
	}
	if len(log.Passes) != 3 || log.Passes[1].PassIndex != 2 || !log.Passes[1].Converged || log.Passes[1].Mode != cascade.ModeDecision {
		t.Fatalf("passes = %+v", log.Passes)
	}
}

func TestAutoDecideStructuresPrompt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SaveStory(t, cfg, book, testsupport.NewStory("01",
		testsupport.NewPage(1, pageText, "Vin observa la bruma desde los tejados de Luthadel."),
	))
	engine := newEngine(t, cfg)
	ctx := context.Background()

	state, err := engine.RunFullCascade(ctx, book, engine.DefaultCascadeOptions())
	if err != nil {
		t.Fatalf("RunFullCascade: %v", err)
	}
	if state.Phase != reviewstore.PhaseCompleted {
		t.Fatalf("phase = %s, blocked = %+v", state.Phase, state.BlockedStory)
	}
	st := testsupport.LoadStory(t, cfg, book, "01")
	if !audit.IsStructuredPrompt(st.Pages[0].Images.Main.Prompt.Current) {
		t.Fatalf("prompt not structured: %q", st.Pages[0].Images.Main.Prompt.Current)
	}
	if st.Status != story.StatusReady {
		t.Fatalf("status = %s", st.Status)
	}
	major := state.Stories[0].PromptStage.Severities[review.SeverityMajor]
	if !major.Converged || major.Passes != 1 {
		t.Fatalf("prompt major band = %+v", major)
	}

	doc, err := engine.RunContrast(ctx, book, "01", review.StagePrompt, review.SeverityMajor)
	if err != nil {
		t.Fatalf("RunContrast: %v", err)
	}
	if doc.AlertsOpen != 0 || doc.Status != reviewstore.StatusOK || doc.PassIndex != 0 {
		t.Fatalf("contrast = %+v", doc)
	}
}

func TestForbiddenTermBlocksAfterBudget(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithGlossarySeverity("critical"))
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.LibraryDir, "cosmere", "glossary.yaml"),
		"entries:\n  - term: Mistborn\n    canonical: Mistborn\n    forbidden: mist\n")
	testsupport.SaveStory(t, cfg, book, testsupport.NewStory("01", testsupport.NewPage(1, "La mist cae.", cleanPrompt)))
	testsupport.SaveStory(t, cfg, book, testsupport.NewStory("02", cleanPage(1)))
	engine := newEngine(t, cfg)

	state, err := engine.RunFullCascade(context.Background(), book, engine.DefaultCascadeOptions())
	if err != nil {
		t.Fatalf("RunFullCascade: %v", err)
	}
	if state.Phase != reviewstore.PhaseBlocked || state.BlockedStory == nil {
		t.Fatalf("phase = %s", state.Phase)
	}
	if state.BlockedStory.StoryID != "01" || state.BlockedStory.SeverityBand != review.SeverityCritical {
		t.Fatalf("blocked story = %+v", state.BlockedStory)
	}
	row := state.Row("01")
	if row.Status != string(story.StatusTextBlocked) || row.PromptStage != nil {
		t.Fatalf("row = %+v", row)
	}
	summary := row.TextStage
	if summary.Status != reviewstore.StatusBlocked || summary.BlockedSeverity != review.SeverityCritical {
		t.Fatalf("summary = %+v", summary)
	}
	if _, ran := summary.Severities[review.SeverityMajor]; ran {
		t.Fatal("major band must not run after a blocked critical band")
	}
	if state.Row("02") != nil {
		t.Fatal("later stories must not be processed")
	}

	log, err := engine.Passes(book, "01")
	if err != nil {
		t.Fatalf("Passes: %v", err)
	}
	if len(log.Passes) != 5 {
		t.Fatalf("expected 5 passes, got %d", len(log.Passes))
	}
	last := log.Passes[4]
	if last.PassIndex != 5 || !last.MaxPassesReached || last.Converged || last.RunID != "run-1" {
		t.Fatalf("last pass = %+v", last)
	}
	if st := testsupport.LoadStory(t, cfg, book, "01"); st.Status != story.StatusTextBlocked {
		t.Fatalf("status = %s", st.Status)
	}
	if state.ConvergenceStatus != reviewstore.ConvergenceExhausted {
		t.Fatalf("convergence = %s", state.ConvergenceStatus)
	}
}

func TestNonBlockingBandExhaustionProceeds(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithManualDecisions())
	spaced := "Vin  camina por los tejados."
	testsupport.SaveStory(t, cfg, book, testsupport.NewStory("01", testsupport.NewPage(1, spaced, cleanPrompt)))
	engine := newEngine(t, cfg)

	opts := engine.DefaultCascadeOptions()
	if opts.AutoDecide {
		t.Fatal("manual config should disable auto decisions")
	}
	state, err := engine.RunFullCascade(context.Background(), book, opts)
	if err != nil {
		t.Fatalf("RunFullCascade: %v", err)
	}
	if state.Phase != reviewstore.PhaseCompleted {
		t.Fatalf("phase = %s, blocked = %+v", state.Phase, state.BlockedStory)
	}
	text := state.Stories[0].TextStage
	minor := text.Severities[review.SeverityMinor]
	if text.Status != reviewstore.StatusReviewed || minor.Converged || minor.Passes != 3 {
		t.Fatalf("text stage = %+v", text)
	}
	if state.Stories[0].Status != string(story.StatusReady) || state.Totals.Ready != 1 || state.Totals.MinorOpen != 1 {
		t.Fatalf("row = %+v totals = %+v", state.Stories[0], state.Totals)
	}
	if got := testsupport.LoadStory(t, cfg, book, "01").Pages[0].Text.Current; got != spaced {
		t.Fatalf("pending findings must not change text: %q", got)
	}
}

func TestIrreparableMojibakeBlocksText(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	garbled := "Vin camina por los tejados \ufffd."
	testsupport.SaveStory(t, cfg, book, testsupport.NewStory("01", testsupport.NewPage(1, garbled, cleanPrompt)))
	engine := newEngine(t, cfg)

	state, err := engine.RunFullCascade(context.Background(), book, engine.DefaultCascadeOptions())
	if err != nil {
		t.Fatalf("RunFullCascade: %v", err)
	}
	if state.Phase != reviewstore.PhaseBlocked || state.BlockedStory == nil || state.BlockedStory.SeverityBand != review.SeverityMajor {
		t.Fatalf("phase = %s blocked = %+v", state.Phase, state.BlockedStory)
	}
	row := state.Row("01")
	if row.Status != string(story.StatusTextBlocked) {
		t.Fatalf("row = %+v", row)
	}
	major := row.TextStage.Severities[review.SeverityMajor]
	if major.Converged || major.Passes != 4 || major.AlertsOpen == 0 {
		t.Fatalf("major band = %+v", major)
	}
	if got := testsupport.LoadStory(t, cfg, book, "01").Pages[0].Text.Current; got != garbled {
		t.Fatalf("text = %q", got)
	}

	doc, exists, err := engine.Reviews().ReadContrast(book, "01")
	if err != nil || !exists {
		t.Fatalf("ReadContrast: %v %v", exists, err)
	}
	if doc.Status != reviewstore.StatusAlert || len(doc.Alerts) != 1 || doc.Alerts[0].ID != "contrast-text-major-p01-mojibake" {
		t.Fatalf("contrast = %+v", doc)
	}
}

func TestApplyErrorSurvivesRedetection(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithManualDecisions())
	testsupport.SaveStory(t, cfg, book, testsupport.NewStory("01",
		testsupport.NewPage(1, "Ã‰l observa la ceniza", cleanPrompt),
		cleanPage(2, testsupport.WithOriginalText("uno dos tres cuatro"), testsupport.WithCurrentText("cinco seis siete ocho")),
	))
	engine := newEngine(t, cfg)
	ctx := context.Background()

	detected, err := engine.RunDetectionPass(ctx, book, "01", review.StageText, review.SeverityMajor, 1)
	if err != nil {
		t.Fatalf("detection: %v", err)
	}
	var repairID, driftID string
	for _, f := range detected.Findings {
		switch {
		case f.PageNumber == 1 && f.Category == audit.CategoryMojibake:
			repairID = f.ID
		case f.PageNumber == 2 && f.Category == audit.CategorySemanticDrift:
			driftID = f.ID
		}
	}
	if repairID == "" || driftID == "" || len(detected.Findings) != 2 {
		t.Fatalf("findings = %+v", detected.Findings)
	}

	choices := map[string]any{
		"schema_version": "2.0",
		"story_id":       "01",
		"choices": []map[string]any{
			{"finding_id": repairID, "stage": "text", "severity": "major", "decision": "accepted", "selected_option": "A"},
			{"finding_id": driftID, "stage": "text", "severity": "major", "decision": "accepted", "selected_option": "Z"},
		},
	}
	data, err := json.Marshal(choices)
	if err != nil {
		t.Fatalf("marshal choices: %v", err)
	}
	testsupport.WriteFile(t, engine.Reviews().ChoicesPath(book, "01"), string(data))

	res, err := engine.RunDecisionPass(ctx, book, "01", review.StageText, review.SeverityMajor, 1)
	if err != nil {
		t.Fatalf("decision pass: %v", err)
	}
	if !res.AppliedChanges {
		t.Fatal("expected the encoding repair to be applied")
	}
	if got := testsupport.LoadStory(t, cfg, book, "01").Pages[0].Text.Current; got != "Él observa la ceniza" {
		t.Fatalf("page 1 text = %q", got)
	}
	if len(res.Findings) != 1 || res.Findings[0].ID != driftID {
		t.Fatalf("findings after redetection = %+v", res.Findings)
	}
	drift := res.Findings[0]
	if drift.Decision != review.DecisionAccepted || drift.ApplyError == "" || !drift.Open {
		t.Fatalf("unresolvable finding = %+v", drift)
	}
	if res.OpenFindings != 1 || res.Converged {
		t.Fatalf("open = %d converged = %v", res.OpenFindings, res.Converged)
	}

	doc, _, err := engine.Reviews().ReadFindings(book, "01")
	if err != nil {
		t.Fatalf("ReadFindings: %v", err)
	}
	if len(doc.Findings) != 1 || doc.Findings[0].ApplyError == "" {
		t.Fatalf("persisted findings = %+v", doc.Findings)
	}
}

func TestResumeContinuesBlockedStory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithManualDecisions())
	testsupport.SaveStory(t, cfg, book, testsupport.NewStory("01", cleanPage(1, testsupport.WithCurrentText(""))))
	testsupport.SaveStory(t, cfg, book, testsupport.NewStory("02", cleanPage(1)))
	engine := newEngine(t, cfg)
	ctx := context.Background()
	opts := engine.DefaultCascadeOptions()

	blocked, err := engine.RunFullCascade(ctx, book, opts)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if blocked.Phase != reviewstore.PhaseBlocked || blocked.CurrentStoryID != "01" || blocked.SeverityBand != review.SeverityCritical {
		t.Fatalf("first run state = %+v", blocked)
	}

	audited, err := engine.RunAudit(ctx, book, "01", review.StageText, review.SeverityCritical)
	if err != nil {
		t.Fatalf("RunAudit: %v", err)
	}
	if _, err := engine.Choose(ctx, cascade.ChoiceRequest{
		Book: book, StoryID: "01", FindingID: audited.Findings[0].ID,
		Decision: review.DecisionAccepted, Option: "A",
	}); err != nil {
		t.Fatalf("Choose: %v", err)
	}

	opts.Resume = true
	resumed, err := engine.RunFullCascade(ctx, book, opts)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Phase != reviewstore.PhaseCompleted || resumed.Totals.Ready != 2 {
		t.Fatalf("resumed state = %+v", resumed)
	}
	critical := resumed.Row("01").TextStage.Severities[review.SeverityCritical]
	if !critical.Converged || critical.Passes != 1 {
		t.Fatalf("critical band = %+v", critical)
	}

	again, err := engine.RunFullCascade(ctx, book, opts)
	if err != nil {
		t.Fatalf("completed resume: %v", err)
	}
	if again.RunID != resumed.RunID {
		t.Fatalf("completed run was repeated: %s vs %s", again.RunID, resumed.RunID)
	}
}

func TestBookLockRejectsConcurrentRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.SaveStory(t, cfg, book, testsupport.NewStory("01", cleanPage(1)))
	engine := newEngine(t, cfg)

	reviews := reviewstore.New(cfg.Paths.LibraryDir)
	if err := reviews.EnsureReviewsDir(book); err != nil {
		t.Fatalf("EnsureReviewsDir: %v", err)
	}
	held := flock.New(reviews.LockPath(book))
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	defer func() { _ = held.Unlock() }()

	_, err = engine.RunFullCascade(context.Background(), book, engine.DefaultCascadeOptions())
	if !errors.Is(err, services.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestOperationsValidateInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := newEngine(t, cfg)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
	}{
		{"bad story id", func() error {
			_, err := engine.RunAudit(ctx, book, "1", review.StageText, "")
			return err
		}},
		{"escaping book", func() error {
			_, err := engine.RunAudit(ctx, "../x", "01", review.StageText, "")
			return err
		}},
		{"unknown stage", func() error {
			_, err := engine.RunDetectionPass(ctx, book, "01", review.Stage("layout"), review.SeverityMajor, 1)
			return err
		}},
		{"missing severity", func() error {
			_, err := engine.RunDecisionPass(ctx, book, "01", review.StageText, "", 1)
			return err
		}},
		{"zero pass index", func() error {
			_, err := engine.RunDecisionPass(ctx, book, "01", review.StageText, review.SeverityMinor, 0)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestMalformedStoryBlocksRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.LibraryDir, "cosmere", "nacidos", "01.json"), "{not json")
	engine := newEngine(t, cfg)

	state, err := engine.RunFullCascade(context.Background(), book, engine.DefaultCascadeOptions())
	if err != nil {
		t.Fatalf("RunFullCascade: %v", err)
	}
	row := state.Row("01")
	if state.Phase != reviewstore.PhaseBlocked || row == nil || row.Error == "" {
		t.Fatalf("state = %+v", state)
	}
	if state.BlockedStory.Reason != "input_error" {
		t.Fatalf("reason = %s", state.BlockedStory.Reason)
	}
}
