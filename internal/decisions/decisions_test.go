package decisions

import (
	"os"
	"testing"
	"time"

	"folio/internal/review"
	"folio/internal/reviewstore"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	reviews := reviewstore.New(t.TempDir()).WithClock(func() time.Time {
		return time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	})
	return NewStore(reviews)
}

func finding(stage review.Stage, sev review.Severity, page int, value string) review.Finding {
	return review.NewFinding(review.Subject{
		Stage:      stage,
		Severity:   sev,
		PageNumber: page,
		Category:   "spacing_cleanup",
		Field:      "text.current",
		Value:      value,
	}, "evidence", []review.Suggestion{
		{ID: "A", Label: "fix", ProposedValue: "fixed"},
		{ID: "B", Label: "keep", ProposedValue: value},
	})
}

func TestSyncCreatesPendingAndIsIdempotent(t *testing.T) {
	store := newStore(t)
	scope := Scope{Stage: review.StageText, Severity: review.SeverityMinor, PassIndex: 1}
	findings := []review.Finding{finding(review.StageText, review.SeverityMinor, 1, "a  b")}

	first, err := store.Sync("saga", "01", "saga/01.json", scope, findings, false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	rec := first[findings[0].ID]
	if rec.Decision != review.DecisionPending || rec.Stage != review.StageText || rec.Severity != review.SeverityMinor {
		t.Fatalf("unexpected record %+v", rec)
	}

	path := store.reviews.ChoicesPath("saga", "01")
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read choices: %v", err)
	}
	if _, err := store.Sync("saga", "01", "saga/01.json", scope, findings, false); err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read choices: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("sync is not idempotent:\n%s\n---\n%s", before, after)
	}
}

func TestSyncCarriesDecisionsAndPrunesWithinScope(t *testing.T) {
	store := newStore(t)
	minor := Scope{Stage: review.StageText, Severity: review.SeverityMinor}
	major := Scope{Stage: review.StageText, Severity: review.SeverityMajor, Blocking: true}
	keep := finding(review.StageText, review.SeverityMinor, 1, "a  b")
	stale := finding(review.StageText, review.SeverityMinor, 2, "c  d")
	other := finding(review.StageText, review.SeverityMajor, 3, "e")

	if _, err := store.Sync("saga", "01", "", minor, []review.Finding{keep, stale}, false); err != nil {
		t.Fatalf("Sync minor: %v", err)
	}
	if _, err := store.Sync("saga", "01", "", major, []review.Finding{other}, false); err != nil {
		t.Fatalf("Sync major: %v", err)
	}
	if _, err := store.Record("saga", "01", keep, review.DecisionAccepted, "b", "looks right", "ana"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	records, err := store.Sync("saga", "01", "", minor, []review.Finding{keep}, false)
	if err != nil {
		t.Fatalf("resync: %v", err)
	}
	if _, ok := records[stale.ID]; ok {
		t.Fatal("stale record of the same band should be pruned")
	}
	if _, ok := records[other.ID]; !ok {
		t.Fatal("record of another band must survive")
	}
	got := records[keep.ID]
	if got.Decision != review.DecisionAccepted || got.SelectedOption != "B" || got.ResolvedBy != "ana" {
		t.Fatalf("decision not carried forward: %+v", got)
	}
}

func TestSyncCoercesDeferInBlockingBands(t *testing.T) {
	store := newStore(t)
	f := finding(review.StageText, review.SeverityCritical, 1, "")
	scope := Scope{Stage: review.StageText, Severity: review.SeverityCritical, Blocking: true}
	if _, err := store.Record("saga", "01", f, review.DecisionDefer, "", "", "ana"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	records, err := store.Sync("saga", "01", "", scope, []review.Finding{f}, false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	rec := records[f.ID]
	if rec.Decision != review.DecisionPending || rec.Notes != NoteInvalidDefer {
		t.Fatalf("defer not coerced: %+v", rec)
	}

	nonBlocking := finding(review.StageText, review.SeverityInfo, 1, "x")
	if _, err := store.Record("saga", "01", nonBlocking, review.DecisionDefer, "", "", "ana"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	records, err = store.Sync("saga", "01", "", Scope{Stage: review.StageText, Severity: review.SeverityInfo}, []review.Finding{nonBlocking}, false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if records[nonBlocking.ID].Decision != review.DecisionDefer {
		t.Fatalf("defer must survive in non-blocking bands: %+v", records[nonBlocking.ID])
	}
}

func TestSyncAutoPolicy(t *testing.T) {
	store := newStore(t)
	critical := finding(review.StageText, review.SeverityCritical, 1, "")
	minor := finding(review.StageText, review.SeverityMinor, 1, "a  b")

	records, err := store.Sync("saga", "01", "", Scope{Stage: review.StageText, Severity: review.SeverityCritical, Blocking: true}, []review.Finding{critical}, true)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	rec := records[critical.ID]
	if rec.Decision != review.DecisionAccepted || rec.SelectedOption != "A" || rec.Notes != NoteAutoBlocking || rec.ResolvedBy != ResolvedByAutoPolicy {
		t.Fatalf("blocking auto policy: %+v", rec)
	}
	if rec.ResolvedAt != "2026-05-01T09:30:00Z" {
		t.Fatalf("resolved_at = %q", rec.ResolvedAt)
	}

	records, err = store.Sync("saga", "01", "", Scope{Stage: review.StageText, Severity: review.SeverityMinor}, []review.Finding{minor}, true)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	rec = records[minor.ID]
	if rec.Decision != review.DecisionRejected || rec.SelectedOption != "" || rec.Notes != NoteAutoNonBlocking {
		t.Fatalf("non-blocking auto policy: %+v", rec)
	}
}

func TestSyncAutoDoesNotOverrideHumanDecisions(t *testing.T) {
	store := newStore(t)
	f := finding(review.StageText, review.SeverityMajor, 1, "x")
	if _, err := store.Record("saga", "01", f, review.DecisionRejected, "A", "no", "ana"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	records, err := store.Sync("saga", "01", "", Scope{Stage: review.StageText, Severity: review.SeverityMajor, Blocking: true}, []review.Finding{f}, true)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rec := records[f.ID]; rec.Decision != review.DecisionRejected || rec.SelectedOption != "" {
		t.Fatalf("human rejection overridden: %+v", rec)
	}
}

func TestRecordValidation(t *testing.T) {
	store := newStore(t)
	f := finding(review.StageText, review.SeverityMinor, 1, "a  b")
	if _, err := store.Record("saga", "01", f, review.DecisionAccepted, "Z", "", "ana"); err == nil {
		t.Fatal("expected error for unknown option")
	}
	if _, err := store.Record("saga", "01", f, review.Decision("maybe"), "", "", "ana"); err == nil {
		t.Fatal("expected error for unknown decision")
	}
	if _, err := store.Record("saga", "01", f, review.DecisionAccepted, " a ", "", "ana"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	loaded, err := store.Load("saga", "01")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded[f.ID].SelectedOption != "A" {
		t.Fatalf("loaded = %+v", loaded[f.ID])
	}
}

func TestLegacyRowsScopedByIDPrefix(t *testing.T) {
	store := newStore(t)
	f := finding(review.StageText, review.SeverityMinor, 1, "a  b")
	path := store.reviews.ChoicesPath("saga", "01")
	if err := os.MkdirAll(store.reviews.ReviewsDir("saga"), 0o755); err != nil {
		t.Fatal(err)
	}
	legacy := `{"schema_version":"2.0","choices":[{"finding_id":"` + f.ID + `","decision":"ACCEPTED","selected_option":"a"},{"finding_id":"prompt-major-p01-x-1"}]}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}
	records, err := store.Sync("saga", "01", "", Scope{Stage: review.StageText, Severity: review.SeverityMinor}, []review.Finding{f}, false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if records[f.ID].Decision != review.DecisionAccepted || records[f.ID].SelectedOption != "A" {
		t.Fatalf("legacy row not carried: %+v", records[f.ID])
	}
	if _, ok := records["prompt-major-p01-x-1"]; !ok {
		t.Fatal("legacy row of another band pruned")
	}

	if err := os.WriteFile(path, []byte(`{"schema_version":"3.1","choices":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load("saga", "01"); err == nil {
		t.Fatal("expected schema version error")
	}
}
