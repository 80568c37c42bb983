// Package decisions persists reviewer decisions per finding identity in
// {story}.choices.json. Decisions survive reruns because finding identities
// are content addressed: a finding whose content did not change finds its
// previous decision again.
package decisions

import (
	"fmt"
	"sort"
	"strings"

	"folio/internal/review"
	"folio/internal/reviewstore"
	"folio/internal/services"
)

// Notes written by the store itself.
const (
	NoteInvalidDefer     = "invalid_for_blocking:defer"
	NoteAutoBlocking     = "auto_policy:blocking_default_A"
	NoteAutoNonBlocking  = "auto_policy:non_blocking_discard"
	ResolvedByAutoPolicy = "auto_policy"
	defaultAutoOption    = "A"
)

// Doc is the persisted choices document of a story.
type Doc struct {
	SchemaVersion string                  `json:"schema_version"`
	StoryID       string                  `json:"story_id"`
	StoryRelPath  string                  `json:"story_rel_path"`
	Stage         review.Stage            `json:"stage,omitempty"`
	SeverityBand  review.Severity         `json:"severity_band,omitempty"`
	PassIndex     int                     `json:"pass_index,omitempty"`
	UpdatedAt     string                  `json:"updated_at"`
	Choices       []review.DecisionRecord `json:"choices"`
}

// Scope is the (stage, severity) band a sync covers.
type Scope struct {
	Stage     review.Stage
	Severity  review.Severity
	Blocking  bool
	PassIndex int
}

// Store reads and writes choices documents.
type Store struct {
	reviews *reviewstore.Store
}

// NewStore creates a decision store on top of the review sidecar layout.
func NewStore(reviews *reviewstore.Store) *Store {
	return &Store{reviews: reviews}
}

// Load returns the persisted decisions of a story keyed by finding id.
func (s *Store) Load(book, storyID string) (map[string]review.DecisionRecord, error) {
	doc, err := s.read(book, storyID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]review.DecisionRecord, len(doc.Choices))
	for _, rec := range doc.Choices {
		out[rec.FindingID] = rec
	}
	return out, nil
}

func (s *Store) read(book, storyID string) (*Doc, error) {
	doc := &Doc{}
	exists, err := readChoices(s.reviews.ChoicesPath(book, storyID), doc)
	if err != nil {
		return nil, err
	}
	if !exists {
		doc.SchemaVersion = reviewstore.SchemaVersion
	}
	kept := doc.Choices[:0]
	for _, rec := range doc.Choices {
		rec.FindingID = strings.TrimSpace(rec.FindingID)
		if rec.FindingID == "" {
			continue
		}
		rec.Decision = review.ParseDecision(string(rec.Decision))
		rec.SelectedOption = strings.ToUpper(strings.TrimSpace(rec.SelectedOption))
		rec.Stage, rec.Severity = scopeOf(rec)
		kept = append(kept, rec)
	}
	doc.Choices = kept
	return doc, nil
}

// scopeOf returns the band of a record, falling back to the
// stage-severity prefix of its id for rows written without one.
func scopeOf(rec review.DecisionRecord) (review.Stage, review.Severity) {
	if rec.Stage != "" && rec.Severity != "" {
		return rec.Stage, rec.Severity
	}
	parts := strings.SplitN(rec.FindingID, "-", 3)
	if len(parts) < 3 {
		return rec.Stage, rec.Severity
	}
	stage, severity := rec.Stage, rec.Severity
	if stage == "" {
		if parsed, err := review.ParseStage(parts[0]); err == nil {
			stage = parsed
		}
	}
	if severity == "" {
		if parsed, err := review.ParseSeverity(parts[1]); err == nil {
			severity = parsed
		}
	}
	return stage, severity
}

// Sync reconciles the persisted decisions with the findings currently
// produced for one band. Known identities carry their decision forward, new
// ones start pending, and records of the band whose finding disappeared are
// pruned; records of other bands are untouched. In blocking bands defer is
// not a valid outcome and reverts to pending. With auto set, pending
// findings are accepted with option A in blocking bands and rejected
// otherwise. The document is always rewritten. The returned map holds every
// record of the story.
func (s *Store) Sync(book, storyID, storyRelPath string, scope Scope, findings []review.Finding, auto bool) (map[string]review.DecisionRecord, error) {
	doc, err := s.read(book, storyID)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]review.DecisionRecord, len(doc.Choices))
	rows := make([]review.DecisionRecord, 0, len(doc.Choices)+len(findings))
	for _, rec := range doc.Choices {
		if rec.Stage == scope.Stage && rec.Severity == scope.Severity {
			existing[rec.FindingID] = rec
			continue
		}
		rows = append(rows, rec)
	}

	now := s.reviews.Now()
	seen := make(map[string]struct{}, len(findings))
	for _, f := range findings {
		if _, dup := seen[f.ID]; dup {
			continue
		}
		seen[f.ID] = struct{}{}
		rec, ok := existing[f.ID]
		if !ok {
			rec = review.DecisionRecord{FindingID: f.ID, Decision: review.DecisionPending}
		}
		rec.Stage = scope.Stage
		rec.Severity = scope.Severity
		rec.PageNumber = f.PageNumber
		rec.Category = f.Category

		if scope.Blocking && rec.Decision == review.DecisionDefer {
			rec.Decision = review.DecisionPending
			rec.SelectedOption = ""
			rec.Notes = NoteInvalidDefer
			rec.ResolvedBy = ""
			rec.ResolvedAt = ""
		}
		if auto && rec.Decision == review.DecisionPending {
			if scope.Blocking {
				rec.Decision = review.DecisionAccepted
				rec.SelectedOption = defaultAutoOption
				rec.Notes = NoteAutoBlocking
			} else {
				rec.Decision = review.DecisionRejected
				rec.SelectedOption = ""
				rec.Notes = NoteAutoNonBlocking
			}
			rec.ResolvedBy = ResolvedByAutoPolicy
			rec.ResolvedAt = now
		}
		rows = append(rows, rec)
	}

	doc.Choices = sortRecords(rows)
	doc.StoryID = storyID
	doc.StoryRelPath = storyRelPath
	doc.Stage = scope.Stage
	doc.SeverityBand = scope.Severity
	doc.PassIndex = scope.PassIndex
	if err := s.write(book, doc); err != nil {
		return nil, err
	}

	out := make(map[string]review.DecisionRecord, len(doc.Choices))
	for _, rec := range doc.Choices {
		out[rec.FindingID] = rec
	}
	return out, nil
}

// Record stores a human decision for a finding. Accepting requires an option
// the finding offers; other decisions clear the option.
func (s *Store) Record(book, storyID string, f review.Finding, decision review.Decision, option, notes, reviewer string) (review.DecisionRecord, error) {
	option = strings.ToUpper(strings.TrimSpace(option))
	switch decision {
	case review.DecisionAccepted:
		if _, ok := f.Suggestion(option); !ok {
			return review.DecisionRecord{}, services.Wrap(services.ErrValidation, "decisions", "record",
				fmt.Sprintf("finding %s has no option %q", f.ID, option), nil)
		}
	case review.DecisionRejected, review.DecisionDefer, review.DecisionPending:
		option = ""
	default:
		return review.DecisionRecord{}, services.Wrap(services.ErrValidation, "decisions", "record",
			fmt.Sprintf("unknown decision %q", decision), nil)
	}

	doc, err := s.read(book, storyID)
	if err != nil {
		return review.DecisionRecord{}, err
	}
	rec := review.DecisionRecord{
		FindingID:      f.ID,
		Stage:          f.Stage,
		Severity:       f.Severity,
		PageNumber:     f.PageNumber,
		Category:       f.Category,
		Decision:       decision,
		SelectedOption: option,
		Notes:          strings.TrimSpace(notes),
		ResolvedBy:     reviewer,
		ResolvedAt:     s.reviews.Now(),
	}
	replaced := false
	for i := range doc.Choices {
		if doc.Choices[i].FindingID == f.ID {
			doc.Choices[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Choices = sortRecords(append(doc.Choices, rec))
	}
	doc.StoryID = storyID
	if err := s.write(book, doc); err != nil {
		return review.DecisionRecord{}, err
	}
	return rec, nil
}

func (s *Store) write(book string, doc *Doc) error {
	doc.SchemaVersion = reviewstore.SchemaVersion
	doc.UpdatedAt = s.reviews.Now()
	if doc.Choices == nil {
		doc.Choices = []review.DecisionRecord{}
	}
	return writeChoices(s.reviews.ChoicesPath(book, doc.StoryID), doc)
}

func sortRecords(rows []review.DecisionRecord) []review.DecisionRecord {
	stageRank := rankOf(review.Stages)
	severityRank := rankOf(review.Severities)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if stageRank[string(a.Stage)] != stageRank[string(b.Stage)] {
			return stageRank[string(a.Stage)] < stageRank[string(b.Stage)]
		}
		if severityRank[string(a.Severity)] != severityRank[string(b.Severity)] {
			return severityRank[string(a.Severity)] < severityRank[string(b.Severity)]
		}
		if a.PageNumber != b.PageNumber {
			return a.PageNumber < b.PageNumber
		}
		return a.FindingID < b.FindingID
	})
	return rows
}

func rankOf[T ~string](values []T) map[string]int {
	out := make(map[string]int, len(values))
	for i, v := range values {
		out[string(v)] = i
	}
	return out
}
