package reviewstore

import (
	"folio/internal/review"
)

// Status values of a stage review document.
const (
	StatusReviewed = "reviewed"
	StatusBlocked  = "blocked"
	StatusOK       = "ok"
	StatusAlert    = "alert"
)

// FindingsDoc is the last findings view of one story band.
type FindingsDoc struct {
	SchemaVersion      string           `json:"schema_version"`
	BookRelPath        string           `json:"book_rel_path"`
	StoryID            string           `json:"story_id"`
	StoryRelPath       string           `json:"story_rel_path"`
	Stage              review.Stage     `json:"stage"`
	SeverityBand       review.Severity  `json:"severity_band"`
	PassIndex          int              `json:"pass_index"`
	Mode               string           `json:"mode"`
	Status             string           `json:"status"`
	OpenFindings       int              `json:"open_findings"`
	Metrics            review.Metrics   `json:"metrics"`
	CanonicalReference string           `json:"canonical_reference,omitempty"`
	Findings           []review.Finding `json:"findings"`
	GeneratedAt        string           `json:"generated_at"`
}

func (d *FindingsDoc) schemaVersion() string { return d.SchemaVersion }

// ContrastDoc is the last contrast view of one story band.
type ContrastDoc struct {
	SchemaVersion string          `json:"schema_version"`
	StoryID       string          `json:"story_id"`
	Stage         review.Stage    `json:"stage"`
	SeverityBand  review.Severity `json:"severity_band"`
	PassIndex     int             `json:"pass_index"`
	Reference     string          `json:"reference,omitempty"`
	AlertsOpen    int             `json:"alerts_open"`
	Status        string          `json:"status"`
	Alerts        []review.Alert  `json:"alerts"`
	GeneratedAt   string          `json:"generated_at"`
}

func (d *ContrastDoc) schemaVersion() string { return d.SchemaVersion }

// PassRecord summarizes one pass of one severity band.
type PassRecord struct {
	Stage            review.Stage    `json:"stage"`
	SeverityBand     review.Severity `json:"severity_band"`
	PassIndex        int             `json:"pass_index"`
	Mode             string          `json:"mode"`
	FindingsCount    int             `json:"findings_count"`
	OpenFindings     int             `json:"open_findings"`
	OpenAlerts       int             `json:"open_alerts"`
	AlertsOpen       int             `json:"alerts_open"`
	AppliedChanges   bool            `json:"applied_changes"`
	Converged        bool            `json:"converged"`
	MaxPassesReached bool            `json:"max_passes_reached"`
	RunID            string          `json:"run_id,omitempty"`
	Timestamp        string          `json:"timestamp"`
}

// PassLog is the append-only pass history of one story.
type PassLog struct {
	SchemaVersion string       `json:"schema_version"`
	StoryID       string       `json:"story_id"`
	Passes        []PassRecord `json:"passes"`
}

func (d *PassLog) schemaVersion() string { return d.SchemaVersion }
