package reviewstore

import (
	"folio/internal/review"
)

// Pipeline phases.
const (
	PhaseCascadeText   = "cascade_text"
	PhaseCascadePrompt = "cascade_prompt"
	PhaseCompleted     = "completed"
	PhaseBlocked       = "blocked"
)

// Convergence statuses of the band currently being processed.
const (
	ConvergenceInProgress = "in_progress"
	ConvergenceConverged  = "converged"
	ConvergenceExhausted  = "max_passes_reached"
)

// BandSummary is the outcome of one severity band.
type BandSummary struct {
	Converged  bool `json:"converged"`
	Passes     int  `json:"passes"`
	AlertsOpen int  `json:"alerts_open"`
	MaxPasses  int  `json:"max_passes"`
	Blocking   bool `json:"blocking"`
}

// StageSummary is the outcome of one stage cascade for one story.
type StageSummary struct {
	Stage           review.Stage                    `json:"stage"`
	Status          string                          `json:"status"`
	Severities      map[review.Severity]BandSummary `json:"severities"`
	BlockedSeverity review.Severity                 `json:"blocked_severity,omitempty"`
	Reason          string                          `json:"reason,omitempty"`
	Error           string                          `json:"error,omitempty"`
}

// Blocked reports whether the stage stopped the story.
func (s *StageSummary) Blocked() bool {
	return s != nil && s.Status == StatusBlocked
}

// StoryRow is the per-story entry of the pipeline state.
type StoryRow struct {
	StoryID      string        `json:"story_id"`
	StoryRelPath string        `json:"story_rel_path"`
	Status       string        `json:"status"`
	TextStage    *StageSummary `json:"text_stage,omitempty"`
	PromptStage  *StageSummary `json:"prompt_stage,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// BlockedStory records the story that halted the book run.
type BlockedStory struct {
	StoryID      string          `json:"story_id"`
	StoryRelPath string          `json:"story_rel_path"`
	Stage        review.Stage    `json:"stage"`
	SeverityBand review.Severity `json:"severity_band,omitempty"`
	Reason       string          `json:"reason"`
}

// Totals aggregates the book run.
type Totals struct {
	Stories      int `json:"stories"`
	Ready        int `json:"ready"`
	CriticalOpen int `json:"critical_open"`
	MajorOpen    int `json:"major_open"`
	MinorOpen    int `json:"minor_open"`
	InfoOpen     int `json:"info_open"`
}

// ContextRefs points at the context artifacts used by the run.
type ContextRefs struct {
	ContextChain   string `json:"context_chain,omitempty"`
	GlossaryMerged string `json:"glossary_merged,omitempty"`
	GlossaryTerms  int    `json:"glossary_terms"`
	CanonicalPDFs  int    `json:"canonical_pdfs"`
}

// PipelineState is the resumable checkpoint of a book run. It is overwritten
// after every controller step.
type PipelineState struct {
	SchemaVersion     string                  `json:"schema_version"`
	Pipeline          string                  `json:"pipeline"`
	RunID             string                  `json:"run_id"`
	Phase             string                  `json:"phase"`
	BookRelPath       string                  `json:"book_rel_path"`
	InboxBookTitle    string                  `json:"inbox_book_title,omitempty"`
	CurrentStoryID    string                  `json:"current_story_id,omitempty"`
	Stage             review.Stage            `json:"stage,omitempty"`
	SeverityBand      review.Severity         `json:"severity_band,omitempty"`
	PassIndex         int                     `json:"pass_index"`
	ConvergenceStatus string                  `json:"convergence_status"`
	AlertsOpen        map[review.Severity]int `json:"alerts_open"`
	Stories           []StoryRow              `json:"stories"`
	BlockedStory      *BlockedStory           `json:"blocked_story,omitempty"`
	Totals            Totals                  `json:"totals"`
	Context           ContextRefs             `json:"context"`
	StartedAt         string                  `json:"started_at"`
	GeneratedAt       string                  `json:"generated_at"`
}

func (d *PipelineState) schemaVersion() string { return d.SchemaVersion }

// PipelineName identifies the cascade in pipeline_state.json.
const PipelineName = "editorial_cascade"

// Row returns the row of a story, or nil.
func (d *PipelineState) Row(storyID string) *StoryRow {
	for i := range d.Stories {
		if d.Stories[i].StoryID == storyID {
			return &d.Stories[i]
		}
	}
	return nil
}
