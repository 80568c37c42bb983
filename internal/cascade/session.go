package cascade

import (
	"folio/internal/review"
	"folio/internal/reviewstore"
)

// session is the pipeline state of one book run. The controller threads it
// through every step and persists it at each checkpoint.
type session struct {
	book    string
	reviews *reviewstore.Store
	state   *reviewstore.PipelineState
}

func newSession(reviews *reviewstore.Store, book, inboxTitle, runID string) *session {
	return &session{
		book:    book,
		reviews: reviews,
		state: &reviewstore.PipelineState{
			RunID:             runID,
			Phase:             reviewstore.PhaseCascadeText,
			BookRelPath:       book,
			InboxBookTitle:    inboxTitle,
			ConvergenceStatus: reviewstore.ConvergenceInProgress,
			AlertsOpen:        emptyAlerts(),
			Stories:           []reviewstore.StoryRow{},
			StartedAt:         reviews.Now(),
		},
	}
}

func emptyAlerts() map[review.Severity]int {
	out := make(map[review.Severity]int, len(review.Severities))
	for _, sev := range review.Severities {
		out[sev] = 0
	}
	return out
}

// rowPending is the status of a story row before its first stage ends.
const rowPending = "pending"

func (s *session) checkpoint() error {
	return s.reviews.WritePipelineState(s.book, s.state)
}

// row returns the row of a story, appending an empty one when missing. The
// pointer is valid until the next append.
func (s *session) row(storyID, relPath string) *reviewstore.StoryRow {
	if row := s.state.Row(storyID); row != nil {
		return row
	}
	s.state.Stories = append(s.state.Stories, reviewstore.StoryRow{
		StoryID:      storyID,
		StoryRelPath: relPath,
		Status:       rowPending,
	})
	return &s.state.Stories[len(s.state.Stories)-1]
}

func (s *session) enterStage(storyID string, stage review.Stage) {
	s.state.CurrentStoryID = storyID
	s.state.Stage = stage
	s.state.SeverityBand = ""
	s.state.PassIndex = 0
	s.state.AlertsOpen = emptyAlerts()
	if stage == review.StagePrompt {
		s.state.Phase = reviewstore.PhaseCascadePrompt
	} else {
		s.state.Phase = reviewstore.PhaseCascadeText
	}
}

func (s *session) enterBand(severity review.Severity) {
	s.state.SeverityBand = severity
	s.state.PassIndex = 0
	s.state.ConvergenceStatus = reviewstore.ConvergenceInProgress
}

func (s *session) recordPass(res *PassResult) {
	s.state.PassIndex = res.PassIndex
	s.state.AlertsOpen[res.Severity] = res.AlertsOpen
	if res.Converged {
		s.state.ConvergenceStatus = reviewstore.ConvergenceConverged
	}
}

func (s *session) exhaust() {
	s.state.ConvergenceStatus = reviewstore.ConvergenceExhausted
}

func (s *session) block(row *reviewstore.StoryRow, summary *reviewstore.StageSummary) {
	reason := summary.Reason
	if reason == "" {
		reason = reviewstore.ConvergenceExhausted
	}
	s.state.Phase = reviewstore.PhaseBlocked
	s.state.BlockedStory = &reviewstore.BlockedStory{
		StoryID:      row.StoryID,
		StoryRelPath: row.StoryRelPath,
		Stage:        summary.Stage,
		SeverityBand: summary.BlockedSeverity,
		Reason:       reason,
	}
}

func (s *session) complete() {
	s.state.Phase = reviewstore.PhaseCompleted
	s.state.CurrentStoryID = ""
	s.state.Stage = ""
	s.state.SeverityBand = ""
	s.state.PassIndex = 0
	s.state.BlockedStory = nil
	s.state.ConvergenceStatus = reviewstore.ConvergenceConverged
}
