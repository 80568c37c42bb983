package cascade

import (
	"context"

	"folio/internal/audit"
	"folio/internal/decisions"
	"folio/internal/logging"
	"folio/internal/review"
	"folio/internal/reviewstore"
	"folio/internal/story"
)

// Pass modes recorded in sidecars and pass logs.
const (
	ModeDetection = "detection"
	ModeDecision  = "decision"
	ModeCascade   = "cascade"
)

// PassResult is the outcome of one pass of one severity band.
type PassResult struct {
	StoryID        string           `json:"story_id"`
	StoryRelPath   string           `json:"story_rel_path"`
	Stage          review.Stage     `json:"stage"`
	Severity       review.Severity  `json:"severity"`
	PassIndex      int              `json:"pass_index"`
	Mode           string           `json:"mode"`
	Blocking       bool             `json:"blocking"`
	Findings       []review.Finding `json:"findings"`
	Alerts         []review.Alert   `json:"alerts"`
	Metrics        review.Metrics   `json:"metrics"`
	OpenFindings   int              `json:"open_findings"`
	OpenAlerts     int              `json:"open_alerts"`
	AlertsOpen     int              `json:"alerts_open"`
	AppliedChanges bool             `json:"applied_changes"`
	Converged      bool             `json:"converged"`
}

type passRequest struct {
	book      string
	storyID   string
	stage     review.Stage
	severity  review.Severity
	passIndex int
	mode      string
	auto      bool
	apply     bool
	canon     canonContext
}

// canonContext is the resolved book context a pass audits against.
type canonContext interface {
	audit.Canon
	CanonicalReference(storyID string) string
}

// runPass detects one band, reconciles decisions, applies accepted
// suggestions, re-audits the mutated story and checks contrast. It writes the
// findings, review and contrast sidecars but not the pass log.
func (e *Engine) runPass(ctx context.Context, req passRequest) (*PassResult, error) {
	st, err := e.stories.Load(ctx, req.book, req.storyID)
	if err != nil {
		return nil, err
	}
	band := e.policy.Band(req.severity)
	relPath := e.stories.RelPath(req.book, req.storyID)

	findings := e.auditors.Detect(req.stage, st, req.severity, req.canon)
	scope := decisions.Scope{
		Stage:     req.stage,
		Severity:  req.severity,
		Blocking:  band.Blocking,
		PassIndex: req.passIndex,
	}
	records, err := e.decisions.Sync(req.book, req.storyID, relPath, scope, findings, req.auto)
	if err != nil {
		return nil, err
	}
	review.Merge(findings, records)

	changed := false
	if req.apply {
		changed = review.Apply(st, findings)
		if changed {
			findings, st, err = e.redetect(ctx, req, st, findings, records)
			if err != nil {
				return nil, err
			}
		}
	}

	result := &PassResult{
		StoryID:        req.storyID,
		StoryRelPath:   relPath,
		Stage:          req.stage,
		Severity:       req.severity,
		PassIndex:      req.passIndex,
		Mode:           req.mode,
		Blocking:       band.Blocking,
		Findings:       findings,
		AppliedChanges: changed,
	}
	result.OpenFindings = review.MarkOpen(findings, band.Blocking)
	result.Metrics = review.ComputeMetrics(findings)

	reference := req.canon.CanonicalReference(req.storyID)
	result.Alerts = e.contrast.Check(req.stage, req.severity, st, req.canon, reference)
	result.OpenAlerts = review.CountOpenAlerts(result.Alerts)
	result.AlertsOpen = result.OpenFindings + result.OpenAlerts
	result.Converged = result.AlertsOpen == 0

	if err := e.writeSidecars(req.book, result, reference); err != nil {
		return nil, err
	}

	logger := logging.WithContext(e.storyContext(ctx, req.book, req.storyID, req.stage), e.logger)
	logger.Debug("pass evaluated",
		logging.String(logging.FieldSeverity, string(req.severity)),
		logging.Int(logging.FieldPassIndex, req.passIndex),
		logging.String("mode", req.mode),
		logging.Int("findings", len(findings)),
		logging.Int("alerts_open", result.AlertsOpen),
		logging.Bool("applied_changes", changed),
	)
	return result, nil
}

// redetect persists a mutated story, reloads it and audits it again. The new
// findings are merged against the decisions already in hand so a pass never
// auto-decides findings its own mutation produced. Apply errors carry over by
// identity.
func (e *Engine) redetect(ctx context.Context, req passRequest, st *story.Story, applied []review.Finding, records map[string]review.DecisionRecord) ([]review.Finding, *story.Story, error) {
	if err := e.stories.Save(ctx, req.book, st); err != nil {
		return nil, nil, err
	}
	reloaded, err := e.stories.Load(ctx, req.book, req.storyID)
	if err != nil {
		return nil, nil, err
	}
	applyErrors := make(map[string]string)
	for _, f := range applied {
		if f.ApplyError != "" {
			applyErrors[f.ID] = f.ApplyError
		}
	}
	findings := e.auditors.Detect(req.stage, reloaded, req.severity, req.canon)
	review.Merge(findings, records)
	for i := range findings {
		if msg, ok := applyErrors[findings[i].ID]; ok {
			findings[i].ApplyError = msg
		}
	}
	return findings, reloaded, nil
}

func (e *Engine) writeSidecars(book string, res *PassResult, reference string) error {
	status := reviewstore.StatusReviewed
	if res.Blocking && res.OpenFindings > 0 {
		status = reviewstore.StatusBlocked
	}
	findingsDoc := &reviewstore.FindingsDoc{
		BookRelPath:        book,
		StoryID:            res.StoryID,
		StoryRelPath:       res.StoryRelPath,
		Stage:              res.Stage,
		SeverityBand:       res.Severity,
		PassIndex:          res.PassIndex,
		Mode:               res.Mode,
		Status:             status,
		OpenFindings:       res.OpenFindings,
		Metrics:            res.Metrics,
		CanonicalReference: reference,
		Findings:           res.Findings,
	}
	if err := e.reviews.WriteFindings(book, findingsDoc); err != nil {
		return err
	}
	if err := e.reviews.WriteReviewMarkdown(book, findingsDoc); err != nil {
		return err
	}

	contrastStatus := reviewstore.StatusOK
	if res.OpenAlerts > 0 {
		contrastStatus = reviewstore.StatusAlert
	}
	return e.reviews.WriteContrast(book, &reviewstore.ContrastDoc{
		StoryID:      res.StoryID,
		Stage:        res.Stage,
		SeverityBand: res.Severity,
		PassIndex:    res.PassIndex,
		Reference:    reference,
		AlertsOpen:   res.OpenAlerts,
		Status:       contrastStatus,
		Alerts:       res.Alerts,
	})
}

func (e *Engine) appendPassRecord(book string, res *PassResult, maxPasses int, runID string) error {
	return e.reviews.AppendPass(book, res.StoryID, reviewstore.PassRecord{
		Stage:            res.Stage,
		SeverityBand:     res.Severity,
		PassIndex:        res.PassIndex,
		Mode:             res.Mode,
		FindingsCount:    len(res.Findings),
		OpenFindings:     res.OpenFindings,
		OpenAlerts:       res.OpenAlerts,
		AlertsOpen:       res.AlertsOpen,
		AppliedChanges:   res.AppliedChanges,
		Converged:        res.Converged,
		MaxPassesReached: !res.Converged && res.PassIndex >= maxPasses,
		RunID:            runID,
	})
}
