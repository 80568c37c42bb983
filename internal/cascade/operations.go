package cascade

import (
	"context"
	"fmt"

	"folio/internal/canon"
	"folio/internal/logging"
	"folio/internal/review"
	"folio/internal/reviewstore"
	"folio/internal/services"
	"folio/internal/story"
)

// AuditResult is the read-only view of a story's findings.
type AuditResult struct {
	StoryID      string           `json:"story_id"`
	StoryRelPath string           `json:"story_rel_path"`
	Stage        review.Stage     `json:"stage"`
	Severity     review.Severity  `json:"severity,omitempty"`
	Findings     []review.Finding `json:"findings"`
	Metrics      review.Metrics   `json:"metrics"`
	OpenFindings int              `json:"open_findings"`
}

// ChoiceRequest is a human decision on one finding.
type ChoiceRequest struct {
	Book      string
	StoryID   string
	FindingID string
	Decision  review.Decision
	Option    string
	Notes     string
}

// RunAudit detects the findings of a story without writing anything.
// Persisted decisions are merged onto the findings. An empty severity audits
// every band of the stage.
func (e *Engine) RunAudit(ctx context.Context, book, storyID string, stage review.Stage, severity review.Severity) (*AuditResult, error) {
	book, err := validateTarget(book, storyID)
	if err != nil {
		return nil, err
	}
	if err := validateBand(stage, severity, true); err != nil {
		return nil, err
	}
	c, err := e.resolveContext(ctx, book, "")
	if err != nil {
		return nil, err
	}
	return e.audit(ctx, book, storyID, stage, severity, c)
}

func (e *Engine) audit(ctx context.Context, book, storyID string, stage review.Stage, severity review.Severity, c *canon.Context) (*AuditResult, error) {
	st, err := e.stories.Load(ctx, book, storyID)
	if err != nil {
		return nil, err
	}
	records, err := e.decisions.Load(book, storyID)
	if err != nil {
		return nil, err
	}
	findings := e.auditors.Detect(stage, st, severity, c)
	review.Merge(findings, records)
	open := 0
	for i := range findings {
		findings[i].Open = review.IsOpen(findings[i], e.policy.IsBlocking(findings[i].Severity))
		if findings[i].Open {
			open++
		}
	}
	return &AuditResult{
		StoryID:      storyID,
		StoryRelPath: e.stories.RelPath(book, storyID),
		Stage:        stage,
		Severity:     severity,
		Findings:     findings,
		Metrics:      review.ComputeMetrics(findings),
		OpenFindings: open,
	}, nil
}

// RunDetectionPass audits one band, reconciles decisions without the
// automatic policy and refreshes the findings and contrast sidecars. The
// story is not modified and no pass is logged.
func (e *Engine) RunDetectionPass(ctx context.Context, book, storyID string, stage review.Stage, severity review.Severity, passIndex int) (*PassResult, error) {
	return e.runSinglePass(ctx, book, storyID, stage, severity, passIndex, ModeDetection)
}

// RunDecisionPass applies the accepted decisions of one band, logs the pass
// and moves the story to {stage}_reviewed or {stage}_blocked.
func (e *Engine) RunDecisionPass(ctx context.Context, book, storyID string, stage review.Stage, severity review.Severity, passIndex int) (*PassResult, error) {
	return e.runSinglePass(ctx, book, storyID, stage, severity, passIndex, ModeDecision)
}

func (e *Engine) runSinglePass(ctx context.Context, book, storyID string, stage review.Stage, severity review.Severity, passIndex int, mode string) (*PassResult, error) {
	book, err := validateTarget(book, storyID)
	if err != nil {
		return nil, err
	}
	if err := validateBand(stage, severity, false); err != nil {
		return nil, err
	}
	if err := validatePassIndex(passIndex); err != nil {
		return nil, err
	}
	unlock, err := e.lockBook(book)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := e.resolveContext(ctx, book, "")
	if err != nil {
		return nil, err
	}
	res, err := e.runPass(ctx, passRequest{
		book:      book,
		storyID:   storyID,
		stage:     stage,
		severity:  severity,
		passIndex: passIndex,
		mode:      mode,
		apply:     mode == ModeDecision,
		canon:     c,
	})
	if err != nil {
		return nil, err
	}
	if mode != ModeDecision {
		return res, nil
	}

	band := e.policy.Band(severity)
	if err := e.appendPassRecord(book, res, band.MaxPasses, e.newRunID()); err != nil {
		return nil, err
	}
	status := stageStatus(stage, false)
	if res.Metrics.CriticalOpen+res.Metrics.MajorOpen > 0 || (band.Blocking && res.AlertsOpen > 0) {
		status = stageStatus(stage, true)
	}
	if err := e.stories.SetStatus(ctx, book, storyID, status); err != nil {
		return nil, err
	}
	logging.WithContext(e.storyContext(ctx, book, storyID, stage), e.logger).Info("decision pass completed",
		logging.String(logging.FieldSeverity, string(severity)),
		logging.Int(logging.FieldPassIndex, passIndex),
		logging.Int("alerts_open", res.AlertsOpen),
		logging.Bool("converged", res.Converged),
		logging.String("story_status", string(status)),
		logging.String(logging.FieldEventType, "decision_pass"),
	)
	return res, nil
}

// RunContrast checks the current story against one band's contrast rules and
// writes the contrast sidecar with pass index 0.
func (e *Engine) RunContrast(ctx context.Context, book, storyID string, stage review.Stage, severity review.Severity) (*reviewstore.ContrastDoc, error) {
	book, err := validateTarget(book, storyID)
	if err != nil {
		return nil, err
	}
	if err := validateBand(stage, severity, false); err != nil {
		return nil, err
	}
	unlock, err := e.lockBook(book)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := e.resolveContext(ctx, book, "")
	if err != nil {
		return nil, err
	}
	st, err := e.stories.Load(ctx, book, storyID)
	if err != nil {
		return nil, err
	}
	reference := c.CanonicalReference(storyID)
	alerts := e.contrast.Check(stage, severity, st, c, reference)
	open := review.CountOpenAlerts(alerts)
	status := reviewstore.StatusOK
	if open > 0 {
		status = reviewstore.StatusAlert
	}
	doc := &reviewstore.ContrastDoc{
		StoryID:      storyID,
		Stage:        stage,
		SeverityBand: severity,
		Reference:    reference,
		AlertsOpen:   open,
		Status:       status,
		Alerts:       alerts,
	}
	if err := e.reviews.WriteContrast(book, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Choose records a reviewer decision for a finding and refreshes the
// findings sidecar when it holds that finding. Deferring is refused in
// blocking bands.
func (e *Engine) Choose(ctx context.Context, req ChoiceRequest) (review.DecisionRecord, error) {
	book, err := validateTarget(req.Book, req.StoryID)
	if err != nil {
		return review.DecisionRecord{}, err
	}
	unlock, err := e.lockBook(book)
	if err != nil {
		return review.DecisionRecord{}, err
	}
	defer unlock()

	doc, _, err := e.reviews.ReadFindings(book, req.StoryID)
	if err != nil {
		return review.DecisionRecord{}, err
	}
	finding, err := e.findFinding(ctx, book, req.StoryID, req.FindingID, doc)
	if err != nil {
		return review.DecisionRecord{}, err
	}
	if req.Decision == review.DecisionDefer && e.policy.IsBlocking(finding.Severity) {
		return review.DecisionRecord{}, services.Wrap(services.ErrValidation, "cascade", "choose",
			fmt.Sprintf("defer is not allowed for %s findings", finding.Severity), nil)
	}
	rec, err := e.decisions.Record(book, req.StoryID, finding, req.Decision, req.Option, req.Notes, e.cfg.Review.Reviewer)
	if err != nil {
		return review.DecisionRecord{}, err
	}

	if doc != nil {
		for i := range doc.Findings {
			if doc.Findings[i].ID != rec.FindingID {
				continue
			}
			review.Merge(doc.Findings[i:i+1], map[string]review.DecisionRecord{rec.FindingID: rec})
			doc.OpenFindings = review.MarkOpen(doc.Findings, e.policy.IsBlocking(doc.SeverityBand))
			doc.Metrics = review.ComputeMetrics(doc.Findings)
			doc.GeneratedAt = ""
			if err := e.reviews.WriteFindings(book, doc); err != nil {
				return review.DecisionRecord{}, err
			}
			if err := e.reviews.WriteReviewMarkdown(book, doc); err != nil {
				return review.DecisionRecord{}, err
			}
			break
		}
	}

	logging.WithContext(e.storyContext(ctx, book, req.StoryID, finding.Stage), e.logger).Info("decision recorded",
		logging.String(logging.FieldFindingID, rec.FindingID),
		logging.String(logging.FieldSeverity, string(rec.Severity)),
		logging.String("decision", string(rec.Decision)),
		logging.String("option", rec.SelectedOption),
		logging.String("reviewer", rec.ResolvedBy),
	)
	return rec, nil
}

// findFinding looks a finding up in the findings sidecar and falls back to a
// full read-only audit of both stages.
func (e *Engine) findFinding(ctx context.Context, book, storyID, id string, doc *reviewstore.FindingsDoc) (review.Finding, error) {
	if doc != nil {
		for _, f := range doc.Findings {
			if f.ID == id {
				return f, nil
			}
		}
	}
	c, err := e.resolveContext(ctx, book, "")
	if err != nil {
		return review.Finding{}, err
	}
	for _, stage := range review.Stages {
		res, err := e.audit(ctx, book, storyID, stage, "", c)
		if err != nil {
			return review.Finding{}, err
		}
		for _, f := range res.Findings {
			if f.ID == id {
				return f, nil
			}
		}
	}
	return review.Finding{}, services.Wrap(services.ErrNotFound, "cascade", "choose", "finding "+id, nil)
}

// PipelineState returns the last checkpoint of a book run.
func (e *Engine) PipelineState(book string) (*reviewstore.PipelineState, error) {
	book, err := validateTarget(book, "")
	if err != nil {
		return nil, err
	}
	state, exists, err := e.reviews.ReadPipelineState(book)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, services.Wrap(services.ErrNotFound, "cascade", "status", "no pipeline state for "+book, nil)
	}
	return state, nil
}

// Passes returns the pass log of a story.
func (e *Engine) Passes(book, storyID string) (*reviewstore.PassLog, error) {
	book, err := validateTarget(book, storyID)
	if err != nil {
		return nil, err
	}
	return e.reviews.ReadPasses(book, storyID)
}

// Glossary resolves the book context and persists its chain and merged
// glossary.
func (e *Engine) Glossary(ctx context.Context, book, inboxTitle string) (*canon.Context, error) {
	book, err := validateTarget(book, "")
	if err != nil {
		return nil, err
	}
	c, err := e.resolveContext(ctx, book, inboxTitle)
	if err != nil {
		return nil, err
	}
	if _, _, err := e.canon.Persist(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ReviewGlossary merges glossary term decisions into context_review.json.
func (e *Engine) ReviewGlossary(ctx context.Context, book, inboxTitle string, rows []canon.ReviewRow) (*canon.ReviewDoc, error) {
	book, err := validateTarget(book, "")
	if err != nil {
		return nil, err
	}
	unlock, err := e.lockBook(book)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return e.canon.Review(ctx, book, inboxTitle, rows)
}

func validateBand(stage review.Stage, severity review.Severity, allowAll bool) error {
	if _, err := review.ParseStage(string(stage)); err != nil {
		return services.Wrap(services.ErrValidation, "cascade", "validate", "", err)
	}
	if severity == "" && allowAll {
		return nil
	}
	if _, err := review.ParseSeverity(string(severity)); err != nil {
		return services.Wrap(services.ErrValidation, "cascade", "validate", "", err)
	}
	return nil
}

func stageStatus(stage review.Stage, blocked bool) story.Status {
	switch {
	case stage == review.StageText && blocked:
		return story.StatusTextBlocked
	case stage == review.StageText:
		return story.StatusTextReviewed
	case blocked:
		return story.StatusPromptBlocked
	default:
		return story.StatusPromptReviewed
	}
}
