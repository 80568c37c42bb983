package cascade

import (
	"context"

	"folio/internal/canon"
	"folio/internal/logging"
	"folio/internal/review"
	"folio/internal/reviewstore"
	"folio/internal/services"
	"folio/internal/story"
)

// CascadeOptions controls a book run.
type CascadeOptions struct {
	// InboxTitle names the inbox folder holding canonical PDFs. Empty uses
	// the last segment of the book path, or the title of a resumed run.
	InboxTitle string
	// Resume continues from the story, stage and band recorded in the last
	// pipeline state.
	Resume bool
	// AutoDecide resolves pending findings with the automatic policy.
	AutoDecide bool
}

// DefaultCascadeOptions returns the options configured for book runs.
func (e *Engine) DefaultCascadeOptions() CascadeOptions {
	return CascadeOptions{AutoDecide: e.cfg.Cascade.AutoDecide}
}

type resumePoint struct {
	storyID  string
	stage    review.Stage
	severity review.Severity
}

// RunFullCascade reviews every story of a book in ascending id order, text
// stage first. The run stops at the first blocked story. The final pipeline
// state is returned; a blocked run is not an error.
func (e *Engine) RunFullCascade(ctx context.Context, book string, opts CascadeOptions) (*reviewstore.PipelineState, error) {
	book, err := validateTarget(book, "")
	if err != nil {
		return nil, err
	}
	unlock, err := e.lockBook(book)
	if err != nil {
		return nil, err
	}
	defer unlock()

	runID := e.newRunID()
	ctx = services.WithRequestID(services.WithBook(ctx, book), runID)
	logger := logging.WithContext(ctx, e.logger)

	var prev *reviewstore.PipelineState
	if opts.Resume {
		state, exists, err := e.reviews.ReadPipelineState(book)
		if err != nil {
			return nil, err
		}
		if exists && state.Phase == reviewstore.PhaseCompleted {
			logger.Info("cascade already completed", logging.String("previous_run_id", state.RunID))
			return state, nil
		}
		if exists {
			prev = state
		}
	}
	inboxTitle := opts.InboxTitle
	if inboxTitle == "" && prev != nil {
		inboxTitle = prev.InboxBookTitle
	}

	c, err := e.resolveContext(ctx, book, inboxTitle)
	if err != nil {
		return nil, err
	}
	chainPath, glossaryPath, err := e.canon.Persist(c)
	if err != nil {
		return nil, err
	}
	ids, err := e.stories.List(ctx, book)
	if err != nil {
		return nil, err
	}

	sess := newSession(e.reviews, book, c.InboxBookTitle, runID)
	sess.state.Context = reviewstore.ContextRefs{
		ContextChain:   e.reviews.Rel(chainPath),
		GlossaryMerged: e.reviews.Rel(glossaryPath),
		GlossaryTerms:  len(c.Glossary()),
		CanonicalPDFs:  len(c.PDFs.Files),
	}
	start := carryOver(sess, prev, ids)
	if err := sess.checkpoint(); err != nil {
		return nil, err
	}
	logger.Info("cascade started",
		logging.Int("stories", len(ids)),
		logging.Bool("resume", start != nil),
		logging.Bool("auto_decide", opts.AutoDecide),
		logging.String(logging.FieldEventType, "cascade_started"),
	)

	for _, id := range ids {
		if start != nil && id < start.storyID {
			continue
		}
		row := sess.row(id, e.stories.RelPath(book, id))
		from := review.StageText
		var fromSeverity review.Severity
		if start != nil && id == start.storyID {
			from, fromSeverity = start.stage, start.severity
		}

		for _, stage := range review.Stages {
			if stage == review.StageText && from == review.StagePrompt {
				continue
			}
			sess.enterStage(id, stage)
			req := stageRequest{
				storyID: id,
				stage:   stage,
				auto:    opts.AutoDecide,
				runID:   runID,
				canon:   c,
			}
			if stage == from {
				req.from = fromSeverity
				req.carried = stageOf(row, stage)
			}
			summary, err := e.runStage(ctx, sess, req)
			if err != nil {
				return sess.state, err
			}

			status := stageStatus(stage, false)
			if stage == review.StagePrompt {
				status = story.StatusReady
			}
			if !summary.Blocked() {
				if err := e.stories.SetStatus(ctx, book, id, status); err != nil {
					failStage(summary, "", err)
				}
			}
			setStage(row, summary)

			if summary.Blocked() {
				e.blockStory(ctx, sess, row, summary)
				e.finish(ctx, sess, c, ids)
				if err := sess.checkpoint(); err != nil {
					return sess.state, err
				}
				return sess.state, nil
			}
			row.Status = string(status)
			if err := sess.checkpoint(); err != nil {
				return sess.state, err
			}
		}
		start = nil
	}

	sess.complete()
	e.finish(ctx, sess, c, ids)
	if err := sess.checkpoint(); err != nil {
		return sess.state, err
	}
	logger.Info("cascade completed",
		logging.Int("stories", sess.state.Totals.Stories),
		logging.Int("ready", sess.state.Totals.Ready),
		logging.String(logging.FieldEventType, "cascade_completed"),
	)
	return sess.state, nil
}

// carryOver seeds a session with the rows a resumed run does not repeat and
// returns where the run picks up. It returns nil when there is nothing to
// resume from.
func carryOver(sess *session, prev *reviewstore.PipelineState, ids []string) *resumePoint {
	if prev == nil || prev.CurrentStoryID == "" {
		return nil
	}
	known := false
	for _, id := range ids {
		if id == prev.CurrentStoryID {
			known = true
			break
		}
	}
	if !known {
		return nil
	}
	stage := prev.Stage
	if _, err := review.ParseStage(string(stage)); err != nil {
		stage = review.StageText
	}
	severity := prev.SeverityBand
	if _, err := review.ParseSeverity(string(severity)); err != nil {
		severity = ""
	}
	for _, id := range ids {
		if id > prev.CurrentStoryID {
			break
		}
		row := prev.Row(id)
		if row == nil {
			continue
		}
		kept := *row
		if id == prev.CurrentStoryID {
			kept.Status = rowPending
			kept.Error = ""
			if stage == review.StageText {
				kept.PromptStage = nil
			} else {
				kept.PromptStage = stageOf(row, review.StagePrompt)
			}
		}
		sess.state.Stories = append(sess.state.Stories, kept)
	}
	sess.state.StartedAt = prev.StartedAt
	return &resumePoint{storyID: prev.CurrentStoryID, stage: stage, severity: severity}
}

func stageOf(row *reviewstore.StoryRow, stage review.Stage) *reviewstore.StageSummary {
	if row == nil {
		return nil
	}
	if stage == review.StagePrompt {
		return row.PromptStage
	}
	return row.TextStage
}

func setStage(row *reviewstore.StoryRow, summary *reviewstore.StageSummary) {
	if summary.Stage == review.StagePrompt {
		row.PromptStage = summary
		return
	}
	row.TextStage = summary
}

func (e *Engine) blockStory(ctx context.Context, sess *session, row *reviewstore.StoryRow, summary *reviewstore.StageSummary) {
	status := stageStatus(summary.Stage, true)
	row.Status = string(status)
	row.Error = summary.Error
	sess.block(row, summary)

	logger := logging.WithContext(e.storyContext(ctx, sess.book, row.StoryID, summary.Stage), e.logger)
	if err := e.stories.SetStatus(ctx, sess.book, row.StoryID, status); err != nil {
		logging.WarnWithContext(logger, "failed to record blocked status", "story_status_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the story file is valid JSON"),
			logging.String(logging.FieldImpact, "story file keeps its previous status"),
		)
	}
	logging.WarnWithContext(logger, "stage blocked", "stage_blocked",
		logging.String(logging.FieldSeverity, string(summary.BlockedSeverity)),
		logging.String("reason", summary.Reason),
		logging.String("detail", blockMessage(summary)),
		logging.String(logging.FieldErrorHint, "record decisions with folio choose and rerun with --resume"),
		logging.String(logging.FieldImpact, "story halted; later stories are not processed"),
	)
}

// finish computes run totals. Open counts come from a read-only audit of
// every story reached by the run with its persisted decisions.
func (e *Engine) finish(ctx context.Context, sess *session, c *canon.Context, ids []string) {
	totals := reviewstore.Totals{Stories: len(ids)}
	for _, row := range sess.state.Stories {
		if row.Status == string(story.StatusReady) {
			totals.Ready++
		}
		for _, stage := range review.Stages {
			res, err := e.audit(ctx, sess.book, row.StoryID, stage, "", c)
			if err != nil {
				continue
			}
			totals.CriticalOpen += res.Metrics.CriticalOpen
			totals.MajorOpen += res.Metrics.MajorOpen
			totals.MinorOpen += res.Metrics.MinorOpen
			totals.InfoOpen += res.Metrics.InfoOpen
		}
	}
	sess.state.Totals = totals
}
