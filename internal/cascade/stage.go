package cascade

import (
	"context"
	"fmt"

	"folio/internal/canon"
	"folio/internal/logging"
	"folio/internal/review"
	"folio/internal/reviewstore"
	"folio/internal/services"
)

type stageRequest struct {
	storyID string
	stage   review.Stage
	// from is the first band to run; earlier bands come from carried.
	from    review.Severity
	carried *reviewstore.StageSummary
	auto    bool
	runID   string
	canon   *canon.Context
}

// runStage runs every severity band of one stage in order. A blocking band
// that does not converge within its budget blocks the stage and skips the
// remaining bands. Failures inside the stage are reported on the summary as a
// block; only checkpoint failures are returned as errors.
func (e *Engine) runStage(ctx context.Context, sess *session, req stageRequest) (*reviewstore.StageSummary, error) {
	book := sess.book
	logger := logging.WithContext(e.storyContext(ctx, book, req.storyID, req.stage), e.logger)
	summary := &reviewstore.StageSummary{
		Stage:      req.stage,
		Status:     reviewstore.StatusReviewed,
		Severities: make(map[review.Severity]reviewstore.BandSummary, len(review.Severities)),
	}

	started := req.from == ""
	for _, sev := range review.Severities {
		if !started && sev != req.from {
			if req.carried != nil {
				if band, ok := req.carried.Severities[sev]; ok {
					summary.Severities[sev] = band
				}
			}
			continue
		}
		started = true

		policy := e.policy.Band(sev)
		sess.enterBand(sev)
		if err := sess.checkpoint(); err != nil {
			return nil, err
		}
		band := reviewstore.BandSummary{MaxPasses: policy.MaxPasses, Blocking: policy.Blocking}
		for pass := 1; pass <= policy.MaxPasses; pass++ {
			res, err := e.runPass(ctx, passRequest{
				book:      book,
				storyID:   req.storyID,
				stage:     req.stage,
				severity:  sev,
				passIndex: pass,
				mode:      ModeCascade,
				auto:      req.auto,
				apply:     true,
				canon:     req.canon,
			})
			if err == nil {
				err = e.appendPassRecord(book, res, policy.MaxPasses, req.runID)
			}
			if err != nil {
				summary.Severities[sev] = band
				return failStage(summary, sev, err), nil
			}
			band.Passes = pass
			band.AlertsOpen = res.AlertsOpen
			band.Converged = res.Converged
			sess.recordPass(res)
			logger.Info("pass completed",
				logging.String(logging.FieldSeverity, string(sev)),
				logging.Int(logging.FieldPassIndex, pass),
				logging.Int("alerts_open", res.AlertsOpen),
				logging.Bool("converged", res.Converged),
				logging.Bool("applied_changes", res.AppliedChanges),
				logging.String(logging.FieldEventType, "pass_completed"),
			)
			if err := sess.checkpoint(); err != nil {
				return nil, err
			}
			if res.Converged {
				break
			}
		}
		summary.Severities[sev] = band
		if band.Converged {
			continue
		}

		sess.exhaust()
		if err := sess.checkpoint(); err != nil {
			return nil, err
		}
		if policy.Blocking {
			summary.Status = reviewstore.StatusBlocked
			summary.BlockedSeverity = sev
			summary.Reason = reviewstore.ConvergenceExhausted
			return summary, nil
		}
		attrs := append([]logging.Attr{
			logging.String(logging.FieldSeverity, string(sev)),
			logging.Int("passes", band.Passes),
			logging.Int("alerts_open", band.AlertsOpen),
		}, logging.DecisionAttrs("band_exhausted", "continue", "severity is not blocking")...)
		logger.Info("non-blocking band exhausted", logging.Args(attrs...)...)
	}
	return summary, nil
}

// failStage turns an error raised inside a stage into a block.
func failStage(summary *reviewstore.StageSummary, sev review.Severity, err error) *reviewstore.StageSummary {
	summary.Status = reviewstore.StatusBlocked
	summary.BlockedSeverity = sev
	summary.Reason = services.FailureReason(err)
	summary.Error = err.Error()
	return summary
}

func blockMessage(summary *reviewstore.StageSummary) string {
	if summary.Error != "" {
		return summary.Error
	}
	band := summary.Severities[summary.BlockedSeverity]
	return fmt.Sprintf("%s band still has %d open items after %d passes", summary.BlockedSeverity, band.AlertsOpen, band.Passes)
}
