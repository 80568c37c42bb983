package logging

import (
	"context"
	"log/slog"

	"folio/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldBook is the library-relative path of the book being reviewed.
	FieldBook = "book"
	// FieldStoryID is the two-digit story identifier.
	FieldStoryID = "story_id"
	// FieldStage is the review stage (text or prompt).
	FieldStage = "stage"
	// FieldSeverity is the severity band being processed.
	FieldSeverity = "severity"
	// FieldPassIndex is the 1-based pass number inside a severity band.
	FieldPassIndex = "pass_index"
	// FieldFindingID is the content-addressed finding identity.
	FieldFindingID = "finding_id"
	// FieldCorrelationID is the standardized structured logging key for run identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies log lines for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDecisionType names the decision being logged.
	FieldDecisionType   = "decision_type"
	FieldDecisionResult = "decision_result"
	FieldDecisionReason = "decision_reason"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if book, ok := services.BookFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldBook, book))
	}
	if id, ok := services.StoryIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStoryID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, 0, len(fields))
	for _, field := range fields {
		args = append(args, field)
	}
	return logger.With(args...)
}
