package canon

import (
	"context"

	"folio/internal/fileutil"
	"folio/internal/logging"
	"folio/internal/reviewstore"
	"folio/internal/services"
	"folio/internal/story"
)

// ReadReview loads context_review.json. A missing file is an empty review.
func (p *Provider) ReadReview(book string) (*ReviewDoc, error) {
	doc := &ReviewDoc{SchemaVersion: ReviewSchemaVersion, BookRelPath: book}
	exists, err := fileutil.ReadJSON(p.store.ContextReviewPath(book), doc)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "context review", "read", book, err)
	}
	if exists {
		if err := reviewstore.CheckSchema(doc.SchemaVersion, 1); err != nil {
			return nil, services.Wrap(services.ErrSchemaVersion, "context review", "read", book, err)
		}
	}
	doc.Decisions = MergeReviewRows(nil, doc.Decisions, p.store.Now())
	return doc, nil
}

// Review merges reviewer rows into context_review.json, recomputes metrics
// against the book glossary and persists the document.
func (p *Provider) Review(ctx context.Context, book, inboxTitle string, rows []ReviewRow) (*ReviewDoc, error) {
	book, err := story.ValidateBookRelPath(book)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "context", "resolve", "", err)
	}
	doc, err := p.ReadReview(book)
	if err != nil {
		return nil, err
	}
	now := p.store.Now()
	if doc.GeneratedAt == "" {
		doc.GeneratedAt = now
	}
	doc.SchemaVersion = ReviewSchemaVersion
	doc.BookRelPath = book
	doc.UpdatedAt = now
	doc.Decisions = MergeReviewRows(doc.Decisions, rows, now)

	_, layers, err := p.readChain(book)
	if err != nil {
		return nil, err
	}
	_, ignored := ApplyReview(MergeEntries(layers...), doc.Decisions)
	doc.Metrics = ComputeReviewMetrics(doc.Decisions, ignored)
	if inboxTitle != "" {
		doc.InboxBookTitle = inboxTitle
	}

	if err := p.store.EnsureReviewsDir(book); err != nil {
		return nil, err
	}
	if err := writeJSON(p.store.ContextReviewPath(book), "context review", doc); err != nil {
		return nil, err
	}
	logging.WithContext(services.WithBook(ctx, book), p.logger).Info("glossary review updated",
		logging.Int("rows", len(rows)),
		logging.Int("accepted", doc.Metrics.Accepted),
		logging.Int("ignored_missing_term", doc.Metrics.IgnoredMissingTerm),
	)
	return doc, nil
}

func writeJSON(path, what string, v any) error {
	if err := fileutil.WriteJSONAtomic(path, v); err != nil {
		return services.Wrap(services.ErrPersistence, what, "write", "", err)
	}
	return nil
}
