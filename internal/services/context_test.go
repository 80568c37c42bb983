package services_test

import (
	"context"
	"testing"

	"folio/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithBook(ctx, "cosmere/saga")
	ctx = services.WithStoryID(ctx, "01")
	ctx = services.WithStage(ctx, "text")
	ctx = services.WithRequestID(ctx, "req-123")

	if book, ok := services.BookFromContext(ctx); !ok || book != "cosmere/saga" {
		t.Fatalf("unexpected book: %v %v", book, ok)
	}
	if id, ok := services.StoryIDFromContext(ctx); !ok || id != "01" {
		t.Fatalf("unexpected story id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "text" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}
