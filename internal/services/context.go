package services

import "context"

type contextKey string

const (
	bookKey      contextKey = "book"
	storyIDKey   contextKey = "story_id"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

// WithBook annotates context with the library-relative book path.
func WithBook(ctx context.Context, book string) context.Context {
	if book == "" {
		return ctx
	}
	return context.WithValue(ctx, bookKey, book)
}

// BookFromContext returns the book path if present.
func BookFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(bookKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStoryID annotates context with the story identifier.
func WithStoryID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, storyIDKey, id)
}

// StoryIDFromContext returns the story identifier if present.
func StoryIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(storyIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the review stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
