package testsupport

import (
	"context"
	"testing"

	"folio/internal/config"
	"folio/internal/story"
)

// PageOption customizes a page built by NewPage.
type PageOption func(*story.Page)

// NewPage builds a page whose original and current values are equal.
func NewPage(number int, text, prompt string, opts ...PageOption) story.Page {
	page := story.Page{
		PageNumber: number,
		Text:       story.Versioned{Original: text, Current: text},
		Images: story.Images{
			Main: &story.ImageSlot{Prompt: story.Versioned{Original: prompt, Current: prompt}},
		},
	}
	for _, opt := range opts {
		opt(&page)
	}
	return page
}

// WithCurrentText sets the current text, keeping the original.
func WithCurrentText(text string) PageOption {
	return func(p *story.Page) {
		p.Text.Current = text
	}
}

// WithOriginalText sets the original text.
func WithOriginalText(text string) PageOption {
	return func(p *story.Page) {
		p.Text.Original = text
	}
}

// WithCurrentPrompt sets the current main prompt, keeping the original.
func WithCurrentPrompt(prompt string) PageOption {
	return func(p *story.Page) {
		p.Images.Main.Prompt.Current = prompt
	}
}

// WithSecondaryPrompt adds a secondary slot.
func WithSecondaryPrompt(prompt string) PageOption {
	return func(p *story.Page) {
		p.Images.Secondary = &story.ImageSlot{Prompt: story.Versioned{Original: prompt, Current: prompt}}
	}
}

// NewStory builds a draft story.
func NewStory(id string, pages ...story.Page) *story.Story {
	return &story.Story{
		SchemaVersion: story.SchemaVersion,
		StoryID:       id,
		Title:         "Story " + id,
		Status:        story.StatusDraft,
		Pages:         pages,
	}
}

// SaveStory persists st under book in the configured library.
func SaveStory(t testing.TB, cfg *config.Config, book string, st *story.Story) {
	t.Helper()

	st.BookRelPath = book
	if err := story.NewFileStore(cfg.Paths.LibraryDir).Save(context.Background(), book, st); err != nil {
		t.Fatalf("save story %s: %v", st.StoryID, err)
	}
}

// LoadStory reads a story back from the configured library.
func LoadStory(t testing.TB, cfg *config.Config, book, id string) *story.Story {
	t.Helper()

	st, err := story.NewFileStore(cfg.Paths.LibraryDir).Load(context.Background(), book, id)
	if err != nil {
		t.Fatalf("load story %s: %v", id, err)
	}
	return st
}
