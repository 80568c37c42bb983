package reviewstore

import (
	"path/filepath"
)

// ReviewsDirName is the per-book directory holding every review artifact.
const ReviewsDirName = "_reviews"

// Layout resolves artifact paths inside a library.
type Layout struct {
	LibraryDir string
}

// ReviewsDir returns the absolute review directory of a book.
func (l Layout) ReviewsDir(book string) string {
	return filepath.Join(l.LibraryDir, filepath.FromSlash(book), ReviewsDirName)
}

func (l Layout) storyFile(book, storyID, suffix string) string {
	return filepath.Join(l.ReviewsDir(book), storyID+suffix)
}

// FindingsPath returns {story}.findings.json.
func (l Layout) FindingsPath(book, storyID string) string {
	return l.storyFile(book, storyID, ".findings.json")
}

// ChoicesPath returns {story}.choices.json.
func (l Layout) ChoicesPath(book, storyID string) string {
	return l.storyFile(book, storyID, ".choices.json")
}

// ContrastPath returns {story}.contrast.json.
func (l Layout) ContrastPath(book, storyID string) string {
	return l.storyFile(book, storyID, ".contrast.json")
}

// PassesPath returns {story}.passes.json.
func (l Layout) PassesPath(book, storyID string) string {
	return l.storyFile(book, storyID, ".passes.json")
}

// ReviewMarkdownPath returns {story}.review.md.
func (l Layout) ReviewMarkdownPath(book, storyID string) string {
	return l.storyFile(book, storyID, ".review.md")
}

// PipelineStatePath returns the book-level pipeline_state.json.
func (l Layout) PipelineStatePath(book string) string {
	return filepath.Join(l.ReviewsDir(book), "pipeline_state.json")
}

// ContextChainPath returns the book-level context_chain.json.
func (l Layout) ContextChainPath(book string) string {
	return filepath.Join(l.ReviewsDir(book), "context_chain.json")
}

// GlossaryMergedPath returns the book-level glossary_merged.json.
func (l Layout) GlossaryMergedPath(book string) string {
	return filepath.Join(l.ReviewsDir(book), "glossary_merged.json")
}

// ContextReviewPath returns the book-level context_review.json.
func (l Layout) ContextReviewPath(book string) string {
	return filepath.Join(l.ReviewsDir(book), "context_review.json")
}

// LockPath returns the book writer lock file.
func (l Layout) LockPath(book string) string {
	return filepath.Join(l.ReviewsDir(book), ".cascade.lock")
}

// Rel converts an absolute path inside the library to a slash-separated
// library-relative path. Paths outside the library are returned unchanged.
func (l Layout) Rel(path string) string {
	rel, err := filepath.Rel(l.LibraryDir, path)
	if err != nil || rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
