package reviewstore

import (
	"os"
	"time"

	"folio/internal/fileutil"
	"folio/internal/services"
)

// Store reads and writes review sidecars.
type Store struct {
	Layout
	now func() time.Time
}

// New creates a store for the library.
func New(libraryDir string) *Store {
	return &Store{Layout: Layout{LibraryDir: libraryDir}, now: time.Now}
}

// WithClock overrides the timestamp source. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Now returns the store clock's current timestamp string.
func (s *Store) Now() string {
	return Timestamp(s.now())
}

// WriteFindings persists the findings view of a story band.
func (s *Store) WriteFindings(book string, doc *FindingsDoc) error {
	doc.SchemaVersion = SchemaVersion
	if doc.GeneratedAt == "" {
		doc.GeneratedAt = s.Now()
	}
	return writeDoc(s.FindingsPath(book, doc.StoryID), "findings", doc)
}

// ReadFindings loads the findings view of a story, if any.
func (s *Store) ReadFindings(book, storyID string) (*FindingsDoc, bool, error) {
	var doc FindingsDoc
	exists, err := readDoc(s.FindingsPath(book, storyID), "findings", &doc)
	if err != nil || !exists {
		return nil, exists, err
	}
	return &doc, true, nil
}

// WriteContrast persists the contrast view of a story band.
func (s *Store) WriteContrast(book string, doc *ContrastDoc) error {
	doc.SchemaVersion = SchemaVersion
	if doc.GeneratedAt == "" {
		doc.GeneratedAt = s.Now()
	}
	return writeDoc(s.ContrastPath(book, doc.StoryID), "contrast", doc)
}

// ReadContrast loads the contrast view of a story, if any.
func (s *Store) ReadContrast(book, storyID string) (*ContrastDoc, bool, error) {
	var doc ContrastDoc
	exists, err := readDoc(s.ContrastPath(book, storyID), "contrast", &doc)
	if err != nil || !exists {
		return nil, exists, err
	}
	return &doc, true, nil
}

// AppendPass adds a record to the pass log of a story.
func (s *Store) AppendPass(book, storyID string, rec PassRecord) error {
	log, err := s.ReadPasses(book, storyID)
	if err != nil {
		return err
	}
	if rec.Timestamp == "" {
		rec.Timestamp = s.Now()
	}
	log.Passes = append(log.Passes, rec)
	log.SchemaVersion = SchemaVersion
	return writeDoc(s.PassesPath(book, storyID), "passes", log)
}

// ReadPasses loads the pass log of a story. A missing log is empty.
func (s *Store) ReadPasses(book, storyID string) (*PassLog, error) {
	log := &PassLog{SchemaVersion: SchemaVersion, StoryID: storyID}
	if _, err := readDoc(s.PassesPath(book, storyID), "passes", log); err != nil {
		return nil, err
	}
	if log.Passes == nil {
		log.Passes = []PassRecord{}
	}
	log.StoryID = storyID
	return log, nil
}

// WritePipelineState overwrites the book checkpoint.
func (s *Store) WritePipelineState(book string, state *PipelineState) error {
	state.SchemaVersion = SchemaVersion
	state.Pipeline = PipelineName
	state.GeneratedAt = s.Now()
	return writeDoc(s.PipelineStatePath(book), "pipeline_state", state)
}

// ReadPipelineState loads the book checkpoint, if any.
func (s *Store) ReadPipelineState(book string) (*PipelineState, bool, error) {
	var state PipelineState
	exists, err := readDoc(s.PipelineStatePath(book), "pipeline_state", &state)
	if err != nil || !exists {
		return nil, exists, err
	}
	return &state, true, nil
}

// WriteReviewMarkdown renders the findings view as markdown next to it.
func (s *Store) WriteReviewMarkdown(book string, doc *FindingsDoc) error {
	content := RenderMarkdown(doc)
	if err := fileutil.WriteFileAtomic(s.ReviewMarkdownPath(book, doc.StoryID), []byte(content), 0o644); err != nil {
		return services.Wrap(services.ErrPersistence, "review markdown", "write", "", err)
	}
	return nil
}

// EnsureReviewsDir creates the review directory of a book.
func (s *Store) EnsureReviewsDir(book string) error {
	if err := os.MkdirAll(s.ReviewsDir(book), 0o755); err != nil {
		return services.Wrap(services.ErrPersistence, "reviews", "mkdir", book, err)
	}
	return nil
}
