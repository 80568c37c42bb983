package story

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"folio/internal/fileutil"
	"folio/internal/services"
)

var errSchema = errors.New("unsupported story schema version")

// FileStore reads and writes story documents under a library root.
type FileStore struct {
	root string
	now  func() time.Time
}

// NewFileStore creates a store rooted at the library directory.
func NewFileStore(libraryDir string) *FileStore {
	return &FileStore{root: libraryDir, now: time.Now}
}

// WithClock overrides the timestamp source. Intended for tests.
func (s *FileStore) WithClock(now func() time.Time) *FileStore {
	s.now = now
	return s
}

// Path returns the absolute path of a story document.
func (s *FileStore) Path(book, storyID string) string {
	return filepath.Join(s.root, filepath.FromSlash(book), storyID+".json")
}

// RelPath returns the library-relative path of a story document.
func (s *FileStore) RelPath(book, storyID string) string {
	return book + "/" + storyID + ".json"
}

// BookDir returns the absolute directory of a book.
func (s *FileStore) BookDir(book string) string {
	return filepath.Join(s.root, filepath.FromSlash(book))
}

// Load reads and normalizes a story. Malformed documents are input errors.
func (s *FileStore) Load(_ context.Context, book, storyID string) (*Story, error) {
	if err := ValidateStoryID(storyID); err != nil {
		return nil, services.Wrap(services.ErrValidation, "story", "load", storyID, err)
	}
	path := s.Path(book, storyID)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "story", "load", s.RelPath(book, storyID), nil)
		}
		return nil, services.Wrap(services.ErrPersistence, "story", "load", s.RelPath(book, storyID), err)
	}
	var st Story
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, services.Wrap(services.ErrValidation, "story", "decode", s.RelPath(book, storyID), err)
	}
	if err := st.normalize(storyID, book, s.now()); err != nil {
		marker := services.ErrValidation
		if errors.Is(err, errSchema) {
			marker = services.ErrSchemaVersion
		}
		return nil, services.Wrap(marker, "story", "validate", s.RelPath(book, storyID), err)
	}
	return &st, nil
}

// Save writes the story atomically and refreshes its updated_at timestamp.
func (s *FileStore) Save(_ context.Context, book string, st *Story) error {
	if st == nil {
		return services.Wrap(services.ErrValidation, "story", "save", "nil story", nil)
	}
	if err := st.normalize(st.StoryID, book, s.now()); err != nil {
		return services.Wrap(services.ErrValidation, "story", "save", st.StoryID, err)
	}
	st.SchemaVersion = SchemaVersion
	st.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	if err := fileutil.WriteJSONAtomic(s.Path(book, st.StoryID), st); err != nil {
		return services.Wrap(services.ErrPersistence, "story", "save", s.RelPath(book, st.StoryID), err)
	}
	return nil
}

// SetStatus updates the lifecycle status of a stored story.
func (s *FileStore) SetStatus(ctx context.Context, book, storyID string, status Status) error {
	if _, ok := ParseStatus(string(status)); !ok {
		return services.Wrap(services.ErrValidation, "story", "set status", fmt.Sprintf("unknown status %q", status), nil)
	}
	st, err := s.Load(ctx, book, storyID)
	if err != nil {
		return err
	}
	if st.Status == status {
		return nil
	}
	st.Status = status
	return s.Save(ctx, book, st)
}

// List returns the story identifiers of a book in ascending order.
func (s *FileStore) List(_ context.Context, book string) ([]string, error) {
	entries, err := os.ReadDir(s.BookDir(book))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "story", "list", book, nil)
		}
		return nil, services.Wrap(services.ErrPersistence, "story", "list", book, err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, ok := strings.CutSuffix(entry.Name(), ".json")
		if !ok || ValidateStoryID(id) != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
