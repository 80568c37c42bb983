package canon

import (
	"errors"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const ignoredDirName = "_ignore"

var storyPDFPattern = regexp.MustCompile(`(?i)^(\d{2})\.pdf$`)

// CanonicalPDF is one reference PDF of the book inbox.
type CanonicalPDF struct {
	RelPath string `json:"rel_path"`
	StoryID string `json:"story_id,omitempty"`
	Pages   int    `json:"pages"`
	Error   string `json:"error,omitempty"`
}

// PDFSet is the canonical PDF inventory of a book.
type PDFSet struct {
	SourceRoot   string            `json:"source_root,omitempty"`
	Files        []CanonicalPDF    `json:"files"`
	StoryPDFByID map[string]string `json:"story_pdf_by_id"`
}

// pageCounter reports the page count of a PDF file.
type pageCounter func(path string) (int, error)

// DiscoverPDFs walks <inboxRoot>/<title> for PDF files, skipping _ignore
// subtrees. Files named NN.pdf are keyed by story id; the first one in path
// order wins. Paths are relative to inboxRoot. Unreadable PDFs are reported on
// their entry.
func DiscoverPDFs(inboxRoot, title string) (PDFSet, error) {
	return discoverPDFs(inboxRoot, title, api.PageCountFile)
}

func discoverPDFs(inboxRoot, title string, count pageCounter) (PDFSet, error) {
	set := PDFSet{Files: []CanonicalPDF{}, StoryPDFByID: map[string]string{}}
	title = strings.TrimSpace(title)
	if inboxRoot == "" || title == "" {
		return set, nil
	}
	root := filepath.Join(inboxRoot, title)
	set.SourceRoot = filepath.ToSlash(title)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == ignoredDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".pdf") {
			return nil
		}
		rel, relErr := filepath.Rel(inboxRoot, path)
		if relErr != nil {
			return relErr
		}
		entry := CanonicalPDF{RelPath: filepath.ToSlash(rel)}
		if m := storyPDFPattern.FindStringSubmatch(d.Name()); m != nil {
			entry.StoryID = m[1]
		}
		pages, countErr := count(path)
		if countErr != nil {
			entry.Error = countErr.Error()
		} else {
			entry.Pages = pages
		}
		set.Files = append(set.Files, entry)
		return nil
	})
	if err != nil {
		return set, err
	}
	sort.Slice(set.Files, func(i, j int) bool { return set.Files[i].RelPath < set.Files[j].RelPath })
	for _, file := range set.Files {
		if file.StoryID == "" {
			continue
		}
		if _, ok := set.StoryPDFByID[file.StoryID]; !ok {
			set.StoryPDFByID[file.StoryID] = file.RelPath
		}
	}
	return set, nil
}
