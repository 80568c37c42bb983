package canon

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"folio/internal/logging"
	"folio/internal/review"
	"folio/internal/reviewstore"
	"folio/internal/services"
	"folio/internal/story"
)

// Context files read from every node of the book chain, in override order.
var contextFiles = []string{"meta.md", "anclas.md", "glosario.md", "canon.md", "contexto.md"}

// YAMLGlossaryFile is the structured glossary a node may carry.
const YAMLGlossaryFile = "glossary.yaml"

// Reference kinds.
const (
	RefCanonicalPDF = "canonical_pdf"
	RefContextFile  = "context_file"
)

// FileContext describes one context file of a chain node.
type FileContext struct {
	FileRelPath     string `json:"file_rel_path"`
	GlossaryEntries int    `json:"glossary_entries"`
	Error           string `json:"error,omitempty"`
}

// Node is one ancestor of the book path. Deeper nodes have higher priority.
type Node struct {
	NodeRelPath string        `json:"node_rel_path"`
	Priority    int           `json:"priority"`
	Files       []FileContext `json:"files"`
}

// Context is the resolved editorial context of a book.
type Context struct {
	BookRelPath    string
	InboxBookTitle string
	Chain          []Node
	PDFs           PDFSet
	ReviewMetrics  ReviewMetrics
	glossary       []Entry
}

// Glossary returns the merged glossary with review decisions applied.
func (c *Context) Glossary() []Entry {
	if c == nil {
		return nil
	}
	return c.glossary
}

// CanonicalReference returns the inbox-relative canonical PDF of a story, or
// an empty string.
func (c *Context) CanonicalReference(storyID string) string {
	if c == nil {
		return ""
	}
	return c.PDFs.StoryPDFByID[storyID]
}

// References lists the material a story's findings point at: its canonical
// PDF, if any, followed by every context file of the chain.
func (c *Context) References(storyID string) []review.Reference {
	if c == nil {
		return nil
	}
	var refs []review.Reference
	if pdf := c.CanonicalReference(storyID); pdf != "" {
		refs = append(refs, review.Reference{Kind: RefCanonicalPDF, Path: pdf})
	}
	for _, node := range c.Chain {
		for _, file := range node.Files {
			refs = append(refs, review.Reference{Kind: RefContextFile, Path: file.FileRelPath})
		}
	}
	return refs
}

// ChainDoc is the persisted context_chain.json.
type ChainDoc struct {
	SchemaVersion  string  `json:"schema_version"`
	GeneratedAt    string  `json:"generated_at"`
	BookRelPath    string  `json:"book_rel_path"`
	InboxBookTitle string  `json:"inbox_book_title,omitempty"`
	ContextChain   []Node  `json:"context_chain"`
	CanonicalPDFs  PDFSet  `json:"canonical_pdfs"`
	GlossaryMerged []Entry `json:"glossary_merged"`
}

// GlossaryDoc is the persisted glossary_merged.json.
type GlossaryDoc struct {
	SchemaVersion string        `json:"schema_version"`
	GeneratedAt   string        `json:"generated_at"`
	BookRelPath   string        `json:"book_rel_path"`
	Entries       []Entry       `json:"entries"`
	ReviewMetrics ReviewMetrics `json:"review_metrics"`
}

// Provider resolves book contexts from a library and an inbox.
type Provider struct {
	libraryDir string
	inboxRoot  string
	store      *reviewstore.Store
	logger     *slog.Logger
	countPages pageCounter
}

// NewProvider creates a context provider.
func NewProvider(libraryDir, inboxRoot string, store *reviewstore.Store, logger *slog.Logger) *Provider {
	return &Provider{
		libraryDir: libraryDir,
		inboxRoot:  inboxRoot,
		store:      store,
		logger:     logging.NewComponentLogger(logger, "canon"),
		countPages: api.PageCountFile,
	}
}

// DefaultInboxTitle is the inbox folder name assumed for a book: the last
// segment of its path.
func DefaultInboxTitle(book string) string {
	return path.Base(strings.TrimSuffix(filepath.ToSlash(book), "/"))
}

// Resolve builds the context of a book: glossary chain, glossary review and
// canonical PDFs. An empty inbox title defaults to DefaultInboxTitle.
func (p *Provider) Resolve(ctx context.Context, book, inboxTitle string) (*Context, error) {
	book, err := story.ValidateBookRelPath(book)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "context", "resolve", "", err)
	}
	if strings.TrimSpace(inboxTitle) == "" {
		inboxTitle = DefaultInboxTitle(book)
	}
	if strings.Contains(inboxTitle, "..") || strings.ContainsAny(inboxTitle, `/\`) {
		return nil, services.Wrap(services.ErrValidation, "context", "resolve", "invalid inbox title "+inboxTitle, nil)
	}
	logger := logging.WithContext(services.WithBook(ctx, book), p.logger)

	chain, layers, err := p.readChain(book)
	if err != nil {
		return nil, err
	}
	for _, node := range chain {
		for _, file := range node.Files {
			if file.Error != "" {
				logging.WarnWithContext(logger, "context file ignored", "context_file_invalid",
					logging.String("file", file.FileRelPath),
					logging.String(logging.FieldErrorHint, file.Error),
					logging.String(logging.FieldImpact, "glossary entries from this file are skipped"),
				)
			}
		}
	}

	reviewDoc, err := p.ReadReview(book)
	if err != nil {
		return nil, err
	}
	glossary, ignored := ApplyReview(MergeEntries(layers...), reviewDoc.Decisions)

	pdfs, err := discoverPDFs(p.inboxRoot, inboxTitle, p.countPages)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "context", "discover pdfs", inboxTitle, err)
	}
	for _, file := range pdfs.Files {
		if file.Error != "" {
			logging.WarnWithContext(logger, "canonical pdf unreadable", "canonical_pdf_invalid",
				logging.String("pdf", file.RelPath),
				logging.String(logging.FieldErrorHint, file.Error),
				logging.String(logging.FieldImpact, "page count unavailable for this reference"),
			)
		}
	}

	resolved := &Context{
		BookRelPath:    book,
		InboxBookTitle: inboxTitle,
		Chain:          chain,
		PDFs:           pdfs,
		ReviewMetrics:  ComputeReviewMetrics(reviewDoc.Decisions, ignored),
		glossary:       glossary,
	}
	logger.Debug("context resolved",
		logging.Int("nodes", len(chain)),
		logging.Int("glossary_terms", len(glossary)),
		logging.Int("canonical_pdfs", len(pdfs.Files)),
	)
	return resolved, nil
}

func (p *Provider) readChain(book string) ([]Node, [][]Entry, error) {
	segments := strings.Split(book, "/")
	chain := make([]Node, 0, len(segments))
	var layers [][]Entry
	for i := range segments {
		nodeRel := strings.Join(segments[:i+1], "/")
		node := Node{NodeRelPath: nodeRel, Priority: i + 1, Files: []FileContext{}}
		dir := filepath.Join(p.libraryDir, filepath.FromSlash(nodeRel))
		for _, name := range append(append([]string(nil), contextFiles...), YAMLGlossaryFile) {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, nil, services.Wrap(services.ErrPersistence, "context", "read", nodeRel+"/"+name, err)
			}
			fileRel := nodeRel + "/" + name
			var entries []Entry
			file := FileContext{FileRelPath: fileRel}
			if name == YAMLGlossaryFile {
				entries, err = ParseYAML(data)
				if err != nil {
					file.Error = err.Error()
				}
			} else {
				entries = ParseMarkdown(data)
			}
			for j := range entries {
				entries[j].SourceRel = fileRel
				entries[j].Priority = node.Priority
			}
			file.GlossaryEntries = len(entries)
			node.Files = append(node.Files, file)
			layers = append(layers, entries)
		}
		chain = append(chain, node)
	}
	return chain, layers, nil
}

// Persist writes context_chain.json and glossary_merged.json for a resolved
// context and returns their paths.
func (p *Provider) Persist(c *Context) (string, string, error) {
	if err := p.store.EnsureReviewsDir(c.BookRelPath); err != nil {
		return "", "", err
	}
	now := p.store.Now()
	glossary := c.Glossary()
	if glossary == nil {
		glossary = []Entry{}
	}
	chainPath := p.store.ContextChainPath(c.BookRelPath)
	chainDoc := ChainDoc{
		SchemaVersion:  reviewstore.SchemaVersion,
		GeneratedAt:    now,
		BookRelPath:    c.BookRelPath,
		InboxBookTitle: c.InboxBookTitle,
		ContextChain:   c.Chain,
		CanonicalPDFs:  c.PDFs,
		GlossaryMerged: glossary,
	}
	if err := writeJSON(chainPath, "context chain", &chainDoc); err != nil {
		return "", "", err
	}
	glossaryPath := p.store.GlossaryMergedPath(c.BookRelPath)
	glossaryDoc := GlossaryDoc{
		SchemaVersion: reviewstore.SchemaVersion,
		GeneratedAt:   now,
		BookRelPath:   c.BookRelPath,
		Entries:       glossary,
		ReviewMetrics: c.ReviewMetrics,
	}
	if err := writeJSON(glossaryPath, "glossary", &glossaryDoc); err != nil {
		return "", "", err
	}
	return chainPath, glossaryPath, nil
}
