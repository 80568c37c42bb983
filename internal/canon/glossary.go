package canon

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// Entry is one glossary term with its canonical spelling and the tokens the
// auditors must flag.
type Entry struct {
	Term              string   `json:"term" yaml:"term"`
	Canonical         string   `json:"canonical" yaml:"canonical"`
	Allowed           TermList `json:"allowed" yaml:"allowed"`
	Forbidden         TermList `json:"forbidden" yaml:"forbidden"`
	Notes             string   `json:"notes" yaml:"notes"`
	SourceRel         string   `json:"source_rel,omitempty" yaml:"-"`
	Priority          int      `json:"priority,omitempty" yaml:"-"`
	ReplacementTarget string   `json:"replacement_target,omitempty" yaml:"-"`
}

// Key is the case-insensitive identity of an entry.
func (e Entry) Key() string {
	return strings.ToLower(strings.TrimSpace(e.Term))
}

// Target is the value a forbidden token is replaced with.
func (e Entry) Target() string {
	for _, candidate := range []string{e.ReplacementTarget, e.Canonical, e.Term} {
		if value := strings.TrimSpace(candidate); value != "" {
			return value
		}
	}
	return ""
}

func (e *Entry) normalize() bool {
	e.Term = strings.TrimSpace(e.Term)
	if e.Term == "" {
		return false
	}
	e.Canonical = strings.TrimSpace(e.Canonical)
	if e.Canonical == "" {
		e.Canonical = e.Term
	}
	e.Allowed = Dedupe(e.Allowed)
	e.Forbidden = Dedupe(e.Forbidden)
	e.Notes = strings.TrimSpace(e.Notes)
	return true
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

const glossaryColumns = 5

var headerTerms = map[string]bool{"term": true, "termino": true, "término": true}

// ParseMarkdown extracts glossary rows from tables that follow a heading or
// paragraph mentioning "glosario" or "glossary". A heading of the same or a
// higher level ends the glossary section. Rows need five columns:
// term | canonical | allowed | forbidden | notes.
func ParseMarkdown(src []byte) []Entry {
	doc := markdown.Parser().Parse(text.NewReader(src))
	var entries []Entry
	inGlossary := false
	sectionLevel := 0
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if mentionsGlossary(nodeText(node, src)) {
				inGlossary, sectionLevel = true, node.Level
				continue
			}
			if inGlossary && node.Level <= sectionLevel {
				inGlossary = false
			}
		case *ast.Paragraph:
			if !inGlossary && mentionsGlossary(nodeText(node, src)) {
				inGlossary, sectionLevel = true, 6
			}
		case *east.Table:
			if inGlossary {
				entries = append(entries, tableEntries(node, src)...)
			}
		}
	}
	return entries
}

func mentionsGlossary(value string) bool {
	lower := strings.ToLower(value)
	return strings.Contains(lower, "glosario") || strings.Contains(lower, "glossary")
}

func tableEntries(table *east.Table, src []byte) []Entry {
	var entries []Entry
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		if _, ok := row.(*east.TableRow); !ok {
			continue
		}
		cells := make([]string, 0, glossaryColumns)
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, nodeText(cell, src))
		}
		if len(cells) < glossaryColumns || headerTerms[strings.ToLower(cells[0])] {
			continue
		}
		entry := Entry{
			Term:      cells[0],
			Canonical: cells[1],
			Allowed:   SplitTerms(cells[2]),
			Forbidden: SplitTerms(cells[3]),
			Notes:     cells[4],
		}
		if entry.normalize() {
			entries = append(entries, entry)
		}
	}
	return entries
}

func nodeText(n ast.Node, src []byte) string {
	var b bytes.Buffer
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

type yamlGlossary struct {
	Entries []Entry `yaml:"entries"`
}

// ParseYAML reads a glossary.yaml document. The document is either a mapping
// with an "entries" list or a bare list of entries.
func ParseYAML(data []byte) ([]Entry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	body := root.Content[0]
	var raw []Entry
	switch body.Kind {
	case yaml.MappingNode:
		var doc yamlGlossary
		if err := body.Decode(&doc); err != nil {
			return nil, err
		}
		raw = doc.Entries
	case yaml.SequenceNode:
		if err := body.Decode(&raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("line %d: expected a mapping or a list of entries", body.Line)
	}
	entries := make([]Entry, 0, len(raw))
	for _, entry := range raw {
		if entry.normalize() {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// MergeEntries layers glossaries in order; later entries override earlier ones
// with the same key. The result is sorted by key and every entry gets its
// canonical spelling as replacement target.
func MergeEntries(layers ...[]Entry) []Entry {
	byKey := make(map[string]Entry)
	for _, layer := range layers {
		for _, entry := range layer {
			if !entry.normalize() {
				continue
			}
			entry.ReplacementTarget = entry.Canonical
			byKey[entry.Key()] = entry
		}
	}
	merged := make([]Entry, 0, len(byKey))
	for _, entry := range byKey {
		merged = append(merged, entry)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Key() < merged[j].Key() })
	return merged
}
