package canon

import (
	"sort"
	"strings"
)

// ReviewSchemaVersion is the schema of context_review.json.
const ReviewSchemaVersion = "1.0"

// Term decisions of the glossary review.
const (
	TermAccepted = "accepted"
	TermRejected = "rejected"
	TermDefer    = "defer"
	TermPending  = "pending"
)

// ParseTermDecision normalizes a glossary decision; unknown values are pending.
func ParseTermDecision(value string) string {
	switch v := strings.ToLower(strings.TrimSpace(value)); v {
	case TermAccepted, TermRejected, TermDefer:
		return v
	default:
		return TermPending
	}
}

// ReviewRow is the reviewer decision for one glossary term.
type ReviewRow struct {
	TermKey        string   `json:"term_key"`
	Term           string   `json:"term"`
	Decision       string   `json:"decision"`
	PreferredAlias string   `json:"preferred_alias"`
	AllowedAdd     TermList `json:"allowed_add"`
	ForbiddenAdd   TermList `json:"forbidden_add"`
	Notes          string   `json:"notes"`
	UpdatedAt      string   `json:"updated_at"`
}

func (r ReviewRow) normalize(now string) (ReviewRow, bool) {
	r.Term = strings.TrimSpace(r.Term)
	r.TermKey = strings.ToLower(strings.TrimSpace(r.TermKey))
	if r.TermKey == "" {
		r.TermKey = strings.ToLower(r.Term)
	}
	if r.TermKey == "" {
		return r, false
	}
	if r.Term == "" {
		r.Term = r.TermKey
	}
	r.Decision = ParseTermDecision(r.Decision)
	r.PreferredAlias = strings.TrimSpace(r.PreferredAlias)
	r.AllowedAdd = Dedupe(r.AllowedAdd)
	r.ForbiddenAdd = Dedupe(r.ForbiddenAdd)
	r.Notes = strings.TrimSpace(r.Notes)
	r.UpdatedAt = strings.TrimSpace(r.UpdatedAt)
	if r.UpdatedAt == "" {
		r.UpdatedAt = now
	}
	return r, true
}

// ReviewMetrics counts glossary review decisions.
type ReviewMetrics struct {
	Total              int `json:"total"`
	Accepted           int `json:"accepted"`
	Rejected           int `json:"rejected"`
	Defer              int `json:"defer"`
	Pending            int `json:"pending"`
	IgnoredMissingTerm int `json:"ignored_missing_term"`
}

// ReviewDoc is the persisted glossary review of a book.
type ReviewDoc struct {
	SchemaVersion  string        `json:"schema_version"`
	BookRelPath    string        `json:"book_rel_path"`
	InboxBookTitle string        `json:"inbox_book_title,omitempty"`
	GeneratedAt    string        `json:"generated_at"`
	UpdatedAt      string        `json:"updated_at"`
	Decisions      []ReviewRow   `json:"decisions"`
	Metrics        ReviewMetrics `json:"metrics"`
}

// MergeReviewRows combines persisted rows with incoming ones by term key.
// Incoming rows win and are stamped with now. The result is sorted.
func MergeReviewRows(existing, incoming []ReviewRow, now string) []ReviewRow {
	merged := make(map[string]ReviewRow, len(existing)+len(incoming))
	for _, row := range existing {
		if normalized, ok := row.normalize(now); ok {
			merged[normalized.TermKey] = normalized
		}
	}
	for _, row := range incoming {
		normalized, ok := row.normalize(now)
		if !ok {
			continue
		}
		normalized.UpdatedAt = now
		merged[normalized.TermKey] = normalized
	}
	rows := make([]ReviewRow, 0, len(merged))
	for _, row := range merged {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].TermKey < rows[j].TermKey })
	return rows
}

// ApplyReview layers accepted review rows over a merged glossary. Accepted
// rows set the replacement target to the preferred alias (else the canonical
// spelling) and extend the allowed and forbidden lists. It returns the new
// glossary and the number of rows naming unknown terms.
func ApplyReview(glossary []Entry, rows []ReviewRow) ([]Entry, int) {
	out := make([]Entry, len(glossary))
	index := make(map[string]int, len(glossary))
	for i, entry := range glossary {
		entry.Allowed = append(TermList(nil), entry.Allowed...)
		entry.Forbidden = append(TermList(nil), entry.Forbidden...)
		if entry.ReplacementTarget == "" {
			entry.ReplacementTarget = entry.Canonical
		}
		out[i] = entry
		index[entry.Key()] = i
	}
	ignored := 0
	for _, row := range rows {
		key := strings.ToLower(strings.TrimSpace(row.TermKey))
		if key == "" {
			continue
		}
		i, ok := index[key]
		if !ok {
			ignored++
			continue
		}
		if ParseTermDecision(row.Decision) != TermAccepted {
			continue
		}
		target := &out[i]
		if alias := strings.TrimSpace(row.PreferredAlias); alias != "" {
			target.ReplacementTarget = alias
		} else if target.Canonical != "" {
			target.ReplacementTarget = target.Canonical
		} else {
			target.ReplacementTarget = target.Term
		}
		target.Allowed = Dedupe(append(target.Allowed, row.AllowedAdd...))
		target.Forbidden = Dedupe(append(target.Forbidden, row.ForbiddenAdd...))
		if notes := strings.TrimSpace(row.Notes); notes != "" {
			if target.Notes == "" {
				target.Notes = notes
			} else {
				target.Notes += "\n" + notes
			}
		}
	}
	return out, ignored
}

// ComputeReviewMetrics counts rows per decision.
func ComputeReviewMetrics(rows []ReviewRow, ignoredMissingTerm int) ReviewMetrics {
	metrics := ReviewMetrics{Total: len(rows), IgnoredMissingTerm: ignoredMissingTerm}
	for _, row := range rows {
		switch ParseTermDecision(row.Decision) {
		case TermAccepted:
			metrics.Accepted++
		case TermRejected:
			metrics.Rejected++
		case TermDefer:
			metrics.Defer++
		default:
			metrics.Pending++
		}
	}
	return metrics
}
