package review

// DecisionRecord is the persisted decision for one finding identity.
type DecisionRecord struct {
	FindingID      string   `json:"finding_id"`
	Stage          Stage    `json:"stage"`
	Severity       Severity `json:"severity"`
	PageNumber     int      `json:"page_number,omitempty"`
	Category       string   `json:"category,omitempty"`
	Decision       Decision `json:"decision"`
	SelectedOption string   `json:"selected_option"`
	Notes          string   `json:"notes"`
	ResolvedBy     string   `json:"resolved_by,omitempty"`
	ResolvedAt     string   `json:"resolved_at,omitempty"`
}

// Merge copies decisions onto findings by identity. Findings without a
// record become pending.
func Merge(findings []Finding, decisions map[string]DecisionRecord) {
	for i := range findings {
		rec, ok := decisions[findings[i].ID]
		if !ok {
			findings[i].Decision = DecisionPending
			findings[i].SelectedOption = ""
			findings[i].Notes = ""
			findings[i].ResolvedBy = ""
			findings[i].ResolvedAt = ""
			continue
		}
		findings[i].Decision = rec.Decision
		findings[i].SelectedOption = rec.SelectedOption
		findings[i].Notes = rec.Notes
		findings[i].ResolvedBy = rec.ResolvedBy
		findings[i].ResolvedAt = rec.ResolvedAt
	}
}

// Alert is a post-mutation contrast check that failed.
type Alert struct {
	ID         string   `json:"id"`
	Stage      Stage    `json:"stage"`
	Severity   Severity `json:"severity"`
	PageNumber int      `json:"page_number"`
	Field      string   `json:"field"`
	Evidence   string   `json:"evidence"`
	Reference  string   `json:"reference"`
	Status     string   `json:"status"`
}

// AlertOpen is the status of an alert that still fails.
const AlertOpen = "open"

// CountOpenAlerts returns the number of open alerts.
func CountOpenAlerts(alerts []Alert) int {
	n := 0
	for _, a := range alerts {
		if a.Status == AlertOpen {
			n++
		}
	}
	return n
}

// Metrics counts findings per severity whose decision is unresolved
// (pending or rejected), independently of the convergence rule.
type Metrics struct {
	CriticalOpen int `json:"critical_open"`
	MajorOpen    int `json:"major_open"`
	MinorOpen    int `json:"minor_open"`
	InfoOpen     int `json:"info_open"`
}

// Add increments the counter of a severity.
func (m *Metrics) Add(sev Severity, n int) {
	switch sev {
	case SeverityCritical:
		m.CriticalOpen += n
	case SeverityMajor:
		m.MajorOpen += n
	case SeverityMinor:
		m.MinorOpen += n
	default:
		m.InfoOpen += n
	}
}

// Get returns the counter of a severity.
func (m Metrics) Get(sev Severity) int {
	switch sev {
	case SeverityCritical:
		return m.CriticalOpen
	case SeverityMajor:
		return m.MajorOpen
	case SeverityMinor:
		return m.MinorOpen
	default:
		return m.InfoOpen
	}
}

// ComputeMetrics counts pending and rejected findings per severity.
func ComputeMetrics(findings []Finding) Metrics {
	var m Metrics
	for _, f := range findings {
		if f.Decision == DecisionPending || f.Decision == DecisionRejected {
			m.Add(f.Severity, 1)
		}
	}
	return m
}
