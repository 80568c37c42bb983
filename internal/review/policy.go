package review

import (
	"fmt"
	"strings"
)

// Stage is one of the two review stages of a story.
type Stage string

const (
	StageText   Stage = "text"
	StagePrompt Stage = "prompt"
)

// Stages lists the review stages in execution order.
var Stages = []Stage{StageText, StagePrompt}

// ParseStage validates a stage name.
func ParseStage(value string) (Stage, error) {
	switch Stage(strings.ToLower(strings.TrimSpace(value))) {
	case StageText:
		return StageText, nil
	case StagePrompt:
		return StagePrompt, nil
	default:
		return "", fmt.Errorf("unknown stage %q", value)
	}
}

// Severity classifies findings; bands are processed in Severities order.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityInfo     Severity = "info"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityMajor, SeverityMinor, SeverityInfo}

// ParseSeverity validates a severity name.
func ParseSeverity(value string) (Severity, error) {
	candidate := Severity(strings.ToLower(strings.TrimSpace(value)))
	for _, sev := range Severities {
		if sev == candidate {
			return sev, nil
		}
	}
	return "", fmt.Errorf("unknown severity %q", value)
}

// Impact is the reader-facing weight of a severity.
func (s Severity) Impact() string {
	switch s {
	case SeverityCritical, SeverityMajor:
		return "high"
	case SeverityMinor:
		return "medium"
	default:
		return "low"
	}
}

// BandPolicy is the pass budget and blocking flag of a severity band.
type BandPolicy struct {
	MaxPasses int  `json:"max_passes"`
	Blocking  bool `json:"blocking"`
}

// Policy maps every severity to its band policy.
type Policy map[Severity]BandPolicy

// DefaultPolicy returns the standard cascade policy table.
func DefaultPolicy() Policy {
	return Policy{
		SeverityCritical: {MaxPasses: 5, Blocking: true},
		SeverityMajor:    {MaxPasses: 4, Blocking: true},
		SeverityMinor:    {MaxPasses: 3, Blocking: false},
		SeverityInfo:     {MaxPasses: 2, Blocking: false},
	}
}

// NewPolicy builds a policy table from per-severity budgets and the list of
// blocking severities. Missing budgets fall back to the default table.
func NewPolicy(maxPasses map[string]int, blocking []string) (Policy, error) {
	policy := DefaultPolicy()
	for key, value := range maxPasses {
		sev, err := ParseSeverity(key)
		if err != nil {
			return nil, err
		}
		if value <= 0 {
			return nil, fmt.Errorf("max passes for %s must be positive", sev)
		}
		band := policy[sev]
		band.MaxPasses = value
		policy[sev] = band
	}
	if blocking != nil {
		for sev, band := range policy {
			band.Blocking = false
			policy[sev] = band
		}
		for _, value := range blocking {
			sev, err := ParseSeverity(value)
			if err != nil {
				return nil, err
			}
			band := policy[sev]
			band.Blocking = true
			policy[sev] = band
		}
	}
	return policy, nil
}

// Band returns the policy of a severity. Unknown severities get a single
// non-blocking pass.
func (p Policy) Band(sev Severity) BandPolicy {
	if band, ok := p[sev]; ok {
		return band
	}
	return BandPolicy{MaxPasses: 1}
}

// IsBlocking reports whether exhausting the band blocks the story.
func (p Policy) IsBlocking(sev Severity) bool {
	return p.Band(sev).Blocking
}
