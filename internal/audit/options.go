package audit

import (
	"fmt"

	"folio/internal/config"
	"folio/internal/review"
)

// Options tunes the auditors.
type Options struct {
	DriftThreshold   float64
	PromptMinLength  int
	GlossarySeverity review.Severity
	DraftMarkers     []string
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		DriftThreshold:   0.80,
		PromptMinLength:  24,
		GlossarySeverity: review.SeverityMajor,
		DraftMarkers:     append([]string(nil), config.DefaultDraftMarkers...),
	}
}

// OptionsFromConfig builds auditor options from the audit config section.
func OptionsFromConfig(cfg config.Audit) (Options, error) {
	opts := DefaultOptions()
	if cfg.DriftThreshold > 0 {
		opts.DriftThreshold = cfg.DriftThreshold
	}
	if cfg.PromptMinLength > 0 {
		opts.PromptMinLength = cfg.PromptMinLength
	}
	if cfg.GlossarySeverity != "" {
		sev, err := review.ParseSeverity(cfg.GlossarySeverity)
		if err != nil {
			return Options{}, fmt.Errorf("audit glossary severity: %w", err)
		}
		opts.GlossarySeverity = sev
	}
	if cfg.DraftMarkers != nil {
		opts.DraftMarkers = append([]string(nil), cfg.DraftMarkers...)
	}
	return opts, nil
}
