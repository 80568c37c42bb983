package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCascade()
	c.normalizeAudit()
	c.normalizeReview()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if value, ok := os.LookupEnv("FOLIO_LIBRARY_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.LibraryDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		c.Paths.LibraryDir = defaultLibraryDir
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.InboxDir, err = expandPath(strings.TrimSpace(c.Paths.InboxDir)); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCascade() {
	if c.Cascade.MaxPasses == nil {
		c.Cascade.MaxPasses = make(map[string]int, len(DefaultMaxPasses))
	}
	normalized := make(map[string]int, len(DefaultMaxPasses))
	for key, value := range c.Cascade.MaxPasses {
		normalized[strings.ToLower(strings.TrimSpace(key))] = value
	}
	for key, value := range DefaultMaxPasses {
		if _, ok := normalized[key]; !ok {
			normalized[key] = value
		}
	}
	c.Cascade.MaxPasses = normalized
	c.Cascade.Blocking = normalizeList(c.Cascade.Blocking, strings.ToLower)
}

func (c *Config) normalizeAudit() {
	c.Audit.GlossarySeverity = strings.ToLower(strings.TrimSpace(c.Audit.GlossarySeverity))
	if c.Audit.GlossarySeverity == "" {
		c.Audit.GlossarySeverity = defaultGlossarySeverity
	}
	if c.Audit.PromptMinLength == 0 {
		c.Audit.PromptMinLength = defaultPromptMinLength
	}
	if c.Audit.DriftThreshold == 0 {
		c.Audit.DriftThreshold = defaultDriftThreshold
	}
	if c.Audit.ContrastDriftThreshold == 0 {
		c.Audit.ContrastDriftThreshold = defaultContrastDriftThreshold
	}
	c.Audit.DraftMarkers = normalizeList(c.Audit.DraftMarkers, nil)
}

func (c *Config) normalizeReview() {
	if value, ok := os.LookupEnv("FOLIO_REVIEWER"); ok && strings.TrimSpace(value) != "" {
		c.Review.Reviewer = value
	}
	c.Review.Reviewer = strings.TrimSpace(c.Review.Reviewer)
	if c.Review.Reviewer == "" {
		c.Review.Reviewer = defaultReviewer
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeList(values []string, transform func(string) string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if transform != nil {
			trimmed = transform(trimmed)
		}
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
