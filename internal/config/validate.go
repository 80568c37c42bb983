package config

import (
	"errors"
	"fmt"
	"strings"
)

var knownSeverities = []string{"critical", "major", "minor", "info"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCascade(); err != nil {
		return err
	}
	if err := c.validateAudit(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir must be set")
	}
	return nil
}

func (c *Config) validateCascade() error {
	for key, value := range c.Cascade.MaxPasses {
		if !isSeverity(key) {
			return fmt.Errorf("cascade.max_passes: unknown severity %q", key)
		}
		if value <= 0 {
			return fmt.Errorf("cascade.max_passes.%s must be positive", key)
		}
	}
	for _, value := range c.Cascade.Blocking {
		if !isSeverity(value) {
			return fmt.Errorf("cascade.blocking: unknown severity %q", value)
		}
	}
	return nil
}

func (c *Config) validateAudit() error {
	if c.Audit.DriftThreshold <= 0 || c.Audit.DriftThreshold > 1 {
		return errors.New("audit.drift_threshold must be between 0 and 1")
	}
	if c.Audit.ContrastDriftThreshold <= 0 || c.Audit.ContrastDriftThreshold > 1 {
		return errors.New("audit.contrast_drift_threshold must be between 0 and 1")
	}
	if c.Audit.PromptMinLength < 0 {
		return errors.New("audit.prompt_min_length must be >= 0")
	}
	if !isSeverity(c.Audit.GlossarySeverity) {
		return fmt.Errorf("audit.glossary_severity: unknown severity %q", c.Audit.GlossarySeverity)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported level %q", c.Logging.Level)
	}
}

func isSeverity(value string) bool {
	for _, candidate := range knownSeverities {
		if candidate == value {
			return true
		}
	}
	return false
}
