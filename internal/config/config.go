package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LibraryDir string `toml:"library_dir"`
	InboxDir   string `toml:"inbox_dir"`
	LogDir     string `toml:"log_dir"`
}

// Cascade contains the severity policy and decision mode of the controller.
type Cascade struct {
	AutoDecide bool           `toml:"auto_decide"`
	Blocking   []string       `toml:"blocking"`
	MaxPasses  map[string]int `toml:"max_passes"`
}

// Audit contains the thresholds used by the auditors and the contrast checker.
type Audit struct {
	DriftThreshold         float64  `toml:"drift_threshold"`
	ContrastDriftThreshold float64  `toml:"contrast_drift_threshold"`
	PromptMinLength        int      `toml:"prompt_min_length"`
	GlossarySeverity       string   `toml:"glossary_severity"`
	DraftMarkers           []string `toml:"draft_markers"`
}

// Review contains settings for human decisions recorded through the CLI.
type Review struct {
	Reviewer string `toml:"reviewer"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   bool   `toml:"file"`
}

// Config encapsulates all configuration values for folio.
//
// Configuration sections by subsystem:
//   - Paths: story library, canonical PDF inbox and log directories
//   - Cascade: per-severity pass budgets, blocking bands, auto decisions
//   - Audit: drift thresholds, prompt length floor, glossary severity
//   - Review: reviewer name stamped on human decisions
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Cascade Cascade `toml:"cascade"`
	Audit   Audit   `toml:"audit"`
	Review  Review  `toml:"review"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("folio.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log directory when file logging is enabled.
// The library directory is never created: a missing library is a
// configuration problem the cascade reports on first access.
func (c *Config) EnsureDirectories() error {
	if !c.Logging.File {
		return nil
	}
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// BookDir returns the absolute directory of a book inside the library.
func (c *Config) BookDir(bookRelPath string) string {
	return filepath.Join(c.Paths.LibraryDir, filepath.FromSlash(bookRelPath))
}

// InboxRoot returns the directory holding canonical PDFs per book title.
func (c *Config) InboxRoot() string {
	if strings.TrimSpace(c.Paths.InboxDir) != "" {
		return c.Paths.InboxDir
	}
	return filepath.Join(c.Paths.LibraryDir, "_inbox")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
