package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"folio/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LibraryDir = filepath.Join(base, "library")
	cfgVal.Paths.InboxDir = filepath.Join(base, "inbox")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Review.Reviewer = "tester"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	for _, dir := range []string{builder.cfg.Paths.LibraryDir, builder.cfg.Paths.InboxDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return builder.cfg
}

// WithManualDecisions disables the automatic decision policy.
func WithManualDecisions() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cascade.AutoDecide = false
	}
}

// WithGlossarySeverity sets the severity of forbidden glossary term findings.
func WithGlossarySeverity(severity string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Audit.GlossarySeverity = severity
	}
}

// WithMaxPasses overrides the pass budget of one severity band.
func WithMaxPasses(severity string, passes int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cascade.MaxPasses[severity] = passes
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LibraryDir)
}
