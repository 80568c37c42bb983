package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"folio/internal/audit"
	"folio/internal/config"
	"folio/internal/testsupport"
)

const testBook = "saga/nacidos"

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("FOLIO_LIBRARY_DIR", "")
	t.Setenv("FOLIO_REVIEWER", "")
	cfg := testsupport.NewConfig(t, opts...)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func (env *cliTestEnv) saveStory(t *testing.T, id, text, prompt string) {
	t.Helper()
	if prompt == "" {
		prompt = audit.StructuredPrompt(text, "Tejados de Luthadel.")
	}
	testsupport.SaveStory(t, env.cfg, testBook, testsupport.NewStory(id, testsupport.NewPage(1, text, prompt)))
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nlibrary_dir = %q\ninbox_dir = %q\nlog_dir = %q\n\n[cascade]\nauto_decide = %t\n\n[audit]\nglossary_severity = %q\n\n[review]\nreviewer = %q\n\n[logging]\nlevel = \"error\"\n",
		cfg.Paths.LibraryDir,
		cfg.Paths.InboxDir,
		cfg.Paths.LogDir,
		cfg.Cascade.AutoDecide,
		cfg.Audit.GlossarySeverity,
		cfg.Review.Reviewer,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
