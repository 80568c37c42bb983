package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"folio/internal/config"
	"folio/internal/logging"
	"folio/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.File = true
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("cascade started", logging.String(logging.FieldBook, "saga/libro-1"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "folio.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &entry); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, content)
	}
	if entry["level"] != "info" || entry["msg"] != "cascade started" || entry["book"] != "saga/libro-1" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", entry)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	component := logging.NewComponentLogger(logger, "cascade")
	component.Info("pass completed", logging.Int(logging.FieldPassIndex, 2), logging.String("note", "two words"))
	component.Debug("hidden")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
	if !strings.Contains(line, " INFO cascade: pass completed") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "pass_index=2") || !strings.Contains(line, `note="two words"`) {
		t.Fatalf("expected formatted attributes, got %q", line)
	}
	if strings.Contains(line, "hidden") {
		t.Fatalf("debug line leaked at info level: %q", line)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "context.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithRequestID(context.Background(), "run-1")
	ctx = services.WithBook(ctx, "saga/libro-1")
	ctx = services.WithStoryID(ctx, "03")
	ctx = services.WithStage(ctx, "text")
	logging.WarnWithContext(logging.WithContext(ctx, logger), "stage blocked", "stage_blocked")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	want := map[string]string{
		logging.FieldCorrelationID: "run-1",
		logging.FieldBook:          "saga/libro-1",
		logging.FieldStoryID:       "03",
		logging.FieldStage:         "text",
		logging.FieldEventType:     "stage_blocked",
		logging.FieldErrorHint:     "check logs for details",
		"level":                    "warn",
	}
	for key, value := range want {
		if entry[key] != value {
			t.Fatalf("%s = %v, want %q", key, entry[key], value)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewComponentLogger(nil, "cascade")
	logger.Info("dropped")
	logging.ErrorWithContext(nil, "ignored", "none")
	if logging.WithContext(context.Background(), nil) == nil {
		t.Fatal("expected a logger")
	}
}
