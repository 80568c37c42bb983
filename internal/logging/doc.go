// Package logging assembles structured slog loggers and formatting helpers used
// across folio.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so cascade code can tag log
// lines with the book, story, stage and run identifier. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
