// Package services defines shared utilities consumed by the cascade engine,
// its stores and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp book paths, story IDs, stage names, and run
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into input, missing-input and persistence errors.
package services
