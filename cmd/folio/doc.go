// Package main hosts the folio CLI entrypoint and command graph.
//
// The Cobra-based command tree maps terminal invocations onto the cascade
// engine: read-only audits, single detection and decision passes, reviewer
// choices, contrast checks, full book runs and the views over their review
// sidecars. It centralizes configuration resolution and logger setup so
// subcommands only parse arguments and render results.
package main
