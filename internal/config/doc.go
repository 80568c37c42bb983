// Package config loads, normalizes, and validates folio configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FOLIO_LIBRARY_DIR and FOLIO_REVIEWER. The Config type centralizes the
// cascade policy overrides and audit thresholds so the controller, the
// auditors and the CLI agree on a single set of knobs.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical severity names, and clear validation errors.
package config
