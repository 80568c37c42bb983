// Package reviewstore persists the review sidecars of a book: per-story
// findings, contrast alerts, the append-only pass log and a readable markdown
// review, plus the book-level pipeline state.
//
// Every document carries a schema_version. Readers ignore unknown fields and
// reject documents whose major version they do not understand. Writes go
// through fileutil.WriteJSONAtomic so a crash never leaves a torn file.
package reviewstore
