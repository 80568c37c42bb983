// Package cascade drives the editorial review of a book.
//
// A pass audits one severity band of one stage, syncs reviewer decisions,
// applies accepted suggestions, re-audits the mutated story and runs the
// contrast oracle. Bands run passes until nothing is open or their budget is
// spent; an exhausted blocking band halts the story and the book run. Every
// pass leaves sidecars under the book's _reviews directory and the book run
// checkpoints pipeline_state.json after every pass so an interrupted run can
// resume where it stopped.
//
// Mutating operations hold an exclusive lock on the book so two processes
// never interleave passes.
package cascade
