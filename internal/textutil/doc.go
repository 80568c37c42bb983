// Package textutil provides the text primitives shared by the auditors and
// the contrast checker: word tokenization and drift ratios, mojibake
// detection and repair, whitespace normalization, case-insensitive search and
// replace, and identifier-safe token sanitizing.
//
// Tokenization normalizes text to NFC before splitting on non-word runes so
// composed and decomposed accents compare equal.
package textutil
