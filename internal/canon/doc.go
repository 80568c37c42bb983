// Package canon resolves the editorial context of a book: the glossary chain
// inherited from every ancestor node of the book path, the reviewer's
// glossary decisions, and the canonical PDF references found in the inbox.
//
// Glossaries come from markdown tables under a "Glosario"/"Glossary" heading
// in the node context files, and from an optional glossary.yaml. Deeper nodes
// override shallower ones term by term.
package canon
