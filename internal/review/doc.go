// Package review holds the vocabulary shared by every cascade component:
// stages, severities and their policy table, findings with content-addressed
// identities, suggestions, decisions, contrast alerts and the suggestion
// applier that mutates a story according to accepted decisions.
//
// Decision status and open-for-convergence are deliberately separate: a
// rejected critical finding keeps decision "rejected" while still counting as
// open for its band.
package review
