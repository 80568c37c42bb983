// Package audit detects content problems in stories. Auditors are pure: the
// same story content and glossary always produce the same findings with the
// same identities, in the same order.
package audit
