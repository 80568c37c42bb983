package textutil

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// mojibakeMarkers are the code points left behind when UTF-8 bytes are
// decoded as Latin-1, plus the replacement character.
var mojibakeMarkers = []string{"Ã", "Â", "�"}

const maxRepairRounds = 2

// HasMojibake reports whether text carries typical double-encoding residue.
func HasMojibake(text string) bool {
	for _, marker := range mojibakeMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// RepairMojibake reverses UTF-8 text that was decoded as Latin-1 (or
// Windows-1252) by re-encoding it to single bytes and reading those bytes as
// UTF-8. It runs at most two rounds and returns the input unchanged when a
// round cannot be reversed cleanly.
func RepairMojibake(text string) string {
	current := text
	for round := 0; round < maxRepairRounds; round++ {
		if !HasMojibake(current) {
			break
		}
		repaired, ok := reencode(current, charmap.ISO8859_1)
		if !ok {
			repaired, ok = reencode(current, charmap.Windows1252)
		}
		if !ok || repaired == current {
			break
		}
		current = repaired
	}
	return current
}

func reencode(text string, cm *charmap.Charmap) (string, bool) {
	raw, err := cm.NewEncoder().String(text)
	if err != nil || !utf8.ValidString(raw) {
		return "", false
	}
	return raw, true
}
