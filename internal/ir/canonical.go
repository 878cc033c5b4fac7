package ir

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName produces the canonical form of a key, axis or object name:
// surrounding whitespace trimmed and NFC normalized.
//
// Names that render identically must compare equal, otherwise two sources
// could register visually identical keys without tripping DUPLICATE_KEY.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Object is the normalized (name, axes, payload) triple a loader produces.
type Object struct {
	Name  string
	Table *Table
}
