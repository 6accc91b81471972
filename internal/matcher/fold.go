// Package matcher evaluates classification rule patterns against
// transaction descriptors.
package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold flattens a descriptor for comparison: combining diacritics are
// decomposed and dropped, then the result is upper-cased. Folding an
// already-folded string is a no-op.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		// Malformed UTF-8 falls back to case flattening only.
		folded = s
	}
	return strings.ToUpper(folded)
}
