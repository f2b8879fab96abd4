package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText lowercases s, trims it, and collapses internal whitespace runs
// to a single space. Compatibility characters (full-width letters, ligatures,
// non-breaking spaces) are folded first so visually identical strings from
// different sources compare equal. Empty input yields "".
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}

	s = norm.NFKC.String(s)
	// Casers carry state; one per call keeps this safe for parallel use.
	s = cases.Lower(language.Und).String(s)

	return strings.Join(strings.Fields(s), " ")
}
