package dictfile

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

// compareWords implements the "AaBbCc" comparator of spec §4.2: compare
// upper-cased first, then lower-cased, then raw code points, with length
// as a final (normally unreachable) tie-break. This is the one comparator
// used both for sort order (pkg/dictfile word tables) and for prefix-scan
// termination (GetEntriesUsingPrefix, SearchBest) — spec §9 calls out a
// bug in the original where those two used different comparators and a
// prefix scan could stop early; this implementation shares one function
// for both.
func compareWords(a, b string) int {
	if au, bu := upperCaser.String(a), upperCaser.String(b); au != bu {
		return strings.Compare(au, bu)
	}
	if al, bl := lowerCaser.String(a), lowerCaser.String(b); al != bl {
		return strings.Compare(al, bl)
	}
	if a != b {
		return strings.Compare(a, b)
	}
	return len(a) - len(b)
}

// hasWordPrefix reports whether s starts with prefix under the same
// case-fold rules compareWords uses for ordering. Spec §9 notes that the
// original implementation's commonPrefixLength was case-sensitive even
// though the sort order was case-insensitive, which could cut a prefix
// scan off too early; this uses the same fold as compareWords for both.
func hasWordPrefix(s, prefix string) bool {
	prefixRunes := []rune(prefix)
	sRunes := []rune(s)
	if len(prefixRunes) > len(sRunes) {
		return false
	}
	head := string(sRunes[:len(prefixRunes)])
	return upperCaser.String(head) == upperCaser.String(prefix) &&
		lowerCaser.String(head) == lowerCaser.String(prefix)
}
