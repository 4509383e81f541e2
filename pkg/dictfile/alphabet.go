package dictfile

import (
	"unicode/utf16"

	"github.com/toranomaki/toranomaki/pkg/jmdict"
)

// Alphabet re-exports jmdict.Alphabet so callers only need to import one
// package for the common case.
type Alphabet = jmdict.Alphabet

const (
	Japanese = jmdict.Japanese
	Latin    = jmdict.Latin
)

// unitSize returns the fsst training/encoding unit width for an alphabet:
// Japanese words are trained over UTF-16 code units (2 bytes each, per
// spec §4.1's "UTF-16 external alphabet at training"); Latin glosses are
// trained over raw UTF-8 bytes.
func unitSize(a Alphabet) int {
	if a == Japanese {
		return 2
	}
	return 1
}

// toBytes converts a string to the byte form an alphabet's fsst table
// trains and encodes over.
func toBytes(a Alphabet, s string) []byte {
	if a != Japanese {
		return []byte(s)
	}
	units := utf16.Encode([]rune(s))
	b := make([]byte, len(units)*2)
	for i, u := range units {
		b[2*i] = byte(u)
		b[2*i+1] = byte(u >> 8)
	}
	return b
}

// fromBytes reverses toBytes.
func fromBytes(a Alphabet, b []byte) string {
	if a != Japanese {
		return string(b)
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	return string(utf16.Decode(units))
}
