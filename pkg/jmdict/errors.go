package jmdict

import "errors"

// ErrOverflow marks a build-time field-width violation (spec §7: too many
// kanji/readings/senses, a POS set too large). It is wrapped, never
// returned bare, so callers can match it with errors.Is.
var ErrOverflow = errors.New("jmdict: field exceeds encodable width")
