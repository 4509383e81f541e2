package jmdict

import (
	"fmt"
	"regexp"
)

// PartOfSpeech is a grammatical tag attached to a Sense. Enumerator ids are
// 1..len(posTable), always < 128 so eight of them pack into the 64-bit POS
// set the entry record pool stores (spec §4.4/§4.7).
type PartOfSpeech uint8

// posInfo is a build-time-only association between an enumerator, its
// human label, and the regex used to recognize an EDICT-style tag
// description during ingest. The regex machinery never reaches the
// persisted file — only the enumerator ordinal does (spec §4.7).
type posInfo struct {
	label   string
	pattern *regexp.Regexp
}

// Tag constants. Ids are assigned by table position (1-based) so adding a
// tag at the end never renumbers existing ones.
const (
	NounGeneral PartOfSpeech = iota + 1
	NounSuffix
	NounPrefix
	NounAdverbial
	Pronoun
	AdjectiveI
	AdjectiveNa
	AdjectiveNo
	AdjectivePrenominal
	AdjectiveTaru
	AdjectiveKu
	AdjectiveShiku
	Adverb
	AdverbTo
	Conjunction
	Interjection
	Prefix
	Suffix
	Counter
	Copula
	Particle
	Auxiliary
	AuxiliaryVerb
	AuxiliaryAdjective
	Expression
	VerbGodanBu
	VerbGodanGu
	VerbGodanKu
	VerbGodanMu
	VerbGodanNu
	VerbGodanRu
	VerbGodanRuIrregular
	VerbGodanSu
	VerbGodanTsu
	VerbGodanU
	VerbGodanUIrregular
	VerbIchidan
	VerbIchidanZuru
	VerbKuruIrregular
	SuruIrregular
	SuruSpecial
	VerbNuIrregular
	VerbRuIrregular
	VerbTransitive
	VerbIntransitive
	VerbAuxiliary
	Unclassified
	Abbreviation
	Honorific
	Humble
	SuruNoun
)

var posTable = map[PartOfSpeech]posInfo{
	NounGeneral:          {"noun", regexp.MustCompile(`^\(?n\)?$`)},
	NounSuffix:           {"noun, used as a suffix", regexp.MustCompile(`^\(?n-suf\)?$`)},
	NounPrefix:           {"noun, used as a prefix", regexp.MustCompile(`^\(?n-pref\)?$`)},
	NounAdverbial:        {"adverbial noun", regexp.MustCompile(`^\(?n-adv\)?$`)},
	Pronoun:              {"pronoun", regexp.MustCompile(`^\(?pn\)?$`)},
	AdjectiveI:           {"adjective (i)", regexp.MustCompile(`^\(?adj-i\)?$`)},
	AdjectiveNa:          {"adjectival noun (na)", regexp.MustCompile(`^\(?adj-na\)?$`)},
	AdjectiveNo:          {"nouns which may take the genitive case particle 'no'", regexp.MustCompile(`^\(?adj-no\)?$`)},
	AdjectivePrenominal:  {"pre-noun adjectival", regexp.MustCompile(`^\(?adj-pn\)?$`)},
	AdjectiveTaru:        {"'taru' adjective", regexp.MustCompile(`^\(?adj-t\)?$`)},
	AdjectiveKu:          {"'ku' adjective (archaic)", regexp.MustCompile(`^\(?adj-ku\)?$`)},
	AdjectiveShiku:       {"'shiku' adjective (archaic)", regexp.MustCompile(`^\(?adj-shiku\)?$`)},
	Adverb:               {"adverb", regexp.MustCompile(`^\(?adv\)?$`)},
	AdverbTo:             {"adverb taking the 'to' particle", regexp.MustCompile(`^\(?adv-to\)?$`)},
	Conjunction:          {"conjunction", regexp.MustCompile(`^\(?conj\)?$`)},
	Interjection:         {"interjection", regexp.MustCompile(`^\(?int\)?$`)},
	Prefix:               {"prefix", regexp.MustCompile(`^\(?pref\)?$`)},
	Suffix:               {"suffix", regexp.MustCompile(`^\(?suf\)?$`)},
	Counter:              {"counter", regexp.MustCompile(`^\(?ctr\)?$`)},
	Copula:               {"copula", regexp.MustCompile(`^\(?cop\)?$`)},
	Particle:             {"particle", regexp.MustCompile(`^\(?prt\)?$`)},
	Auxiliary:            {"auxiliary", regexp.MustCompile(`^\(?aux\)?$`)},
	AuxiliaryVerb:        {"auxiliary verb", regexp.MustCompile(`^\(?aux-v\)?$`)},
	AuxiliaryAdjective:   {"auxiliary adjective", regexp.MustCompile(`^\(?aux-adj\)?$`)},
	Expression:           {"expressions (phrases, clauses, etc.)", regexp.MustCompile(`^\(?exp\)?$`)},
	VerbGodanBu:          {"godan verb with 'bu' ending", regexp.MustCompile(`^\(?v5b\)?$`)},
	VerbGodanGu:          {"godan verb with 'gu' ending", regexp.MustCompile(`^\(?v5g\)?$`)},
	VerbGodanKu:          {"godan verb with 'ku' ending", regexp.MustCompile(`^\(?v5k\)?$`)},
	VerbGodanMu:          {"godan verb with 'mu' ending", regexp.MustCompile(`^\(?v5m\)?$`)},
	VerbGodanNu:          {"godan verb with 'nu' ending", regexp.MustCompile(`^\(?v5n\)?$`)},
	VerbGodanRu:          {"godan verb with 'ru' ending", regexp.MustCompile(`^\(?v5r\)?$`)},
	VerbGodanRuIrregular: {"godan verb with 'ru' ending (irregular)", regexp.MustCompile(`^\(?v5r-i\)?$`)},
	VerbGodanSu:          {"godan verb with 'su' ending", regexp.MustCompile(`^\(?v5s\)?$`)},
	VerbGodanTsu:         {"godan verb with 'tsu' ending", regexp.MustCompile(`^\(?v5t\)?$`)},
	VerbGodanU:           {"godan verb with 'u' ending", regexp.MustCompile(`^\(?v5u\)?$`)},
	VerbGodanUIrregular:  {"godan verb with 'u' ending (irregular)", regexp.MustCompile(`^\(?v5u-s\)?$`)},
	VerbIchidan:          {"ichidan verb", regexp.MustCompile(`^\(?v1\)?$`)},
	VerbIchidanZuru:      {"zuru verb (ichidan, alternative for -jiru)", regexp.MustCompile(`^\(?vz\)?$`)},
	VerbKuruIrregular:    {"kuru verb (irregular)", regexp.MustCompile(`^\(?vk\)?$`)},
	SuruIrregular:        {"suru verb (irregular)", regexp.MustCompile(`^\(?vs-i\)?$`)},
	SuruSpecial:          {"suru verb (special class)", regexp.MustCompile(`^\(?vs-s\)?$`)},
	VerbNuIrregular:      {"nu verb (irregular, archaic)", regexp.MustCompile(`^\(?vn\)?$`)},
	VerbRuIrregular:      {"ru verb, not shimo/kami ichidan", regexp.MustCompile(`^\(?vr\)?$`)},
	VerbTransitive:       {"transitive verb", regexp.MustCompile(`^\(?vt\)?$`)},
	VerbIntransitive:     {"intransitive verb", regexp.MustCompile(`^\(?vi\)?$`)},
	VerbAuxiliary:        {"auxiliary verb usage", regexp.MustCompile(`^\(?vaux\)?$`)},
	Unclassified:         {"unclassified", regexp.MustCompile(`^\(?unc\)?$`)},
	Abbreviation:         {"abbreviation", regexp.MustCompile(`^\(?abbr\)?$`)},
	Honorific:            {"honorific (sonkeigo) language", regexp.MustCompile(`^\(?hon\)?$`)},
	Humble:               {"humble (kenjougo) language", regexp.MustCompile(`^\(?hum\)?$`)},
	SuruNoun:             {"noun or participle which takes the aux. verb suru", regexp.MustCompile(`^\(?vs\)?$`)},
}

// Label returns the human-readable description of a POS tag, or the empty
// string if p is not a recognized enumerator.
func (p PartOfSpeech) Label() string {
	if info, ok := posTable[p]; ok {
		return info.label
	}
	return ""
}

// ParseEDICT finds the single PartOfSpeech whose pattern matches an EDICT
// tag description (e.g. "v5r" or "(v5r)"). An ambiguous or absent match is
// fatal at ingest time (spec §4.7): callers should abort the build rather
// than guess.
func ParseEDICT(description string) (PartOfSpeech, error) {
	var found PartOfSpeech
	matches := 0
	for tag, info := range posTable {
		if info.pattern.MatchString(description) {
			found = tag
			matches++
		}
	}
	switch matches {
	case 0:
		return 0, fmt.Errorf("jmdict: no part-of-speech tag matches %q", description)
	case 1:
		return found, nil
	default:
		return 0, fmt.Errorf("jmdict: ambiguous part-of-speech tag %q matches %d entries", description, matches)
	}
}

// PackPOSSet packs up to 8 PartOfSpeech enumerators into a single 64-bit
// value, one byte each, little-endian, zero-terminated (spec §4.4). The
// caller must have already validated len(pos) <= 8.
func PackPOSSet(pos []PartOfSpeech) (uint64, error) {
	if len(pos) > 8 {
		return 0, fmt.Errorf("%w: %d POS tags (max 8 per set)", ErrOverflow, len(pos))
	}
	var packed uint64
	for i, p := range pos {
		if p == 0 {
			return 0, fmt.Errorf("jmdict: POS tag 0 is reserved as the zero terminator")
		}
		packed |= uint64(p) << (8 * i)
	}
	return packed, nil
}

// UnpackPOSSet reverses PackPOSSet, stopping at the first zero byte.
func UnpackPOSSet(packed uint64) []PartOfSpeech {
	var pos []PartOfSpeech
	for i := 0; i < 8; i++ {
		b := PartOfSpeech(packed >> (8 * i) & 0xFF)
		if b == 0 {
			break
		}
		pos = append(pos, b)
	}
	return pos
}
