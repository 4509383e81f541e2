package dictionary

import (
	"fmt"
	"strconv"

	"github.com/toranomaki/toranomaki/pkg/jmdict"
)

// BuildEntries converts the externally-ingested jmdict-simplified entries
// into the jmdict.Entry records pkg/dictfile's writer consumes. This is
// the adapter between the out-of-scope XML/JSON ingestion collaborator
// (spec §1) and the binary dictionary format's core data model.
func BuildEntries(raw []JMdictEntry) ([]jmdict.Entry, error) {
	out := make([]jmdict.Entry, 0, len(raw))
	for _, r := range raw {
		e, err := buildEntry(r)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", r.Id, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func buildEntry(r JMdictEntry) (jmdict.Entry, error) {
	id, err := strconv.ParseUint(r.Id, 10, 32)
	if err != nil {
		return jmdict.Entry{}, fmt.Errorf("parsing ent_seq %q: %w", r.Id, err)
	}

	var kanji []string
	var priorities []uint16
	for _, k := range r.Kanji {
		kanji = append(kanji, k.Text)
		code, err := encodeElementPriority(k)
		if err != nil {
			return jmdict.Entry{}, err
		}
		priorities = append(priorities, code)
	}

	var readings []string
	for _, k := range r.Kana {
		readings = append(readings, k.Text)
		code, err := encodeElementPriority(k)
		if err != nil {
			return jmdict.Entry{}, err
		}
		priorities = append(priorities, code)
	}

	var senses []jmdict.Sense
	for _, s := range r.Sense {
		pos, err := buildPOSSet(s.PartOfSpeech)
		if err != nil {
			return jmdict.Entry{}, err
		}
		for _, g := range s.Gloss {
			lang, err := jmdict.ParseLanguage(normalizeLangTag(g.Lang))
			if err != nil {
				return jmdict.Entry{}, err
			}
			senses = append(senses, jmdict.Sense{Language: lang.Tag(), Gloss: g.Text, POS: pos})
		}
	}

	return jmdict.Entry{
		ID:         uint32(id),
		Kanji:      kanji,
		Readings:   readings,
		Priorities: priorities,
		Senses:     senses,
	}, nil
}

// encodeElementPriority derives a priority code from a kanji/kana element's
// frequency tags. jmdict-simplified tags priority markers the same way the
// upstream XML does ("news1", "ichi1", "spec1", "gai1", "nfNN"); "common"
// is a simplified-format convenience flag, treated here as an "ichi1" rank
// when no more specific tag is present.
func encodeElementPriority(el JMdictElement) (uint16, error) {
	ranks := jmdict.Ranks{}
	for _, tag := range el.Tags {
		source, rank, ok := parsePriorityTag(tag)
		if !ok {
			continue
		}
		ranks[source] = rank
	}
	if len(ranks) == 0 && el.Common {
		ranks[jmdict.SourceIchi] = 1
	}
	if len(ranks) == 0 {
		return 0, nil
	}
	return jmdict.EncodePriority(ranks)
}

func parsePriorityTag(tag string) (jmdict.PrioritySource, int, bool) {
	switch {
	case len(tag) >= 5 && tag[:4] == "news" && (tag[4] == '1' || tag[4] == '2'):
		return jmdict.SourceNews, int(tag[4] - '0'), true
	case len(tag) >= 5 && tag[:4] == "ichi" && (tag[4] == '1' || tag[4] == '2'):
		return jmdict.SourceIchi, int(tag[4] - '0'), true
	case len(tag) >= 5 && tag[:4] == "spec" && (tag[4] == '1' || tag[4] == '2'):
		return jmdict.SourceSpec, int(tag[4] - '0'), true
	case len(tag) >= 4 && tag[:3] == "gai" && (tag[3] == '1' || tag[3] == '2'):
		return jmdict.SourceGai, int(tag[3] - '0'), true
	case len(tag) >= 3 && tag[:2] == "nf":
		n, err := strconv.Atoi(tag[2:])
		if err != nil || n < 1 || n > 49 {
			return 0, 0, false
		}
		return jmdict.SourceNF, n, true
	}
	return 0, 0, false
}

func buildPOSSet(tags []string) ([]jmdict.PartOfSpeech, error) {
	if len(tags) > 8 {
		return nil, fmt.Errorf("%w: sense has %d POS tags (max 8 per set)", jmdict.ErrOverflow, len(tags))
	}
	pos := make([]jmdict.PartOfSpeech, 0, len(tags))
	for _, tag := range tags {
		p, err := jmdict.ParseEDICT(tag)
		if err != nil {
			return nil, err
		}
		pos = append(pos, p)
	}
	return pos, nil
}

// normalizeLangTag maps jmdict-simplified's ISO 639-2/B language codes to
// the tags ParseLanguage recognizes; both already use "eng", "fre", "ger",
// etc., so this is mostly a pass-through that defaults the empty tag.
func normalizeLangTag(tag string) string {
	if tag == "" {
		return "eng"
	}
	return tag
}
