package dictfile

import (
	"encoding/binary"

	"github.com/toranomaki/toranomaki/pkg/jmdict"
)

// entryRecordSize returns the byte size of e's serialized record (spec
// §4.4, with the entry-id field this implementation adds — see
// DESIGN.md's "Entry id preservation" note).
func entryRecordSize(e jmdict.Entry) int {
	return 4 + 2 + 6*(len(e.Kanji)+len(e.Readings)) + 6*len(e.Senses)
}

// posSetTable deduplicates POS sets across all senses and assigns each a
// stable index (spec §4.4: "typically ≈400 distinct sets").
type posSetTable struct {
	sets    []uint64
	indexOf map[uint64]int
}

func newPOSSetTable() *posSetTable {
	return &posSetTable{indexOf: make(map[uint64]int)}
}

func (t *posSetTable) indexFor(pos []jmdict.PartOfSpeech) (int, error) {
	packed, err := jmdict.PackPOSSet(pos)
	if err != nil {
		return 0, err
	}
	if idx, ok := t.indexOf[packed]; ok {
		return idx, nil
	}
	idx := len(t.sets)
	t.sets = append(t.sets, packed)
	t.indexOf[packed] = idx
	return idx, nil
}

// encodeEntry serializes e into the C4 record format. japaneseRef and
// latinRef resolve a word string to its packed word-table reference
// (spec §4.2's (offset<<9)|length), so a decoder can later read the word
// directly via word_at_packed without a binary search.
func encodeEntry(e jmdict.Entry, japaneseRef func(string) (uint32, error), latinRef func(string) (uint32, error), posSets *posSetTable) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, overflowf("%v", err)
	}
	out := make([]byte, 4, entryRecordSize(e))
	binary.LittleEndian.PutUint32(out, e.ID)

	out = append(out, byte(len(e.Kanji)<<4|len(e.Readings)), byte(len(e.Senses)))

	writeJapanese := func(word string, priority uint16) error {
		ref, err := japaneseRef(word)
		if err != nil {
			return overflowf("%v", err)
		}
		var buf [6]byte
		binary.LittleEndian.PutUint32(buf[0:4], ref)
		binary.LittleEndian.PutUint16(buf[4:6], priority)
		out = append(out, buf[:]...)
		return nil
	}

	for i, k := range e.Kanji {
		if err := writeJapanese(k, e.Priorities[i]); err != nil {
			return nil, err
		}
	}
	for i, r := range e.Readings {
		if err := writeJapanese(r, e.Priorities[len(e.Kanji)+i]); err != nil {
			return nil, err
		}
	}

	for _, s := range e.Senses {
		ref, err := latinRef(s.Gloss)
		if err != nil {
			return nil, overflowf("%v", err)
		}
		lang, err := jmdict.ParseLanguage(s.Language)
		if err != nil {
			return nil, overflowf("%v", err)
		}
		posIdx, err := posSets.indexFor(s.POS)
		if err != nil {
			return nil, err
		}
		if posIdx >= 1<<13 {
			return nil, overflowf("POS-set table has %d entries, exceeds 13-bit index", posIdx)
		}
		attr := uint16(lang)&0x7 | uint16(posIdx)<<3
		var buf [6]byte
		binary.LittleEndian.PutUint32(buf[0:4], ref)
		binary.LittleEndian.PutUint16(buf[4:6], attr)
		out = append(out, buf[:]...)
	}

	return out, nil
}

// decodeEntry parses a C4 record starting at data[0]. wordAt resolves a
// packed word-table reference to its decoded string for the given
// alphabet; posSetAt resolves a POS-set table index back to its tags.
func decodeEntry(data []byte, wordAt func(alphabet Alphabet, packed uint32) (string, error), posSetAt func(index int) ([]jmdict.PartOfSpeech, error)) (jmdict.Entry, error) {
	if len(data) < 6 {
		return jmdict.Entry{}, corruptf("entry record shorter than the fixed preamble")
	}
	id := binary.LittleEndian.Uint32(data[0:4])
	counts := data[4]
	kanjiCount := int(counts >> 4)
	readingCount := int(counts & 0xF)
	senseCount := int(data[5])

	pos := 6
	// Pull every packed reference and attribute word into plain buffers
	// first; the words are then resolved one by one through the reader's
	// positional word reads.
	type rawWord struct {
		ref      uint32
		priority uint16
	}
	rawKanji := make([]rawWord, kanjiCount)
	rawReadings := make([]rawWord, readingCount)
	type rawSense struct {
		ref  uint32
		attr uint16
	}
	rawSenses := make([]rawSense, senseCount)

	readTuple := func() (uint32, uint16, error) {
		if pos+6 > len(data) {
			return 0, 0, corruptf("entry record truncated at offset %d", pos)
		}
		ref := binary.LittleEndian.Uint32(data[pos : pos+4])
		attr := binary.LittleEndian.Uint16(data[pos+4 : pos+6])
		pos += 6
		return ref, attr, nil
	}

	for i := range rawKanji {
		ref, p, err := readTuple()
		if err != nil {
			return jmdict.Entry{}, err
		}
		rawKanji[i] = rawWord{ref, p}
	}
	for i := range rawReadings {
		ref, p, err := readTuple()
		if err != nil {
			return jmdict.Entry{}, err
		}
		rawReadings[i] = rawWord{ref, p}
	}
	for i := range rawSenses {
		ref, attr, err := readTuple()
		if err != nil {
			return jmdict.Entry{}, err
		}
		rawSenses[i] = rawSense{ref, attr}
	}

	e := jmdict.Entry{
		ID:         id,
		Kanji:      make([]string, kanjiCount),
		Readings:   make([]string, readingCount),
		Priorities: make([]uint16, kanjiCount+readingCount),
		Senses:     make([]jmdict.Sense, senseCount),
	}
	for i, rw := range rawKanji {
		w, err := wordAt(Japanese, rw.ref)
		if err != nil {
			return jmdict.Entry{}, err
		}
		e.Kanji[i] = w
		e.Priorities[i] = rw.priority
	}
	for i, rw := range rawReadings {
		w, err := wordAt(Japanese, rw.ref)
		if err != nil {
			return jmdict.Entry{}, err
		}
		e.Readings[i] = w
		e.Priorities[kanjiCount+i] = rw.priority
	}
	for i, rs := range rawSenses {
		gloss, err := wordAt(Latin, rs.ref)
		if err != nil {
			return jmdict.Entry{}, err
		}
		lang := jmdict.Language(rs.attr & 0x7)
		posIdx := int(rs.attr >> 3)
		pos, err := posSetAt(posIdx)
		if err != nil {
			return jmdict.Entry{}, err
		}
		e.Senses[i] = jmdict.Sense{Language: lang.Tag(), Gloss: gloss, POS: pos}
	}

	return e, nil
}
