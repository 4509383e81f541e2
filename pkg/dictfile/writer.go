package dictfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/toranomaki/toranomaki/pkg/fsst"
	"github.com/toranomaki/toranomaki/pkg/jmdict"
)

// Write runs the full C5 build pipeline (spec §4.5) over entries and emits
// the single binary artifact described in §6 to w: trains both
// char-sequence encoders, builds the two word tables, builds one
// entry-list pool shared by both alphabets, assigns POS-set indices,
// serializes the entry pool,
// and writes everything back-to-back in the documented section order.
func Write(w io.Writer, entries []jmdict.Entry) error {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("dictfile: entry %d: %w", e.ID, err)
		}
	}

	japaneseWords := collectJapaneseWords(entries)
	latinWords := collectLatinWords(entries)

	japaneseTable := fsst.Train(toUnitCorpus(Japanese, japaneseWords), unitSize(Japanese))
	latinTable := fsst.Train(toUnitCorpus(Latin, latinWords), unitSize(Latin))

	japaneseWT, err := buildWordTable(japaneseWords, Japanese, japaneseTable)
	if err != nil {
		return fmt.Errorf("dictfile: building Japanese word table: %w", err)
	}
	latinWT, err := buildWordTable(latinWords, Latin, latinTable)
	if err != nil {
		return fmt.Errorf("dictfile: building Latin word table: %w", err)
	}

	packedByWord := func(wt *builtWordTable) map[string]uint32 {
		m := make(map[string]uint32, len(wt.Words))
		for i, word := range wt.Words {
			m[word] = wt.Packed[i]
		}
		return m
	}
	japaneseRefOf := packedByWord(japaneseWT)
	latinRefOf := packedByWord(latinWT)

	posSets := newPOSSetTable()

	// Step 6: compute each entry's pool offset without writing, so the
	// entry-list pool (built next) can reference entry-pool offsets
	// before the entry pool itself is serialized.
	encodedEntries := make([][]byte, len(entries))
	offsetOfEntry := make([]int, len(entries))
	cursor := 0
	for i, e := range entries {
		rec, err := encodeEntry(e,
			func(word string) (uint32, error) {
				ref, ok := japaneseRefOf[word]
				if !ok {
					return 0, fmt.Errorf("word %q missing from Japanese word table", word)
				}
				return ref, nil
			},
			func(gloss string) (uint32, error) {
				ref, ok := latinRefOf[gloss]
				if !ok {
					return 0, fmt.Errorf("gloss %q missing from Latin word table", gloss)
				}
				return ref, nil
			},
			posSets,
		)
		if err != nil {
			return fmt.Errorf("dictfile: entry %d: %w", e.ID, err)
		}
		encodedEntries[i] = rec
		offsetOfEntry[i] = cursor
		cursor += len(rec)
	}

	japaneseLists := wordEntryLists(entries, offsetOfEntry, func(e jmdict.Entry) []string {
		return append(append([]string{}, e.Kanji...), e.Readings...)
	})
	latinLists := wordEntryLists(entries, offsetOfEntry, func(e jmdict.Entry) []string {
		out := make([]string, len(e.Senses))
		for i, s := range e.Senses {
			out[i] = s.Gloss
		}
		return out
	})

	// The entry-list pool is a single combined byte stream shared by both
	// alphabets' word-to-list references (spec §6: one "entry-list pool
	// length" field covers the whole mapped region), so dedup runs once
	// over both alphabets together — a list shared between a Japanese
	// word and a Latin gloss collapses to one stored copy. Keys are
	// tagged by alphabet to keep the two word spaces from colliding.
	combinedWords := make([]string, 0, len(japaneseWT.Words)+len(latinWT.Words))
	combinedLists := make(map[string][]uint32, len(japaneseWT.Words)+len(latinWT.Words))
	for _, w := range japaneseWT.Words {
		key := "J:" + w
		combinedWords = append(combinedWords, key)
		combinedLists[key] = japaneseLists[w]
	}
	for _, w := range latinWT.Words {
		key := "L:" + w
		combinedWords = append(combinedWords, key)
		combinedLists[key] = latinLists[w]
	}
	combinedELP, err := buildEntryListPool(combinedWords, combinedLists)
	if err != nil {
		return fmt.Errorf("dictfile: building entry-list pool: %w", err)
	}
	japanesePacked := combinedELP.Packed[:len(japaneseWT.Words)]
	latinPacked := combinedELP.Packed[len(japaneseWT.Words):]

	entryPool := make([]byte, 0, cursor)
	for _, rec := range encodedEntries {
		entryPool = append(entryPool, rec...)
	}

	return writeSections(w, japaneseTable, latinTable, japaneseWT, latinWT, japanesePacked, latinPacked, combinedELP.Pool, entryPool, posSets)
}

func collectJapaneseWords(entries []jmdict.Entry) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		for _, w := range e.Kanji {
			if !seen[w] {
				seen[w] = true
				out = append(out, w)
			}
		}
		for _, w := range e.Readings {
			if !seen[w] {
				seen[w] = true
				out = append(out, w)
			}
		}
	}
	return out
}

func collectLatinWords(entries []jmdict.Entry) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		for _, s := range e.Senses {
			if !seen[s.Gloss] {
				seen[s.Gloss] = true
				out = append(out, s.Gloss)
			}
		}
	}
	return out
}

func toUnitCorpus(alphabet Alphabet, words []string) [][]byte {
	out := make([][]byte, len(words))
	for i, w := range words {
		out[i] = toBytes(alphabet, w)
	}
	return out
}

// wordEntryLists builds, for every word produced by wordsOf, the ordered
// list of entry-pool offsets of entries containing it: priority ascending,
// ties broken by id ascending (spec §4.3/§4.5 step 4).
func wordEntryLists(entries []jmdict.Entry, offsetOfEntry []int, wordsOf func(jmdict.Entry) []string) map[string][]uint32 {
	type ref struct {
		offset   uint32
		priority uint16
		id       uint32
	}
	byWord := make(map[string][]ref)
	for i, e := range entries {
		// Spec §4.3 sorts each per-word list by "entry priority", a
		// property of the entry rather than of any one kanji/reading/gloss;
		// every entry has at least one reading, so Priorities[0] stands in
		// for that single representative value.
		priority := uint16(0)
		if len(e.Priorities) > 0 {
			priority = e.Priorities[0]
		}
		for _, w := range wordsOf(e) {
			byWord[w] = append(byWord[w], ref{offset: uint32(offsetOfEntry[i]), priority: priority, id: e.ID})
		}
	}
	out := make(map[string][]uint32, len(byWord))
	for w, refs := range byWord {
		sort.Slice(refs, func(i, j int) bool {
			if refs[i].priority != refs[j].priority {
				return refs[i].priority < refs[j].priority
			}
			return refs[i].id < refs[j].id
		})
		offsets := make([]uint32, len(refs))
		for i, r := range refs {
			offsets[i] = r.offset
		}
		out[w] = offsets
	}
	return out
}

func writeSections(w io.Writer, japaneseTable, latinTable *fsst.Table, japaneseWT, latinWT *builtWordTable, japanesePacked, latinPacked []uint32, entryListPool, entryPool []byte, posSets *posSetTable) error {
	bw := &byteWriter{w: w}

	writeAlphabetHeader(bw, japaneseTable, japaneseWT)
	writeAlphabetHeader(bw, latinTable, latinWT)

	bw.uint32(uint32(len(entryListPool)))
	bw.uint32(uint32(len(entryPool)))
	bw.uint32(uint32(len(posSets.sets)))
	for _, set := range posSets.sets {
		bw.uint64(set)
	}

	writeAlphabetBody(bw, japaneseWT, japanesePacked)
	writeAlphabetBody(bw, latinWT, latinPacked)

	bw.bytes(entryListPool)
	bw.bytes(entryPool)

	return bw.err
}

func writeAlphabetHeader(bw *byteWriter, table *fsst.Table, wt *builtWordTable) {
	bw.uint32(magicValue)
	bw.uint32(uint32(len(wt.Words)))
	bw.uint32(uint32(len(wt.Pool)))

	tableText := make([]byte, 0, len(table.Sequences)*2)
	for _, seq := range table.Sequences {
		tableText = append(tableText, seq...)
	}
	bw.uint32(uint32(len(tableText)))
	bw.uint16(uint16(len(table.Sequences)))

	start := 0
	for _, seq := range table.Sequences {
		bw.uint32(uint32(start)<<8 | uint32(len(seq)))
		start += len(seq)
	}
	bw.bytes(tableText)
}

func writeAlphabetBody(bw *byteWriter, wt *builtWordTable, listRefs []uint32) {
	for _, ref := range wt.Packed {
		bw.uint32(ref)
	}
	bw.bytes(wt.Pool)
	for _, ref := range listRefs {
		bw.uint32(ref)
	}
}

// byteWriter accumulates the first error from a sequence of little-endian
// writes so the call sites above can stay error-check-free, mirroring the
// single-pass, no-backpatching discipline of spec §4.5.
type byteWriter struct {
	w   io.Writer
	err error
}

func (b *byteWriter) uint16(v uint16) {
	if b.err != nil {
		return
	}
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, b.err = b.w.Write(buf[:])
}

func (b *byteWriter) uint32(v uint32) {
	if b.err != nil {
		return
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, b.err = b.w.Write(buf[:])
}

func (b *byteWriter) uint64(v uint64) {
	if b.err != nil {
		return
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, b.err = b.w.Write(buf[:])
}

func (b *byteWriter) bytes(p []byte) {
	if b.err != nil || len(p) == 0 {
		return
	}
	_, b.err = b.w.Write(p)
}
