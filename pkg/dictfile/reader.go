package dictfile

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/exp/mmap"

	"github.com/toranomaki/toranomaki/pkg/fsst"
	"github.com/toranomaki/toranomaki/pkg/jmdict"
)

// alphabetSection locates one alphabet's header-decoded table and its three
// body regions within the mapped file (spec §6).
type alphabetSection struct {
	table          *fsst.Table
	wordCount      int
	poolLen        int
	refsOffset     int64 // word-count*4 bytes of packed (offset<<9)|length
	poolOffset     int64 // poolLen bytes of encoded-word storage
	listRefsOffset int64 // word-count*4 bytes of packed (listOffset<<8)|count
}

type wordCacheKey struct {
	alphabet Alphabet
	packed   uint32
}

type bisectionKey struct {
	alphabet Alphabet
	index    int
}

// Reader is the C6 dictionary reader: a memory-mapped, read-only view over
// a file written by Write, with bounded LRU caches over the decoded words
// and materialized entries (spec §4.6). All public methods serialize on
// the same lock, matching the single-reader-instance concurrency model of
// spec §5; callers that want concurrent lookups should open one Reader per
// goroutine against the same (immutable) file.
type Reader struct {
	mu sync.Mutex
	ra *mmap.ReaderAt

	sections map[Alphabet]*alphabetSection

	entryListPoolOffset int64
	entryPoolOffset     int64

	posSets [][]jmdict.PartOfSpeech

	wordCache      *lru.Cache[wordCacheKey, string]
	entryCache     *lru.Cache[uint32, jmdict.Entry]
	bisectionCache *lru.Cache[bisectionKey, uint32]
}

// Open memory-maps path read-only and parses its headers (spec §4.6
// "Open"). The mapping itself is not read sequentially: subsequent queries
// page fault on demand.
func Open(path string) (*Reader, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dictfile: opening %s: %w", path, err)
	}

	r := &Reader{ra: ra, sections: make(map[Alphabet]*alphabetSection, len(alphabets))}
	r.wordCache, _ = lru.New[wordCacheKey, string](3000)
	r.entryCache, _ = lru.New[uint32, jmdict.Entry](3000)
	r.bisectionCache, _ = lru.New[bisectionKey, uint32](256)

	var cursor int64
	for _, a := range alphabets {
		section, consumed, err := readAlphabetHeader(ra, cursor, a)
		if err != nil {
			ra.Close()
			return nil, err
		}
		r.sections[a] = section
		cursor += consumed
	}

	fixed := make([]byte, fixedHeaderSize)
	if _, err := ra.ReadAt(fixed, cursor); err != nil {
		ra.Close()
		return nil, corruptf("reading fixed header: %v", err)
	}
	cursor += fixedHeaderSize
	entryListPoolLen := int64(binary.LittleEndian.Uint32(fixed[0:4]))
	entryPoolLen := int64(binary.LittleEndian.Uint32(fixed[4:8]))
	posSetCount := binary.LittleEndian.Uint32(fixed[8:12])

	posSetBytes := make([]byte, int(posSetCount)*posSetSize)
	if _, err := ra.ReadAt(posSetBytes, cursor); err != nil {
		ra.Close()
		return nil, corruptf("reading POS-set table: %v", err)
	}
	cursor += int64(len(posSetBytes))
	r.posSets = make([][]jmdict.PartOfSpeech, posSetCount)
	for i := range r.posSets {
		packed := binary.LittleEndian.Uint64(posSetBytes[i*posSetSize:])
		r.posSets[i] = jmdict.UnpackPOSSet(packed)
	}

	for _, a := range alphabets {
		section := r.sections[a]
		section.refsOffset = cursor
		cursor += int64(section.wordCount) * wordRefSize
		section.poolOffset = cursor
		cursor += int64(section.poolLen)
		section.listRefsOffset = cursor
		cursor += int64(section.wordCount) * wordRefSize
	}

	r.entryListPoolOffset = cursor
	cursor += entryListPoolLen
	r.entryPoolOffset = cursor
	cursor += entryPoolLen

	return r, nil
}

// Close releases the memory-mapped region.
func (r *Reader) Close() error {
	return r.ra.Close()
}

func readAlphabetHeader(ra *mmap.ReaderAt, offset int64, alphabet Alphabet) (*alphabetSection, int64, error) {
	fixed := make([]byte, alphabetHeaderFixedSize)
	if _, err := ra.ReadAt(fixed, offset); err != nil {
		return nil, 0, corruptf("reading %s header: %v", alphabet, err)
	}
	magic := binary.LittleEndian.Uint32(fixed[0:4])
	if magic != magicValue {
		return nil, 0, corruptf("%s header: magic %#x does not match %#x", alphabet, magic, magicValue)
	}
	wordCount := int(binary.LittleEndian.Uint32(fixed[4:8]))
	poolLen := int(binary.LittleEndian.Uint32(fixed[8:12]))
	tableByteLen := int(binary.LittleEndian.Uint32(fixed[12:16]))
	slotCount := int(binary.LittleEndian.Uint16(fixed[16:18]))

	cursor := offset + alphabetHeaderFixedSize

	slotBytes := make([]byte, slotCount*encodingSlotSize)
	if _, err := ra.ReadAt(slotBytes, cursor); err != nil {
		return nil, 0, corruptf("reading %s encoding slots: %v", alphabet, err)
	}
	cursor += int64(len(slotBytes))

	tableText := make([]byte, tableByteLen)
	if _, err := ra.ReadAt(tableText, cursor); err != nil {
		return nil, 0, corruptf("reading %s encoding table: %v", alphabet, err)
	}
	cursor += int64(tableByteLen)

	sequences := make([][]byte, slotCount)
	for i := 0; i < slotCount; i++ {
		packed := binary.LittleEndian.Uint32(slotBytes[i*encodingSlotSize:])
		start := int(packed >> 8)
		length := int(packed & 0xFF)
		if start < 0 || start+length > len(tableText) {
			return nil, 0, corruptf("%s encoding slot %d out of bounds", alphabet, i)
		}
		sequences[i] = tableText[start : start+length]
	}

	section := &alphabetSection{
		table:     fsst.NewTable(sequences, unitSize(alphabet)),
		wordCount: wordCount,
		poolLen:   poolLen,
	}
	return section, cursor - offset, nil
}

func (r *Reader) section(alphabet Alphabet) (*alphabetSection, error) {
	s, ok := r.sections[alphabet]
	if !ok {
		return nil, corruptf("no such alphabet %v in this file", alphabet)
	}
	return s, nil
}

func (r *Reader) packedWordRefAt(alphabet Alphabet, wordIndex int) (uint32, error) {
	key := bisectionKey{alphabet: alphabet, index: wordIndex}
	if v, ok := r.bisectionCache.Get(key); ok {
		return v, nil
	}
	s, err := r.section(alphabet)
	if err != nil {
		return 0, err
	}
	var buf [4]byte
	if _, err := r.ra.ReadAt(buf[:], s.refsOffset+int64(wordIndex)*wordRefSize); err != nil {
		return 0, corruptf("reading %s word ref %d: %v", alphabet, wordIndex, err)
	}
	v := binary.LittleEndian.Uint32(buf[:])
	r.bisectionCache.Add(key, v)
	return v, nil
}

// wordAtPacked decodes an already-known packed word reference (spec §4.2
// "word_at_packed"), used both by GetWordAt and when following
// entry→word pointers out of an entry record.
func (r *Reader) wordAtPacked(alphabet Alphabet, packed uint32) (string, error) {
	key := wordCacheKey{alphabet: alphabet, packed: packed}
	if v, ok := r.wordCache.Get(key); ok {
		return v, nil
	}
	s, err := r.section(alphabet)
	if err != nil {
		return "", err
	}
	poolOffset, length := unpackWordRef(packed)
	buf := make([]byte, length)
	if _, err := r.ra.ReadAt(buf, s.poolOffset+int64(poolOffset)); err != nil {
		return "", corruptf("reading %s word bytes at pool offset %d: %v", alphabet, poolOffset, err)
	}
	raw, err := s.table.Decode(buf)
	if err != nil {
		return "", corruptf("decoding %s word at pool offset %d: %v", alphabet, poolOffset, err)
	}
	word := fromBytes(alphabet, raw)
	r.wordCache.Add(key, word)
	return word, nil
}

func (r *Reader) wordAt(alphabet Alphabet, wordIndex int) (string, error) {
	packed, err := r.packedWordRefAt(alphabet, wordIndex)
	if err != nil {
		return "", err
	}
	return r.wordAtPacked(alphabet, packed)
}

// GetWordIndex binary-searches the sorted word array for w (spec §4.2
// "offset_of" / §4.6 "getWordIndex"). Returns the index on hit, or the
// bitwise-NOT of the insertion point on miss — not an error (spec §7).
func (r *Reader) GetWordIndex(alphabet Alphabet, w string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getWordIndex(alphabet, w)
}

func (r *Reader) getWordIndex(alphabet Alphabet, w string) (int, error) {
	s, err := r.section(alphabet)
	if err != nil {
		return 0, err
	}
	var firstErr error
	pos := binarySearchWord(s.wordCount, func(i int) string {
		word, err := r.wordAt(alphabet, i)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return word
	}, w)
	if firstErr != nil {
		return 0, firstErr
	}
	return pos, nil
}

// GetWordAt decodes the word stored at the given index of alphabet's word
// array.
func (r *Reader) GetWordAt(alphabet Alphabet, index int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.section(alphabet)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= s.wordCount {
		return "", corruptf("%s word index %d out of range [0,%d)", alphabet, index, s.wordCount)
	}
	return r.wordAt(alphabet, index)
}

func (r *Reader) listRefAt(alphabet Alphabet, wordIndex int) (uint32, error) {
	s, err := r.section(alphabet)
	if err != nil {
		return 0, err
	}
	var buf [4]byte
	if _, err := r.ra.ReadAt(buf[:], s.listRefsOffset+int64(wordIndex)*wordRefSize); err != nil {
		return 0, corruptf("reading %s entry-list ref %d: %v", alphabet, wordIndex, err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (r *Reader) decodeListRef(packed uint32) ([]uint32, error) {
	elemOffset, count := unpackListRef(packed)
	if count == 0 {
		return nil, nil
	}
	buf := make([]byte, count*entryListElemSize)
	if _, err := r.ra.ReadAt(buf, r.entryListPoolOffset+int64(elemOffset)*entryListElemSize); err != nil {
		return nil, corruptf("reading entry-list at element offset %d: %v", elemOffset, err)
	}
	out := make([]uint32, count)
	for i := 0; i < count; i++ {
		out[i] = uint32(decodeListElem(buf[i*entryListElemSize:]))
	}
	return out, nil
}

// GetEntryAt materializes the entry record at the given entry-pool byte
// offset, consulting (and populating) the entry LRU cache (spec §4.6
// "getEntryAt").
func (r *Reader) GetEntryAt(offset uint32) (jmdict.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getEntryAt(offset)
}

func (r *Reader) getEntryAt(offset uint32) (jmdict.Entry, error) {
	if e, ok := r.entryCache.Get(offset); ok {
		return e, nil
	}

	preamble := make([]byte, 6)
	if _, err := r.ra.ReadAt(preamble, r.entryPoolOffset+int64(offset)); err != nil {
		return jmdict.Entry{}, corruptf("reading entry preamble at offset %d: %v", offset, err)
	}
	kanjiCount := int(preamble[4] >> 4)
	readingCount := int(preamble[4] & 0xF)
	senseCount := int(preamble[5])
	total := 4 + 2 + 6*(kanjiCount+readingCount) + 6*senseCount

	record := make([]byte, total)
	if _, err := r.ra.ReadAt(record, r.entryPoolOffset+int64(offset)); err != nil {
		return jmdict.Entry{}, corruptf("reading entry record at offset %d: %v", offset, err)
	}

	e, err := decodeEntry(record, r.wordAtPacked, r.posSetAt)
	if err != nil {
		return jmdict.Entry{}, err
	}
	r.entryCache.Add(offset, e)
	return e, nil
}

func (r *Reader) posSetAt(index int) ([]jmdict.PartOfSpeech, error) {
	if index < 0 || index >= len(r.posSets) {
		return nil, corruptf("POS-set index %d out of range [0,%d)", index, len(r.posSets))
	}
	return r.posSets[index], nil
}

// GetEntriesUsingAll looks up every non-empty word in words and intersects
// their entry-reference lists (spec §4.6 "getEntriesUsingAll").
func (r *Reader) GetEntriesUsingAll(alphabet Alphabet, words []string) ([]uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var lists [][]uint32
	for _, w := range words {
		if w == "" {
			continue
		}
		idx, err := r.getWordIndex(alphabet, w)
		if err != nil {
			return nil, err
		}
		if idx < 0 {
			return nil, nil
		}
		ref, err := r.listRefAt(alphabet, idx)
		if err != nil {
			return nil, err
		}
		offsets, err := r.decodeListRef(ref)
		if err != nil {
			return nil, err
		}
		lists = append(lists, offsets)
	}
	if len(lists) == 0 {
		return nil, nil
	}
	result := lists[0]
	for _, l := range lists[1:] {
		set := make(map[uint32]bool, len(l))
		for _, v := range l {
			set[v] = true
		}
		var next []uint32
		for _, v := range result {
			if set[v] {
				next = append(next, v)
			}
		}
		result = next
	}
	return result, nil
}

// GetEntriesUsingPrefix finds the words starting with prefix (shrinking
// prefix by one character at a time when nothing matches, spec §4.6
// "getEntriesUsingPrefix") and returns the union of their entry-reference
// lists in word order, deduplicated on first occurrence.
func (r *Reader) GetEntriesUsingPrefix(alphabet Alphabet, prefix string) ([]uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.section(alphabet)
	if err != nil {
		return nil, err
	}
	p := prefix
	for {
		idx, err := r.getWordIndex(alphabet, p)
		if err != nil {
			return nil, err
		}
		start := idx
		if start < 0 {
			start = ^start
		}

		var result []uint32
		seen := make(map[uint32]bool)
		for i := start; i < s.wordCount; i++ {
			w, err := r.wordAt(alphabet, i)
			if err != nil {
				return nil, err
			}
			if !hasWordPrefix(w, p) {
				break
			}
			ref, err := r.listRefAt(alphabet, i)
			if err != nil {
				return nil, err
			}
			offsets, err := r.decodeListRef(ref)
			if err != nil {
				return nil, err
			}
			for _, off := range offsets {
				if !seen[off] {
					seen[off] = true
					result = append(result, off)
				}
			}
		}

		if len(result) > 0 || p == "" {
			return result, nil
		}
		p = shortenByOneRune(p)
	}
}

// SearchResult is the ranked outcome of SearchBest (spec §4.6).
type SearchResult struct {
	Entry       jmdict.Entry
	Word        string
	MatchLength int
	IsFull      bool
	IsDerived   bool
	DocOffset   int
}

// SearchBest classifies query's alphabet from its first character, finds
// the best-ranked matching entry at or near a shrinking prefix of query,
// and returns it (spec §4.6 "searchBest"). Returns (nil, nil) for an empty
// query or no match — not an error (spec §7).
//
// is_derived is always false: distinguishing a stored form from an
// algorithmically produced inflection requires the external morphological
// analyzer named in spec §1's out-of-scope collaborators, which this
// reader has no access to.
func (r *Reader) SearchBest(query string, docOffset int) (*SearchResult, error) {
	if query == "" {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	alphabet := classifyQueryAlphabet(query)

	offsets, matchedWords, err := r.matchPrefixWords(alphabet, query)
	if err != nil {
		return nil, err
	}
	if len(matchedWords) == 0 {
		return nil, nil
	}

	var best *SearchResult
	for i, w := range matchedWords {
		matchLen := commonPrefixRuneLength(query, w)
		isFull := matchLen == len([]rune(w))
		for _, off := range offsets[i] {
			e, err := r.getEntryAt(off)
			if err != nil {
				return nil, err
			}
			candidate := &SearchResult{
				Entry:       e,
				Word:        w,
				MatchLength: matchLen,
				IsFull:      isFull,
				IsDerived:   false,
				DocOffset:   docOffset,
			}
			if best == nil || rankBetter(candidate, best) {
				best = candidate
			}
		}
	}
	return best, nil
}

// matchPrefixWords implements the shrinking-prefix scan shared by
// GetEntriesUsingPrefix and SearchBest, but (unlike GetEntriesUsingPrefix)
// keeps each matched word's own entry list separate so SearchBest can rank
// per word.
func (r *Reader) matchPrefixWords(alphabet Alphabet, query string) ([][]uint32, []string, error) {
	s, err := r.section(alphabet)
	if err != nil {
		return nil, nil, err
	}
	p := query
	for {
		idx, err := r.getWordIndex(alphabet, p)
		if err != nil {
			return nil, nil, err
		}
		start := idx
		if start < 0 {
			start = ^start
		}

		var offsets [][]uint32
		var words []string
		for i := start; i < s.wordCount; i++ {
			w, err := r.wordAt(alphabet, i)
			if err != nil {
				return nil, nil, err
			}
			if !hasWordPrefix(w, p) {
				break
			}
			ref, err := r.listRefAt(alphabet, i)
			if err != nil {
				return nil, nil, err
			}
			wordOffsets, err := r.decodeListRef(ref)
			if err != nil {
				return nil, nil, err
			}
			offsets = append(offsets, wordOffsets)
			words = append(words, w)
		}

		if len(words) > 0 || p == "" {
			return offsets, words, nil
		}
		p = shortenByOneRune(p)
	}
}

func rankBetter(a, b *SearchResult) bool {
	if a.IsFull != b.IsFull {
		return a.IsFull
	}
	if a.MatchLength != b.MatchLength {
		return a.MatchLength > b.MatchLength
	}
	if len(a.Word) != len(b.Word) {
		return len(a.Word) < len(b.Word)
	}
	if a.IsDerived != b.IsDerived {
		return !a.IsDerived
	}
	return false
}

func shortenByOneRune(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return ""
	}
	return string(runes[:len(runes)-1])
}

func commonPrefixRuneLength(a, b string) int {
	au, bu := []rune(upperCaser.String(a)), []rune(upperCaser.String(b))
	n := len(au)
	if len(bu) < n {
		n = len(bu)
	}
	i := 0
	for i < n && au[i] == bu[i] {
		i++
	}
	return i
}

// classifyQueryAlphabet picks Japanese for a query beginning with a Kanji
// or kana character, Latin otherwise (spec §4.6 "searchBest": "classify
// the query's first character to pick the alphabet").
func classifyQueryAlphabet(query string) Alphabet {
	r := []rune(query)[0]
	switch {
	case unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana):
		return Japanese
	default:
		return Latin
	}
}

// VerifyWords walks every stored word in both alphabets and checks that
// GetWordAt(GetWordIndex(w)) reproduces w exactly (the "verify" CLI
// command of §6). Returns the number of words checked, or the first
// mismatch found as a CorruptionError.
func (r *Reader) VerifyWords() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	checked := 0
	for _, alphabet := range []Alphabet{Japanese, Latin} {
		s, err := r.section(alphabet)
		if err != nil {
			return checked, err
		}
		for i := 0; i < s.wordCount; i++ {
			w, err := r.wordAt(alphabet, i)
			if err != nil {
				return checked, err
			}
			idx, err := r.getWordIndex(alphabet, w)
			if err != nil {
				return checked, err
			}
			if idx != i {
				return checked, corruptf("%s word %q: index %d round-trips to %d", alphabet, w, i, idx)
			}
			got, err := r.wordAt(alphabet, idx)
			if err != nil {
				return checked, err
			}
			if got != w {
				return checked, corruptf("%s word %d: round trip %q != %q", alphabet, i, got, w)
			}
			checked++
		}
	}
	return checked, nil
}
