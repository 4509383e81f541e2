package dictfile

// packListRef packs an element offset and element count into the 32-bit
// word-to-entry-list reference of spec §4.3/§6: high 24 bits = element
// offset into the list pool, low 8 bits = count.
func packListRef(elementOffset, count int) (uint32, error) {
	if count > maxListLength {
		return 0, overflowf("entry-reference list has %d entries (max %d)", count, maxListLength)
	}
	if elementOffset < 0 || elementOffset > 1<<24-1 {
		return 0, overflowf("entry-list pool element offset %d does not fit in 24 bits", elementOffset)
	}
	return uint32(elementOffset)<<8 | uint32(count), nil
}

func unpackListRef(ref uint32) (elementOffset, count int) {
	return int(ref >> 8), int(ref & 0xFF)
}

// encodeListElem serializes one entry-pool byte offset as the 3-byte
// little-endian element spec §4.3 uses inside the list pool.
func encodeListElem(entryPoolOffset int) ([3]byte, error) {
	var b [3]byte
	if entryPoolOffset < 0 || entryPoolOffset > maxEntryPoolOffset {
		return b, overflowf("entry-pool offset %d does not fit in 24 bits", entryPoolOffset)
	}
	b[0] = byte(entryPoolOffset)
	b[1] = byte(entryPoolOffset >> 8)
	b[2] = byte(entryPoolOffset >> 16)
	return b, nil
}

func decodeListElem(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16
}

func listToBytes(offsets []uint32) ([]byte, error) {
	out := make([]byte, 0, len(offsets)*entryListElemSize)
	for _, off := range offsets {
		b, err := encodeListElem(int(off))
		if err != nil {
			return nil, err
		}
		out = append(out, b[:]...)
	}
	return out, nil
}

// builtEntryListPool is the in-memory result of building the entry-list
// pool for one alphabet (spec §4.3/C3): the deduplicated byte stream and,
// parallel to a word table's Words, the packed list reference for each
// word.
type builtEntryListPool struct {
	Pool   []byte
	Packed []uint32
}

// buildEntryListPool builds the per-word entry-reference lists (already
// sorted by the caller: priority ascending, ties by id ascending — spec
// §4.3/§4.5 step 4) and deduplicates sublists: a shorter list that appears
// as a contiguous subrange of a longer one shares that longer list's
// storage instead of being written again (spec §4.3).
//
// words gives the deterministic processing order (the word table's sorted
// order); listsByWord holds each word's entry-pool offsets in final
// display order (ascending priority, ties by id).
func buildEntryListPool(words []string, listsByWord map[string][]uint32) (*builtEntryListPool, error) {
	type listInfo struct {
		word  string
		bytes []byte
		count int
	}
	lists := make([]listInfo, 0, len(words))
	for _, w := range words {
		offsets := listsByWord[w]
		if len(offsets) == 0 {
			continue
		}
		if len(offsets) > maxListLength {
			return nil, overflowf("word %q has %d entries (max %d)", w, len(offsets), maxListLength)
		}
		b, err := listToBytes(offsets)
		if err != nil {
			return nil, err
		}
		lists = append(lists, listInfo{word: w, bytes: b, count: len(offsets)})
	}

	// Process longest-first so that every stored "root" list can only be
	// a superset of (never a subset of) any root already on file —
	// guaranteeing "keep the longest parent when ambiguous" without an
	// extra comparison pass.
	order := make([]int, len(lists))
	for i := range order {
		order[i] = i
	}
	// Stable insertion sort by descending byte length keeps the
	// alphabetical tie-break from `words` for equal-length lists,
	// matching the deterministic-pool-layout goal used elsewhere in this
	// package.
	stableSortDesc(order, func(i, j int) bool { return len(lists[order[i]].bytes) > len(lists[order[j]].bytes) })

	type root struct {
		bytes []byte
		elems int // element offset in the final pool once assigned
	}
	var roots []root
	rootOfList := make([]int, len(lists))   // index into lists -> index into roots
	offsetOfList := make([]int, len(lists)) // byte offset within that root

	for _, li := range order {
		cur := lists[li]
		matched := -1
		matchOffset := 0
		for ri, r := range roots {
			if off := alignedIndex(r.bytes, cur.bytes); off >= 0 {
				matched = ri
				matchOffset = off
				break
			}
		}
		if matched >= 0 {
			rootOfList[li] = matched
			offsetOfList[li] = matchOffset
		} else {
			roots = append(roots, root{bytes: cur.bytes})
			rootOfList[li] = len(roots) - 1
			offsetOfList[li] = 0
		}
	}

	pool := make([]byte, 0)
	rootElemOffset := make([]int, len(roots))
	for ri, r := range roots {
		rootElemOffset[ri] = len(pool) / entryListElemSize
		pool = append(pool, r.bytes...)
	}

	packedByWord := make(map[string]uint32, len(lists))
	for li, info := range lists {
		ri := rootOfList[li]
		elemOffset := rootElemOffset[ri] + offsetOfList[li]/entryListElemSize
		ref, err := packListRef(elemOffset, info.count)
		if err != nil {
			return nil, err
		}
		packedByWord[info.word] = ref
	}

	packed := make([]uint32, len(words))
	for i, w := range words {
		packed[i] = packedByWord[w] // 0 for words with no entries, a valid "empty list" sentinel
	}

	return &builtEntryListPool{Pool: pool, Packed: packed}, nil
}

// alignedIndex returns the element-aligned byte offset of needle within
// haystack, or -1 if needle does not occur there at a 3-byte element
// boundary.
func alignedIndex(haystack, needle []byte) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for start := 0; start+len(needle) <= len(haystack); start += entryListElemSize {
		if bytesEqual(haystack[start:start+len(needle)], needle) {
			return start
		}
	}
	return -1
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// stableSortDesc is a tiny insertion sort used for the small, already
// mostly-ordered index slices this package sorts; it exists so the
// dedup pass above keeps the original relative order of equal-length
// lists (Go's sort.Slice is not guaranteed stable).
func stableSortDesc(idx []int, less func(i, j int) bool) {
	for i := 1; i < len(idx); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}
}

// decodeEntryList reads up to maxListLength entry-pool offsets starting at
// elementOffset within pool.
func decodeEntryList(pool []byte, elementOffset, count int) ([]uint32, error) {
	start := elementOffset * entryListElemSize
	end := start + count*entryListElemSize
	if start < 0 || end > len(pool) {
		return nil, corruptf("entry list [%d,%d) out of bounds (pool size %d)", start, end, len(pool))
	}
	out := make([]uint32, count)
	for i := 0; i < count; i++ {
		out[i] = uint32(decodeListElem(pool[start+i*entryListElemSize:]))
	}
	return out, nil
}
