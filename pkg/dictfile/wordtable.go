package dictfile

import (
	"sort"

	"github.com/toranomaki/toranomaki/pkg/fsst"
)

// packWordRef packs a byte-pool offset and encoded length into the 32-bit
// reference of spec §3/§6: (offset<<9)|length.
func packWordRef(poolOffset, length int) (uint32, error) {
	if length > maxWordLength {
		return 0, overflowf("encoded word length %d exceeds %d bytes", length, maxWordLength)
	}
	if poolOffset < 0 || poolOffset > 0x7FFFFF {
		return 0, overflowf("word pool offset %d does not fit in 23 bits", poolOffset)
	}
	return uint32(poolOffset)<<9 | uint32(length), nil
}

func unpackWordRef(ref uint32) (poolOffset, length int) {
	return int(ref >> 9), int(ref & 0x1FF)
}

// builtWordTable is the in-memory result of building a word table for one
// alphabet (spec §4.2/C2): the sorted distinct words, their packed byte
// references, and the deduplicated byte pool those references point into.
type builtWordTable struct {
	Words  []string
	Packed []uint32
	Pool   []byte
}

// buildWordTable sorts words, encodes each through table, and deduplicates
// the encoded byte pool via prefix- then suffix-sharing (spec §4.2).
func buildWordTable(words []string, alphabet Alphabet, table *fsst.Table) (*builtWordTable, error) {
	unique := dedupeStrings(words)
	sort.Slice(unique, func(i, j int) bool { return compareWords(unique[i], unique[j]) < 0 })

	encoded := make([][]byte, len(unique))
	for i, w := range unique {
		enc, err := table.Encode(toBytes(alphabet, w))
		if err != nil {
			return nil, overflowf("encoding word %q: %v", w, err)
		}
		if len(enc) > maxWordLength {
			return nil, overflowf("word %q encodes to %d bytes (max %d)", w, len(enc), maxWordLength)
		}
		encoded[i] = enc
	}

	// Pass 1: prefix-sharing over the raw encoded words.
	prefixChain := dedupeContainment(encoded, false)

	rootOfWord := make([]int, len(unique)) // original index -> pass-1 root index
	offsetInRoot1 := make([]int, len(unique))
	rootSet := make(map[int]bool)
	for i := range unique {
		root, off := resolveRoot(prefixChain, i)
		rootOfWord[i] = root
		offsetInRoot1[i] = off
		rootSet[root] = true
	}

	rootList := make([]int, 0, len(rootSet))
	for r := range rootSet {
		rootList = append(rootList, r)
	}
	sort.Ints(rootList) // deterministic pool layout
	localIndexOfRoot := make(map[int]int, len(rootList))
	rootBytes := make([][]byte, len(rootList))
	for li, r := range rootList {
		localIndexOfRoot[r] = li
		rootBytes[li] = encoded[r]
	}

	// Pass 2: suffix-sharing over the pass-1 roots.
	suffixChain := dedupeContainment(rootBytes, true)

	ultimateRoot := make([]int, len(rootList))  // local index -> local index of ultimate root
	offsetInRoot2 := make([]int, len(rootList)) // local index -> offset within the ultimate root's bytes
	ultimateSet := make(map[int]bool)
	for li := range rootList {
		root, off := resolveRoot(suffixChain, li)
		ultimateRoot[li] = root
		offsetInRoot2[li] = off
		ultimateSet[root] = true
	}

	ultimateList := make([]int, 0, len(ultimateSet))
	for r := range ultimateSet {
		ultimateList = append(ultimateList, r)
	}
	sort.Ints(ultimateList)
	poolOffsetOf := make(map[int]int, len(ultimateList)) // local index of ultimate root -> byte-pool offset
	pool := make([]byte, 0)
	for _, li := range ultimateList {
		poolOffsetOf[li] = len(pool)
		pool = append(pool, rootBytes[li]...)
	}

	packed := make([]uint32, len(unique))
	for i := range unique {
		li := localIndexOfRoot[rootOfWord[i]]
		ultimate := ultimateRoot[li]
		absOffset := poolOffsetOf[ultimate] + offsetInRoot2[li] + offsetInRoot1[i]
		ref, err := packWordRef(absOffset, len(encoded[i]))
		if err != nil {
			return nil, err
		}
		if absOffset+len(encoded[i]) > len(pool) {
			return nil, overflowf("word %q resolves outside the byte pool", unique[i])
		}
		packed[i] = ref
	}

	return &builtWordTable{Words: unique, Packed: packed, Pool: pool}, nil
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
