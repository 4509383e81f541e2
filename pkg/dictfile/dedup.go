package dictfile

import (
	"bytes"
	"sort"
)

// containment records, for one item in a dedup pass, which other item's
// stored bytes it lives inside (itself, if it is a root) and at what byte
// offset.
type containment struct {
	parent int
	offset int
}

// dedupeContainment finds, among a set of distinct byte strings, every
// pair where one is a prefix of another (reverse=false, spec §4.2
// "prefix-sharing") or a suffix of another (reverse=true, sorted by
// reversed bytes, spec §4.2 "suffix-sharing"). Each non-root item is
// recorded as a contiguous subrange of the root that contains it; items
// with no containing counterpart are their own root.
//
// This is the standard sorted-order/stack technique: sort the candidates
// so that anything which is a prefix of another item is adjacent to (and
// precedes) it, then scan once with a stack of still-open candidates.
func dedupeContainment(items [][]byte, reverse bool) []containment {
	n := len(items)
	result := make([]containment, n)
	for i := range result {
		result[i] = containment{parent: i, offset: 0}
	}

	type keyed struct {
		idx int
		key []byte
	}
	keys := make([]keyed, n)
	for i, b := range items {
		k := b
		if reverse {
			k = reverseBytes(b)
		}
		keys[i] = keyed{idx: i, key: k}
	}
	sort.Slice(keys, func(a, b int) bool { return bytes.Compare(keys[a].key, keys[b].key) < 0 })

	var stack []keyed
	for _, cur := range keys {
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if !bytes.HasPrefix(cur.key, top.key) {
				break
			}
			stack = stack[:len(stack)-1]
			if reverse {
				// top is a suffix of items[cur.idx]; its content begins
				// len(parent)-len(child) bytes into the parent.
				result[top.idx] = containment{parent: cur.idx, offset: len(items[cur.idx]) - len(items[top.idx])}
			} else {
				result[top.idx] = containment{parent: cur.idx, offset: 0}
			}
		}
		stack = append(stack, cur)
	}
	return result
}

// resolveRoot follows a containment chain (which may span a prefix pass
// followed by a suffix pass) to the ultimate root item and the absolute
// byte offset of i's content within that root's stored bytes.
func resolveRoot(chain []containment, i int) (root, offset int) {
	off := 0
	for {
		c := chain[i]
		if c.parent == i {
			return i, off
		}
		off += c.offset
		i = c.parent
	}
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
