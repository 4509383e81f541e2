package dictfile

// binarySearchWord finds target among n sorted words accessed through at,
// using compareWords for ordering (spec §4.2/§4.6). It returns the index
// on an exact match, or the bitwise-NOT of the insertion point on a miss —
// the same convention java.util.Arrays.binarySearch / Go's sort.Search
// family use, named explicitly by spec §7 as "not an error".
func binarySearchWord(n int, at func(i int) string, target string) int {
	lo, hi := 0, n
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		c := compareWords(at(mid), target)
		switch {
		case c == 0:
			return mid
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return ^lo
}
