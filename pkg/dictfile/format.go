package dictfile

// File layout constants for spec §6. Byte order is little-endian
// throughout; the file has no alignment padding.
const (
	// Magic identifies the current (and only implemented) file format.
	// The low byte is a version counter, bumped on any incompatible
	// change. Spec §9 notes a historical second format (different magic,
	// no POS-set table) existed upstream; this reader/writer pair only
	// ever produces or accepts the layout described in §6.
	magicConstant uint32 = 0x746D6400 // "tmd\0"
	formatVersion uint32 = 1
	magicValue    uint32 = magicConstant | formatVersion

	// alphabetHeaderFixedSize is the byte size of one alphabet header
	// before its variable-length encoding table: magic(4) + wordCount(4)
	// + poolLen(4) + tableByteLen(4) + slotCount(2).
	alphabetHeaderFixedSize = 4 + 4 + 4 + 4 + 2

	// encodingSlotSize is the byte size of one encoding-table slot entry:
	// (pool_start<<8)|sequence_length_in_bytes, packed into 4 bytes.
	encodingSlotSize = 4

	// fixedHeaderSize is entry-list pool length(4) + entry pool length(4)
	// + POS-set count(4), written once after both alphabet headers.
	fixedHeaderSize = 4 + 4 + 4

	// posSetSize is the byte size of one packed POS-set entry.
	posSetSize = 8

	// wordRefSize is the byte size of one packed (offset<<9)|length word
	// reference, or one packed (elementOffset<<8)|count word-to-entry-list
	// reference. Both are 4 bytes (spec §6).
	wordRefSize = 4

	// entryListElemSize is the byte size of one 3-byte little-endian
	// entry-pool offset stored in the entry-list pool (spec §4.3).
	entryListElemSize = 3

	// maxWordLength is the largest encoded word length addressable by the
	// 9-bit length field of a packed word reference (spec §3).
	maxWordLength = 1<<9 - 1

	// maxListLength is the largest number of entries a single
	// entry-reference list may hold (spec §3/§4.3: an 8-bit count).
	maxListLength = 255

	// maxEntryPoolOffset is the largest entry-pool byte offset
	// addressable by a 3-byte list element (spec §4.3: ≤16 MiB).
	maxEntryPoolOffset = 1<<24 - 1

	// maxSlotCount mirrors fsst.MaxSlots, restated here so format.go is
	// self-describing about the on-disk encoding-table bound (spec §3).
	maxSlotCount = 32768
)

// alphabets is the fixed, ordered list of alphabets written to and read
// from every file (spec §6: "for each alphabet in order [Japanese,
// Latin]").
var alphabets = []Alphabet{Japanese, Latin}
