package fsst

import (
	"bytes"
	"testing"
)

func TestTrainEncodeDecodeRoundTrip(t *testing.T) {
	corpus := [][]byte{
		[]byte("hello"),
		[]byte("help"),
		[]byte("hell"),
		[]byte("world"),
		[]byte("word"),
	}
	tbl := Train(corpus, 1)

	for _, word := range corpus {
		encoded, err := tbl.Encode(word)
		if err != nil {
			t.Fatalf("Encode(%q): %v", word, err)
		}
		decoded, err := tbl.Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(%q -> %x): %v", word, encoded, err)
		}
		if !bytes.Equal(decoded, word) {
			t.Errorf("round trip mismatch: %q -> %x -> %q", word, encoded, decoded)
		}
	}
}

func TestTrainReservesEverySingleCharacter(t *testing.T) {
	corpus := [][]byte{[]byte("abcXYZ019")}
	tbl := Train(corpus, 1)

	for _, b := range []byte("abcXYZ019") {
		if _, err := tbl.Encode([]byte{b}); err != nil {
			t.Errorf("single byte %q has no code: %v", string(b), err)
		}
	}
}

func TestEncodeUnseenByteFails(t *testing.T) {
	tbl := Train([][]byte{[]byte("abc")}, 1)
	if _, err := tbl.Encode([]byte("xyz")); err == nil {
		t.Fatal("expected an error encoding a byte never seen in training")
	}
}

func TestUnitSizeTwoRoundTrip(t *testing.T) {
	// UTF-16LE-ish pairs: 4 "characters" of width 2.
	corpus := [][]byte{
		{0x42, 0x00, 0x43, 0x00, 0x44, 0x00, 0x42, 0x00},
		{0x43, 0x00, 0x44, 0x00},
	}
	tbl := Train(corpus, 2)
	if got := tbl.UnitSize(); got != 2 {
		t.Fatalf("UnitSize() = %d, want 2", got)
	}
	for _, word := range corpus {
		encoded, err := tbl.Encode(word)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		decoded, err := tbl.Decode(encoded)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if !bytes.Equal(decoded, word) {
			t.Errorf("round trip mismatch: %x -> %x -> %x", word, encoded, decoded)
		}
	}
}

func TestSlotCountWithinBounds(t *testing.T) {
	tbl := Train([][]byte{[]byte("the quick brown fox jumps over the lazy dog")}, 1)
	if tbl.NumSlots() > MaxSlots {
		t.Fatalf("NumSlots() = %d, exceeds MaxSlots %d", tbl.NumSlots(), MaxSlots)
	}
	if tbl.NumSlots() == 0 {
		t.Fatal("expected at least one slot")
	}
}
