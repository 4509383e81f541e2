package fsst

import "sort"

// candidate is one distinct byte sequence seen during training, with its
// benefit score (spec §4.1: frequency × length-in-units).
type candidate struct {
	seq     []byte
	freq    int
	units   int
	benefit int
}

// Train builds a code table from a corpus of byte strings, each assumed to
// already be a whole number of unitSize-byte characters (UTF-16LE for
// Japanese, raw UTF-8 for Latin — see pkg/dictfile/alphabet.go).
//
// Training follows spec §4.1:
//  1. Seed with every distinct single character (guarantees encodability).
//  2. Fill slots 0..127 with the highest-benefit sequences (one byte).
//  3. Fill slots 128..32767 with the next highest-benefit sequences,
//     skipping any sequence decomposable into two already-assigned codes.
//  4. Assign any still-unassigned single characters to the remaining slots.
func Train(corpus [][]byte, unitSize int) *Table {
	if unitSize <= 0 {
		unitSize = 1
	}
	freq := make(map[string]*candidate)
	singles := make(map[string]bool)

	countSeq := func(b []byte, units int) {
		key := string(b)
		c, ok := freq[key]
		if !ok {
			c = &candidate{seq: append([]byte(nil), b...), units: units}
			freq[key] = c
		}
		c.freq++
	}

	for _, s := range corpus {
		n := len(s) / unitSize * unitSize // only whole characters
		for start := 0; start < n; start += unitSize {
			singles[string(s[start:start+unitSize])] = true
			for units := 1; units <= MaxUnitsPerSeq; units++ {
				length := units * unitSize
				if start+length > n {
					break
				}
				countSeq(s[start:start+length], units)
			}
		}
	}

	candidates := make([]*candidate, 0, len(freq))
	for _, c := range freq {
		c.benefit = c.freq * c.units
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].benefit != candidates[j].benefit {
			return candidates[i].benefit > candidates[j].benefit
		}
		// Deterministic tie-break so training is reproducible.
		return string(candidates[i].seq) < string(candidates[j].seq)
	})

	t := &Table{codeOf: make(map[string]uint16), unitSize: unitSize}
	assigned := make(map[string]bool)

	add := func(seq []byte) uint16 {
		code := uint16(len(t.Sequences))
		t.Sequences = append(t.Sequences, append([]byte(nil), seq...))
		t.codeOf[string(seq)] = code
		assigned[string(seq)] = true
		return code
	}

	// Phase 1+2: fill the 128 single-byte slots with the highest-benefit
	// sequences; a single character that did not rank in the top 128 takes
	// a single-byte slot only if one is still free.
	idx := 0
	for len(t.Sequences) < SingleByteCap && idx < len(candidates) {
		add(candidates[idx].seq)
		idx++
	}
	for single := range singles {
		if assigned[single] {
			continue
		}
		if len(t.Sequences) < SingleByteCap {
			add([]byte(single))
			continue
		}
		// Look for a unit-length occupant that is not a single character
		// to evict. Every unit-length candidate is in singles, so this
		// search finds no victim and the single waits for phase 4.
		victim := -1
		for i := len(t.Sequences) - 1; i >= 0; i-- {
			if len(t.Sequences[i]) != unitSize || singles[string(t.Sequences[i])] {
				continue
			}
			victim = i
			break
		}
		if victim < 0 {
			// No unit-length non-single occupant; nothing to evict. This
			// single waits for phase 4.
			continue
		}
		evicted := t.Sequences[victim]
		delete(t.codeOf, string(evicted))
		delete(assigned, string(evicted))
		t.Sequences[victim] = append([]byte(nil), single...)
		t.codeOf[string(single)] = uint16(victim)
		assigned[string(single)] = true
	}

	// Reserve enough trailing slots for any single characters that still
	// haven't been assigned, so phase 3 never starves phase 4.
	stillUnassigned := 0
	for single := range singles {
		if !assigned[single] {
			stillUnassigned++
		}
	}
	capForPhase3 := MaxSlots - stillUnassigned

	// Phase 3: two-byte slots, skipping sequences decomposable into two
	// already-assigned codes.
	for ; idx < len(candidates) && len(t.Sequences) < capForPhase3; idx++ {
		seq := candidates[idx].seq
		if assigned[string(seq)] {
			continue
		}
		if decomposable(t, seq) {
			continue
		}
		add(seq)
	}

	// Phase 4: any remaining distinct single characters.
	for single := range singles {
		if assigned[single] {
			continue
		}
		if len(t.Sequences) >= MaxSlots {
			break
		}
		add([]byte(single))
	}

	return t
}

// decomposable reports whether seq can already be produced by concatenating
// two existing codes (one prefix, one suffix), per spec §4.1 step 3.
func decomposable(t *Table, seq []byte) bool {
	for split := 1; split < len(seq); split++ {
		if _, ok := t.lookup(seq[:split]); !ok {
			continue
		}
		if _, ok := t.lookup(seq[split:]); ok {
			return true
		}
	}
	return false
}
