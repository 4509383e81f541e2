package jmdict

import "testing"

func TestEncodeDecodePriorityRoundTrip(t *testing.T) {
	cases := []Ranks{
		{},
		{SourceNews: 1},
		{SourceNews: 2},
		{SourceIchi: 1},
		{SourceIchi: 2},
		{SourceSpec: 1},
		{SourceSpec: 2},
		{SourceGai: 1},
		{SourceGai: 2},
		{SourceNF: 1},
		{SourceNF: 49},
		{SourceNF: 12},
		{SourceNews: 1, SourceIchi: 1},
		{SourceNews: 2, SourceSpec: 1, SourceGai: 2},
		{SourceNews: 1, SourceIchi: 2, SourceSpec: 1, SourceGai: 1, SourceNF: 1},
		{SourceNews: 2, SourceIchi: 2, SourceSpec: 2, SourceGai: 2, SourceNF: 49},
	}

	for _, ranks := range cases {
		code, err := EncodePriority(ranks)
		if err != nil {
			t.Fatalf("EncodePriority(%v): %v", ranks, err)
		}
		got := DecodePriority(code)
		if len(got) != len(ranks) {
			t.Fatalf("DecodePriority(EncodePriority(%v)) = %v, want same rank set", ranks, got)
		}
		for source, rank := range ranks {
			if got[source] != rank {
				t.Errorf("DecodePriority(EncodePriority(%v))[%d] = %d, want %d", ranks, source, got[source], rank)
			}
		}
	}
}

// TestEncodePriorityDistinctRankSetsNeverCollide exercises spec §8's
// quantified invariant directly: every valid rank-set combination produces
// a unique code, and every code decodes back to exactly the set that
// produced it.
func TestEncodePriorityDistinctRankSetsNeverCollide(t *testing.T) {
	newsRanks := []int{0, 1, 2}
	ichiRanks := []int{0, 1, 2}
	specRanks := []int{0, 1, 2}
	gaiRanks := []int{0, 1, 2}
	nfRanks := []int{0, 1, 25, 49}

	seen := make(map[uint16]Ranks)
	for _, news := range newsRanks {
		for _, ichi := range ichiRanks {
			for _, spec := range specRanks {
				for _, gai := range gaiRanks {
					for _, nf := range nfRanks {
						ranks := Ranks{}
						if news != 0 {
							ranks[SourceNews] = news
						}
						if ichi != 0 {
							ranks[SourceIchi] = ichi
						}
						if spec != 0 {
							ranks[SourceSpec] = spec
						}
						if gai != 0 {
							ranks[SourceGai] = gai
						}
						if nf != 0 {
							ranks[SourceNF] = nf
						}

						code, err := EncodePriority(ranks)
						if err != nil {
							t.Fatalf("EncodePriority(%v): %v", ranks, err)
						}
						if prior, ok := seen[code]; ok && !ranksEqual(prior, ranks) {
							t.Fatalf("code %d collides: %v and %v both encode to it", code, prior, ranks)
						}
						seen[code] = ranks

						decoded := DecodePriority(code)
						if !ranksEqual(decoded, ranks) {
							t.Fatalf("DecodePriority(%d) = %v, want %v", code, decoded, ranks)
						}
					}
				}
			}
		}
	}
}

func ranksEqual(a, b Ranks) bool {
	if len(a) != len(b) {
		return false
	}
	for source, rank := range a {
		if b[source] != rank {
			return false
		}
	}
	return true
}

func TestEncodePriorityRejectsOutOfRangeRank(t *testing.T) {
	if _, err := EncodePriority(Ranks{SourceNews: 3}); err == nil {
		t.Fatal("expected EncodePriority to reject a news rank above its max")
	}
	if _, err := EncodePriority(Ranks{SourceNF: 50}); err == nil {
		t.Fatal("expected EncodePriority to reject an nf rank above 49")
	}
	if _, err := EncodePriority(Ranks{SourceNews: 0}); err == nil {
		t.Fatal("expected EncodePriority to reject rank 0 (0 means absent, not rank 0)")
	}
}
