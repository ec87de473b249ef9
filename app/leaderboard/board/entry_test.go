package board

import (
	"math/rand"
	"reflect"
	"testing"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b RankedEntry
		want int
	}{
		{
			name: "higher value first",
			a:    RankedEntry{ID: "2", Value: 50},
			b:    RankedEntry{ID: "1", Value: 10},
			want: -1,
		},
		{
			name: "tie on value broken by secondary",
			a:    RankedEntry{ID: "2", Value: 10, Secondary: 5},
			b:    RankedEntry{ID: "1", Value: 10, Secondary: 9},
			want: 1,
		},
		{
			name: "tie on both broken by id",
			a:    RankedEntry{ID: "1", Value: 10, Secondary: 5},
			b:    RankedEntry{ID: "2", Value: 10, Secondary: 5},
			want: -1,
		},
		{
			name: "snowflakes compare numerically",
			a:    RankedEntry{ID: "99", Value: 1},
			b:    RankedEntry{ID: "100", Value: 1},
			want: -1,
		},
		{
			name: "non numeric ids compare lexically",
			a:    RankedEntry{ID: "bob", Value: 1},
			b:    RankedEntry{ID: "alice", Value: 1},
			want: 1,
		},
		{
			name: "digit ids sort before other ids",
			a:    RankedEntry{ID: "10", Value: 1},
			b:    RankedEntry{ID: "1a", Value: 1},
			want: -1,
		},
		{
			name: "other ids sort after larger digit ids",
			a:    RankedEntry{ID: "1a", Value: 1},
			b:    RankedEntry{ID: "9", Value: 1},
			want: 1,
		},
		{
			name: "leading zeros break ties on raw text",
			a:    RankedEntry{ID: "7", Value: 1},
			b:    RankedEntry{ID: "007", Value: 1},
			want: 1,
		},
		{
			name: "identical entries",
			a:    RankedEntry{ID: "7", Value: 1, Secondary: 1},
			b:    RankedEntry{ID: "7", Value: 1, Secondary: 1},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRankIsStableUnderShuffle(t *testing.T) {
	entries := []RankedEntry{
		{ID: "10", Value: 300, Secondary: 1},
		{ID: "11", Value: 300, Secondary: 1},
		{ID: "12", Value: 300, Secondary: 7},
		{ID: "3", Value: 5, Secondary: 0},
		{ID: "4", Value: 900, Secondary: 0},
		{ID: "5", Value: 0, Secondary: 0},
		{ID: "6", Value: 5, Secondary: 2},
		{ID: "100", Value: 5, Secondary: 2},
	}
	want := []string{"4", "12", "10", "11", "6", "100", "3", "5"}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := append([]RankedEntry(nil), entries...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		ranked := Rank(shuffled)
		var got []string
		for _, e := range ranked {
			got = append(got, e.ID)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("iteration %d: Rank() order = %v, want %v", i, got, want)
		}
	}
}

func TestRankMixedIDsIsStableUnderShuffle(t *testing.T) {
	ids := []string{"9", "10", "1a", "007", "7", "", "abc", "Z", "0"}
	entries := make([]RankedEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, RankedEntry{ID: id, Value: 5, Secondary: 5})
	}
	want := []string{"0", "007", "7", "9", "10", "", "1a", "Z", "abc"}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		shuffled := append([]RankedEntry(nil), entries...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		var got []string
		for _, e := range Rank(shuffled) {
			got = append(got, e.ID)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("iteration %d: Rank() order = %q, want %q", i, got, want)
		}
	}
}

func TestCompareIDsIsTransitive(t *testing.T) {
	ids := []string{"9", "10", "1a", "007", "7", "", "abc", "Z", "0", "100", "a1"}
	for _, a := range ids {
		for _, b := range ids {
			if CompareIDs(a, b) != -CompareIDs(b, a) {
				t.Errorf("CompareIDs(%q, %q) is not antisymmetric", a, b)
			}
			for _, c := range ids {
				if CompareIDs(a, b) < 0 && CompareIDs(b, c) < 0 && CompareIDs(a, c) >= 0 {
					t.Errorf("%q < %q < %q but CompareIDs(%q, %q) = %d", a, b, c, a, c, CompareIDs(a, c))
				}
			}
		}
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	in := []RankedEntry{{ID: "1", Value: 1}, {ID: "2", Value: 2}}
	_ = Rank(in)
	if in[0].ID != "1" || in[1].ID != "2" {
		t.Errorf("Rank() mutated its input: %v", in)
	}
}

func TestTop(t *testing.T) {
	in := []RankedEntry{{ID: "1", Value: 1}, {ID: "2", Value: 2}, {ID: "3", Value: 3}}
	got := Top(in, 2)
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "2" {
		t.Errorf("Top() = %v", got)
	}
	if got := Top(in, 10); len(got) != 3 {
		t.Errorf("Top() with large n returned %d entries", len(got))
	}
}

func TestParseMetric(t *testing.T) {
	if m, err := ParseMetric(" Balance "); err != nil || m != MetricBalance {
		t.Errorf("ParseMetric(balance) = %q, %v", m, err)
	}
	if m, err := ParseMetric("level"); err != nil || m != MetricLevel {
		t.Errorf("ParseMetric(level) = %q, %v", m, err)
	}
	if _, err := ParseMetric("karma"); err == nil {
		t.Error("ParseMetric(karma) expected error")
	}
}
