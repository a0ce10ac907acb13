package pipeline

import (
	"testing"

	"ismparse/internal"
)

func TestNormalizeDirection(t *testing.T) {
	cases := map[string]internal.Direction{
		"Growing":       internal.Growing,
		"  EXPANSION ":  internal.Growing,
		"increasing":    internal.Growing,
		"decline":       internal.Contracting,
		"Contracting.":  internal.Contracting,
		"slower":        internal.Slowing,
		"Faster":        internal.Faster,
		"too high":      internal.TooHigh,
		"Too  Low":      internal.TooLow,
		"":              internal.Unknown,
		"unchanged":     internal.Direction("Unchanged"),
		"same as prior": internal.Direction("Same As Prior"),
	}
	for in, want := range cases {
		if got := NormalizeDirection(in); got != want {
			t.Fatalf("NormalizeDirection(%q) = %q, want %q", in, got, want)
		}
	}
	if NormalizeDirection("unchanged").Known() {
		t.Fatalf("pass-through direction reported as known")
	}
}

func TestNormalizeDirectionIdempotent(t *testing.T) {
	inputs := []string{"unchanged", "From Contracting", "n/a"}
	for phrase := range directionSynonyms {
		inputs = append(inputs, phrase)
	}
	for _, in := range inputs {
		once := NormalizeDirection(in)
		if twice := NormalizeDirection(string(once)); twice != once {
			t.Fatalf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
