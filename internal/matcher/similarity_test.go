package matcher

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/hetulpatel/arbwatch/internal/collectors"
)

func TestTokenSortRatio_IdenticalTokenSets(t *testing.T) {
	a := collectors.NormalizeTitle("Will X win the election?")
	b := collectors.NormalizeTitle("election the WIN x, will")
	if got := TokenSortRatio(a, b); got != 100 {
		t.Fatalf("expected 100, got %v", got)
	}
}

func TestTokenSortRatio_OrderInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := "fed rate decision march 2025 hike"
	other := collectors.NormalizeTitle("Will the Fed hike rates at the March 2025 decision?")
	want := TokenSortRatio(base, other)

	for i := 0; i < 20; i++ {
		tokens := strings.Fields(base)
		rng.Shuffle(len(tokens), func(i, j int) { tokens[i], tokens[j] = tokens[j], tokens[i] })
		shuffled := strings.Join(tokens, " ")
		if got := TokenSortRatio(shuffled, other); got != want {
			t.Fatalf("shuffle %q scored %v, want %v", shuffled, got, want)
		}
	}
}

func TestTokenSortRatio_Symmetric(t *testing.T) {
	a := "bitcoin above 100k on december 31"
	b := "will bitcoin be above 100k by december 31"
	if TokenSortRatio(a, b) != TokenSortRatio(b, a) {
		t.Fatal("expected symmetric score")
	}
}

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 0},
		{"abc", "", 0},
		{"abc", "abc", 100},
		{"abcd", "abed", 75},
		{"kitten", "sitting", 100 * 8.0 / 13.0},
	}
	for _, tc := range tests {
		if got := Ratio(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Ratio(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestRatio_Runes(t *testing.T) {
	if got := Ratio("élection", "élection"); got != 100 {
		t.Fatalf("expected 100 for identical non-ascii strings, got %v", got)
	}
}

func TestTokenSortRatio_DecomposedAccentKeepsWord(t *testing.T) {
	a := collectors.NormalizeTitle("Pokémon world championship")
	b := collectors.NormalizeTitle("World championship pokémon")
	if got := TokenSortRatio(a, b); got != 100 {
		t.Fatalf("expected 100 for reordered title with combining accent, got %v", got)
	}
}
