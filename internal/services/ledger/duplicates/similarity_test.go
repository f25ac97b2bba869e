package duplicates

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTokens(t *testing.T) {
	got := Tokens("Ship  the v2-release, ship IT! Straße")
	want := []string{"it", "release", "ship", "strasse", "the", "v2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenSetSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "Ship v2", b: "Ship v2", want: 1},
		{name: "reordered and repeated", a: "release the v2", b: "v2 v2 the release", want: 1},
		{name: "case and punctuation", a: "Ship V2!", b: "ship, v2", want: 1},
		{name: "subset", a: "ship v2", b: "ship v2 to customers", want: 1},
		{name: "overlapping", a: "Ship the v2 release", b: "Ship v2 release to customers", want: 30.0 / 34.0},
		{name: "empty", a: "", b: "ship", want: 0},
		{name: "punctuation only", a: "!!", b: "??", want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := TokenSetSimilarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("similarity(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
			if back := TokenSetSimilarity(tc.b, tc.a); math.Abs(back-got) > 1e-9 {
				t.Fatalf("similarity not symmetric: %v vs %v", got, back)
			}
		})
	}
}

func TestTokenSetSimilarityDisjoint(t *testing.T) {
	got := TokenSetSimilarity("budget overrun", "hire contractors")
	if got >= DefaultThreshold {
		t.Fatalf("disjoint similarity = %v", got)
	}
	if got < 0 || got > 1 {
		t.Fatalf("similarity out of range: %v", got)
	}
}

func TestRatio(t *testing.T) {
	if got := ratio("", ""); got != 1 {
		t.Fatalf("ratio of empties = %v", got)
	}
	if got := ratio("abc", "abd"); math.Abs(got-4.0/6.0) > 1e-9 {
		t.Fatalf("ratio = %v", got)
	}
}
