package search

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		raw  string
		want Query
	}{
		{raw: "", want: Query{Filters: map[string]string{}}},
		{raw: "type:risk vendor", want: Query{Filters: map[string]string{"type": "risk"}, Text: "vendor"}},
		{raw: "  vendor   delay  ", want: Query{Filters: map[string]string{}, Text: "vendor delay"}},
		{raw: "Owner:Alice status:open ship  it", want: Query{Filters: map[string]string{"owner": "Alice", "status": "open"}, Text: "ship it"}},
		{raw: "type:risk", want: Query{Filters: map[string]string{"type": "risk"}}},
		{raw: "type:risk type:issue", want: Query{Filters: map[string]string{"type": "issue"}}},
		{raw: ":risk key: a:b:c", want: Query{Filters: map[string]string{"a": "b:c"}, Text: ":risk key:"}},
	}
	for _, tc := range tests {
		got := ParseQuery(tc.raw)
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("ParseQuery(%q) mismatch (-want +got):\n%s", tc.raw, diff)
		}
	}
}

func TestMatchExpression(t *testing.T) {
	tests := map[string]string{
		"vendor delay":      "vendor delay",
		"v2 release":        "v2 release",
		"vendor's":          `"vendor's"`,
		`say "hi"`:          `say """hi"""`,
		"ship AND deploy":   `ship "AND" deploy`,
		"near or":           `"near" "or"`,
		"api-gateway (v2)*": `"api-gateway" "(v2)*"`,
		"snake_case café":   "snake_case café",
	}
	for in, want := range tests {
		if got := MatchExpression(in); got != want {
			t.Fatalf("MatchExpression(%q) = %q, want %q", in, got, want)
		}
	}
}
