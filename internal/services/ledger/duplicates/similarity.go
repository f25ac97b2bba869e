package duplicates

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Tokens folds case, applies NFKC, splits on anything that is not a letter or
// digit, and returns the distinct tokens sorted.
func Tokens(s string) []string {
	s = folder.String(norm.NFKC.String(s))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	slices.Sort(fields)
	return slices.Compact(fields)
}

// TokenSetSimilarity scores two strings in [0,1] by comparing their token
// sets, ignoring order and repetition. The shared tokens are compared against
// each side's shared-plus-remaining tokens and the best character-level
// ratio wins; a string whose tokens are a subset of the other's scores 1.
func TokenSetSimilarity(a, b string) float64 {
	tokensA, tokensB := Tokens(a), Tokens(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	var shared, onlyA, onlyB []string
	i, j := 0, 0
	for i < len(tokensA) && j < len(tokensB) {
		switch strings.Compare(tokensA[i], tokensB[j]) {
		case 0:
			shared = append(shared, tokensA[i])
			i++
			j++
		case -1:
			onlyA = append(onlyA, tokensA[i])
			i++
		default:
			onlyB = append(onlyB, tokensB[j])
			j++
		}
	}
	onlyA = append(onlyA, tokensA[i:]...)
	onlyB = append(onlyB, tokensB[j:]...)

	if len(shared) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 1
	}

	sect := strings.Join(shared, " ")
	combinedA := joinNonEmpty(sect, strings.Join(onlyA, " "))
	combinedB := joinNonEmpty(sect, strings.Join(onlyB, " "))

	best := ratio(combinedA, combinedB)
	if sect != "" {
		best = max(best, ratio(sect, combinedA), ratio(sect, combinedB))
	}
	return best
}

// ratio is the normalized indel similarity: 1 - distance/(len(a)+len(b)),
// where distance counts insertions and deletions only.
func ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	lcs := longestCommonSubsequence(ra, rb)
	return float64(2*lcs) / float64(total)
}

func longestCommonSubsequence(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
