package search

import (
	"regexp"
	"strings"
	"unicode"
)

var filterToken = regexp.MustCompile(`^(\w+):(\S+)$`)

// ftsOperators are bare words the full-text engine treats as syntax.
var ftsOperators = map[string]struct{}{
	"AND":  {},
	"OR":   {},
	"NOT":  {},
	"NEAR": {},
}

// Query is a parsed search string: key:value filters plus free text.
type Query struct {
	Filters map[string]string
	Text    string
}

// Filter returns the value for key, or "".
func (q Query) Filter(key string) string {
	return q.Filters[key]
}

// ParseQuery splits raw on whitespace, extracts every key:value token as a
// filter (keys lowercased, later duplicates win), and joins the remaining
// tokens with single spaces as the free text.
func ParseQuery(raw string) Query {
	q := Query{Filters: map[string]string{}}
	var text []string
	for _, token := range strings.Fields(raw) {
		if m := filterToken.FindStringSubmatch(token); m != nil {
			q.Filters[strings.ToLower(m[1])] = m[2]
			continue
		}
		text = append(text, token)
	}
	q.Text = strings.Join(text, " ")
	return q
}

// MatchExpression turns free text into a full-text expression where every
// term is matched literally. Terms with punctuation or that spell an
// operator are double-quoted; the terms are implicitly ANDed.
func MatchExpression(text string) string {
	terms := strings.Fields(text)
	for i, term := range terms {
		if needsQuoting(term) {
			terms[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
		}
	}
	return strings.Join(terms, " ")
}

func needsQuoting(term string) bool {
	if _, ok := ftsOperators[strings.ToUpper(term)]; ok {
		return true
	}
	for _, r := range term {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
