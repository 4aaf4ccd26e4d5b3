// Package query expands and classifies raw query text.
package query

import (
	"strings"
	"unicode"
)

// Synonym maps a domain term to the phrase appended when the term occurs.
type Synonym struct {
	Term      string
	Expansion string
}

// DefaultSynonyms is the built-in medical synonym table, applied in order.
var DefaultSynonyms = []Synonym{
	{Term: "treatment", Expansion: "therapy intervention medication"},
	{Term: "symptom", Expansion: "sign manifestation indication"},
	{Term: "diagnosis", Expansion: "detection identification assessment"},
	{Term: "cancer", Expansion: "tumor malignancy carcinoma neoplasm"},
}

// Transformer appends synonym expansions to a query.
type Transformer struct {
	table []Synonym
}

// NewTransformer copies table; a nil table selects DefaultSynonyms.
func NewTransformer(table []Synonym) *Transformer {
	if table == nil {
		table = DefaultSynonyms
	}
	cp := make([]Synonym, 0, len(table))
	for _, s := range table {
		if s.Term == "" || s.Expansion == "" {
			continue
		}
		cp = append(cp, Synonym{Term: strings.ToLower(s.Term), Expansion: s.Expansion})
	}
	return &Transformer{table: cp}
}

// Transform appends, once and in table order, the expansion of every term found
// as a case-insensitive substring. Queries with no match come back unchanged.
func (t *Transformer) Transform(q string) string {
	lower := strings.ToLower(q)
	var b strings.Builder
	b.WriteString(q)
	for _, s := range t.table {
		if strings.Contains(lower, s.Term) {
			b.WriteByte(' ')
			b.WriteString(s.Expansion)
		}
	}
	return b.String()
}

// Terms returns the distinct lower-cased whitespace tokens of q in first-seen order.
func Terms(q string) []string {
	fields := strings.Fields(strings.ToLower(q))
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Tokens splits q into lower-cased words with surrounding punctuation removed.
func Tokens(q string) []string {
	fields := strings.Fields(strings.ToLower(q))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
