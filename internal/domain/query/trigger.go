package query

import "strings"

// DefaultFetchTerms trigger eager enrichment before the first pass.
var DefaultFetchTerms = []string{"cancer", "treatment", "therapy", "diagnosis", "symptom"}

// DefaultDomainTerms decide whether an empty result is worth a reactive fetch.
var DefaultDomainTerms = []string{
	"cancer", "medical", "health", "disease", "treatment", "symptom",
	"diagnosis", "patient", "clinical", "therapy", "drug", "medicine",
}

// TermSet matches query text against a fixed vocabulary.
type TermSet struct {
	terms map[string]struct{}
}

// NewTermSet builds a set from terms; matching is case-insensitive.
func NewTermSet(terms []string) TermSet {
	m := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		for _, t := range Tokens(term) {
			m[t] = struct{}{}
		}
	}
	return TermSet{terms: m}
}

// Matches reports whether any token of q equals a term in the set.
func (s TermSet) Matches(q string) bool {
	for _, tok := range Tokens(q) {
		if _, ok := s.terms[tok]; ok {
			return true
		}
	}
	return false
}

// Contains reports whether any term occurs anywhere in q, case-insensitively.
// Unlike Matches it accepts inflected forms such as "drugs" or "diseases".
func (s TermSet) Contains(q string) bool {
	lower := strings.ToLower(q)
	for term := range s.terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// Len returns the vocabulary size.
func (s TermSet) Len() int { return len(s.terms) }
