package textutil

import (
	"cmp"
	"slices"
)

// Term is a token and its number of occurrences.
type Term struct {
	Text  string
	Count int
}

// CountTerms tallies tokens, skipping any present in stop.
func CountTerms(tokens []string, stop map[string]struct{}) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, token := range tokens {
		if _, skip := stop[token]; skip {
			continue
		}
		counts[token]++
	}
	return counts
}

// TopTerms returns at most limit terms ordered by descending count, then
// alphabetically. limit <= 0 returns every term.
func TopTerms(counts map[string]int, limit int) []Term {
	terms := make([]Term, 0, len(counts))
	for text, count := range counts {
		terms = append(terms, Term{Text: text, Count: count})
	}
	slices.SortFunc(terms, func(a, b Term) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Text, b.Text)
	})
	if limit > 0 && len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}
