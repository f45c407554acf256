package search

import (
	"slices"

	"github.com/poiesic/hybridrank/core"
)

// matchedTerms returns the query terms, in query order, that appear in text
// after tokenization and stop-word filtering.
func matchedTerms(text string, terms []string) []string {
	if len(terms) == 0 {
		return nil
	}

	words := core.Tokenize(text)
	wordSet := make(map[string]bool, len(words))
	for _, word := range words {
		wordSet[word] = true
	}

	var matched []string
	for _, term := range terms {
		if wordSet[term] && !slices.Contains(matched, term) {
			matched = append(matched, term)
		}
	}
	return matched
}

// containsAllTerms checks if every query term appears in text.
func containsAllTerms(text string, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	return len(matchedTerms(text, terms)) == len(termSet(terms))
}

func termSet(terms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
	}
	return set
}
