package badger

import "math"

// BM25 parameters shared by every lexical field.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// fieldIndex holds the per-field statistics BM25 needs for one scan.
type fieldIndex struct {
	docs   [][]string
	df     map[string]int
	avgLen float64
}

// newFieldIndex computes document frequencies of the query terms over the
// tokenized field values.
func newFieldIndex(docs [][]string, terms []string) *fieldIndex {
	idx := &fieldIndex{
		docs: docs,
		df:   make(map[string]int, len(terms)),
	}
	wanted := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		wanted[t] = struct{}{}
	}

	total := 0
	for _, tokens := range docs {
		total += len(tokens)
		seen := make(map[string]struct{})
		for _, tok := range tokens {
			if _, ok := wanted[tok]; !ok {
				continue
			}
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			idx.df[tok]++
		}
	}
	if len(docs) > 0 {
		idx.avgLen = float64(total) / float64(len(docs))
	}
	return idx
}

// idf is the Lucene variant, which never goes negative.
func (f *fieldIndex) idf(term string) float64 {
	n := float64(f.df[term])
	return math.Log(1 + (float64(len(f.docs))-n+0.5)/(n+0.5))
}

// score returns the BM25 score of document i for the given terms.
func (f *fieldIndex) score(i int, terms []string) float64 {
	tokens := f.docs[i]
	if len(tokens) == 0 || f.avgLen == 0 {
		return 0
	}

	tf := make(map[string]int, len(terms))
	for _, tok := range tokens {
		tf[tok]++
	}

	norm := bm25K1 * (1 - bm25B + bm25B*float64(len(tokens))/f.avgLen)
	var total float64
	for _, term := range terms {
		freq := float64(tf[term])
		if freq == 0 {
			continue
		}
		total += f.idf(term) * freq * (bm25K1 + 1) / (freq + norm)
	}
	return total
}
