package search

import (
	"slices"

	"github.com/poiesic/hybridrank/core"
)

// MatchedChunk is a chunk scored by at least one chunk-scoped signal.
type MatchedChunk struct {
	Index        int
	Content      string
	Link         string
	Scores       map[core.SignalName]float64 // Raw chunk scores
	Contributing []core.SignalName           // Signals whose document score came from this chunk
	Highlights   []string                    // Query terms found in Content
}

// Contributes reports whether this chunk set the document's score for signal.
func (c *MatchedChunk) Contributes(signal core.SignalName) bool {
	return slices.Contains(c.Contributing, signal)
}

// RankedResult is one entry of the final ranking.
type RankedResult struct {
	Rank     int // 1-based
	Document *core.Document
	Score    float64
	Fused    *core.FusedResult
	Chunks   []MatchedChunk

	// AllTermsMatched is set when the title or some chunk contains every query term.
	AllTermsMatched bool
}

// RankedList is the assembled output of a search.
type RankedList struct {
	Results []*RankedResult

	// Skipped counts fused results whose document could not be hydrated.
	Skipped int
}

// Assemble walks the fused ranking in order and attaches each document and
// its matched chunks, stopping after topK entries. Scores are passed through
// unchanged. Results whose document is missing from docs are skipped.
func Assemble(fused []*core.FusedResult, topK int, docs map[string]*core.Document) *RankedList {
	list := &RankedList{Results: make([]*RankedResult, 0, min(topK, len(fused)))}

	for _, f := range fused {
		if len(list.Results) >= topK {
			break
		}
		doc, ok := docs[f.DocumentID]
		if !ok || doc == nil {
			list.Skipped++
			continue
		}

		result := &RankedResult{
			Rank:     len(list.Results) + 1,
			Document: doc,
			Score:    f.FinalScore,
			Fused:    f,
		}
		for _, m := range f.MatchedChunks {
			if m.ChunkIndex < 0 || m.ChunkIndex >= len(doc.Chunks) {
				continue
			}
			chunk := doc.Chunks[m.ChunkIndex]
			result.Chunks = append(result.Chunks, MatchedChunk{
				Index:        chunk.Index,
				Content:      chunk.Content,
				Link:         chunk.Link,
				Scores:       m.Scores,
				Contributing: m.Contributing,
			})
		}
		list.Results = append(list.Results, result)
	}
	return list
}

// Highlight records which query terms each matched chunk contains.
func (l *RankedList) Highlight(terms []string) {
	for _, r := range l.Results {
		r.AllTermsMatched = containsAllTerms(r.Document.Title, terms)
		for i := range r.Chunks {
			c := &r.Chunks[i]
			c.Highlights = matchedTerms(c.Content, terms)
			if containsAllTerms(c.Content, terms) {
				r.AllTermsMatched = true
			}
		}
	}
}

// Best returns the chunk that supplied the document's score for signal,
// or nil when no chunk did.
func (r *RankedResult) Best(signal core.SignalName) *MatchedChunk {
	for i := range r.Chunks {
		if r.Chunks[i].Contributes(signal) {
			return &r.Chunks[i]
		}
	}
	return nil
}

// Contributing returns the chunks that supplied at least one signal score,
// the ones worth highlighting.
func (r *RankedResult) Contributing() []MatchedChunk {
	var out []MatchedChunk
	for _, c := range r.Chunks {
		if len(c.Contributing) > 0 {
			out = append(out, c)
		}
	}
	return out
}
