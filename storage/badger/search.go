package badger

import (
	"cmp"
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/hybridrank/core"
	"github.com/poiesic/hybridrank/query"
)

// scoreDocuments runs every sub-query of q over docs concurrently and
// groups the raw scores into one candidate per document.
func scoreDocuments(ctx context.Context, docs []*core.Document, q *query.CompositeQuery) ([]*core.Candidate, error) {
	if len(docs) == 0 {
		return []*core.Candidate{}, nil
	}

	terms := uniqueTerms(q.Terms)
	subs := q.SubQueries()
	results := make([][]core.SubQueryScore, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	for i, sub := range subs {
		g.Go(func() error {
			var err error
			switch sub.Kind {
			case query.KindLexical:
				results[i], err = lexicalScores(gctx, docs, terms, sub)
			case query.KindVector:
				results[i], err = vectorScores(gctx, docs, q.Vector, sub)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]*core.Candidate)
	for _, scores := range results {
		for _, s := range scores {
			c, ok := byID[s.DocumentID]
			if !ok {
				c = &core.Candidate{DocumentID: s.DocumentID}
				byID[s.DocumentID] = c
			}
			c.Scores = append(c.Scores, s)
		}
	}

	candidates := make([]*core.Candidate, 0, len(byID))
	for _, doc := range docs {
		if c, ok := byID[doc.ID]; ok {
			c.BoostCount = doc.BoostCount
			c.LastUpdated = doc.LastUpdated
			candidates = append(candidates, c)
		}
	}
	slices.SortFunc(candidates, func(a, b *core.Candidate) int {
		return cmp.Compare(a.DocumentID, b.DocumentID)
	})
	return candidates, nil
}

// lexicalScores computes BM25 either over whole documents (title plus
// concatenated chunk content) or over individual chunks. Only positive
// scores are reported.
func lexicalScores(ctx context.Context, docs []*core.Document, terms []string, sub query.SubQuery) ([]core.SubQueryScore, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	contentBoost := sub.Fields["chunks.content"]

	if sub.Name == core.SignalChunkLexical {
		type chunkRef struct {
			doc   string
			index int
		}
		var refs []chunkRef
		var fields [][]string
		for _, doc := range docs {
			for _, chunk := range doc.Chunks {
				refs = append(refs, chunkRef{doc: doc.ID, index: chunk.Index})
				fields = append(fields, core.Tokenize(chunk.Content))
			}
		}
		idx := newFieldIndex(fields, terms)

		var scores []core.SubQueryScore
		for i, ref := range refs {
			if i%256 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			if s := contentBoost * idx.score(i, terms); s > 0 {
				scores = append(scores, core.SubQueryScore{
					Signal:     sub.Name,
					DocumentID: ref.doc,
					ChunkIndex: ref.index,
					RawScore:   s,
				})
			}
		}
		return scores, nil
	}

	titles := make([][]string, len(docs))
	contents := make([][]string, len(docs))
	for i, doc := range docs {
		titles[i] = core.Tokenize(doc.Title)
		contents[i] = core.Tokenize(doc.Content())
	}
	titleIdx := newFieldIndex(titles, terms)
	contentIdx := newFieldIndex(contents, terms)
	titleBoost := sub.Fields["title"]

	var scores []core.SubQueryScore
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s := titleBoost*titleIdx.score(i, terms) + contentBoost*contentIdx.score(i, terms)
		if s > 0 {
			scores = append(scores, core.SubQueryScore{
				Signal:     sub.Name,
				DocumentID: doc.ID,
				ChunkIndex: core.NoChunk,
				RawScore:   s,
			})
		}
	}
	return scores, nil
}

// vectorScores computes exact cosine similarity against title vectors or
// chunk embeddings and keeps the sub-query's top-k documents. For chunk
// embeddings a document ranks by its best chunk, and every chunk of a kept
// document is reported.
func vectorScores(ctx context.Context, docs []*core.Document, vector []float32, sub query.SubQuery) ([]core.SubQueryScore, error) {
	if len(vector) == 0 {
		return nil, nil
	}

	type hit struct {
		doc    string
		best   float64
		scores []core.SubQueryScore
	}
	hits := make([]hit, 0, len(docs))

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch sub.Name {
		case core.SignalTitleVector:
			if len(doc.TitleVector) == 0 {
				continue
			}
			s := core.CosineSimilarity(vector, doc.TitleVector)
			hits = append(hits, hit{
				doc:  doc.ID,
				best: s,
				scores: []core.SubQueryScore{{
					Signal: sub.Name, DocumentID: doc.ID, ChunkIndex: core.NoChunk, RawScore: s,
				}},
			})
		case core.SignalChunkVector:
			h := hit{doc: doc.ID}
			for _, chunk := range doc.Chunks {
				if len(chunk.Embedding) == 0 {
					continue
				}
				s := core.CosineSimilarity(vector, chunk.Embedding)
				if len(h.scores) == 0 || s > h.best {
					h.best = s
				}
				h.scores = append(h.scores, core.SubQueryScore{
					Signal: sub.Name, DocumentID: doc.ID, ChunkIndex: chunk.Index, RawScore: s,
				})
			}
			if len(h.scores) > 0 {
				hits = append(hits, h)
			}
		}
	}

	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(b.best, a.best); c != 0 {
			return c
		}
		return cmp.Compare(a.doc, b.doc)
	})
	if sub.K > 0 && len(hits) > sub.K {
		hits = hits[:sub.K]
	}

	var scores []core.SubQueryScore
	for _, h := range hits {
		scores = append(scores, h.scores...)
	}
	return scores, nil
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
