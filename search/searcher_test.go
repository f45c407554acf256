package search

import (
	"context"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/poiesic/hybridrank/ai/mock"
	"github.com/poiesic/hybridrank/core"
	"github.com/poiesic/hybridrank/fusion"
	"github.com/poiesic/hybridrank/ingestion"
	"github.com/poiesic/hybridrank/query"
	"github.com/poiesic/hybridrank/storage"
	"github.com/poiesic/hybridrank/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpusUpdated = time.Date(2023, 9, 10, 0, 0, 0, 0, time.UTC)

func corpusDocument(id, title string, contents ...string) *core.Document {
	updated := corpusUpdated
	doc := &core.Document{
		ID:           id,
		Title:        title,
		SourceType:   "web",
		DocumentSets: []string{"test_set"},
		Metadata:     core.Metadata{{Key: "space", Value: "HR"}},
		LastUpdated:  &updated,
	}
	for i, c := range contents {
		doc.Chunks = append(doc.Chunks, core.Chunk{Index: i, Content: c, MaxTokens: 4096})
	}
	return doc
}

func corpus() []*core.Document {
	return []*core.Document{
		corpusDocument("test1", "The weather in Florida",
			"The weather in Florida is hot and humid",
			"The weather in Alaska is frigid",
			"The weather in the Saharah is dry"),
		corpusDocument("test2", "My favorite animal",
			"My favorite animal in the world is the dog",
			"My favorite animal in the world is the cat",
			"My favorite animal in Florida is the aligator"),
		corpusDocument("test3", "The best food",
			"The best food is French fries",
			"The best food is pizza",
			"The best food is sushi"),
	}
}

// setupCorpus indexes the three-document corpus and returns its repository.
func setupCorpus(t *testing.T) storage.DocumentRepository {
	t.Helper()
	docRepo, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	pipeline, err := ingestion.NewPipeline(docRepo, mock.NewMockProvider())
	require.NoError(t, err)
	defer pipeline.Release()

	_, err = pipeline.IngestBatch(context.Background(), corpus())
	require.NoError(t, err)
	return docRepo
}

func newTestSearcher(t *testing.T, repo storage.DocumentRepository, opts ...Option) *Searcher {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return corpusUpdated })}, opts...)
	s, err := NewSearcher(repo, mock.NewMockProvider(), opts...)
	require.NoError(t, err)
	return s
}

func resultIDs(resp *Response) []string {
	ids := make([]string, len(resp.Results.Results))
	for i, r := range resp.Results.Results {
		ids[i] = r.Document.ID
	}
	return ids
}

func TestNewSearcher(t *testing.T) {
	repo, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	provider := mock.NewMockProvider()

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(repo, provider)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with custom logger", func(t *testing.T) {
		searcher, err := NewSearcher(repo, provider, WithLogger(slog.Default()))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(repo, provider, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("nil document repository", func(t *testing.T) {
		_, err := NewSearcher(nil, provider)
		assert.Equal(t, ErrDocumentRepositoryRequired, err)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewSearcher(repo, nil)
		assert.Equal(t, ErrAIProviderRequired, err)
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := NewSearcher(repo, provider, WithQueryTimeout(0))
		assert.Error(t, err)
		_, err = NewSearcher(repo, provider, WithTitleBoost(-1))
		assert.Error(t, err)
		_, err = NewSearcher(repo, provider, WithCandidateMultiplier(0))
		assert.Error(t, err)
		_, err = NewSearcher(repo, provider, WithMinCandidates(0))
		assert.Error(t, err)
		_, err = NewSearcher(repo, provider, WithFusionConfig(fusion.Config{}))
		assert.ErrorIs(t, err, fusion.ErrInvalidConfig)
	})
}

func TestSearch_EmptyIndex(t *testing.T) {
	repo, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	resp, err := newTestSearcher(t, repo).Search(context.Background(), Request{Text: "Florida", TopK: 10})
	require.NoError(t, err)
	assert.Empty(t, resp.Results.Results)
	assert.Equal(t, 0, resp.Candidates)
}

func TestSearch_Florida(t *testing.T) {
	s := newTestSearcher(t, setupCorpus(t))

	resp, err := s.Search(context.Background(), Request{Text: "Florida", TopK: 10})
	require.NoError(t, err)
	require.Equal(t, []string{"test1", "test2", "test3"}, resultIDs(resp))

	results := resp.Results.Results
	assert.InDelta(t, 1.9, results[0].Score, 1e-6)
	assert.InDelta(t, math.Sqrt(10)/math.Sqrt(12), results[1].Score, 1e-6)
	assert.Equal(t, 0.0, results[2].Score)

	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 1.0, results[0].Fused.Signals[core.SignalLexical])
	assert.Equal(t, 0.0, results[1].Fused.Signals[core.SignalLexical])
	assert.Equal(t, 1.0, results[0].Fused.DecayModifier)
	assert.Equal(t, 1.0, results[0].Fused.BoostModifier)

	best := results[1].Best(core.SignalChunkVector)
	require.NotNil(t, best)
	assert.Equal(t, 2, best.Index)
	require.Len(t, results[1].Chunks, 3)
	assert.False(t, results[1].Chunks[0].Contributes(core.SignalChunkVector))
	assert.False(t, results[1].Chunks[1].Contributes(core.SignalChunkVector))
	assert.Equal(t, "My favorite animal in Florida is the aligator", best.Content)
	assert.Equal(t, []string{"florida"}, best.Highlights)
	assert.True(t, results[1].AllTermsMatched)
	assert.False(t, results[2].AllTermsMatched)
}

func TestSearch_TopK(t *testing.T) {
	s := newTestSearcher(t, setupCorpus(t))

	resp, err := s.Search(context.Background(), Request{Text: "Florida", TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"test1", "test2"}, resultIDs(resp))
}

func TestSearch_Idempotent(t *testing.T) {
	s := newTestSearcher(t, setupCorpus(t))
	req := Request{Text: "favorite food in Florida", TopK: 10}

	first, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	for range 3 {
		again, err := s.Search(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, resultIDs(first), resultIDs(again))
		for i := range first.Results.Results {
			assert.Equal(t, first.Results.Results[i].Score, again.Results.Results[i].Score)
		}
	}
}

func TestSearch_MetadataConjunction(t *testing.T) {
	s := newTestSearcher(t, setupCorpus(t))

	resp, err := s.Search(context.Background(), Request{
		Text: "Florida",
		TopK: 10,
		Filters: query.FilterSet{Metadata: []core.MetadataPair{
			{Key: "space", Value: "IT"},
			{Key: "space", Value: "HR"},
		}},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Results.Results)
}

func TestSearch_Hidden(t *testing.T) {
	repo := setupCorpus(t)
	s := newTestSearcher(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.SetHidden(ctx, "test3", true))
	resp, err := s.Search(ctx, Request{Text: "Florida", TopK: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"test1", "test2"}, resultIDs(resp))

	resp, err = s.Search(ctx, Request{Text: "Florida", TopK: 10, Filters: query.FilterSet{IncludeHidden: true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"test1", "test2", "test3"}, resultIDs(resp))
}

func TestSearch_Feedback(t *testing.T) {
	repo := setupCorpus(t)
	s := newTestSearcher(t, repo)
	ctx := context.Background()

	_, err := repo.AdjustBoost(ctx, "test1", -30)
	require.NoError(t, err)
	_, err = repo.AdjustBoost(ctx, "test2", 6)
	require.NoError(t, err)

	resp, err := s.Search(ctx, Request{Text: "Florida", TopK: 10})
	require.NoError(t, err)
	require.Equal(t, []string{"test2", "test1", "test3"}, resultIDs(resp))

	results := resp.Results.Results
	assert.InDelta(t, fusion.BoostModifier(6, 3), results[0].Fused.BoostModifier, 1e-12)
	assert.InDelta(t, math.Sqrt(10)/math.Sqrt(12)*fusion.BoostModifier(6, 3), results[0].Score, 1e-6)
	assert.InDelta(t, 1.9*fusion.BoostModifier(-30, 3), results[1].Score, 1e-6)
	assert.Equal(t, 0.0, results[2].Score)
}

func TestSearch_FeedbackCannotLiftZeroFusedScore(t *testing.T) {
	repo := setupCorpus(t)
	s := newTestSearcher(t, repo)
	ctx := context.Background()

	_, err := repo.AdjustBoost(ctx, "test3", 100)
	require.NoError(t, err)

	resp, err := s.Search(ctx, Request{Text: "Florida", TopK: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"test1", "test2", "test3"}, resultIDs(resp))
	assert.Equal(t, 0.0, resp.Results.Results[2].Score)
}

func TestSearch_RecencyDecay(t *testing.T) {
	yearLater := corpusUpdated.Add(365 * 24 * time.Hour)
	s := newTestSearcher(t, setupCorpus(t), WithClock(func() time.Time { return yearLater }))

	resp, err := s.Search(context.Background(), Request{Text: "Florida", TopK: 1})
	require.NoError(t, err)
	require.Len(t, resp.Results.Results, 1)
	top := resp.Results.Results[0]
	assert.Equal(t, "test1", top.Document.ID)
	assert.InDelta(t, 0.875, top.Fused.DecayModifier, 1e-9)
	assert.Equal(t, 1.0, top.Fused.Signals[core.SignalTitleVector])
	assert.Equal(t, 1.0, top.Fused.Signals[core.SignalChunkVector])
	assert.InDelta(t, 1.9*0.875, top.Score, 1e-6)
}

func TestSearch_SmallTopKKeepsVectorSignals(t *testing.T) {
	repo := setupCorpus(t)
	ctx := context.Background()

	full, err := newTestSearcher(t, repo).Search(ctx, Request{Text: "Florida", TopK: 10})
	require.NoError(t, err)
	for k := 1; k <= 3; k++ {
		resp, err := newTestSearcher(t, repo).Search(ctx, Request{Text: "Florida", TopK: k})
		require.NoError(t, err)
		require.Len(t, resp.Results.Results, k)
		for i, r := range resp.Results.Results {
			assert.Equal(t, full.Results.Results[i].Document.ID, r.Document.ID)
			assert.InDelta(t, full.Results.Results[i].Score, r.Score, 1e-12)
		}
	}

	// With the floor removed a single vector candidate normalizes to 0.
	narrow, err := newTestSearcher(t, repo, WithMinCandidates(1)).Search(ctx, Request{Text: "Florida", TopK: 1})
	require.NoError(t, err)
	require.Len(t, narrow.Results.Results, 1)
	assert.Equal(t, 0.0, narrow.Results.Results[0].Fused.Signals[core.SignalTitleVector])
}

func TestSearch_InvalidRequest(t *testing.T) {
	s := newTestSearcher(t, setupCorpus(t))

	_, err := s.Search(context.Background(), Request{Text: "", TopK: 10})
	assert.ErrorIs(t, err, query.ErrEmptyQuery)

	_, err = s.Search(context.Background(), Request{Text: "Florida", TopK: 0})
	assert.ErrorIs(t, err, query.ErrInvalidK)
}

// slowRepository blocks every search until its context ends.
type slowRepository struct {
	storage.DocumentRepository
}

func (slowRepository) Search(ctx context.Context, q *query.CompositeQuery) ([]*core.Candidate, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSearch_Timeout(t *testing.T) {
	s := newTestSearcher(t, slowRepository{setupCorpus(t)}, WithQueryTimeout(20*time.Millisecond))

	resp, err := s.Search(context.Background(), Request{Text: "Florida", TopK: 10})
	assert.ErrorIs(t, err, ErrQueryTimeout)
	assert.Nil(t, resp)
}

// vanishingRepository loses a document between retrieval and hydration.
type vanishingRepository struct {
	storage.DocumentRepository
	gone string
}

func (r vanishingRepository) GetDocuments(ctx context.Context, ids ...string) ([]*core.Document, error) {
	var kept []string
	for _, id := range ids {
		if id != r.gone {
			kept = append(kept, id)
		}
	}
	return r.DocumentRepository.GetDocuments(ctx, kept...)
}

func TestSearch_SkipsVanishedDocuments(t *testing.T) {
	s := newTestSearcher(t, vanishingRepository{DocumentRepository: setupCorpus(t), gone: "test1"})

	resp, err := s.Search(context.Background(), Request{Text: "Florida", TopK: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"test2", "test3"}, resultIDs(resp))
	assert.Equal(t, 1, resp.Results.Skipped)
}

func TestSearchWithMonitor(t *testing.T) {
	s := newTestSearcher(t, setupCorpus(t))
	monitor := &testMonitor{}

	resp, err := s.SearchWithMonitor(context.Background(), Request{Text: "Florida", TopK: 10}, monitor)
	require.NoError(t, err)

	assert.Equal(t, "Florida", monitor.text)
	assert.Equal(t, []string{"start", "query", "retrieval", "fusion", "hydration", "finish"}, monitor.stages)
	assert.Equal(t, []string{"florida"}, monitor.terms)
	assert.Equal(t, 3, monitor.candidates)
	assert.Same(t, resp.Results, monitor.list)
}

type testMonitor struct {
	stages     []string
	text       string
	terms      []string
	candidates int
	list       *RankedList
}

func (m *testMonitor) Start(text string) {
	m.stages = append(m.stages, "start")
	m.text = text
}

func (m *testMonitor) AfterQueryBuilt(q *query.CompositeQuery) {
	m.stages = append(m.stages, "query")
	m.terms = q.Terms
}

func (m *testMonitor) AfterRetrieval(candidates []*core.Candidate) {
	m.stages = append(m.stages, "retrieval")
	m.candidates = len(candidates)
}

func (m *testMonitor) AfterFusion(results []*core.FusedResult) {
	m.stages = append(m.stages, "fusion")
}

func (m *testMonitor) AfterHydration(docs []*core.Document) {
	m.stages = append(m.stages, "hydration")
}

func (m *testMonitor) Finish(list *RankedList) {
	m.stages = append(m.stages, "finish")
	m.list = list
}
