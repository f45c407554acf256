package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/hybridrank/ai"
	"github.com/poiesic/hybridrank/core"
	"github.com/poiesic/hybridrank/fusion"
	"github.com/poiesic/hybridrank/query"
	"github.com/poiesic/hybridrank/storage"
)

// DefaultQueryTimeout bounds how long retrieval may take.
const DefaultQueryTimeout = 10 * time.Second

// Request describes one search.
type Request struct {
	Text    string
	Filters query.FilterSet
	TopK    int
}

// Response is the outcome of a search.
type Response struct {
	Results    *RankedList
	Candidates int // Documents that produced at least one raw score
	Duration   time.Duration
}

// Searcher provides hybrid lexical and semantic search over documents.
type Searcher struct {
	documentRepository  storage.DocumentRepository
	vectorizer          ai.Vectorizer
	builder             *query.Builder
	engine              *fusion.Engine
	fusionConfig        fusion.Config
	queryTimeout        time.Duration
	titleBoost          float64
	candidateMultiplier int
	minCandidates       int
	now                 func() time.Time
	logger              *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithFusionConfig replaces the default fusion weights and modifiers.
func WithFusionConfig(cfg fusion.Config) Option {
	return func(s *Searcher) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		s.fusionConfig = cfg
		return nil
	}
}

// WithQueryTimeout bounds retrieval time.
// Default is DefaultQueryTimeout.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(s *Searcher) error {
		if timeout <= 0 {
			return fmt.Errorf("query timeout must be positive: %v", timeout)
		}
		s.queryTimeout = timeout
		return nil
	}
}

// WithTitleBoost sets the title field boost of the lexical signal.
// Default is query.DefaultTitleBoost.
func WithTitleBoost(boost float64) Option {
	return func(s *Searcher) error {
		if boost < 0 {
			return fmt.Errorf("title boost cannot be negative: %v", boost)
		}
		s.titleBoost = boost
		return nil
	}
}

// WithCandidateMultiplier widens vector retrieval to topK*m documents.
// Default is 1.
func WithCandidateMultiplier(m int) Option {
	return func(s *Searcher) error {
		if m < 1 {
			return fmt.Errorf("candidate multiplier must be at least 1: %d", m)
		}
		s.candidateMultiplier = m
		return nil
	}
}

// WithMinCandidates sets the floor on vector retrieval depth so small
// result sizes still normalize the vector signals over several documents.
// Default is query.DefaultMinCandidates.
func WithMinCandidates(n int) Option {
	return func(s *Searcher) error {
		if n < 1 {
			return fmt.Errorf("min candidates must be at least 1: %d", n)
		}
		s.minCandidates = n
		return nil
	}
}

// WithClock sets the time source used for recency decay.
// Default is time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Searcher) error {
		if now == nil {
			now = time.Now
		}
		s.now = now
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	documentRepository storage.DocumentRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Searcher, error) {
	if documentRepository == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		documentRepository:  documentRepository,
		vectorizer:          provider.Vectorizer(),
		fusionConfig:        fusion.DefaultConfig(),
		queryTimeout:        DefaultQueryTimeout,
		titleBoost:          query.DefaultTitleBoost,
		candidateMultiplier: 1,
		minCandidates:       query.DefaultMinCandidates,
		now:                 time.Now,
		logger:              slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	builder, err := query.NewBuilder(s.vectorizer,
		query.WithTitleBoost(s.titleBoost),
		query.WithCandidateMultiplier(s.candidateMultiplier),
		query.WithMinCandidates(s.minCandidates),
		query.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	engine, err := fusion.NewEngine(s.fusionConfig,
		fusion.WithClock(s.now),
		fusion.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	s.builder = builder
	s.engine = engine

	return s, nil
}

// Search runs a hybrid search and returns up to req.TopK ranked documents.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	return s.SearchWithMonitor(ctx, req, nil)
}

// SearchWithMonitor runs a hybrid search with monitoring.
// The monitor receives callbacks at each stage of the search process.
func (s *Searcher) SearchWithMonitor(ctx context.Context, req Request, monitor SearchMonitor) (*Response, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	started := time.Now()
	monitor.Start(req.Text)

	// 1. Build the composite query
	q, err := s.builder.Build(ctx, req.Text, req.Filters, req.TopK)
	if err != nil {
		return nil, err
	}
	monitor.AfterQueryBuilt(q)

	// 2. Collect raw scores
	candidates, err := s.retrieve(ctx, q)
	if err != nil {
		return nil, err
	}
	monitor.AfterRetrieval(candidates)

	// 3. Fuse
	fused, err := s.engine.Fuse(ctx, candidates)
	if err != nil {
		s.logger.Error("error fusing scores", "candidates", len(candidates), "err", err)
		return nil, err
	}
	monitor.AfterFusion(fused)

	// 4. Hydrate and assemble
	top := fused[:min(req.TopK, len(fused))]
	ids := make([]string, len(top))
	for i, f := range top {
		ids[i] = f.DocumentID
	}
	docs, err := s.documentRepository.GetDocuments(ctx, ids...)
	if err != nil {
		s.logger.Error("error retrieving documents", "documentCount", len(ids), "err", err)
		return nil, err
	}
	monitor.AfterHydration(docs)

	byID := make(map[string]*core.Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}
	list := Assemble(top, req.TopK, byID)
	if list.Skipped > 0 {
		s.logger.Warn("documents disappeared before hydration", "count", list.Skipped)
	}
	list.Highlight(q.Terms)
	monitor.Finish(list)

	resp := &Response{
		Results:    list,
		Candidates: len(candidates),
		Duration:   time.Since(started),
	}
	s.logger.Debug("search complete",
		"query", req.Text, "candidates", resp.Candidates, "results", len(list.Results), "duration", resp.Duration)
	return resp, nil
}

// retrieve runs the storage search under the query timeout.
func (s *Searcher) retrieve(ctx context.Context, q *query.CompositeQuery) ([]*core.Candidate, error) {
	searchCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	candidates, err := s.documentRepository.Search(searchCtx, q)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("query timed out", "query", q.Text, "timeout", s.queryTimeout)
			return nil, fmt.Errorf("%w after %v: %w", ErrQueryTimeout, s.queryTimeout, err)
		}
		s.logger.Error("error querying documents", "err", err)
		return nil, err
	}
	return candidates, nil
}
