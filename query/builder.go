package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/hybridrank/ai"
	"github.com/poiesic/hybridrank/core"
)

const (
	// DefaultTitleBoost multiplies the title field's BM25 contribution.
	DefaultTitleBoost = 1.2

	// DefaultContentBoost multiplies the chunk content's BM25 contribution.
	DefaultContentBoost = 1.0

	// DefaultMinCandidates is the smallest top-k requested from each vector
	// sub-query, whatever the result size. Min-max normalization over a
	// single vector candidate would zero that signal.
	DefaultMinCandidates = 20
)

// SubQueryKind distinguishes lexical from vector sub-queries.
type SubQueryKind int

const (
	KindLexical SubQueryKind = iota
	KindVector
)

// SubQuery names one independently scored retrieval against the index.
type SubQuery struct {
	Name   core.SignalName
	Kind   SubQueryKind
	Fields map[string]float64 // Field name to boost
	K      int                // Top-k for vector sub-queries; 0 means unbounded
}

// CompositeQuery is everything a storage engine needs to produce raw scores.
type CompositeQuery struct {
	Text         string
	Terms        []string  // Tokenized Text, used by lexical sub-queries
	Vector       []float32 // Text embedded with ai.RoleQuery
	Filters      FilterSet
	K            int // Vector sub-query depth, at least the requested result size
	TitleBoost   float64
	ContentBoost float64
}

// SubQueries lists the named sub-queries in a stable order.
func (q *CompositeQuery) SubQueries() []SubQuery {
	return []SubQuery{
		{
			Name:   core.SignalLexical,
			Kind:   KindLexical,
			Fields: map[string]float64{"title": q.TitleBoost, "chunks.content": q.ContentBoost},
		},
		{
			Name:   core.SignalChunkLexical,
			Kind:   KindLexical,
			Fields: map[string]float64{"chunks.content": q.ContentBoost},
		},
		{
			Name:   core.SignalTitleVector,
			Kind:   KindVector,
			Fields: map[string]float64{"title_vector": 1},
			K:      q.K,
		},
		{
			Name:   core.SignalChunkVector,
			Kind:   KindVector,
			Fields: map[string]float64{"chunks.embedding": 1},
			K:      q.K,
		},
	}
}

// Builder turns query text and filters into a CompositeQuery.
type Builder struct {
	vectorizer          ai.Vectorizer
	titleBoost          float64
	contentBoost        float64
	candidateMultiplier int
	minCandidates       int
	logger              *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder) error

// WithTitleBoost sets the title field boost for the lexical sub-query.
func WithTitleBoost(boost float64) Option {
	return func(b *Builder) error {
		if boost < 0 {
			return fmt.Errorf("title boost cannot be negative: %v", boost)
		}
		b.titleBoost = boost
		return nil
	}
}

// WithContentBoost sets the chunk content boost for the lexical sub-query.
func WithContentBoost(boost float64) Option {
	return func(b *Builder) error {
		if boost < 0 {
			return fmt.Errorf("content boost cannot be negative: %v", boost)
		}
		b.contentBoost = boost
		return nil
	}
}

// WithCandidateMultiplier widens the vector sub-queries' top-k to k*m,
// trading latency for recall before fusion. Default is 1.
func WithCandidateMultiplier(m int) Option {
	return func(b *Builder) error {
		if m < 1 {
			return fmt.Errorf("candidate multiplier must be at least 1: %d", m)
		}
		b.candidateMultiplier = m
		return nil
	}
}

// WithMinCandidates sets the floor on the vector sub-queries' top-k.
// Default is DefaultMinCandidates.
func WithMinCandidates(n int) Option {
	return func(b *Builder) error {
		if n < 1 {
			return fmt.Errorf("min candidates must be at least 1: %d", n)
		}
		b.minCandidates = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewBuilder creates a query builder around the given vectorizer.
func NewBuilder(vectorizer ai.Vectorizer, opts ...Option) (*Builder, error) {
	if vectorizer == nil {
		return nil, ErrVectorizerRequired
	}
	b := &Builder{
		vectorizer:          vectorizer,
		titleBoost:          DefaultTitleBoost,
		contentBoost:        DefaultContentBoost,
		candidateMultiplier: 1,
		minCandidates:       DefaultMinCandidates,
		logger:              slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Build embeds text with the query role and assembles the composite query.
func (b *Builder) Build(ctx context.Context, text string, filters FilterSet, k int) (*CompositeQuery, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidK, k)
	}
	if err := filters.Validate(); err != nil {
		return nil, err
	}

	vector, err := b.vectorizer.Embed(ctx, text, ai.RoleQuery)
	if err != nil {
		b.logger.Error("error embedding query", "query", text, "err", err)
		return nil, err
	}

	q := &CompositeQuery{
		Text:         text,
		Terms:        core.Tokenize(text),
		Vector:       vector,
		Filters:      filters,
		K:            max(k*b.candidateMultiplier, b.minCandidates),
		TitleBoost:   b.titleBoost,
		ContentBoost: b.contentBoost,
	}
	b.logger.Debug("built composite query", "terms", len(q.Terms), "k", q.K)
	return q, nil
}
