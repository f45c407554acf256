package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/hybridrank/ai"
	"github.com/poiesic/hybridrank/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// Vectorizer implements ai.Vectorizer using OpenAI-compatible embedding APIs.
type Vectorizer struct {
	embedder  embeddings.Embedder
	dimension int
	batchSize int
	limiter   *rate.Limiter
	logger    *slog.Logger
}

var _ ai.Vectorizer = (*Vectorizer)(nil)

// newVectorizer is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newVectorizer(config *ai.Config) (*Vectorizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.APIToken),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(config.BatchSize),
	)
	if err != nil {
		return nil, err
	}

	return newVectorizerWithEmbedder(embedder, config), nil
}

// newVectorizerWithEmbedder wires an already constructed langchaingo embedder.
func newVectorizerWithEmbedder(embedder embeddings.Embedder, config *ai.Config) *Vectorizer {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return &Vectorizer{
		embedder:  embedder,
		dimension: config.Dimension,
		batchSize: config.BatchSize,
		limiter:   limiter,
		logger:    slog.Default().With("component", "openai-vectorizer"),
	}
}

// NewVectorizer creates a new vectorizer using the provided configuration.
//
// Returns ai.Vectorizer interface to enforce abstraction.
func NewVectorizer(config *ai.Config) (ai.Vectorizer, error) {
	return newVectorizer(config)
}

// Embed generates a unit vector for a single role-prefixed text.
func (v *Vectorizer) Embed(ctx context.Context, text string, role ai.Role) ([]float32, error) {
	vectors, err := v.EmbedTexts(ctx, []string{text}, role)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts generates unit vectors for several texts sharing a role.
func (v *Vectorizer) EmbedTexts(ctx context.Context, texts []string, role ai.Role) ([][]float32, error) {
	v.logger.Debug("generating embeddings", "count", len(texts), "role", role)

	prefixed := make([]string, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: text %d: %w", ai.ErrEmbeddingFailure, i, ai.ErrEmptyText)
		}
		prefixed[i] = role.Apply(text)
	}

	for range (len(texts) + v.batchSize - 1) / v.batchSize {
		if err := v.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ai.ErrEmbeddingFailure, err)
		}
	}

	vectors, err := v.embedder.EmbedDocuments(ctx, prefixed)
	if err != nil {
		v.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, fmt.Errorf("%w: %w", ai.ErrEmbeddingFailure, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ai.ErrEmbeddingFailure, len(texts), len(vectors))
	}

	for i := range vectors {
		if err := core.ValidateVector(vectors[i], v.dimension); err != nil {
			return nil, fmt.Errorf("%w: %w", ai.ErrEmbeddingFailure, err)
		}
		vectors[i] = core.NormalizeVector(vectors[i])
	}
	return vectors, nil
}

// Dimension returns the configured embedding dimension.
func (v *Vectorizer) Dimension() int {
	return v.dimension
}
