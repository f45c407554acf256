package openai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/hybridrank/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"
)

type recordingClient struct {
	mu    sync.Mutex
	texts []string
	dim   int
	err   error
}

func (c *recordingClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.texts = append(c.texts, texts...)
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, c.dim)
		v[0] = 3
		v[1] = 4
		out[i] = v
	}
	return out, nil
}

func newTestVectorizer(t *testing.T, client embeddings.EmbedderClient, dim int) *Vectorizer {
	t.Helper()
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(2))
	require.NoError(t, err)
	cfg := ai.NewConfig(ai.WithDimension(dim), ai.WithBatchSize(2))
	require.NoError(t, cfg.Validate())
	return newVectorizerWithEmbedder(embedder, cfg)
}

func TestVectorizer_PrefixesByRole(t *testing.T) {
	client := &recordingClient{dim: 4}
	v := newTestVectorizer(t, client, 4)

	_, err := v.Embed(context.Background(), "Florida", ai.RoleQuery)
	require.NoError(t, err)
	_, err = v.EmbedTexts(context.Background(), []string{"hot", "humid", "dry"}, ai.RolePassage)
	require.NoError(t, err)

	assert.Equal(t, []string{"query: Florida", "passage: hot", "passage: humid", "passage: dry"}, client.texts)
}

func TestVectorizer_NormalizesVectors(t *testing.T) {
	v := newTestVectorizer(t, &recordingClient{dim: 4}, 4)

	vec, err := v.Embed(context.Background(), "Florida", ai.RolePassage)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)
	assert.Equal(t, 4, v.Dimension())
}

func TestVectorizer_Failures(t *testing.T) {
	t.Run("empty text", func(t *testing.T) {
		client := &recordingClient{dim: 4}
		v := newTestVectorizer(t, client, 4)
		_, err := v.Embed(context.Background(), " ", ai.RolePassage)
		assert.ErrorIs(t, err, ai.ErrEmbeddingFailure)
		assert.ErrorIs(t, err, ai.ErrEmptyText)
		assert.Empty(t, client.texts, "nothing should reach the model")
	})

	t.Run("model unavailable", func(t *testing.T) {
		v := newTestVectorizer(t, &recordingClient{dim: 4, err: errors.New("connection refused")}, 4)
		_, err := v.Embed(context.Background(), "Florida", ai.RolePassage)
		require.Error(t, err)
		assert.ErrorIs(t, err, ai.ErrEmbeddingFailure)
		assert.True(t, strings.Contains(err.Error(), "connection refused"))
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		v := newTestVectorizer(t, &recordingClient{dim: 8}, 4)
		_, err := v.Embed(context.Background(), "Florida", ai.RolePassage)
		assert.ErrorIs(t, err, ai.ErrEmbeddingFailure)
	})

	t.Run("canceled context", func(t *testing.T) {
		cfg := ai.NewConfig(ai.WithDimension(4), ai.WithRequestsPerSecond(0.001))
		require.NoError(t, cfg.Validate())
		embedder, err := embeddings.NewEmbedder(&recordingClient{dim: 4})
		require.NoError(t, err)
		v := newVectorizerWithEmbedder(embedder, cfg)

		// The first call consumes the only token.
		_, err = v.Embed(context.Background(), "first", ai.RolePassage)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = v.Embed(ctx, "second", ai.RolePassage)
		assert.ErrorIs(t, err, ai.ErrEmbeddingFailure)
	})
}

func TestNewProvider(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		_, err := NewProvider(&ai.Config{})
		assert.Error(t, err)
	})

	t.Run("cache enabled", func(t *testing.T) {
		provider, err := NewProvider(ai.NewConfig(ai.WithCacheSize(8)))
		require.NoError(t, err)
		defer provider.Close()
		_, ok := provider.Vectorizer().(*ai.CachingVectorizer)
		assert.True(t, ok)
	})

	t.Run("cache disabled", func(t *testing.T) {
		provider, err := NewProvider(ai.NewConfig(ai.WithCacheSize(0)))
		require.NoError(t, err)
		defer provider.Close()
		_, ok := provider.Vectorizer().(*Vectorizer)
		assert.True(t, ok)
	})
}
