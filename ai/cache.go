package ai

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/minio/highwayhash"
)

// cacheKey keys the highwayhash used to derive cache keys.
var cacheKey = []byte("hybridrank-vectorizer-cache-key!")

// CachingVectorizer memoizes embeddings of an underlying Vectorizer in an LRU.
// Entries are keyed by (role, text), so passage and query encodings of the
// same text never collide.
type CachingVectorizer struct {
	next   Vectorizer
	cache  *lru.Cache[uint64, []float32]
	logger *slog.Logger
}

var _ Vectorizer = (*CachingVectorizer)(nil)

// NewCachingVectorizer wraps next with an LRU holding up to size embeddings.
func NewCachingVectorizer(next Vectorizer, size int) (*CachingVectorizer, error) {
	cache, err := lru.New[uint64, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachingVectorizer{
		next:   next,
		cache:  cache,
		logger: slog.Default().With("component", "vectorizer-cache"),
	}, nil
}

// Embed returns a cached embedding or delegates to the wrapped Vectorizer.
func (c *CachingVectorizer) Embed(ctx context.Context, text string, role Role) ([]float32, error) {
	key := c.key(text, role)
	if v, ok := c.cache.Get(key); ok {
		return slices.Clone(v), nil
	}
	v, err := c.next.Embed(ctx, text, role)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, slices.Clone(v))
	return v, nil
}

// EmbedTexts serves hits from the cache and sends only the misses downstream.
func (c *CachingVectorizer) EmbedTexts(ctx context.Context, texts []string, role Role) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missTexts []string
		missIdx   []int
		missKeys  []uint64
	)
	for i, text := range texts {
		key := c.key(text, role)
		if v, ok := c.cache.Get(key); ok {
			out[i] = slices.Clone(v)
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
		missKeys = append(missKeys, key)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	c.logger.Debug("embedding cache miss", "hits", len(texts)-len(missTexts), "misses", len(missTexts))
	vectors, err := c.next.EmbedTexts(ctx, missTexts, role)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrEmbeddingFailure, len(missTexts), len(vectors))
	}
	for j, v := range vectors {
		out[missIdx[j]] = v
		c.cache.Add(missKeys[j], slices.Clone(v))
	}
	return out, nil
}

// Dimension returns the wrapped Vectorizer's dimension.
func (c *CachingVectorizer) Dimension() int {
	return c.next.Dimension()
}

// Len returns the number of cached embeddings.
func (c *CachingVectorizer) Len() int {
	return c.cache.Len()
}

// Purge empties the cache. Call it when the underlying model changes.
func (c *CachingVectorizer) Purge() {
	c.cache.Purge()
}

func (c *CachingVectorizer) key(text string, role Role) uint64 {
	h, err := highwayhash.New64(cacheKey)
	if err != nil {
		// The key is a fixed 32 bytes.
		panic(err)
	}
	h.Write([]byte(role.Prefix()))
	h.Write([]byte(text))
	return h.Sum64()
}
