package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/poiesic/hybridrank/ai"
	"github.com/poiesic/hybridrank/core"
)

// DefaultDimension is the vector length produced by MockVectorizer.
const DefaultDimension = 384

// MockVectorizer is a test double for ai.Vectorizer.
// It allows custom behavior injection via function fields.
type MockVectorizer struct {
	// EmbedFunc is called by Embed if set.
	// If nil, uses default deterministic behavior.
	EmbedFunc func(ctx context.Context, text string, role ai.Role) ([]float32, error)

	// EmbedTextsFunc is called by EmbedTexts if set.
	// If nil, each text is embedded with the default behavior.
	EmbedTextsFunc func(ctx context.Context, texts []string, role ai.Role) ([][]float32, error)

	// Dim is the vector length. Defaults to DefaultDimension.
	Dim int

	mu        sync.Mutex
	callCount int
	texts     []string
}

var _ ai.Vectorizer = (*MockVectorizer)(nil)

// NewMockVectorizer creates a mock vectorizer with default deterministic behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockVectorizer() *MockVectorizer {
	return &MockVectorizer{Dim: DefaultDimension}
}

// Embed returns a bag-of-words hashing vector of the role-prefixed text.
func (m *MockVectorizer) Embed(ctx context.Context, text string, role ai.Role) ([]float32, error) {
	m.record(text)

	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text, role)
	}
	return m.embed(text, role)
}

// EmbedTexts embeds each text with Embed's default behavior.
func (m *MockVectorizer) EmbedTexts(ctx context.Context, texts []string, role ai.Role) ([][]float32, error) {
	m.record(texts...)

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts, role)
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		var err error
		if m.EmbedFunc != nil {
			vectors[i], err = m.EmbedFunc(ctx, text, role)
		} else {
			vectors[i], err = m.embed(text, role)
		}
		if err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

// Dimension returns Dim.
func (m *MockVectorizer) Dimension() int {
	if m.Dim <= 0 {
		return DefaultDimension
	}
	return m.Dim
}

// CallCount returns the number of times any method was called.
func (m *MockVectorizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Texts returns every text passed to the mock, in call order.
func (m *MockVectorizer) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// Reset clears the call count and any injected behavior.
func (m *MockVectorizer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.texts = nil
	m.EmbedFunc = nil
	m.EmbedTextsFunc = nil
}

func (m *MockVectorizer) record(texts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.texts = append(m.texts, texts...)
}

func (m *MockVectorizer) embed(text string, role ai.Role) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", ai.ErrEmbeddingFailure, ai.ErrEmptyText)
	}
	return HashVector(role.Apply(text), m.Dimension()), nil
}

// HashVector builds a deterministic unit vector from the text's tokens using
// the hashing trick. Texts sharing tokens have positive cosine similarity.
func HashVector(text string, dim int) []float32 {
	vector := make([]float32, dim)
	for _, token := range core.Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vector[h.Sum32()%uint32(dim)]++
	}
	return core.NormalizeVector(vector)
}
