package ai

import "context"

// Role selects how text is prefixed before encoding. Passages and queries
// are encoded asymmetrically, so a query must never be embedded as a passage.
type Role int

const (
	// RolePassage is used for titles and chunks at ingestion time.
	RolePassage Role = iota
	// RoleQuery is used for search text at query time.
	RoleQuery
)

// Prefix returns the marker prepended to text for this role.
func (r Role) Prefix() string {
	if r == RoleQuery {
		return "query: "
	}
	return "passage: "
}

// Apply returns text with the role prefix prepended.
func (r Role) Apply(text string) string {
	return r.Prefix() + text
}

func (r Role) String() string {
	if r == RoleQuery {
		return "query"
	}
	return "passage"
}

// Vectorizer maps text to fixed-dimension unit vectors.
// Implementations must be thread-safe for concurrent use.
type Vectorizer interface {
	// Embed encodes a single text with the given role.
	// Empty text and model failures return an error wrapping ErrEmbeddingFailure.
	Embed(ctx context.Context, text string, role Role) ([]float32, error)

	// EmbedTexts encodes several texts with the same role.
	// The result is positional. Any failure fails the whole batch.
	EmbedTexts(ctx context.Context, texts []string, role Role) ([][]float32, error)

	// Dimension is the length of every vector this Vectorizer returns.
	Dimension() int
}

// AIProvider owns the lifecycle of the model-backed services.
// It is initialized once and shared read-only.
type AIProvider interface {
	// Vectorizer returns the embedding service.
	// The returned Vectorizer is safe for concurrent use.
	Vectorizer() Vectorizer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
