package storage

import (
	"context"

	"github.com/poiesic/hybridrank/core"
	"github.com/poiesic/hybridrank/query"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// DocumentRepository stores documents and answers composite queries.
type DocumentRepository interface {
	Repository

	// UpsertDocument atomically replaces any stored version of the document,
	// including every index entry derived from it. Reports whether a
	// previous version existed.
	UpsertDocument(ctx context.Context, doc *core.Document) (replaced bool, err error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// GetDocuments retrieves multiple documents by their IDs.
	// Returns only the documents that exist (no error for missing documents).
	GetDocuments(ctx context.Context, ids ...string) ([]*core.Document, error)

	// DeleteDocument removes a document and its index entries.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id string) error

	// AdjustBoost adds delta to the document's boost count and returns the
	// new value.
	AdjustBoost(ctx context.Context, id string, delta int) (int, error)

	// SetBoost overwrites the document's boost count.
	SetBoost(ctx context.Context, id string, value int) error

	// SetHidden toggles whether the document is excluded from default queries.
	SetHidden(ctx context.Context, id string, hidden bool) error

	// ListDocumentIDs returns every stored document ID in ascending order.
	ListDocumentIDs(ctx context.Context) ([]string, error)

	// Search runs the query's sub-queries against documents passing its
	// filters and returns one candidate per document with at least one raw
	// score.
	Search(ctx context.Context, q *query.CompositeQuery) ([]*core.Candidate, error)
}

// CheckpointRepository persists progress of resumable background jobs.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint, stamping UpdatedAt.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a processor type.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint for a processor type.
	// Deleting a missing checkpoint is not an error.
	DeleteCheckpoint(ctx context.Context, processorType string) error
}
