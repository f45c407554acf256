package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/poiesic/hybridrank/ai"
	"github.com/poiesic/hybridrank/core"
	"github.com/poiesic/hybridrank/storage"
)

// DefaultEmbedBatchSize is how many chunks are sent to the vectorizer per job.
const DefaultEmbedBatchSize = 16

// IngestResult describes a successfully indexed document.
type IngestResult struct {
	DocumentID  string
	Revision    uuid.UUID // Unique per successful ingest
	ChunkCount  int
	Replaced    bool // A previous version existed and was replaced
	Fingerprint uint64
}

// Pipeline orchestrates embedding and storing documents.
type Pipeline struct {
	documentRepository storage.DocumentRepository
	vectorizer         ai.Vectorizer
	embeddingPool      *ants.Pool
	embeddingProc      *embeddingProcessor
	poolSize           int
	batchSize          int
	logger             *slog.Logger
}

// poolLogger routes ants pool messages (worker panics) to the pipeline logger.
type poolLogger struct {
	p *Pipeline
}

func (l poolLogger) Printf(format string, args ...any) {
	logger := l.p.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error(fmt.Sprintf(format, args...), "component", "ingestion-pool")
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}

		embeddingPool, err := ants.NewPool(size, ants.WithLogger(poolLogger{p}))
		if err != nil {
			return err
		}

		p.embeddingPool = embeddingPool
		p.poolSize = size
		return nil
	}
}

// WithEmbedBatchSize sets how many chunks are embedded per vectorizer call.
// Default is DefaultEmbedBatchSize.
func WithEmbedBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	documentRepository storage.DocumentRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if documentRepository == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	// Create pipeline with defaults
	p := &Pipeline{
		documentRepository: documentRepository,
		vectorizer:         provider.Vectorizer(),
		batchSize:          DefaultEmbedBatchSize,
		logger:             slog.Default(),
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	if err := WithPoolSize(poolSize)(p); err != nil {
		return nil, err
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	// Create the processor after options are applied (so it gets final config)
	embeddingProc, err := newEmbeddingProcessor(p.vectorizer, p.embeddingPool, p.batchSize, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.embeddingProc = embeddingProc

	return p, nil
}

// Ingest validates, embeds and stores one document, replacing any version
// previously stored under the same ID. The caller's document is not
// modified. On failure nothing is written and the error is an
// *IngestError.
func (p *Pipeline) Ingest(ctx context.Context, doc *core.Document) (*IngestResult, error) {
	if err := core.ValidateDocument(doc); err != nil {
		id := ""
		if doc != nil {
			id = doc.ID
		}
		return nil, &IngestError{DocumentID: id, Stage: StageValidate, Err: err}
	}

	embedded := doc.Clone()
	embedded.TitleVector = nil
	for i := range embedded.Chunks {
		embedded.Chunks[i].Embedding = nil
	}

	if err := p.embeddingProc.process(ctx, embedded); err != nil {
		return nil, &IngestError{DocumentID: doc.ID, Stage: StageEmbed, Err: err}
	}

	replaced, err := p.documentRepository.UpsertDocument(ctx, embedded)
	if err != nil {
		p.logger.Error("error storing document", "document", doc.ID, "err", err)
		return nil, &IngestError{DocumentID: doc.ID, Stage: StageStore, Err: err}
	}

	result := &IngestResult{
		DocumentID:  doc.ID,
		Revision:    uuid.New(),
		ChunkCount:  len(embedded.Chunks),
		Replaced:    replaced,
		Fingerprint: embedded.Fingerprint(),
	}
	p.logger.Info("ingested document",
		"document", doc.ID, "chunks", result.ChunkCount, "replaced", replaced, "revision", result.Revision)
	return result, nil
}

// IngestBatch ingests each document independently. Results are positional
// with nil entries for failed documents; the error joins every failure.
func (p *Pipeline) IngestBatch(ctx context.Context, docs []*core.Document) ([]*IngestResult, error) {
	results := make([]*IngestResult, len(docs))
	errs := make([]error, len(docs))

	var g errgroup.Group
	g.SetLimit(p.poolSize)
	for i, doc := range docs {
		g.Go(func() error {
			results[i], errs[i] = p.Ingest(ctx, doc)
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}
