package reembed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/hybridrank/core"
	"github.com/poiesic/hybridrank/ingestion"
)

// Ingester re-derives and stores a document. *ingestion.Pipeline satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, doc *core.Document) (*ingestion.IngestResult, error)
}

var _ Ingester = (*ingestion.Pipeline)(nil)

// BatchProcessor pushes batches of stored documents back through ingestion.
type BatchProcessor struct {
	ingester       Ingester
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of ingest attempts per document
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(ingester Ingester, maxRetries int, retryBaseDelay time.Duration, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		ingester:       ingester,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		logger:         logger,
	}
}

// Process re-ingests each document in order. The stored BoostCount and
// Hidden values travel with the document, so feedback survives. Processing
// stops at the first document that cannot be ingested.
func (bp *BatchProcessor) Process(ctx context.Context, docs []*core.Document) error {
	for _, doc := range docs {
		err := RetryWithBackoff(ctx, func() error {
			_, err := bp.ingester.Ingest(ctx, doc)
			var ingestErr *ingestion.IngestError
			if errors.As(err, &ingestErr) && ingestErr.Stage == ingestion.StageValidate {
				return Permanent(err)
			}
			return err
		}, bp.maxRetries, bp.retryBaseDelay)
		if err != nil {
			bp.logger.Error("error reembedding document", "document", doc.ID, "err", err)
			return fmt.Errorf("reembed %q: %w", doc.ID, err)
		}
	}
	return nil
}
