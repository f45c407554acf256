package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/hybridrank/ai"
	"github.com/poiesic/hybridrank/core"
)

// embeddingProcessor fills in the title vector and chunk embeddings of a
// document. Title and chunk batches are embedded concurrently on the pool.
type embeddingProcessor struct {
	vectorizer ai.Vectorizer
	pool       *ants.Pool
	batchSize  int
	logger     *slog.Logger
}

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(vectorizer ai.Vectorizer, pool *ants.Pool, batchSize int, logger *slog.Logger) (*embeddingProcessor, error) {
	if vectorizer == nil {
		return nil, fmt.Errorf("vectorizer required")
	}
	if pool == nil {
		return nil, fmt.Errorf("worker pool required")
	}
	if batchSize < 1 {
		batchSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		vectorizer: vectorizer,
		pool:       pool,
		batchSize:  batchSize,
		logger:     logger.With("processor", "embeddings"),
	}, nil
}

// process embeds doc in place. Either every vector is populated or an
// error is returned and doc must be discarded.
func (ep *embeddingProcessor) process(ctx context.Context, doc *core.Document) error {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
		cancel()
	}
	submit := func(job func() error) {
		wg.Add(1)
		err := ep.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					fail(fmt.Errorf("%w: vectorizer panic: %v", ai.ErrEmbeddingFailure, r))
				}
			}()
			if jobCtx.Err() != nil {
				return
			}
			if err := job(); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(err)
		}
	}

	if doc.Title != "" {
		submit(func() error {
			vector, err := ep.vectorizer.Embed(jobCtx, doc.Title, ai.RolePassage)
			if err != nil {
				return fmt.Errorf("title: %w", err)
			}
			if err := ep.checkDimension(vector); err != nil {
				return fmt.Errorf("title: %w", err)
			}
			doc.TitleVector = vector
			return nil
		})
	}

	for start := 0; start < len(doc.Chunks); start += ep.batchSize {
		batch := doc.Chunks[start:min(start+ep.batchSize, len(doc.Chunks))]
		submit(func() error {
			texts := make([]string, len(batch))
			for i := range batch {
				texts[i] = batch[i].Content
			}
			vectors, err := ep.vectorizer.EmbedTexts(jobCtx, texts, ai.RolePassage)
			if err != nil {
				return fmt.Errorf("chunks %d-%d: %w", batch[0].Index, batch[len(batch)-1].Index, err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("%w: embedding result mismatch. expected %d, received %d",
					ai.ErrEmbeddingFailure, len(batch), len(vectors))
			}
			for i := range batch {
				if err := ep.checkDimension(vectors[i]); err != nil {
					return fmt.Errorf("chunk %d: %w", batch[i].Index, err)
				}
				batch[i].Embedding = vectors[i]
			}
			return nil
		})
	}

	wg.Wait()

	if len(errs) > 0 {
		ep.logger.Error("error generating embeddings", "document", doc.ID, "err", errs[0])
		return errs[0]
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ep.logger.Debug("embedded document", "document", doc.ID, "chunks", len(doc.Chunks))
	return nil
}

func (ep *embeddingProcessor) checkDimension(vector []float32) error {
	if err := core.ValidateVector(vector, ep.vectorizer.Dimension()); err != nil {
		return fmt.Errorf("%w: %w", ai.ErrEmbeddingFailure, err)
	}
	return nil
}
