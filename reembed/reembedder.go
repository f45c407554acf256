// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/hybridrank/core"
	"github.com/poiesic/hybridrank/storage"
)

// CheckpointType is the processor type under which reembed progress is saved.
const CheckpointType = "reembed"

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of documents to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per document
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Resume continues after the last checkpointed document instead of
	// starting over
	Resume bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		Resume:         true,
	}
}

// Reembedder orchestrates the reembedding of every stored document.
type Reembedder struct {
	repo        storage.DocumentRepository
	checkpoints storage.CheckpointRepository
	config      *Config
	progress    io.Writer
	logger      *slog.Logger
	processor   *BatchProcessor
}

// Option configures a Reembedder.
type Option func(*Reembedder)

// WithCheckpoints enables checkpointing so interrupted runs can resume.
func WithCheckpoints(checkpoints storage.CheckpointRepository) Option {
	return func(r *Reembedder) {
		r.checkpoints = checkpoints
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(repo storage.DocumentRepository, ingester Ingester, config *Config, progress io.Writer, opts ...Option) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if ingester == nil {
		return nil, ErrIngesterRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	r := &Reembedder{
		repo:     repo,
		config:   config,
		progress: progress,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reembed")
	r.processor = NewBatchProcessor(ingester, config.MaxRetries, config.RetryDelay, r.logger)

	return r, nil
}

// Run re-ingests every stored document with the ingester's vectorizer.
// Progress is reported to the configured writer. With checkpoints enabled,
// the last processed ID is saved after each batch and cleared on success.
func (r *Reembedder) Run(ctx context.Context) error {
	iterator := NewDocumentIterator(r.repo, r.config.BatchSize)

	checkpoint, err := r.startingCheckpoint(ctx)
	if err != nil {
		return err
	}
	iterator.StartAfter(checkpoint.LastDocumentID)

	remaining, err := iterator.Remaining(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	total := checkpoint.Processed + len(remaining)
	if total == 0 {
		fmt.Fprintf(r.progress, "No documents found in index (0 documents)\n")
		return nil
	}

	if checkpoint.LastDocumentID != "" {
		fmt.Fprintf(r.progress, "Resuming reembedding after %q (%d of %d already done)\n",
			checkpoint.LastDocumentID, checkpoint.Processed, total)
	} else {
		fmt.Fprintf(r.progress, "Starting reembedding of %d documents (batch size: %d)\n",
			total, r.config.BatchSize)
	}

	resumedFrom := checkpoint.Processed
	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start(resumedFrom)

	err = iterator.ForEach(ctx, func(docs []*core.Document) error {
		if err := r.processor.Process(ctx, docs); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}

		tracker.Increment(len(docs))
		checkpoint.LastDocumentID = docs[len(docs)-1].ID
		checkpoint.Processed = tracker.Processed()
		return r.saveCheckpoint(ctx, checkpoint)
	})
	if err != nil {
		return err
	}

	tracker.Finish()
	if r.checkpoints != nil {
		if err := r.checkpoints.DeleteCheckpoint(ctx, CheckpointType); err != nil {
			return fmt.Errorf("failed to clear checkpoint: %w", err)
		}
	}

	elapsed := tracker.Elapsed()
	done := total - resumedFrom
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d documents in %v (%.1f docs/sec)\n",
		done, elapsed.Round(time.Millisecond), float64(done)/max(elapsed.Seconds(), 1e-9))
	r.logger.Info("reembedding complete", "documents", done, "elapsed", elapsed)

	return nil
}

// startingCheckpoint returns the saved checkpoint when resuming, or a fresh
// one otherwise.
func (r *Reembedder) startingCheckpoint(ctx context.Context) (*core.Checkpoint, error) {
	fresh := &core.Checkpoint{ProcessorType: CheckpointType}
	if r.checkpoints == nil || !r.config.Resume {
		return fresh, nil
	}

	saved, err := r.checkpoints.LoadCheckpoint(ctx, CheckpointType)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if saved == nil {
		return fresh, nil
	}
	r.logger.Debug("resuming from checkpoint", "after", saved.LastDocumentID, "processed", saved.Processed)
	return saved, nil
}

func (r *Reembedder) saveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	if r.checkpoints == nil {
		return nil
	}
	if err := r.checkpoints.SaveCheckpoint(ctx, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}
