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


// Package hybridrank wires storage, embedding, ingestion and search into a
// single on-disk index.
package hybridrank

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/poiesic/hybridrank/ai"
	"github.com/poiesic/hybridrank/ai/openai"
	"github.com/poiesic/hybridrank/fusion"
	"github.com/poiesic/hybridrank/ingestion"
	"github.com/poiesic/hybridrank/reembed"
	"github.com/poiesic/hybridrank/search"
	"github.com/poiesic/hybridrank/storage"
	"github.com/poiesic/hybridrank/storage/badger"
)

// Index is an opened hybrid retrieval index.
type Index struct {
	backend        *badger.Backend
	docRepo        storage.DocumentRepository
	checkpointRepo storage.CheckpointRepository
	provider       ai.AIProvider
	fusionConfig   *fusion.Config
	logger         *slog.Logger
}

// Option configures an Index.
type Option func(*indexOptions)

type indexOptions struct {
	aiConfig     *ai.Config
	provider     ai.AIProvider
	inMemory     bool
	fusionConfig *fusion.Config
	logger       *slog.Logger
}

// WithAIConfig configures the OpenAI-compatible embedding provider.
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *indexOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider supplies a ready-made provider. It takes precedence over
// WithAIConfig and is closed with the index.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *indexOptions) {
		o.provider = provider
	}
}

// WithInMemory keeps the index in memory; the path is ignored.
func WithInMemory() Option {
	return func(o *indexOptions) {
		o.inMemory = true
	}
}

// WithFusionConfig sets the fusion configuration used by searchers created
// from the index.
func WithFusionConfig(cfg fusion.Config) Option {
	return func(o *indexOptions) {
		o.fusionConfig = &cfg
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *indexOptions) {
		o.logger = logger
	}
}

// NewIndex opens or creates the index stored at path.
func NewIndex(path string, opts ...Option) (*Index, error) {
	options := &indexOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	if options.fusionConfig != nil {
		if err := options.fusionConfig.Validate(); err != nil {
			return nil, err
		}
	}

	backend, err := badger.OpenBackendWithLogger(path, options.inMemory, options.logger)
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	return &Index{
		backend:        backend,
		docRepo:        badger.NewDocumentRepository(backend),
		checkpointRepo: badger.NewCheckpointRepository(backend),
		provider:       provider,
		fusionConfig:   options.fusionConfig,
		logger:         options.logger,
	}, nil
}

// Close releases the provider and the storage backend.
func (idx *Index) Close() error {
	if err := idx.provider.Close(); err != nil {
		idx.logger.Error("error closing AI provider", "err", err)
	}

	if err := idx.docRepo.Close(); err != nil {
		idx.logger.Error("error closing document repository", "err", err)
		return err
	}

	if err := idx.backend.Close(); err != nil {
		idx.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Repository returns the document repository.
func (idx *Index) Repository() storage.DocumentRepository {
	return idx.docRepo
}

// CheckpointRepository returns the checkpoint repository.
func (idx *Index) CheckpointRepository() storage.CheckpointRepository {
	return idx.checkpointRepo
}

// NewIngestionPipeline creates a pipeline writing to this index.
// The caller must Release it.
func (idx *Index) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	opts = append([]ingestion.Option{ingestion.WithLogger(idx.logger)}, opts...)
	return ingestion.NewPipeline(idx.docRepo, idx.provider, opts...)
}

// NewSearcher creates a searcher over this index. Options passed here
// override the index defaults.
func (idx *Index) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	defaults := []search.Option{search.WithLogger(idx.logger)}
	if idx.fusionConfig != nil {
		defaults = append(defaults, search.WithFusionConfig(*idx.fusionConfig))
	}
	return search.NewSearcher(idx.docRepo, idx.provider, append(defaults, opts...)...)
}

// NewReembedder creates a reembedder that re-ingests through pipeline and
// checkpoints its progress in this index.
func (idx *Index) NewReembedder(pipeline *ingestion.Pipeline, cfg *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	if pipeline == nil {
		return nil, errors.New("ingestion pipeline is required")
	}
	return reembed.NewReembedder(idx.docRepo, pipeline, cfg, progress,
		reembed.WithCheckpoints(idx.checkpointRepo),
		reembed.WithLogger(idx.logger),
	)
}

// RecordFeedback adds delta to the document's boost count and returns the
// new count. Positive feedback lifts the document in future rankings.
func (idx *Index) RecordFeedback(ctx context.Context, id string, delta int) (int, error) {
	count, err := idx.docRepo.AdjustBoost(ctx, id, delta)
	if err != nil {
		return 0, err
	}
	idx.logger.Debug("recorded feedback", "document", id, "delta", delta, "boost", count)
	return count, nil
}

// SetHidden hides or restores a document in default searches.
func (idx *Index) SetHidden(ctx context.Context, id string, hidden bool) error {
	return idx.docRepo.SetHidden(ctx, id, hidden)
}

// DeleteDocument removes a document from the index.
func (idx *Index) DeleteDocument(ctx context.Context, id string) error {
	return idx.docRepo.DeleteDocument(ctx, id)
}
