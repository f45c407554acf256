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
	"sort"

	"github.com/poiesic/hybridrank/core"
	"github.com/poiesic/hybridrank/storage"
)

const (
	// DefaultBatchSize is the default number of documents to fetch in each batch
	DefaultBatchSize = 100
)

// DocumentIterator iterates over all stored documents in ID order, in batches.
type DocumentIterator struct {
	repo       storage.DocumentRepository
	batchSize  int
	startAfter string
}

// NewDocumentIterator creates a new document iterator.
// batchSize: number of documents to fetch in each batch (must be > 0)
func NewDocumentIterator(repo storage.DocumentRepository, batchSize int) *DocumentIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &DocumentIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// StartAfter skips every document whose ID sorts at or before id.
// An empty id visits everything.
func (it *DocumentIterator) StartAfter(id string) {
	it.startAfter = id
}

// Remaining returns the IDs the iterator would visit, in order.
func (it *DocumentIterator) Remaining(ctx context.Context) ([]string, error) {
	ids, err := it.repo.ListDocumentIDs(ctx)
	if err != nil {
		return nil, err
	}
	if it.startAfter == "" {
		return ids, nil
	}
	pos := sort.SearchStrings(ids, it.startAfter)
	if pos < len(ids) && ids[pos] == it.startAfter {
		pos++
	}
	return ids[pos:], nil
}

// ForEach iterates over the remaining documents, calling fn for each batch.
// Documents deleted between listing and fetching are skipped.
// Iteration stops on first error from fn or when all documents are processed.
// Context cancellation is checked between batches.
func (it *DocumentIterator) ForEach(ctx context.Context, fn func([]*core.Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ids, err := it.Remaining(ctx)
	if err != nil {
		return err
	}

	for i := 0; i < len(ids); i += it.batchSize {
		end := min(i+it.batchSize, len(ids))

		docs, err := it.repo.GetDocuments(ctx, ids[i:end]...)
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			if err := fn(docs); err != nil {
				return err
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
