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


package core

import (
	"fmt"
	"strings"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Title and Chunks cannot both be empty
//   - Chunk indices must be exactly 0..n-1, in order
//   - Chunk content must not be empty
//   - Token counts must not be negative
//   - Metadata keys must not be empty
//
// NOT validated (populated at ingestion):
//   - TitleVector
//   - Chunk embeddings
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if strings.TrimSpace(doc.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyDocumentID)
	}

	if strings.TrimSpace(doc.Title) == "" && len(doc.Chunks) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyDocument)
	}

	for i := range doc.Chunks {
		if err := ValidateChunk(&doc.Chunks[i], i); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
	}

	for _, p := range doc.Metadata {
		if p.Key == "" {
			return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyMetadataKey)
		}
	}

	return nil
}

// ValidateChunk validates a chunk expected at position want.
func ValidateChunk(chunk *Chunk, want int) error {
	if chunk.Index != want {
		return fmt.Errorf("%w: expected index %d, got %d", ErrNonContiguousChunks, want, chunk.Index)
	}
	if strings.TrimSpace(chunk.Content) == "" {
		return fmt.Errorf("%w: chunk %d", ErrEmptyChunkContent, chunk.Index)
	}
	if chunk.TokenCount < 0 || chunk.MaxTokens < 0 {
		return fmt.Errorf("%w: chunk %d", ErrInvalidTokenCount, chunk.Index)
	}
	return nil
}

// ValidateVector checks that v has exactly dim components.
func ValidateVector(v []float32, dim int) error {
	if len(v) != dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, dim, len(v))
	}
	return nil
}
