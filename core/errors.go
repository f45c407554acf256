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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyDocumentID indicates the document ID is empty.
	ErrEmptyDocumentID = errors.New("document id cannot be empty")

	// ErrEmptyDocument indicates a document has neither a title nor chunks.
	ErrEmptyDocument = errors.New("document must have a title or at least one chunk")

	// ErrNonContiguousChunks indicates chunk indices are not exactly 0..n-1 in order.
	ErrNonContiguousChunks = errors.New("chunk indices must be contiguous and start at 0")

	// ErrEmptyChunkContent indicates a chunk has no content.
	ErrEmptyChunkContent = errors.New("chunk content cannot be empty")

	// ErrInvalidTokenCount indicates a negative token count or budget.
	ErrInvalidTokenCount = errors.New("token counts cannot be negative")

	// ErrEmptyMetadataKey indicates a metadata pair has an empty key.
	ErrEmptyMetadataKey = errors.New("metadata key cannot be empty")

	// ErrDimensionMismatch indicates a vector does not have the expected dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
