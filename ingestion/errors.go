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


package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrIngestFailure matches every error returned by Ingest.
	ErrIngestFailure = errors.New("ingest failure")
)

// Stage names the ingestion step that failed.
type Stage string

const (
	StageValidate Stage = "validate"
	StageEmbed    Stage = "embed"
	StageStore    Stage = "store"
)

// IngestError reports why a single document was not indexed.
// Nothing is written for a document that fails.
type IngestError struct {
	DocumentID string
	Stage      Stage
	Err        error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %q failed at %s: %v", e.DocumentID, e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *IngestError) Unwrap() error {
	return e.Err
}

// Is makes every IngestError match ErrIngestFailure.
func (e *IngestError) Is(target error) bool {
	return target == ErrIngestFailure
}
