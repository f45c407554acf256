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


// Package storage provides the storage abstraction layer for hybridrank.
//
// This package defines repository interfaces that decouple the storage engine
// from ingestion and search. Any engine able to score the four retrieval
// signals for a query.CompositeQuery can sit behind DocumentRepository.
//
// # Architecture
//
//   - DocumentRepository: document persistence, feedback state and raw scoring
//   - CheckpointRepository: progress of resumable background jobs
//
// # Usage
//
// Open the BadgerDB engine:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	docs := badger.NewDocumentRepository(backend)
//
// Use in tests with in-memory storage:
//
//	docs, checkpoints, backend, err := badger.NewMemoryRepositories()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Long scans check the context between records.
package storage
