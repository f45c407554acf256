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


// Package ai provides abstractions for the model-backed services used by hybridrank.
//
// The package defines the Vectorizer, which maps text to fixed-dimension
// unit vectors, and the AIProvider that owns its lifecycle. Business logic
// depends on these interfaces rather than on a concrete embedding service.
//
// # Roles
//
// Embeddings are asymmetric: titles and chunks are encoded with RolePassage
// at ingestion time and search text is encoded with RoleQuery. Encoding a
// query as a passage silently degrades ranking quality, so the role is part
// of every call.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// CachingVectorizer can wrap any Vectorizer with an in-process LRU.
//
// # Usage Example
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Vectorizer().Embed(ctx, "Florida", ai.RoleQuery)
//
// Failures to embed are reported as errors wrapping ErrEmbeddingFailure and
// are never masked by zero vectors.
package ai
