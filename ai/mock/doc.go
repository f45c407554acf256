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


// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Vectorizer and
// ai.AIProvider for use in unit tests. The mocks allow tests to run without
// an embedding server and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	provider := mock.NewMockProvider()
//	v, err := provider.Vectorizer().Embed(ctx, "Florida", ai.RoleQuery)
//
//	// Custom behavior injection
//	vectorizer := mock.NewMockVectorizer()
//	vectorizer.EmbedFunc = func(ctx context.Context, text string, role ai.Role) ([]float32, error) {
//	    return nil, ai.ErrEmbeddingFailure
//	}
//
// # Default Behavior
//
// MockVectorizer hashes the stop-word filtered tokens of the role-prefixed
// text into a fixed number of buckets and normalizes the result, so texts
// that share words are similar and passage and query encodings of the same
// text differ. Empty text fails with ai.ErrEmbeddingFailure.
package mock
