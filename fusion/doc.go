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


// Package fusion merges the raw scores of independent retrieval signals
// into one ranking.
//
// Fusion runs in four stages:
//
//  1. Per document, chunk-scoped signals are reduced to their maximum and
//     the winning chunk is remembered.
//  2. Each signal is min-max normalized across the whole candidate set.
//  3. Normalized signals are combined with per-signal weights.
//  4. The fused score is multiplied by a recency decay and a feedback boost.
//
// Results are ordered by final score with ties broken by document id, so
// the same inputs always produce the same ranking.
package fusion
