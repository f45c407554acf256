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


// Package reembed re-derives the vectors of every stored document, typically
// after the embedding model changes.
//
// Documents are visited in ID order in batches. Each one is pushed back
// through the ingestion pipeline with its feedback count and hidden flag
// intact. Failed ingests are retried with exponential backoff. After every
// batch the last processed ID is checkpointed so an interrupted run can
// resume where it stopped.
package reembed
