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


// Package ingestion turns caller-supplied documents into indexed records.
//
// The Pipeline validates a document, embeds its title and chunks with the
// passage role on a worker pool, and upserts the result so that the new
// version atomically replaces any previous one. Embedding is all-or-nothing:
// a single failed vector aborts the document and nothing is written.
//
// IngestBatch processes documents independently, so one bad document does
// not prevent the others from being indexed.
package ingestion
