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


// Package search provides hybrid lexical and semantic search over indexed documents.
//
// A Searcher runs a query in four steps:
//   - build a composite query, embedding the text with the query role
//   - collect raw per-signal scores from the storage engine under a timeout
//   - fuse them into one ranking with the fusion engine
//   - hydrate the top documents and assemble the ranked list
//
// The assembler attaches the matched chunks of each document together with
// the query terms they contain so callers can highlight them.
package search
