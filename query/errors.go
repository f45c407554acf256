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


package query

import "errors"

var (
	// ErrVectorizerRequired is returned when a vectorizer is not provided.
	ErrVectorizerRequired = errors.New("vectorizer required")

	// ErrEmptyQuery is returned when the query text is empty.
	ErrEmptyQuery = errors.New("query text cannot be empty")

	// ErrInvalidK is returned when the requested result count is not positive.
	ErrInvalidK = errors.New("k must be greater than 0")

	// ErrInvalidFilters is returned when a FilterSet is malformed.
	ErrInvalidFilters = errors.New("invalid filters")
)
