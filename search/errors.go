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


package search

import "errors"

var (
	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrQuestionRepositoryRequired is returned when a question repository is not provided.
	ErrQuestionRepositoryRequired = errors.New("question repository required")

	// ErrEmbedderRequired is returned when a text query is made without an embedder.
	ErrEmbedderRequired = errors.New("embedder required for text queries")

	// ErrTagsRequired is returned when a term query is made without tag storage.
	ErrTagsRequired = errors.New("tag and taxonomy repositories required for term queries")

	// ErrZeroQuery is returned for a query vector with zero magnitude.
	ErrZeroQuery = errors.New("query vector has zero magnitude")

	// ErrNoVector is returned when the query question has no usable vector.
	ErrNoVector = errors.New("question has no vector")
)
