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


// Package storage provides the storage abstraction layer for masterdb.
//
// This package defines repository interfaces that decouple storage implementation
// from the clustering, search and tagging logic. The relational state (questions,
// masters, taxonomy and tags) lives in SQLite; vectors can live either in SQLite
// or in BadgerDB.
//
// # Constructor Return Type Pattern
//
// Public constructors of alternative backends return the interface they
// implement, so callers never couple to a specific engine:
//
//	repo, err := badger.NewEmbeddingRepository(backend)  // returns storage.EmbeddingRepository
//
// The SQLite package bundles its concrete repositories in a Store because the
// relational repositories share one connection and one transaction.
//
// # Architecture
//
//   - TransactionManager: transaction support shared by all repositories
//   - QuestionRepository: questions and their advisory legacy categories
//   - EmbeddingRepository: one vector blob per question
//   - MasterRepository: per-category cluster and master state, replaced wholesale
//   - TaxonomyRepository: the THEME -> CONCEPT -> ASPECT vocabulary
//   - TagRepository: question tags and derived usage counts
//
// # Vector Blobs
//
// Vectors are stored as consecutive little-endian float32 values. A blob whose
// length is not exactly 4*D bytes is reported as ErrCorruptVector and never
// truncated or padded.
//
// # Usage
//
//	store, err := sqlite.Open("/path/to/masterdb.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// Use in tests with in-memory storage:
//
//	store, err := sqlite.NewMemoryStore()
//
// # Transactions
//
// WithTransaction carries the transaction in the context handed to its callback.
// Repository calls made with that context join the transaction; nested
// WithTransaction calls join the outer one.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
