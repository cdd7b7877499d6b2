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


// Package search answers nearest-neighbour queries over the cached question vectors.
//
// Similarity is the dot product of unit vectors (cosine similarity). Zero
// vectors have no direction and are never candidates. Results are ordered by
// descending similarity with ties broken by ascending question ID, so equal
// inputs always produce equal rankings.
//
// The category filter is resolved from the relational store, not from the
// vector cache. Searching an empty cache returns no results rather than an error.
//
// Besides vector search the Searcher offers keyword search over question
// text, lookup by taxonomy term, and master/variant views used by the CLI.
package search
