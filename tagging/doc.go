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


// Package tagging suggests and applies taxonomy tags to survey questions.
//
// Suggestions come from two signals. Cluster inheritance copies the tags of a
// question's master representative at a fixed confidence. Similarity voting
// pools the tags of the nearest same-category questions, weighting each vote
// by similarity. Cluster suggestions are considered first, so a term proposed
// by both signals keeps its cluster provenance and confidence.
//
// Applying a tag replaces any existing row for the same question, term and
// tag type. The term's usage count is recomputed from the live tag rows.
package tagging
