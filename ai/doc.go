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


// Package ai provides abstractions for the AI services used by masterdb.
//
// Two services are defined:
//
//   - Embedder: turns question text into dense vectors for clustering and search
//   - Classifier: assigns the advisory legacy mid/sub categories to questions
//     that arrived without them
//
// AIProvider aggregates both for initialization and lifecycle management.
//
// # Implementation Packages
//
//   - ai/openai: production implementation using OpenAI-compatible APIs
//   - ai/mock: deterministic test doubles without external dependencies
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can inject behavior and inspect call counts.
//
// # Usage Example
//
//	provider, err := openai.NewProvider(ai.NewConfig(ai.WithHost("http://localhost:11434")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "우리 조직은 비전을 공유한다")
//	labels, err := provider.Classifier().Classify(ctx, "우리 조직은 비전을 공유한다")
package ai
