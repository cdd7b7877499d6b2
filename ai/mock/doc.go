// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Classifier,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	embedder := mock.NewMockEmbedder()
//	embedder.Vectors["팀워크가 좋다"] = []float32{1, 0, 0}
//
//	classifier := mock.NewMockClassifier()
//	classifier.Labels["팀워크가 좋다"] = ai.Classification{Mid: "조직문화", Sub: "신뢰/존중"}
//
//	provider := mock.NewMockProviderWithServices(embedder, classifier)
//
// # Default Behavior
//
//   - MockEmbedder: pinned vectors first, otherwise a unit vector derived from the text hash
//   - MockClassifier: pinned labels first, otherwise unclassified
//   - MockProvider: aggregates mock embedder and classifier
package mock
