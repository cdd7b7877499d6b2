package ingestion

import "errors"

var (
	// ErrQuestionRepositoryRequired is returned when a question repository is not provided.
	ErrQuestionRepositoryRequired = errors.New("question repository required")

	// ErrEmbeddingRepositoryRequired is returned when an embedding repository is not provided.
	ErrEmbeddingRepositoryRequired = errors.New("embedding repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrResultMismatch is returned when a service returns a different number of results than inputs.
	ErrResultMismatch = errors.New("result count mismatch")
)
