package pipeline

import "errors"

var (
	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrQuestionRepositoryRequired is returned when a question repository is not provided.
	ErrQuestionRepositoryRequired = errors.New("question repository required")

	// ErrEngineRequired is returned when a cluster engine is not provided.
	ErrEngineRequired = errors.New("cluster engine required")

	// ErrConsolidatorRequired is returned when a consolidator is not provided.
	ErrConsolidatorRequired = errors.New("consolidator required")
)
