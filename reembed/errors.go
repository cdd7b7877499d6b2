package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrRepositoryRequired is returned when a required repository is not provided.
	ErrRepositoryRequired = errors.New("repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrClassifierRequired is returned when a classifier is not provided.
	ErrClassifierRequired = errors.New("classifier required")

	// ErrResultMismatch is returned when a service returns a different number of results than inputs.
	// It is never retried.
	ErrResultMismatch = errors.New("result count mismatch")
)
