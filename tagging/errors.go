package tagging

import "errors"

var (
	// ErrRepositoryRequired is returned when a required repository is not provided.
	ErrRepositoryRequired = errors.New("question, master and tag repositories required")

	// ErrFinderRequired is returned when no similarity finder is provided.
	ErrFinderRequired = errors.New("similar question finder required")

	// ErrInvalidOption is returned for out-of-range tagger settings.
	ErrInvalidOption = errors.New("invalid tagger option")
)
