package taxonomy

import "errors"

var (
	// ErrRepositoryRequired is returned when the taxonomy repository is not provided.
	ErrRepositoryRequired = errors.New("taxonomy repository required")

	// ErrInvalidSeed is returned when a seed file fails validation.
	ErrInvalidSeed = errors.New("invalid taxonomy seed")

	// ErrInvalidHierarchy is returned for an edge that is not THEME -> CONCEPT or CONCEPT -> ASPECT,
	// or for an existing term whose level conflicts with the seed.
	ErrInvalidHierarchy = errors.New("invalid taxonomy hierarchy")

	// ErrTaggingDisabled is returned when legacy tagging is requested without question and tag repositories.
	ErrTaggingDisabled = errors.New("question and tag repositories required for legacy tagging")
)
