package vectors

import "errors"

var (
	// ErrRepositoryRequired indicates that an embedding repository is required.
	ErrRepositoryRequired = errors.New("embedding repository is required")

	// ErrInvalidDimension indicates a negative dimension.
	ErrInvalidDimension = errors.New("dimension must not be negative")
)
