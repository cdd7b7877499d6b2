package cluster

import "errors"

var (
	// ErrInvalidThreshold indicates a distance threshold outside [0, 2].
	ErrInvalidThreshold = errors.New("distance threshold must be within [0, 2]")

	// ErrDuplicatePoint indicates the same question ID was supplied twice.
	ErrDuplicatePoint = errors.New("duplicate question id")

	// ErrTooManyPoints indicates a category larger than the configured limit.
	ErrTooManyPoints = errors.New("too many points for one category")
)
