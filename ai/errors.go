package ai

import "errors"

var (
	// ErrInvalidConfig is returned when a service configuration is incomplete.
	ErrInvalidConfig = errors.New("invalid ai config")

	// ErrUnexpectedDimension is returned when the embedding service returns
	// vectors of a length other than the configured dimension.
	ErrUnexpectedDimension = errors.New("unexpected embedding dimension")
)
