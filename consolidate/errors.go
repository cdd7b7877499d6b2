package consolidate

import "errors"

var (
	// ErrRepositoryRequired indicates that a master repository is required.
	ErrRepositoryRequired = errors.New("master repository is required")

	// ErrUnknownPolicy indicates an unsupported representative policy.
	ErrUnknownPolicy = errors.New("unknown representative policy")

	// ErrNegativeClusterID indicates an assignment to a negative cluster ID.
	ErrNegativeClusterID = errors.New("cluster id must not be negative")
)
