package scheduler

import "errors"

var (
	// ErrJobNotFound is returned for unknown job names
	ErrJobNotFound = errors.New("job not found")

	// ErrDuplicateJob is returned when two jobs share a name
	ErrDuplicateJob = errors.New("duplicate job name")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
