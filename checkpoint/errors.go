package checkpoint

import "errors"

var (
	// ErrCorrupt is returned when a stored checkpoint cannot be parsed.
	ErrCorrupt = errors.New("checkpoint is corrupt")

	// ErrInvalidIndex is returned when saving an index below None.
	ErrInvalidIndex = errors.New("invalid checkpoint index")

	// ErrRepositoryRequired is returned when a nil repository is supplied.
	ErrRepositoryRequired = errors.New("checkpoint repository is required")
)
