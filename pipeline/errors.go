package pipeline

import "errors"

var (
	// ErrSourceRequired is returned when a nil source is provided.
	ErrSourceRequired = errors.New("record source is required")

	// ErrEmbedderRequired is returned when a nil embedder is provided.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrDelivererRequired is returned when a nil deliverer is provided.
	ErrDelivererRequired = errors.New("deliverer is required")

	// ErrStoreRequired is returned when a nil checkpoint store is provided.
	ErrStoreRequired = errors.New("checkpoint store is required")

	// ErrChunkOutOfOrder is returned when the source yields an unexpected chunk index.
	ErrChunkOutOfOrder = errors.New("chunk out of order")

	// ErrAlreadyRunning is returned when Run is called while a run is in progress.
	ErrAlreadyRunning = errors.New("pipeline is already running")
)
