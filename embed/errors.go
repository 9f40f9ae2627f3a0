package embed

import "errors"

var (
	// ErrEmbedderRequired is returned when no ai.Embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidBatchSize is returned when a non-positive batch size is requested.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")
)
