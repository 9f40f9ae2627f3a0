package export

import "errors"

var (
	// ErrSourceRequired is returned when a nil source is provided.
	ErrSourceRequired = errors.New("record source is required")

	// ErrEmbedderRequired is returned when a nil embedder is provided.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrWriterRequired is returned when a nil writer is provided.
	ErrWriterRequired = errors.New("writer is required")

	// ErrStoreRequired is returned when a nil checkpoint store is provided.
	ErrStoreRequired = errors.New("checkpoint store is required")

	// ErrBucketRequired is returned when a MinIO writer has no bucket.
	ErrBucketRequired = errors.New("bucket is required")
)
