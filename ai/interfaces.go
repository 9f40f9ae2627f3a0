package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice is expected to hold embeddings in the same order as the
	// input texts. Callers must still verify the length, since a misbehaving
	// service may return fewer or more vectors than requested.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
