package core

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is the externally assigned, stable identifier of a record.
// It is the idempotency key for upserts into the vector index.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Content is the structured key-value payload of a record.
// Its canonical JSON form is the text submitted for embedding.
type Content map[string]any

// Text returns the canonical JSON serialization of the content.
// Keys are emitted in sorted order so the same content always embeds identically.
func (c Content) Text() (string, error) {
	if c == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]any(c))
	if err != nil {
		return "", fmt.Errorf("encode content: %w", err)
	}
	return string(data), nil
}

// Metadata is an optional key-value mapping attached to a record.
type Metadata map[string]any

// Record is a single input row annotated with its embedding.
type Record struct {
	ID        ID
	Content   Content
	Metadata  Metadata  // Possibly empty, never nil after parsing
	Embedding []float32 // Absent until computed
}

// Payload returns the flattened union of content and metadata.
// Metadata keys win on collision, matching the order the payload is assembled in.
func (r *Record) Payload() map[string]any {
	payload := make(map[string]any, len(r.Content)+len(r.Metadata))
	for k, v := range r.Content {
		payload[k] = v
	}
	for k, v := range r.Metadata {
		payload[k] = v
	}
	return payload
}

// Point converts an embedded record into the form delivered to a vector index.
func (r *Record) Point() Point {
	return Point{
		ID:      r.ID,
		Vector:  r.Embedding,
		Payload: r.Payload(),
	}
}

// Chunk is a contiguous, ordered slice of records read from the source.
// Chunks partition the source exactly, in order, with no overlap and no gaps.
type Chunk struct {
	Index   int // Zero-based sequential index
	Records []*Record
}

// Len returns the number of records in the chunk.
func (c *Chunk) Len() int {
	return len(c.Records)
}

// Point is an (id, vector, payload) triple upserted into a vector index.
type Point struct {
	ID      ID             `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Checkpoint records the last fully processed chunk of a named pipeline.
type Checkpoint struct {
	Name      string
	Chunk     int64
	UpdatedAt time.Time
}

// SearchResult represents a point match with its similarity score.
type SearchResult struct {
	Point *Point
	Score float32
}

// DeadLetter is a batch of points that could not be delivered to the index.
// It is kept so the batch can be replayed later.
type DeadLetter struct {
	ID        ID        `json:"id"` // Assigned on insert
	Chunk     int       `json:"chunk"`
	Batch     int       `json:"batch"`
	Points    []Point   `json:"points"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
