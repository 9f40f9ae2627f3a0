package storage

import (
	"context"

	"github.com/mschenken/usdaCoding/core"
)

// CheckpointRepository persists pipeline progress by name.
type CheckpointRepository interface {
	// SaveCheckpoint durably overwrites the checkpoint for checkpoint.Name.
	// Sets UpdatedAt.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint returns the checkpoint for name.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, name string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint for name. Deleting a missing
	// checkpoint is not an error.
	DeleteCheckpoint(ctx context.Context, name string) error
}

// PointRepository is a local vector index keyed by record id.
type PointRepository interface {
	// UpsertPoints stores points, replacing any existing point with the same id.
	UpsertPoints(ctx context.Context, points ...core.Point) error

	// GetPoint retrieves a single point by id.
	// Returns ErrNotFound if the point doesn't exist.
	GetPoint(ctx context.Context, id core.ID) (*core.Point, error)

	// CountPoints returns the number of stored points.
	CountPoints(ctx context.Context) (int, error)

	// FindSimilar finds points similar to the given vector.
	// Returns points with similarity >= minSimilarity, up to limit results,
	// ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)
}

// DeadLetterRepository keeps undeliverable batches.
type DeadLetterRepository interface {
	// AddDeadLetter stores a dead letter, assigning its ID and CreatedAt.
	AddDeadLetter(ctx context.Context, letter *core.DeadLetter) (*core.DeadLetter, error)

	// ListDeadLetters returns all dead letters in insertion order.
	ListDeadLetters(ctx context.Context) ([]*core.DeadLetter, error)

	// DeleteDeadLetters removes dead letters by id.
	// Returns ErrNotFound if any id doesn't exist.
	DeleteDeadLetters(ctx context.Context, ids ...core.ID) error
}
