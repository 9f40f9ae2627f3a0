package sink

import (
	"context"

	"github.com/mschenken/usdaCoding/core"
	"github.com/mschenken/usdaCoding/storage"
)

// Sink upserts points into a vector index. Upserting the same id twice must
// leave a single point.
type Sink interface {
	Upsert(ctx context.Context, points []core.Point) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, points []core.Point) error

// Upsert implements Sink.
func (f SinkFunc) Upsert(ctx context.Context, points []core.Point) error {
	return f(ctx, points)
}

// Local writes points into an embedded point repository.
type Local struct {
	repo storage.PointRepository
}

var _ Sink = (*Local)(nil)

// NewLocal returns a sink backed by repo.
func NewLocal(repo storage.PointRepository) *Local {
	return &Local{repo: repo}
}

// Upsert implements Sink.
func (l *Local) Upsert(ctx context.Context, points []core.Point) error {
	return l.repo.UpsertPoints(ctx, points...)
}
