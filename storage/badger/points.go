package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/mschenken/usdaCoding/core"
	"github.com/mschenken/usdaCoding/storage"
)

// PointRepository implements storage.PointRepository for BadgerDB.
// Points are keyed by id, so repeated upserts overwrite instead of duplicating.
type PointRepository struct {
	backend *Backend
}

var _ storage.PointRepository = (*PointRepository)(nil)

// NewPointRepository creates a new PointRepository.
func NewPointRepository(backend *Backend) *PointRepository {
	return &PointRepository{
		backend: backend,
	}
}

// UpsertPoints stores points, replacing existing points with the same id.
// Large upserts are split across transactions by badger's write batch, so a
// failure part way through can leave some points written. Replaying the same
// points is always safe.
func (r *PointRepository) UpsertPoints(ctx context.Context, points ...core.Point) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	wb := r.backend.db.NewWriteBatch()
	defer wb.Cancel()

	for i := range points {
		if err := ctx.Err(); err != nil {
			return err
		}
		value, err := storage.MarshalPoint(&points[i])
		if err != nil {
			return err
		}
		if err := wb.Set(makePointKey(points[i].ID), value); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// GetPoint retrieves a single point by id.
func (r *PointRepository) GetPoint(ctx context.Context, id core.ID) (*core.Point, error) {
	var point *core.Point
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makePointKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			point, err = storage.UnmarshalPoint(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return point, nil
}

// CountPoints returns the number of stored points.
func (r *PointRepository) CountPoints(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(pointPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// FindSimilar delegates to the backend.
func (r *PointRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}
