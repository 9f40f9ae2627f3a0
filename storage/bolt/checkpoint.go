// Package bolt implements storage.CheckpointRepository on a bbolt file.
package bolt

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/mschenken/usdaCoding/core"
	"github.com/mschenken/usdaCoding/storage"
)

var bucketCheckpoints = []byte("checkpoints")

// CheckpointRepository stores one checkpoint per pipeline name in a bbolt bucket.
type CheckpointRepository struct {
	db *bbolt.DB
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

// OpenCheckpointRepository opens or creates the bbolt file at path.
func OpenCheckpointRepository(path string) (*CheckpointRepository, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketCheckpoints); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketCheckpoints, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &CheckpointRepository{db: db}, nil
}

// Close closes the underlying database file.
func (r *CheckpointRepository) Close() error {
	return r.db.Close()
}

// SaveCheckpoint persists a checkpoint under its name. bbolt fsyncs on commit.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		checkpoint.UpdatedAt = time.Now().UTC()
		return tx.Bucket(bucketCheckpoints).Put([]byte(checkpoint.Name), storage.MarshalCheckpoint(checkpoint))
	})
}

// LoadCheckpoint retrieves the checkpoint for name.
// Returns nil, nil if no checkpoint exists.
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, name string) (*core.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var checkpoint *core.Checkpoint
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketCheckpoints).Get([]byte(name))
		if data == nil {
			return nil
		}
		var err error
		checkpoint, err = storage.UnmarshalCheckpoint(data)
		return err
	})
	return checkpoint, err
}

// DeleteCheckpoint removes the checkpoint for name.
func (r *CheckpointRepository) DeleteCheckpoint(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCheckpoints).Delete([]byte(name))
	})
}
