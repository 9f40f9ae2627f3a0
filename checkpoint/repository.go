package checkpoint

import (
	"context"
	"fmt"

	"github.com/mschenken/usdaCoding/core"
	"github.com/mschenken/usdaCoding/storage"
)

// Repository adapts a storage.CheckpointRepository to Store for one pipeline name.
type Repository struct {
	repo storage.CheckpointRepository
	name string
}

var _ Store = (*Repository)(nil)

// NewRepository returns a store that keeps the checkpoint for name in repo.
func NewRepository(repo storage.CheckpointRepository, name string) (*Repository, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	return &Repository{repo: repo, name: name}, nil
}

// Load implements Store.
func (r *Repository) Load(ctx context.Context) (int, error) {
	cp, err := r.repo.LoadCheckpoint(ctx, r.name)
	if err != nil {
		return None, fmt.Errorf("load checkpoint %q: %w", r.name, err)
	}
	if cp == nil {
		return None, nil
	}
	if cp.Chunk < None {
		return None, fmt.Errorf("%w: %q holds %d", ErrCorrupt, r.name, cp.Chunk)
	}
	return int(cp.Chunk), nil
}

// Save implements Store.
func (r *Repository) Save(ctx context.Context, index int) error {
	if index < None {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	cp := &core.Checkpoint{Name: r.name, Chunk: int64(index)}
	if err := r.repo.SaveCheckpoint(ctx, cp); err != nil {
		return fmt.Errorf("save checkpoint %q: %w", r.name, err)
	}
	return nil
}

// Reset implements Store.
func (r *Repository) Reset(ctx context.Context) error {
	if err := r.repo.DeleteCheckpoint(ctx, r.name); err != nil {
		return fmt.Errorf("reset checkpoint %q: %w", r.name, err)
	}
	return nil
}
