package checkpoint

import "context"

// None is the value reported when no chunk has completed.
const None = -1

// Store reads and writes the last completed chunk index.
type Store interface {
	// Load returns the last completed chunk index, or None.
	Load(ctx context.Context) (int, error)

	// Save durably replaces the stored index.
	Save(ctx context.Context, index int) error

	// Reset removes the stored index so the next Load returns None.
	Reset(ctx context.Context) error
}
