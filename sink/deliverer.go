package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mschenken/usdaCoding/core"
	"github.com/mschenken/usdaCoding/storage"
)

// Strategy decides what happens to a batch the sink rejects.
type Strategy string

const (
	// StrategyContinue logs the failure and drops the batch.
	StrategyContinue Strategy = "continue"

	// StrategyAbort fails the chunk so it is not checkpointed.
	StrategyAbort Strategy = "abort"

	// StrategyDeadLetter logs the failure and stores the batch for replay.
	StrategyDeadLetter Strategy = "dead-letter"
)

// ParseStrategy converts a strategy name. An empty name means StrategyContinue.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(name))) {
	case "", StrategyContinue:
		return StrategyContinue, nil
	case StrategyAbort:
		return StrategyAbort, nil
	case StrategyDeadLetter, "deadletter", "dlq":
		return StrategyDeadLetter, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Outcome describes what happened to a delivered batch.
type Outcome int

const (
	Delivered Outcome = iota
	Dropped
	DeadLettered
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Dropped:
		return "dropped"
	case DeadLettered:
		return "dead-lettered"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// DeadLetterQueue stores batches that could not be delivered.
type DeadLetterQueue interface {
	Enqueue(ctx context.Context, letter *core.DeadLetter) error
}

// RepositoryQueue is a DeadLetterQueue over a storage.DeadLetterRepository.
type RepositoryQueue struct {
	repo storage.DeadLetterRepository
}

// NewRepositoryQueue returns a queue that persists into repo.
func NewRepositoryQueue(repo storage.DeadLetterRepository) *RepositoryQueue {
	return &RepositoryQueue{repo: repo}
}

// Enqueue implements DeadLetterQueue.
func (q *RepositoryQueue) Enqueue(ctx context.Context, letter *core.DeadLetter) error {
	_, err := q.repo.AddDeadLetter(ctx, letter)
	return err
}

// Deliverer upserts batches through a Sink and applies a Strategy to failures.
// It is safe for concurrent use when the wrapped Sink and queue are.
type Deliverer struct {
	sink     Sink
	strategy Strategy
	queue    DeadLetterQueue
	logger   *slog.Logger
}

// Option configures a Deliverer.
type Option func(*Deliverer)

// WithStrategy sets the failure strategy.
func WithStrategy(strategy Strategy) Option {
	return func(d *Deliverer) {
		d.strategy = strategy
	}
}

// WithDeadLetterQueue sets the queue used by StrategyDeadLetter.
func WithDeadLetterQueue(queue DeadLetterQueue) Option {
	return func(d *Deliverer) {
		d.queue = queue
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deliverer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDeliverer creates a Deliverer around sink.
func NewDeliverer(sink Sink, opts ...Option) (*Deliverer, error) {
	if sink == nil {
		return nil, ErrSinkRequired
	}

	d := &Deliverer{
		sink:     sink,
		strategy: StrategyContinue,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if _, err := ParseStrategy(string(d.strategy)); err != nil {
		return nil, err
	}
	if d.strategy == StrategyDeadLetter && d.queue == nil {
		return nil, ErrQueueRequired
	}
	d.logger = d.logger.With("component", "deliverer", "strategy", string(d.strategy))
	return d, nil
}

// Strategy returns the configured failure strategy.
func (d *Deliverer) Strategy() Strategy {
	return d.strategy
}

// Deliver upserts one batch. chunk is the chunk index and batch the 1-based
// batch number within it; both only label logs and dead letters.
//
// A nil error means the batch has settled: it was delivered, dropped or
// dead-lettered. Cancellation of ctx is always returned as an error so it is
// never mistaken for a dropped batch.
func (d *Deliverer) Deliver(ctx context.Context, chunk, batch int, points []core.Point) (Outcome, error) {
	err := d.sink.Upsert(ctx, points)
	if err == nil {
		return Delivered, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Dropped, ctxErr
	}

	switch d.strategy {
	case StrategyAbort:
		return Dropped, fmt.Errorf("%w: chunk %d batch %d: %w", ErrDeliveryFailed, chunk, batch, err)

	case StrategyDeadLetter:
		d.logger.Error("failed to upsert batch, dead-lettering",
			"chunk", chunk,
			"batch", batch,
			"points", len(points),
			"error", err)
		letter := &core.DeadLetter{
			Chunk:  chunk,
			Batch:  batch,
			Points: points,
			Reason: err.Error(),
		}
		if qerr := d.queue.Enqueue(ctx, letter); qerr != nil {
			return Dropped, fmt.Errorf("dead-letter chunk %d batch %d: %w", chunk, batch, qerr)
		}
		return DeadLettered, nil

	default:
		d.logger.Error("failed to upsert batch, continuing",
			"chunk", chunk,
			"batch", batch,
			"points", len(points),
			"error", err)
		return Dropped, nil
	}
}
