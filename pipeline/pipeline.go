// Copyright 2026 The usdaCoding Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/mschenken/usdaCoding/checkpoint"
	"github.com/mschenken/usdaCoding/core"
	"github.com/mschenken/usdaCoding/sink"
)

// Source yields chunks in order and can skip chunks cheaply.
// *source.CSVSource implements it.
type Source interface {
	Next(ctx context.Context) (*core.Chunk, error)
	Skip(ctx context.Context, n int) (int, error)
}

// Embedder turns content payloads into vectors, one per payload in order.
// *embed.Client implements it.
type Embedder interface {
	EmbedBatch(ctx context.Context, contents []core.Content) ([][]float32, error)
}

// Deliverer settles a batch of points. *sink.Deliverer implements it.
type Deliverer interface {
	Deliver(ctx context.Context, chunk, batch int, points []core.Point) (sink.Outcome, error)
}

// Pipeline loads a chunked source into a vector index, one checkpointed
// chunk at a time.
type Pipeline struct {
	source    Source
	embedder  Embedder
	deliverer Deliverer
	store     checkpoint.Store
	config    *Config
	pool      *ants.Pool
	progress  io.Writer
	logger    *slog.Logger
	state     atomic.Int32
	running   atomic.Bool
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize overrides Config.Concurrency with a pool of size workers.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithProgress reports progress to w (typically os.Stderr).
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		if w != nil {
			p.progress = w
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// New creates a pipeline. A nil config uses DefaultConfig.
// Call Release when the pipeline is no longer needed.
func New(
	source Source,
	embedder Embedder,
	deliverer Deliverer,
	store checkpoint.Store,
	config *Config,
	opts ...Option,
) (*Pipeline, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if deliverer == nil {
		return nil, ErrDelivererRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	pool, err := ants.NewPool(config.Concurrency)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		source:    source,
		embedder:  embedder,
		deliverer: deliverer,
		store:     store,
		config:    config,
		pool:      pool,
		progress:  io.Discard,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "pipeline", "pipeline", config.Name)
	return p, nil
}

// Release frees the worker pool.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
}

// Run processes every chunk after the stored checkpoint. It returns the run
// statistics together with any fatal error; the statistics describe the work
// completed before the failure.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer p.running.Store(false)

	start := time.Now()
	stats := &Stats{ResumedFrom: checkpoint.None, LastChunk: checkpoint.None}
	err := p.run(ctx, stats)
	stats.Elapsed = time.Since(start)

	if err != nil {
		p.setState(StateFailed)
		p.logger.Error("pipeline failed",
			"error", err,
			"last_chunk", stats.LastChunk,
			"chunks", stats.ChunksProcessed)
		return stats, err
	}

	p.setState(StateDone)
	p.logger.Info("pipeline complete",
		"chunks_skipped", stats.ChunksSkipped,
		"chunks", stats.ChunksProcessed,
		"records", stats.Records,
		"batches_delivered", stats.BatchesDelivered,
		"batches_dropped", stats.BatchesDropped,
		"batches_dead_lettered", stats.BatchesDeadLettered,
		"elapsed", stats.Elapsed.Round(time.Millisecond))
	return stats, nil
}

func (p *Pipeline) run(ctx context.Context, stats *Stats) error {
	p.setState(StateLoadingCheckpoint)
	last, err := p.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	stats.ResumedFrom = last
	stats.LastChunk = last
	next := last + 1

	if next > 0 {
		p.setState(StateSkipping)
		p.logger.Info("resuming from checkpoint", "checkpoint", last, "skip", next)
		skipped, err := p.source.Skip(ctx, next)
		stats.ChunksSkipped = skipped
		if err != nil {
			return fmt.Errorf("failed to skip processed chunks: %w", err)
		}
		if skipped < next {
			p.logger.Warn("source has fewer chunks than the checkpoint, nothing to do",
				"checkpoint", last, "chunks", skipped)
			return nil
		}
	}

	tracker := NewProgressTracker(p.progress, p.config.ReportInterval)
	tracker.Start()
	defer func() {
		if tracker.Records() > 0 {
			tracker.Finish()
		}
	}()

	for {
		p.setState(StateProcessing)
		chunk, err := p.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read chunk %d: %w", next, err)
		}
		if chunk.Index != next {
			return fmt.Errorf("%w: expected %d, got %d", ErrChunkOutOfOrder, next, chunk.Index)
		}

		if err := p.processChunk(ctx, chunk, stats); err != nil {
			return err
		}

		p.setState(StateCheckpointing)
		if err := p.store.Save(ctx, chunk.Index); err != nil {
			return fmt.Errorf("failed to checkpoint chunk %d: %w", chunk.Index, err)
		}
		stats.LastChunk = chunk.Index
		stats.ChunksProcessed++
		stats.Records += chunk.Len()
		tracker.ChunkDone(chunk.Index, chunk.Len())

		p.logger.Debug("chunk complete", "chunk", chunk.Index, "records", chunk.Len())
		next++
	}
}

// processChunk embeds and delivers every batch of chunk. It returns only once
// all submitted batches have settled.
func (p *Pipeline) processChunk(ctx context.Context, chunk *core.Chunk, stats *Stats) error {
	if err := core.ValidateChunk(chunk); err != nil {
		return fmt.Errorf("invalid chunk %d: %w", chunk.Index, err)
	}

	if p.config.ChunkTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, p.config.ChunkTimeout)
		defer cancelTimeout()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
		counters batchCounters
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	size := p.config.BatchSize
	batches := (chunk.Len() + size - 1) / size
	for i := 0; i < batches; i++ {
		if ctx.Err() != nil {
			break
		}
		records := chunk.Records[i*size : min((i+1)*size, chunk.Len())]
		number := i + 1

		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := p.processBatch(ctx, chunk.Index, number, batches, records, &counters); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("failed to submit batch %d of chunk %d: %w", number, chunk.Index, err))
		}
	}
	wg.Wait()
	counters.addTo(stats)

	if firstErr != nil {
		return firstErr
	}
	// Cancellation from the caller leaves batches unsettled.
	return ctx.Err()
}

func (p *Pipeline) processBatch(ctx context.Context, chunkIndex, number, total int, records []*core.Record, counters *batchCounters) error {
	contents := make([]core.Content, len(records))
	for i, record := range records {
		contents[i] = record.Content
	}

	vectors, err := p.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return fmt.Errorf("chunk %d batch %d/%d: %w", chunkIndex, number, total, err)
	}
	if len(vectors) != len(records) {
		return fmt.Errorf("chunk %d batch %d/%d: %w: expected %d, got %d",
			chunkIndex, number, total, core.ErrEmbeddingCountMismatch, len(records), len(vectors))
	}

	points := make([]core.Point, len(records))
	for i, record := range records {
		record.Embedding = vectors[i]
		if err := core.ValidateEmbedded(record); err != nil {
			return fmt.Errorf("chunk %d batch %d/%d: %w", chunkIndex, number, total, err)
		}
		points[i] = record.Point()
	}

	outcome, err := p.deliverer.Deliver(ctx, chunkIndex, number, points)
	if err != nil {
		return fmt.Errorf("chunk %d batch %d/%d: %w", chunkIndex, number, total, err)
	}

	switch outcome {
	case sink.Delivered:
		counters.delivered.Add(1)
	case sink.DeadLettered:
		counters.deadLettered.Add(1)
	default:
		counters.dropped.Add(1)
	}
	return nil
}
