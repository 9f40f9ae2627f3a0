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


package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mschenken/usdaCoding/batch"
	"github.com/mschenken/usdaCoding/checkpoint"
	"github.com/mschenken/usdaCoding/core"
)

// DefaultPrefix is the file name prefix used for exported batches.
const DefaultPrefix = "fooddata_vectors_with_embeddings"

// Source yields chunks in order and can skip chunks cheaply.
type Source interface {
	Next(ctx context.Context) (*core.Chunk, error)
	Skip(ctx context.Context, n int) (int, error)
}

// Embedder fills the Embedding of every record.
// *embed.Client implements it.
type Embedder interface {
	EmbedRecords(ctx context.Context, records []*core.Record, batchSize int) error
}

// Config holds configuration for an export.
type Config struct {
	// Prefix starts every file name.
	Prefix string

	// EmbedBatchSize is the number of records per embedding request.
	EmbedBatchSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Prefix:         DefaultPrefix,
		EmbedBatchSize: 100,
	}
}

// Stats summarizes an export.
type Stats struct {
	ChunksSkipped  int
	ChunksExported int
	Records        int
	Files          int
	Bytes          int64
	Elapsed        time.Duration
}

// Exporter writes embedded records as size-bounded files.
type Exporter struct {
	source   Source
	embedder Embedder
	batcher  *batch.Batcher
	writer   Writer
	store    checkpoint.Store
	config   *Config
	logger   *slog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an exporter. A nil config uses DefaultConfig.
func New(source Source, embedder Embedder, batcher *batch.Batcher, writer Writer, store checkpoint.Store, config *Config, opts ...Option) (*Exporter, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if writer == nil {
		return nil, ErrWriterRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if batcher == nil {
		var err error
		if batcher, err = batch.NewBatcher(batch.DefaultCeiling); err != nil {
			return nil, err
		}
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.EmbedBatchSize <= 0 {
		return nil, fmt.Errorf("embed batch size must be greater than 0, got %d", config.EmbedBatchSize)
	}
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}

	e := &Exporter{
		source:   source,
		embedder: embedder,
		batcher:  batcher,
		writer:   writer,
		store:    store,
		config:   config,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "exporter")
	return e, nil
}

// FileName returns the name of the given 1-based batch of a chunk.
func (e *Exporter) FileName(chunk, batchNumber int) string {
	return fmt.Sprintf("%s_chunk_%05d_batch_%d%s", e.config.Prefix, chunk, batchNumber, e.batcher.Serializer().Extension())
}

// Run exports every chunk after the stored checkpoint.
func (e *Exporter) Run(ctx context.Context) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}
	err := e.run(ctx, stats)
	stats.Elapsed = time.Since(start)
	if err != nil {
		return stats, err
	}

	e.logger.Info("export complete",
		"chunks", stats.ChunksExported,
		"records", stats.Records,
		"files", stats.Files,
		"bytes", stats.Bytes,
		"elapsed", stats.Elapsed.Round(time.Millisecond))
	return stats, nil
}

func (e *Exporter) run(ctx context.Context, stats *Stats) error {
	last, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	next := last + 1
	if next > 0 {
		skipped, err := e.source.Skip(ctx, next)
		stats.ChunksSkipped = skipped
		if err != nil {
			return fmt.Errorf("failed to skip exported chunks: %w", err)
		}
		if skipped < next {
			return nil
		}
	}

	for {
		chunk, err := e.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read chunk %d: %w", next, err)
		}

		if err := e.exportChunk(ctx, chunk, stats); err != nil {
			return err
		}
		if err := e.store.Save(ctx, chunk.Index); err != nil {
			return fmt.Errorf("failed to checkpoint chunk %d: %w", chunk.Index, err)
		}
		stats.ChunksExported++
		stats.Records += chunk.Len()
		next = chunk.Index + 1
	}
}

func (e *Exporter) exportChunk(ctx context.Context, chunk *core.Chunk, stats *Stats) error {
	if err := core.ValidateChunk(chunk); err != nil {
		return fmt.Errorf("invalid chunk %d: %w", chunk.Index, err)
	}
	if err := e.embedder.EmbedRecords(ctx, chunk.Records, e.config.EmbedBatchSize); err != nil {
		return fmt.Errorf("failed to embed chunk %d: %w", chunk.Index, err)
	}

	number := 0
	err := e.batcher.Each(chunk.Records, func(b batch.Batch) error {
		number++
		name := e.FileName(chunk.Index, number)
		if err := e.writer.Write(ctx, name, b.Data); err != nil {
			return err
		}
		stats.Files++
		stats.Bytes += int64(len(b.Data))
		e.logger.Info("saved batch",
			"file", name,
			"records", len(b.Records),
			"mb", fmt.Sprintf("%.2f", float64(len(b.Data))/1024/1024))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to export chunk %d: %w", chunk.Index, err)
	}
	return nil
}
