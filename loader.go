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


// Package usdacoding assembles the loader's components from a config.Config.
//
// A Loader owns the resources shared by the commands (the local badger
// database, an optional bolt checkpoint database, the zstd encoder) and
// hands out pipelines, exporters and searchers wired to them. A Loader is
// not safe for concurrent use.
package usdacoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/klauspost/compress/zstd"

	"github.com/mschenken/usdaCoding/ai"
	"github.com/mschenken/usdaCoding/ai/gemini"
	"github.com/mschenken/usdaCoding/ai/openai"
	"github.com/mschenken/usdaCoding/batch"
	"github.com/mschenken/usdaCoding/checkpoint"
	"github.com/mschenken/usdaCoding/config"
	"github.com/mschenken/usdaCoding/core"
	"github.com/mschenken/usdaCoding/embed"
	"github.com/mschenken/usdaCoding/export"
	"github.com/mschenken/usdaCoding/pipeline"
	"github.com/mschenken/usdaCoding/search"
	"github.com/mschenken/usdaCoding/sink"
	"github.com/mschenken/usdaCoding/source"
	"github.com/mschenken/usdaCoding/storage"
	"github.com/mschenken/usdaCoding/storage/badger"
	"github.com/mschenken/usdaCoding/storage/bolt"
)

// ErrUnknownBackend is returned for an unknown checkpoint backend or sink kind.
var ErrUnknownBackend = errors.New("unknown backend")

// Loader builds components from configuration.
type Loader struct {
	config   *config.Config
	repos    *badger.Repositories
	bolt     *bolt.CheckpointRepository
	zstd     *batch.ZstdSerializer
	embedder ai.Embedder
	inMemory bool
	logger   *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithEmbedder uses embedder instead of the one described by the configuration.
func WithEmbedder(embedder ai.Embedder) LoaderOption {
	return func(l *Loader) {
		l.embedder = embedder
	}
}

// WithInMemoryStorage keeps the local badger database in memory.
func WithInMemoryStorage() LoaderOption {
	return func(l *Loader) {
		l.inMemory = true
	}
}

// NewLoader creates a loader. A nil config uses config.DefaultConfig.
func NewLoader(cfg *config.Config, opts ...LoaderOption) *Loader {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	l := &Loader{
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config returns the loader's configuration.
func (l *Loader) Config() *config.Config {
	return l.config
}

// Close releases every resource the loader opened.
func (l *Loader) Close() error {
	var errs []error
	if l.zstd != nil {
		errs = append(errs, l.zstd.Close())
	}
	if l.bolt != nil {
		errs = append(errs, l.bolt.Close())
	}
	if l.repos != nil {
		if err := l.repos.Close(); err != nil {
			l.logger.Error("error closing local storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Repositories opens the local badger database on first use.
func (l *Loader) Repositories() (*badger.Repositories, error) {
	if l.repos != nil {
		return l.repos, nil
	}
	repos, err := badger.OpenRepositories(l.config.Storage.Path, l.inMemory, badger.WithLogger(l.logger))
	if err != nil {
		return nil, fmt.Errorf("open local storage: %w", err)
	}
	l.repos = repos
	return repos, nil
}

// LoadCheckpoint returns the checkpoint store of the load pipeline.
func (l *Loader) LoadCheckpoint() (checkpoint.Store, error) {
	return l.checkpointStore(l.config.Checkpoint.Path, l.config.Pipeline.Name)
}

// ExportCheckpoint returns the checkpoint store of the exporter.
func (l *Loader) ExportCheckpoint() (checkpoint.Store, error) {
	return l.checkpointStore(l.config.Checkpoint.ExportPath, l.config.Pipeline.Name+".export")
}

func (l *Loader) checkpointStore(path, name string) (checkpoint.Store, error) {
	switch l.config.Checkpoint.Backend {
	case config.CheckpointFile:
		return checkpoint.NewFile(path), nil
	case config.CheckpointBadger:
		repos, err := l.Repositories()
		if err != nil {
			return nil, err
		}
		return repositoryStore(repos.Checkpoints, name)
	case config.CheckpointBolt:
		if l.bolt == nil {
			repo, err := bolt.OpenCheckpointRepository(l.config.Checkpoint.Database)
			if err != nil {
				return nil, err
			}
			l.bolt = repo
		}
		return repositoryStore(l.bolt, name)
	default:
		return nil, fmt.Errorf("%w: checkpoint backend %q", ErrUnknownBackend, l.config.Checkpoint.Backend)
	}
}

func repositoryStore(repo storage.CheckpointRepository, name string) (checkpoint.Store, error) {
	store, err := checkpoint.NewRepository(repo, name)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Embedder returns the embedding service client for the configured provider.
func (l *Loader) Embedder() (ai.Embedder, error) {
	if l.embedder != nil {
		return l.embedder, nil
	}
	aiConfig, err := l.config.AI()
	if err != nil {
		return nil, err
	}

	var embedder ai.Embedder
	switch aiConfig.Provider {
	case ai.ProviderGemini:
		embedder, err = gemini.NewEmbedder(aiConfig, gemini.WithLogger(l.logger))
	case ai.ProviderOpenAI:
		embedder, err = openai.NewEmbedder(aiConfig)
	}
	if err != nil {
		return nil, err
	}
	l.embedder = embedder
	return embedder, nil
}

// EmbedClient wraps the embedder with the configured retry policy, rate
// limit and normalization.
func (l *Loader) EmbedClient() (*embed.Client, error) {
	embedder, err := l.Embedder()
	if err != nil {
		return nil, err
	}
	policy, err := l.config.RetryPolicy()
	if err != nil {
		return nil, err
	}
	e := l.config.Embedding
	return embed.NewClient(embedder,
		embed.WithRetryPolicy(policy),
		embed.WithRateLimit(e.RateLimit, e.Burst),
		embed.WithNormalize(e.Normalize),
		embed.WithLogger(l.logger))
}

// Sink returns the configured vector index.
func (l *Loader) Sink() (sink.Sink, error) {
	switch l.config.Sink.Kind {
	case config.SinkQdrant:
		q, err := sink.NewQdrant(l.config.QdrantSink(), sink.WithQdrantLogger(l.logger))
		if err != nil {
			return nil, err
		}
		return q, nil
	case config.SinkLocal:
		repos, err := l.Repositories()
		if err != nil {
			return nil, err
		}
		return sink.NewLocal(repos.Points), nil
	default:
		return nil, fmt.Errorf("%w: sink %q", ErrUnknownBackend, l.config.Sink.Kind)
	}
}

// Deliverer returns the sink wrapped with the configured failure strategy.
func (l *Loader) Deliverer() (*sink.Deliverer, error) {
	s, err := l.Sink()
	if err != nil {
		return nil, err
	}
	strategy, err := l.config.Strategy()
	if err != nil {
		return nil, err
	}

	opts := []sink.Option{sink.WithStrategy(strategy), sink.WithLogger(l.logger)}
	if strategy == sink.StrategyDeadLetter {
		repos, err := l.Repositories()
		if err != nil {
			return nil, err
		}
		opts = append(opts, sink.WithDeadLetterQueue(sink.NewRepositoryQueue(repos.DeadLetters)))
	}
	return sink.NewDeliverer(s, opts...)
}

// OpenSource opens a prepared CSV file. An empty path uses the configured one.
func (l *Loader) OpenSource(path string) (*source.CSVSource, error) {
	if path == "" {
		path = l.config.Source.Path
	}
	return source.Open(path,
		source.WithChunkSize(l.config.Source.ChunkSize),
		source.WithLogger(l.logger))
}

// NewPipeline wires a load pipeline reading from src.
func (l *Loader) NewPipeline(src pipeline.Source, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	client, err := l.EmbedClient()
	if err != nil {
		return nil, err
	}
	deliverer, err := l.Deliverer()
	if err != nil {
		return nil, err
	}
	store, err := l.LoadCheckpoint()
	if err != nil {
		return nil, err
	}
	opts = append([]pipeline.Option{pipeline.WithLogger(l.logger)}, opts...)
	return pipeline.New(src, client, deliverer, store, l.config.PipelineConfig(), opts...)
}

// Writer returns the export destination: the MinIO bucket when an endpoint
// is configured, the export directory otherwise.
func (l *Loader) Writer(ctx context.Context) (export.Writer, error) {
	if l.config.Export.Minio.Endpoint == "" {
		return export.NewDirWriter(l.config.Export.Dir)
	}
	w, err := export.NewMinioWriter(l.config.Minio())
	if err != nil {
		return nil, err
	}
	if err := w.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// Batcher returns a batcher for the configured ceiling and compression.
func (l *Loader) Batcher() (*batch.Batcher, error) {
	opts := []batch.Option{
		batch.WithInitialSize(l.config.Export.InitialSize),
		batch.WithLogger(l.logger),
	}
	if l.config.Export.Compress {
		if l.zstd == nil {
			z, err := batch.NewZstdSerializer(batch.CSVSerializer{}, zstd.SpeedDefault)
			if err != nil {
				return nil, err
			}
			l.zstd = z
		}
		opts = append(opts, batch.WithSerializer(l.zstd))
	}
	return batch.NewBatcher(l.config.Export.Ceiling, opts...)
}

// NewExporter wires an exporter reading from src.
func (l *Loader) NewExporter(ctx context.Context, src export.Source) (*export.Exporter, error) {
	client, err := l.EmbedClient()
	if err != nil {
		return nil, err
	}
	batcher, err := l.Batcher()
	if err != nil {
		return nil, err
	}
	writer, err := l.Writer(ctx)
	if err != nil {
		return nil, err
	}
	store, err := l.ExportCheckpoint()
	if err != nil {
		return nil, err
	}
	return export.New(src, client, batcher, writer, store, l.config.ExportConfig(), export.WithLogger(l.logger))
}

// DeadLetters returns the stored undeliverable batches.
func (l *Loader) DeadLetters(ctx context.Context) ([]*core.DeadLetter, error) {
	repos, err := l.Repositories()
	if err != nil {
		return nil, err
	}
	return repos.DeadLetters.ListDeadLetters(ctx)
}

// ReplayDeadLetters upserts every dead-lettered batch into the configured
// sink and deletes the ones that succeed. It returns the number replayed;
// batches that fail again stay queued.
func (l *Loader) ReplayDeadLetters(ctx context.Context) (int, error) {
	letters, err := l.DeadLetters(ctx)
	if err != nil {
		return 0, err
	}
	if len(letters) == 0 {
		return 0, nil
	}
	s, err := l.Sink()
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, letter := range letters {
		if err := s.Upsert(ctx, letter.Points); err != nil {
			if ctx.Err() != nil {
				return replayed, ctx.Err()
			}
			l.logger.Warn("dead letter replay failed",
				"id", letter.ID, "chunk", letter.Chunk, "batch", letter.Batch, "err", err)
			continue
		}
		if err := l.repos.DeadLetters.DeleteDeadLetters(ctx, letter.ID); err != nil {
			return replayed, err
		}
		replayed++
	}
	return replayed, nil
}

// NewSearcher returns a searcher over the local point index.
func (l *Loader) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	repos, err := l.Repositories()
	if err != nil {
		return nil, err
	}
	embedder, err := l.Embedder()
	if err != nil {
		return nil, err
	}
	opts = append([]search.Option{search.WithLogger(l.logger)}, opts...)
	return search.NewSearcher(repos.Points, embedder, opts...)
}
