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


package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	usdacoding "github.com/mschenken/usdaCoding"
	"github.com/mschenken/usdaCoding/checkpoint"
	"github.com/mschenken/usdaCoding/config"
	"github.com/mschenken/usdaCoding/pipeline"
	"github.com/mschenken/usdaCoding/search"
	"github.com/mschenken/usdaCoding/source"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "usdaload",
		Usage: "Embed USDA FoodData records and load them into a vector index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   config.DefaultFileName,
				EnvVars: []string{"USDALOAD_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log output format (text, json)",
				Value: "text",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "prepare",
				Usage:  "Convert the merged FoodData CSV into id,content,metadata rows",
				Action: prepareCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Merged FoodData CSV file",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Prepared CSV file to write",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "id-column",
						Usage: "Column holding the record id",
						Value: "fdc_id",
					},
					&cli.StringSliceFlag{
						Name:  "drop",
						Usage: "Columns excluded from content",
						Value: cli.NewStringSlice("nutrients"),
					},
				},
			},
			{
				Name:   "load",
				Usage:  "Embed prepared records and upsert them into the vector index",
				Action: loadCommand,
				Flags: append(sourceFlags(),
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Batches of one chunk processed at once",
					},
					&cli.StringFlag{
						Name:  "sink",
						Usage: "Vector index (qdrant, local)",
					},
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "What to do with a batch the index rejects (continue, abort, dead-letter)",
					},
					&cli.StringFlag{
						Name:    "qdrant-url",
						Usage:   "Qdrant base URL",
						EnvVars: []string{"QDRANT_URL"},
					},
					&cli.StringFlag{
						Name:  "collection",
						Usage: "Qdrant collection",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Report throughput on stderr",
						Value: true,
					},
				),
			},
			{
				Name:   "export",
				Usage:  "Embed prepared records and write them as size-bounded CSV files",
				Action: exportCommand,
				Flags: append(sourceFlags(),
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Output directory",
					},
					&cli.IntFlag{
						Name:  "ceiling",
						Usage: "Exclusive upper bound on a file, in bytes",
					},
					&cli.BoolFlag{
						Name:  "compress",
						Usage: "Compress files with zstd",
					},
				),
			},
			{
				Name:  "checkpoint",
				Usage: "Inspect or reset recorded progress",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Print the last completed chunk",
						Action: checkpointShowCommand,
						Flags:  []cli.Flag{exportFlag()},
					},
					{
						Name:   "reset",
						Usage:  "Forget recorded progress so the next run starts over",
						Action: checkpointResetCommand,
						Flags:  []cli.Flag{exportFlag()},
					},
				},
			},
			{
				Name:  "dead-letters",
				Usage: "Inspect or replay batches the index rejected",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "Print the queued batches",
						Action: deadLettersListCommand,
					},
					{
						Name:   "replay",
						Usage:  "Upsert the queued batches again and drop the ones that succeed",
						Action: deadLettersReplayCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "qdrant-url",
								Usage:   "Qdrant base URL",
								EnvVars: []string{"QDRANT_URL"},
							},
							&cli.StringFlag{
								Name:  "collection",
								Usage: "Qdrant collection",
							},
						},
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Query the local point index",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Ignore points below this cosine similarity",
						Value: float64(search.DefaultMinSimilarity),
					},
				},
			},
		},
	}
}

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "Prepared CSV file",
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Usage: "Records per checkpointed chunk",
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Records per embedding request",
		},
	}
}

func exportFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "export",
		Usage: "Use the export progress instead of the load progress",
	}
}

func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("log-level") || cfg.Logging.Level == "" {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-format") || cfg.Logging.Format == "" {
		cfg.Logging.Format = c.String("log-format")
	}
	if err := setupLogger(cfg.Logging); err != nil {
		return err
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func setupLogger(cfg config.LoggingConfig) error {
	levelStr := strings.ToLower(cfg.Level)

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", cfg.Format)
	}
	slog.SetDefault(slog.New(handler))

	return nil
}

// loadedConfig returns the configuration read by setup with the command's
// flags applied on top.
func loadedConfig(c *cli.Context) (*config.Config, error) {
	cfg, ok := c.App.Metadata[configKey].(*config.Config)
	if !ok {
		// Subcommand apps may not share the root metadata
		var err error
		if cfg, err = config.Load(c.String("config")); err != nil {
			return nil, err
		}
	}
	if c.IsSet("input") {
		cfg.Source.Path = c.String("input")
	}
	if c.IsSet("chunk-size") {
		cfg.Source.ChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("batch-size") {
		cfg.Embedding.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("concurrency") {
		cfg.Pipeline.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("sink") {
		cfg.Sink.Kind = c.String("sink")
	}
	if c.IsSet("strategy") {
		cfg.Sink.Strategy = c.String("strategy")
	}
	if c.IsSet("qdrant-url") {
		cfg.Sink.Qdrant.URL = c.String("qdrant-url")
	}
	if c.IsSet("collection") {
		cfg.Sink.Qdrant.Collection = c.String("collection")
	}
	if c.IsSet("dir") {
		cfg.Export.Dir = c.String("dir")
	}
	if c.IsSet("ceiling") {
		cfg.Export.Ceiling = c.Int("ceiling")
	}
	if c.IsSet("compress") {
		cfg.Export.Compress = c.Bool("compress")
	}
	return cfg, nil
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func prepareCommand(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	in, err := os.Open(c.String("input"))
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	out, err := os.Create(c.String("output"))
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	rows, err := source.Prepare(ctx, in, w, source.PrepareConfig{
		IDColumn: c.String("id-column"),
		Drop:     c.StringSlice("drop"),
		Logger:   slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("prepare failed: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("failed to sync output: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Prepared %d rows into %s\n", rows, c.String("output"))
	return nil
}

func loadCommand(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}
	loader := usdacoding.NewLoader(cfg, usdacoding.WithLogger(slog.Default()))
	defer loader.Close()

	src, err := loader.OpenSource("")
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	var opts []pipeline.Option
	if c.Bool("progress") {
		opts = append(opts, pipeline.WithProgress(c.App.ErrWriter))
	}
	p, err := loader.NewPipeline(src, opts...)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer p.Release()

	fmt.Fprintf(c.App.ErrWriter, "Source: %s\n", cfg.Source.Path)
	fmt.Fprintf(c.App.ErrWriter, "Sink: %s\n", cfg.Sink.Kind)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.Embedding.Model)
	fmt.Fprintln(c.App.ErrWriter)

	stats, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Loaded %d records in %d chunks (%d skipped), %d batches delivered, %d dropped, %d dead-lettered in %s\n",
		stats.Records, stats.ChunksProcessed, stats.ChunksSkipped,
		stats.BatchesDelivered, stats.BatchesDropped, stats.BatchesDeadLettered, stats.Elapsed.Round(time.Millisecond))
	return nil
}

func exportCommand(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}
	loader := usdacoding.NewLoader(cfg, usdacoding.WithLogger(slog.Default()))
	defer loader.Close()

	src, err := loader.OpenSource("")
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	exporter, err := loader.NewExporter(ctx, src)
	if err != nil {
		return fmt.Errorf("failed to create exporter: %w", err)
	}

	stats, err := exporter.Run(ctx)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Exported %d records in %d chunks (%d skipped) to %d files, %d bytes\n",
		stats.Records, stats.ChunksExported, stats.ChunksSkipped, stats.Files, stats.Bytes)
	return nil
}

func checkpointStore(loader *usdacoding.Loader, exported bool) (checkpoint.Store, error) {
	if exported {
		return loader.ExportCheckpoint()
	}
	return loader.LoadCheckpoint()
}

func checkpointShowCommand(c *cli.Context) error {
	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}
	loader := usdacoding.NewLoader(cfg, usdacoding.WithLogger(slog.Default()))
	defer loader.Close()

	store, err := checkpointStore(loader, c.Bool("export"))
	if err != nil {
		return err
	}
	last, err := store.Load(c.Context)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if last == checkpoint.None {
		fmt.Fprintln(c.App.Writer, "No chunk completed yet")
		return nil
	}
	fmt.Fprintf(c.App.Writer, "Last completed chunk: %d (next: %d)\n", last, last+1)
	return nil
}

func checkpointResetCommand(c *cli.Context) error {
	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}
	loader := usdacoding.NewLoader(cfg, usdacoding.WithLogger(slog.Default()))
	defer loader.Close()

	store, err := checkpointStore(loader, c.Bool("export"))
	if err != nil {
		return err
	}
	if err := store.Reset(c.Context); err != nil {
		return fmt.Errorf("failed to reset checkpoint: %w", err)
	}
	fmt.Fprintln(c.App.Writer, "Checkpoint reset")
	return nil
}

func deadLettersListCommand(c *cli.Context) error {
	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}
	loader := usdacoding.NewLoader(cfg, usdacoding.WithLogger(slog.Default()))
	defer loader.Close()

	letters, err := loader.DeadLetters(c.Context)
	if err != nil {
		return fmt.Errorf("failed to list dead letters: %w", err)
	}
	if len(letters) == 0 {
		fmt.Fprintln(c.App.Writer, "No dead letters")
		return nil
	}
	for _, letter := range letters {
		fmt.Fprintf(c.App.Writer, "%d\tchunk %d\tbatch %d\t%d points\t%s\t%s\n",
			letter.ID, letter.Chunk, letter.Batch, len(letter.Points),
			letter.CreatedAt.Format(time.RFC3339), letter.Reason)
	}
	return nil
}

func deadLettersReplayCommand(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}
	loader := usdacoding.NewLoader(cfg, usdacoding.WithLogger(slog.Default()))
	defer loader.Close()

	replayed, err := loader.ReplayDeadLetters(ctx)
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Replayed %d dead letters\n", replayed)
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("a query is required")
	}

	cfg, err := loadedConfig(c)
	if err != nil {
		return err
	}
	loader := usdacoding.NewLoader(cfg, usdacoding.WithLogger(slog.Default()))
	defer loader.Close()

	searcher, err := loader.NewSearcher(search.WithMinSimilarity(float32(c.Float64("min-similarity"))))
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	results, err := searcher.FindSimilar(c.Context, query, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Fprintln(c.App.Writer, "No results")
		return nil
	}
	for i, result := range results {
		fmt.Fprintf(c.App.Writer, "%2d. [%.4f] %d %v\n", i+1, result.Score, result.Point.ID, result.Point.Payload["description"])
	}
	return nil
}
