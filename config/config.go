// Package config loads the YAML configuration of the loader.
//
// Every section has defaults, so an absent file or an absent key keeps the
// default value. Secrets are never stored in the file: the file names the
// environment variable that holds them.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mschenken/usdaCoding/ai"
	"github.com/mschenken/usdaCoding/batch"
	"github.com/mschenken/usdaCoding/export"
	"github.com/mschenken/usdaCoding/pipeline"
	"github.com/mschenken/usdaCoding/retry"
	"github.com/mschenken/usdaCoding/sink"
	"github.com/mschenken/usdaCoding/source"
)

// DefaultFileName is the configuration file looked up when none is given.
const DefaultFileName = "usdaload.yaml"

// Checkpoint backends.
const (
	CheckpointFile   = "file"
	CheckpointBadger = "badger"
	CheckpointBolt   = "bolt"
)

// Sink kinds.
const (
	SinkQdrant = "qdrant"
	SinkLocal  = "local"
)

// Config holds all configuration for the loader.
type Config struct {
	Source     SourceConfig     `yaml:"source"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Sink       SinkConfig       `yaml:"sink"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Storage    StorageConfig    `yaml:"storage"`
	Export     ExportConfig     `yaml:"export"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SourceConfig holds input configuration.
type SourceConfig struct {
	Path      string `yaml:"path"`
	ChunkSize int    `yaml:"chunk_size"`
}

// EmbeddingConfig holds embedding service configuration.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"` // "gemini" or "openai"
	Host      string        `yaml:"host"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"` // Environment variable for API key
	Timeout   time.Duration `yaml:"timeout"`
	BatchSize int           `yaml:"batch_size"`
	RateLimit float64       `yaml:"rate_limit"` // Requests per second, 0 = unlimited
	Burst     int           `yaml:"burst"`
	Normalize bool          `yaml:"normalize"`
	Retry     RetryConfig   `yaml:"retry"`
}

// RetryConfig holds the retry policy for embedding requests.
type RetryConfig struct {
	Delay       time.Duration `yaml:"delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`    // Non-zero selects exponential backoff
	MaxAttempts int           `yaml:"max_attempts"` // 0 = retry forever
	Jitter      float64       `yaml:"jitter"`
}

// SinkConfig holds vector index configuration.
type SinkConfig struct {
	Kind     string       `yaml:"kind"`     // "qdrant" or "local"
	Strategy string       `yaml:"strategy"` // "continue", "abort" or "dead-letter"
	Qdrant   QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	URL        string        `yaml:"url"`
	Collection string        `yaml:"collection"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Timeout    time.Duration `yaml:"timeout"`
}

// PipelineConfig holds load pipeline configuration.
type PipelineConfig struct {
	Name           string        `yaml:"name"`
	Concurrency    int           `yaml:"concurrency"`
	ReportInterval int           `yaml:"report_interval"`
	ChunkTimeout   time.Duration `yaml:"chunk_timeout"`
}

// CheckpointConfig selects where progress is recorded.
type CheckpointConfig struct {
	Backend    string `yaml:"backend"` // "file", "badger" or "bolt"
	Path       string `yaml:"path"`
	ExportPath string `yaml:"export_path"`
	Database   string `yaml:"database"` // bolt database file
}

// StorageConfig holds the local badger database settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// ExportConfig holds export configuration.
type ExportConfig struct {
	Dir         string      `yaml:"dir"`
	Prefix      string      `yaml:"prefix"`
	Ceiling     int         `yaml:"ceiling"`
	InitialSize int         `yaml:"initial_size"`
	Compress    bool        `yaml:"compress"`
	Minio       MinioConfig `yaml:"minio"`
}

// MinioConfig holds S3-compatible bucket settings. An empty endpoint
// means files are written to the export directory.
type MinioConfig struct {
	Endpoint     string `yaml:"endpoint"`
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Secure       bool   `yaml:"secure"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	aiDefaults := ai.DefaultConfig()
	qdrant := sink.DefaultQdrantConfig()
	pipelineDefaults := pipeline.DefaultConfig()

	return &Config{
		Source: SourceConfig{
			Path:      "fooddata_prepared.csv",
			ChunkSize: source.DefaultChunkSize,
		},
		Embedding: EmbeddingConfig{
			Provider:  aiDefaults.Provider,
			Host:      aiDefaults.Host,
			Model:     aiDefaults.Model,
			APIKeyEnv: "GEMINI_API_KEY",
			Timeout:   aiDefaults.Timeout,
			BatchSize: pipelineDefaults.BatchSize,
			Burst:     1,
			Retry: RetryConfig{
				Delay: 5 * time.Second,
			},
		},
		Sink: SinkConfig{
			Kind:     SinkQdrant,
			Strategy: string(sink.StrategyContinue),
			Qdrant: QdrantConfig{
				URL:        qdrant.URL,
				Collection: qdrant.Collection,
				APIKeyEnv:  "QDRANT_API_KEY",
				Timeout:    qdrant.Timeout,
			},
		},
		Pipeline: PipelineConfig{
			Name:           pipelineDefaults.Name,
			Concurrency:    pipelineDefaults.Concurrency,
			ReportInterval: pipelineDefaults.ReportInterval,
		},
		Checkpoint: CheckpointConfig{
			Backend:    CheckpointFile,
			Path:       "progress.txt",
			ExportPath: "export_progress.txt",
			Database:   "checkpoints.db",
		},
		Storage: StorageConfig{
			Path: "usda.db",
		},
		Export: ExportConfig{
			Dir:         "export",
			Prefix:      export.DefaultPrefix,
			Ceiling:     batch.DefaultCeiling,
			InitialSize: batch.DefaultInitialSize,
			Minio: MinioConfig{
				AccessKeyEnv: "MINIO_ACCESS_KEY",
				SecretKeyEnv: "MINIO_SECRET_KEY",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// AI returns the embedding service configuration with the API key resolved
// from the environment.
func (c *Config) AI() (*ai.Config, error) {
	cfg := ai.NewConfig(
		ai.WithProvider(c.Embedding.Provider),
		ai.WithHost(c.Embedding.Host),
		ai.WithModel(c.Embedding.Model),
		ai.WithTimeout(c.Embedding.Timeout),
		ai.WithAPIKey(secret(c.Embedding.APIKeyEnv)),
	)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RetryPolicy returns the policy for embedding requests.
func (c *Config) RetryPolicy() (retry.Policy, error) {
	r := c.Embedding.Retry
	if r.Delay <= 0 {
		return nil, fmt.Errorf("%w: retry delay must be positive", retry.ErrInvalidPolicy)
	}
	if r.MaxDelay > 0 {
		policy, err := retry.Exponential(r.Delay, r.MaxDelay, r.MaxAttempts, r.Jitter)
		if err != nil {
			return nil, err
		}
		return policy, nil
	}
	return retry.Fixed(r.Delay, r.MaxAttempts), nil
}

// QdrantSink returns the Qdrant connection settings with the API key resolved
// from the environment.
func (c *Config) QdrantSink() sink.QdrantConfig {
	q := c.Sink.Qdrant
	return sink.QdrantConfig{
		URL:        q.URL,
		Collection: q.Collection,
		APIKey:     secret(q.APIKeyEnv),
		Timeout:    q.Timeout,
		Wait:       true,
	}
}

// Strategy returns the configured sink failure strategy.
func (c *Config) Strategy() (sink.Strategy, error) {
	return sink.ParseStrategy(c.Sink.Strategy)
}

// PipelineConfig returns the load pipeline configuration.
func (c *Config) PipelineConfig() *pipeline.Config {
	return &pipeline.Config{
		Name:           c.Pipeline.Name,
		BatchSize:      c.Embedding.BatchSize,
		Concurrency:    c.Pipeline.Concurrency,
		ReportInterval: c.Pipeline.ReportInterval,
		ChunkTimeout:   c.Pipeline.ChunkTimeout,
	}
}

// ExportConfig returns the export configuration.
func (c *Config) ExportConfig() *export.Config {
	return &export.Config{
		Prefix:         c.Export.Prefix,
		EmbedBatchSize: c.Embedding.BatchSize,
	}
}

// Minio returns the bucket settings with credentials resolved from the environment.
func (c *Config) Minio() export.MinioConfig {
	m := c.Export.Minio
	return export.MinioConfig{
		Endpoint:  m.Endpoint,
		AccessKey: secret(m.AccessKeyEnv),
		SecretKey: secret(m.SecretKeyEnv),
		Bucket:    m.Bucket,
		Prefix:    m.Prefix,
		Region:    m.Region,
		Secure:    m.Secure,
	}
}

func secret(env string) string {
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}
