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


package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mschenken/usdaCoding/ai"
	"github.com/mschenken/usdaCoding/core"
	"github.com/mschenken/usdaCoding/retry"
	"golang.org/x/time/rate"
)

const (
	// DefaultRetryDelay is the fixed delay between attempts of the default policy.
	DefaultRetryDelay = 5 * time.Second

	// DefaultBatchSize is the number of payloads per embedding request.
	DefaultBatchSize = 100
)

// DefaultRetryPolicy retries forever with a fixed delay. Calls using it have
// no bounded latency; bound it with a context or a different policy.
func DefaultRetryPolicy() retry.Policy {
	return retry.Fixed(DefaultRetryDelay, retry.Unlimited)
}

// Client generates embeddings for batches of record content.
type Client struct {
	embedder  ai.Embedder
	policy    retry.Policy
	limiter   *rate.Limiter
	normalize bool
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy sets the policy applied to transient embedding failures.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) {
		if policy != nil {
			c.policy = policy
		}
	}
}

// WithRateLimit limits embedding requests to rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithNormalize normalizes every returned vector to unit length.
func WithNormalize(normalize bool) Option {
	return func(c *Client) {
		c.normalize = normalize
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

// NewClient creates an embedding client around embedder.
func NewClient(embedder ai.Embedder, opts ...Option) (*Client, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	c := &Client{
		embedder: embedder,
		policy:   DefaultRetryPolicy(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "embedding-client")
	return c, nil
}

// EmbedBatch returns one vector per content payload, in request order.
//
// Transient failures are retried under the client's policy. If the service
// answers with a different number of vectors than payloads the call fails
// with core.ErrEmbeddingCountMismatch, and an empty vector fails with
// core.ErrEmptyVector. Neither is retried.
func (c *Client) EmbedBatch(ctx context.Context, contents []core.Content) ([][]float32, error) {
	if len(contents) == 0 {
		return nil, nil
	}

	texts := make([]string, len(contents))
	for i, content := range contents {
		text, err := content.Text()
		if err != nil {
			return nil, err
		}
		texts[i] = text
	}

	var embeddings [][]float32
	err := retry.DoWithLogger(ctx, c.policy, c.logger, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Permanent(err)
			}
		}
		var err error
		embeddings, err = c.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if len(embeddings) != len(contents) {
		c.logger.Error("embedding service returned wrong number of vectors",
			"expected", len(contents), "received", len(embeddings))
		return nil, fmt.Errorf("%w: expected %d, got %d", core.ErrEmbeddingCountMismatch, len(contents), len(embeddings))
	}

	for i := range embeddings {
		if len(embeddings[i]) == 0 {
			return nil, fmt.Errorf("%w: position %d", core.ErrEmptyVector, i)
		}
		if c.normalize {
			embeddings[i] = NormalizeVector(embeddings[i])
		}
	}

	c.logger.Debug("embedded batch", "count", len(embeddings), "dimension", len(embeddings[0]))
	return embeddings, nil
}

// EmbedRecords fills the Embedding of every record, batchSize records per request.
// On error no guarantee is made about which records were filled.
func (c *Client) EmbedRecords(ctx context.Context, records []*core.Record, batchSize int) error {
	if batchSize <= 0 {
		return ErrInvalidBatchSize
	}

	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		batch := records[start:end]

		contents := make([]core.Content, len(batch))
		for i, record := range batch {
			contents[i] = record.Content
		}

		vectors, err := c.EmbedBatch(ctx, contents)
		if err != nil {
			return err
		}
		for i, record := range batch {
			record.Embedding = vectors[i]
		}
	}
	return nil
}
