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


package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mschenken/usdaCoding/core"
)

const (
	// DefaultQdrantURL is the address of a local Qdrant instance.
	DefaultQdrantURL = "http://localhost:6333"

	// DefaultCollection is the collection the USDA records are loaded into.
	DefaultCollection = "usdalib"

	// DefaultQdrantTimeout bounds a single upsert request.
	DefaultQdrantTimeout = 60 * time.Second

	maxErrorBody = 4096
)

// QdrantConfig holds the settings for a Qdrant collection.
type QdrantConfig struct {
	URL        string
	Collection string
	APIKey     string
	Timeout    time.Duration
	// Wait asks Qdrant to apply the upsert before answering.
	Wait bool
}

// DefaultQdrantConfig returns the settings for a local Qdrant instance.
func DefaultQdrantConfig() QdrantConfig {
	return QdrantConfig{
		URL:        DefaultQdrantURL,
		Collection: DefaultCollection,
		Timeout:    DefaultQdrantTimeout,
		Wait:       true,
	}
}

// Validate checks the configuration.
func (c QdrantConfig) Validate() error {
	if c.URL == "" {
		return errors.New("qdrant url is required")
	}
	if _, err := url.Parse(c.URL); err != nil {
		return fmt.Errorf("invalid qdrant url: %w", err)
	}
	if c.Collection == "" {
		return errors.New("qdrant collection is required")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be greater than 0")
	}
	return nil
}

// Qdrant upserts points into a Qdrant collection over its REST API.
type Qdrant struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

var _ Sink = (*Qdrant)(nil)

// QdrantOption configures a Qdrant sink.
type QdrantOption func(*Qdrant)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) QdrantOption {
	return func(q *Qdrant) {
		if client != nil {
			q.client = client
		}
	}
}

// WithQdrantLogger sets a custom logger.
func WithQdrantLogger(logger *slog.Logger) QdrantOption {
	return func(q *Qdrant) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// NewQdrant creates a Qdrant sink.
func NewQdrant(cfg QdrantConfig, opts ...QdrantOption) (*Qdrant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid qdrant config: %w", err)
	}

	endpoint := fmt.Sprintf("%s/collections/%s/points",
		strings.TrimSuffix(cfg.URL, "/"), url.PathEscape(cfg.Collection))
	if cfg.Wait {
		endpoint += "?wait=true"
	}

	q := &Qdrant{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With("component", "qdrant", "collection", cfg.Collection)
	return q, nil
}

type upsertRequest struct {
	Points []core.Point `json:"points"`
}

// Upsert implements Sink.
func (q *Qdrant) Upsert(ctx context.Context, points []core.Point) error {
	body, err := json.Marshal(upsertRequest{Points: points})
	if err != nil {
		return fmt.Errorf("encode points: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, q.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	q.logger.Debug("upserted points", "count", len(points), "status", resp.StatusCode)
	return nil
}
