package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mschenken/usdaCoding/ai"
)

// apiKeyHeader carries the API key on every request.
const apiKeyHeader = "x-goog-api-key"

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 4 << 10

type textPart struct {
	Text string `json:"text"`
}

type contentParts struct {
	Parts []textPart `json:"parts"`
}

type embedRequest struct {
	Model   string       `json:"model"`
	Content contentParts `json:"content"`
}

type batchEmbedRequest struct {
	Requests []embedRequest `json:"requests"`
}

type embeddingValues struct {
	Values []float32 `json:"values"`
}

type batchEmbedResponse struct {
	Embeddings []embeddingValues `json:"embeddings"`
}

// Embedder implements ai.Embedder against the Gemini embedding API.
type Embedder struct {
	client *http.Client
	host   string
	model  string
	apiKey string
	logger *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// Option configures an Embedder.
type Option func(*Embedder)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Embedder) {
		if client != nil {
			e.client = client
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Embedder) {
		if logger != nil {
			e.logger = logger.With("component", "gemini-embedder")
		}
	}
}

// NewEmbedder creates a Gemini embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config, opts ...Option) (ai.Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &Embedder{
		client: &http.Client{Timeout: config.Timeout},
		host:   config.Host,
		model:  config.Model,
		apiKey: config.APIKey,
		logger: slog.Default().With("component", "gemini-embedder"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		e.logger.Warn("embedder returned empty result")
		return []float32{}, nil
	}
	return vectors[0], nil
}

// EmbedTexts sends all texts in a single batchEmbedContents request.
// The service response is returned as is; count validation is the caller's job.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := "models/" + e.model
	payload := batchEmbedRequest{Requests: make([]embedRequest, len(texts))}
	for i, text := range texts {
		payload.Requests[i] = embedRequest{
			Model:   model,
			Content: contentParts{Parts: []textPart{{Text: text}}},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	// The URL must not carry the key; transport errors print it.
	endpoint := fmt.Sprintf("%s/%s:batchEmbedContents", e.host, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, e.apiKey)

	e.logger.Debug("requesting batch embeddings", "count", len(texts))
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ai.StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed batchEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}

	vectors := make([][]float32, len(parsed.Embeddings))
	for i, emb := range parsed.Embeddings {
		vectors[i] = emb.Values
	}
	e.logger.Debug("received batch embeddings", "count", len(vectors))
	return vectors, nil
}
