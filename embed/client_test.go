package embed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mschenken/usdaCoding/ai/mock"
	"github.com/mschenken/usdaCoding/core"
	"github.com/mschenken/usdaCoding/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contents(n int) []core.Content {
	result := make([]core.Content, n)
	for i := range result {
		result[i] = core.Content{"description": "food", "n": i}
	}
	return result
}

func fastRetry() Option {
	return WithRetryPolicy(retry.Fixed(time.Millisecond, retry.Unlimited))
}

func TestNewClient_RequiresEmbedder(t *testing.T) {
	_, err := NewClient(nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestEmbedBatch_PreservesLengthAndOrder(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	client, err := NewClient(embedder)
	require.NoError(t, err)

	input := contents(5)
	vectors, err := client.EmbedBatch(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, vectors, 5)

	for i, content := range input {
		text, err := content.Text()
		require.NoError(t, err)
		assert.Equal(t, mock.GenerateDeterministicVector(text, mock.DefaultDimension), vectors[i], "position %d", i)
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	client, err := NewClient(embedder)
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Equal(t, 0, embedder.CallCount(), "no remote call for an empty batch")
}

func TestEmbedBatch_CountMismatchIsFatal(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		// Service drops one embedding
		return [][]float32{{1, 0}, {0, 1}}, nil
	}
	client, err := NewClient(embedder, fastRetry())
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(context.Background(), contents(3))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingCountMismatch)
	assert.Contains(t, err.Error(), "expected 3, got 2")
	assert.Nil(t, vectors)
	assert.Equal(t, 1, embedder.CallCount(), "protocol errors must not be retried")
}

func TestEmbedBatch_TooManyVectorsIsFatal(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}, {2}, {3}}, nil
	}
	client, err := NewClient(embedder, fastRetry())
	require.NoError(t, err)

	_, err = client.EmbedBatch(context.Background(), contents(2))
	assert.ErrorIs(t, err, core.ErrEmbeddingCountMismatch)
}

func TestEmbedBatch_RetriesTransientFailures(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	attempts := 0
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		attempts++
		if attempts < 4 {
			return nil, errors.New("connection reset")
		}
		result := make([][]float32, len(texts))
		for i := range texts {
			result[i] = []float32{1, 0}
		}
		return result, nil
	}
	client, err := NewClient(embedder, fastRetry())
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(context.Background(), contents(2))
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	assert.Equal(t, 4, attempts)
}

func TestEmbedBatch_BoundedPolicyGivesUp(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("503 service unavailable")
	}
	client, err := NewClient(embedder, WithRetryPolicy(retry.Fixed(time.Millisecond, 3)))
	require.NoError(t, err)

	_, err = client.EmbedBatch(context.Background(), contents(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, 3, embedder.CallCount())
}

func TestEmbedBatch_ContextCancellation(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("down")
	}
	client, err := NewClient(embedder)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = client.EmbedBatch(ctx, contents(1))
	assert.ErrorIs(t, err, context.DeadlineExceeded, "default policy only stops on context end")
}

func TestEmbedBatch_EmptyVectorIsFatal(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}, {}}, nil
	}
	client, err := NewClient(embedder)
	require.NoError(t, err)

	_, err = client.EmbedBatch(context.Background(), contents(2))
	assert.ErrorIs(t, err, core.ErrEmptyVector)
	assert.NotErrorIs(t, err, core.ErrEmbeddingCountMismatch)
	assert.Contains(t, err.Error(), "position 1")
	assert.Equal(t, 1, embedder.CallCount(), "empty vectors are not retried")
}

func TestEmbedBatch_Normalize(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{3, 4}}, nil
	}
	client, err := NewClient(embedder, WithNormalize(true))
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(context.Background(), contents(1))
	require.NoError(t, err)
	assert.InDelta(t, 0.6, vectors[0][0], 1e-6)
	assert.InDelta(t, 0.8, vectors[0][1], 1e-6)
}

func TestEmbedBatch_RateLimit(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	client, err := NewClient(embedder, WithRateLimit(50, 1))
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.EmbedBatch(context.Background(), contents(1))
		require.NoError(t, err)
	}
	// First request uses the burst, the next two wait ~20ms each
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestEmbedRecords(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	client, err := NewClient(embedder)
	require.NoError(t, err)

	records := make([]*core.Record, 250)
	for i := range records {
		records[i] = &core.Record{ID: core.ID(i), Content: core.Content{"i": i}, Metadata: core.Metadata{}}
	}

	require.NoError(t, client.EmbedRecords(context.Background(), records, 100))
	assert.Equal(t, 3, embedder.CallCount(), "250 records in batches of 100")
	for _, record := range records {
		assert.Len(t, record.Embedding, mock.DefaultDimension)
	}

	assert.ErrorIs(t, client.EmbedRecords(context.Background(), records, 0), ErrInvalidBatchSize)
}
