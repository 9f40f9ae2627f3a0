package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschenken/usdaCoding/ai/mock"
	"github.com/mschenken/usdaCoding/checkpoint"
	"github.com/mschenken/usdaCoding/core"
	"github.com/mschenken/usdaCoding/embed"
	"github.com/mschenken/usdaCoding/retry"
	"github.com/mschenken/usdaCoding/sink"
	"github.com/mschenken/usdaCoding/source"
	"github.com/mschenken/usdaCoding/storage/badger"
)

func preparedCSV(n int) string {
	var b strings.Builder
	b.WriteString("id,content,metadata\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d,\"{\"\"description\"\":\"\"food %d\"\"}\",{}\n", i, i)
	}
	return b.String()
}

type harness struct {
	repos    *badger.Repositories
	store    *checkpoint.File
	embedder *mock.MockEmbedder
	logger   *slog.Logger
	logs     *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	var logs bytes.Buffer
	return &harness{
		repos:    repos,
		store:    checkpoint.NewFile(filepath.Join(t.TempDir(), checkpoint.DefaultFileName)),
		embedder: mock.NewMockEmbedder(),
		logger:   slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
		logs:     &logs,
	}
}

func (h *harness) localDeliverer(t *testing.T, opts ...sink.Option) *sink.Deliverer {
	t.Helper()
	opts = append([]sink.Option{sink.WithLogger(h.logger)}, opts...)
	d, err := sink.NewDeliverer(sink.NewLocal(h.repos.Points), opts...)
	require.NoError(t, err)
	return d
}

func (h *harness) pipeline(t *testing.T, input string, chunkSize int, deliverer Deliverer, cfg *Config) *Pipeline {
	t.Helper()
	src, err := source.NewCSVSource(strings.NewReader(input), source.WithChunkSize(chunkSize))
	require.NoError(t, err)

	client, err := embed.NewClient(h.embedder,
		embed.WithRetryPolicy(retry.Fixed(time.Millisecond, 3)),
		embed.WithLogger(h.logger))
	require.NoError(t, err)

	if deliverer == nil {
		deliverer = h.localDeliverer(t)
	}

	p, err := New(src, client, deliverer, h.store, cfg, WithLogger(h.logger))
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func (h *harness) checkpointFile(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(h.store.Path())
	require.NoError(t, err)
	return string(data)
}

func (h *harness) pointCount(t *testing.T) int {
	t.Helper()
	count, err := h.repos.Points.CountPoints(context.Background())
	require.NoError(t, err)
	return count
}

func TestRun_TwoChunksFromScratch(t *testing.T) {
	h := newHarness(t)
	p := h.pipeline(t, preparedCSV(12000), 10000, nil, nil)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, checkpoint.None, stats.ResumedFrom)
	assert.Equal(t, 0, stats.ChunksSkipped)
	assert.Equal(t, 2, stats.ChunksProcessed)
	assert.Equal(t, 12000, stats.Records)
	assert.Equal(t, 120, stats.BatchesDelivered)
	assert.Equal(t, 1, stats.LastChunk)
	assert.Equal(t, StateDone, p.State())

	assert.Equal(t, "1", h.checkpointFile(t))
	assert.Equal(t, 12000, h.pointCount(t))
	assert.Equal(t, 120, h.embedder.CallCount())
}

func TestRun_ResumesAfterCheckpoint(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Save(context.Background(), 0))

	p := h.pipeline(t, preparedCSV(12000), 10000, nil, nil)
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.ResumedFrom)
	assert.Equal(t, 1, stats.ChunksSkipped)
	assert.Equal(t, 1, stats.ChunksProcessed)
	assert.Equal(t, 2000, stats.Records)
	assert.Equal(t, 2000, h.embedder.TextCount(), "skipped chunk is never embedded")
	assert.Equal(t, "1", h.checkpointFile(t))

	_, err = h.repos.Points.GetPoint(context.Background(), 10001)
	require.NoError(t, err)
	assert.Equal(t, 2000, h.pointCount(t))
}

func TestRun_CrashMidChunkRedoesWholeChunk(t *testing.T) {
	h := newHarness(t)
	input := preparedCSV(500)
	cfg := DefaultConfig()
	cfg.BatchSize = 50

	// Chunk 0 is batches 1-4; the 6th request is chunk 1 batch 2.
	var calls atomic.Int32
	h.embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) == 6 {
			return make([][]float32, len(texts)-1), nil
		}
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			vectors[i] = mock.GenerateDeterministicVector(text, mock.DefaultDimension)
		}
		return vectors, nil
	}

	stats, err := h.pipeline(t, input, 200, nil, cfg).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingCountMismatch)
	assert.Equal(t, 1, stats.ChunksProcessed)
	assert.Equal(t, "0", h.checkpointFile(t))
	assert.Equal(t, 250, h.pointCount(t), "chunk 0 plus the first batch of chunk 1")

	h.embedder.Reset()
	stats, err = h.pipeline(t, input, 200, nil, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ResumedFrom)
	assert.Equal(t, 2, stats.ChunksProcessed)
	assert.Equal(t, 300, h.embedder.TextCount())
	assert.Equal(t, "2", h.checkpointFile(t))
	assert.Equal(t, 500, h.pointCount(t), "redone batch did not duplicate points")
}

func TestRun_CountMismatchIsFatal(t *testing.T) {
	h := newHarness(t)
	h.embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0}, {0, 1}}, nil
	}

	var upserts atomic.Int32
	d, err := sink.NewDeliverer(sink.SinkFunc(func(context.Context, []core.Point) error {
		upserts.Add(1)
		return nil
	}))
	require.NoError(t, err)

	p := h.pipeline(t, preparedCSV(3), 10000, d, nil)
	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingCountMismatch)
	assert.Contains(t, err.Error(), "expected 3, got 2")
	assert.Equal(t, StateFailed, p.State())

	assert.Zero(t, upserts.Load())
	assert.Equal(t, 1, h.embedder.CallCount(), "mismatch is not retried")

	index, err := h.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, checkpoint.None, index)
}

func qdrantFailingOn(t *testing.T, failOn int32, requests *atomic.Int32) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		if requests.Add(1) == failOn {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func TestRun_SinkFailureContinues(t *testing.T) {
	h := newHarness(t)
	var requests atomic.Int32

	cfg := sink.DefaultQdrantConfig()
	cfg.URL = qdrantFailingOn(t, 5, &requests)
	q, err := sink.NewQdrant(cfg)
	require.NoError(t, err)
	d, err := sink.NewDeliverer(q, sink.WithLogger(h.logger))
	require.NoError(t, err)

	stats, err := h.pipeline(t, preparedCSV(1000), 1000, d, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(10), requests.Load(), "batches 6-10 are still attempted")
	assert.Equal(t, 9, stats.BatchesDelivered)
	assert.Equal(t, 1, stats.BatchesDropped)
	assert.Equal(t, "0", h.checkpointFile(t))

	logs := h.logs.String()
	assert.Contains(t, logs, "failed to upsert batch")
	assert.Contains(t, logs, "batch=5")
	assert.Contains(t, logs, "chunk=0")
}

func TestRun_SinkFailureAborts(t *testing.T) {
	h := newHarness(t)
	var requests atomic.Int32

	cfg := sink.DefaultQdrantConfig()
	cfg.URL = qdrantFailingOn(t, 5, &requests)
	q, err := sink.NewQdrant(cfg)
	require.NoError(t, err)
	d, err := sink.NewDeliverer(q, sink.WithStrategy(sink.StrategyAbort))
	require.NoError(t, err)

	_, err = h.pipeline(t, preparedCSV(1000), 1000, d, nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, sink.ErrDeliveryFailed)
	assert.ErrorIs(t, err, sink.ErrUnexpectedStatus)
	assert.Equal(t, int32(5), requests.Load(), "remaining batches are cancelled")

	index, err := h.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, checkpoint.None, index)
}

func TestRun_SinkFailureDeadLetters(t *testing.T) {
	h := newHarness(t)
	var calls atomic.Int32
	failing := sink.SinkFunc(func(ctx context.Context, points []core.Point) error {
		if calls.Add(1) == 2 {
			return fmt.Errorf("index unavailable")
		}
		return h.repos.Points.UpsertPoints(ctx, points...)
	})
	d, err := sink.NewDeliverer(failing,
		sink.WithStrategy(sink.StrategyDeadLetter),
		sink.WithDeadLetterQueue(sink.NewRepositoryQueue(h.repos.DeadLetters)),
		sink.WithLogger(h.logger))
	require.NoError(t, err)

	stats, err := h.pipeline(t, preparedCSV(300), 300, d, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.BatchesDeadLettered)
	assert.Equal(t, 2, stats.BatchesDelivered)

	letters, err := h.repos.DeadLetters.ListDeadLetters(context.Background())
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, 2, letters[0].Batch)
	assert.Len(t, letters[0].Points, 100)
	assert.Equal(t, 200, h.pointCount(t))
}

func TestRun_Concurrent(t *testing.T) {
	h := newHarness(t)
	cfg := DefaultConfig()
	cfg.BatchSize = 10
	cfg.Concurrency = 4

	stats, err := h.pipeline(t, preparedCSV(1000), 250, nil, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.ChunksProcessed)
	assert.Equal(t, 100, stats.BatchesDelivered)
	assert.Equal(t, 1000, h.pointCount(t))
	assert.Equal(t, "3", h.checkpointFile(t))
}

func TestRun_ContextCancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Chunk 0 is two batches; cancel while chunk 1 is being embedded.
	var calls atomic.Int32
	h.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) == 3 {
			cancel()
			return nil, ctx.Err()
		}
		vectors := make([][]float32, len(texts))
		for i := range texts {
			vectors[i] = []float32{1, 0}
		}
		return vectors, nil
	}

	stats, err := h.pipeline(t, preparedCSV(600), 200, nil, nil).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stats.ChunksProcessed)
	assert.Equal(t, "0", h.checkpointFile(t))
}

func TestRun_CheckpointBeyondSource(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Save(context.Background(), 5))

	stats, err := h.pipeline(t, preparedCSV(300), 100, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ChunksSkipped)
	assert.Equal(t, 0, stats.ChunksProcessed)
	assert.Zero(t, h.embedder.CallCount())
	assert.Equal(t, "5", h.checkpointFile(t))
}

func TestRun_EmptySource(t *testing.T) {
	h := newHarness(t)
	stats, err := h.pipeline(t, preparedCSV(0), 100, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ChunksProcessed)

	index, err := h.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, checkpoint.None, index)
}

func TestRun_MalformedRowStopsRun(t *testing.T) {
	h := newHarness(t)
	input := preparedCSV(150) + "151,not-json,{}\n"

	stats, err := h.pipeline(t, input, 100, nil, nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedRow)
	assert.Equal(t, 1, stats.ChunksProcessed)
	assert.Equal(t, "0", h.checkpointFile(t))
}

func TestRun_DuplicateIDsInChunk(t *testing.T) {
	h := newHarness(t)
	input := "id,content,metadata\n1,\"{}\",{}\n1,\"{}\",{}\n"

	_, err := h.pipeline(t, input, 100, nil, nil).Run(context.Background())
	assert.ErrorIs(t, err, core.ErrDuplicateID)
	assert.Zero(t, h.embedder.CallCount())
}

func TestRun_PayloadMergesMetadata(t *testing.T) {
	h := newHarness(t)
	input := "id,content,metadata\n" +
		"7,\"{\"\"description\"\":\"\"Apple\"\",\"\"source\"\":\"\"content\"\"}\",\"{\"\"source\"\":\"\"metadata\"\"}\"\n"

	_, err := h.pipeline(t, input, 100, nil, nil).Run(context.Background())
	require.NoError(t, err)

	point, err := h.repos.Points.GetPoint(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Apple", point.Payload["description"])
	assert.Equal(t, "metadata", point.Payload["source"])
	assert.Len(t, point.Vector, mock.DefaultDimension)
}

type scriptedSource struct {
	chunks []*core.Chunk
	pos    int
}

func (s *scriptedSource) Next(context.Context) (*core.Chunk, error) {
	if s.pos >= len(s.chunks) {
		return nil, io.EOF
	}
	s.pos++
	return s.chunks[s.pos-1], nil
}

func (s *scriptedSource) Skip(_ context.Context, n int) (int, error) {
	skipped := min(n, len(s.chunks)-s.pos)
	s.pos += skipped
	return skipped, nil
}

func TestRun_ChunkOutOfOrder(t *testing.T) {
	h := newHarness(t)
	src := &scriptedSource{chunks: []*core.Chunk{
		{Index: 1, Records: []*core.Record{{ID: 1, Content: core.Content{"a": 1}}}},
	}}
	client, err := embed.NewClient(h.embedder)
	require.NoError(t, err)

	p, err := New(src, client, h.localDeliverer(t), h.store, nil)
	require.NoError(t, err)
	defer p.Release()

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, ErrChunkOutOfOrder)
}

func TestRun_ReportsProgress(t *testing.T) {
	h := newHarness(t)
	var progress bytes.Buffer

	src, err := source.NewCSVSource(strings.NewReader(preparedCSV(250)), source.WithChunkSize(100))
	require.NoError(t, err)
	client, err := embed.NewClient(h.embedder)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.ReportInterval = 100
	p, err := New(src, client, h.localDeliverer(t), h.store, cfg, WithProgress(&progress), WithPoolSize(2))
	require.NoError(t, err)
	defer p.Release()

	_, err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, progress.String(), "Progress: 250 records in 3 chunks (last chunk 2)")
}

func TestNew_Validation(t *testing.T) {
	h := newHarness(t)
	src, err := source.NewCSVSource(strings.NewReader(preparedCSV(1)))
	require.NoError(t, err)
	client, err := embed.NewClient(h.embedder)
	require.NoError(t, err)
	d := h.localDeliverer(t)

	_, err = New(nil, client, d, h.store, nil)
	assert.ErrorIs(t, err, ErrSourceRequired)
	_, err = New(src, nil, d, h.store, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
	_, err = New(src, client, nil, h.store, nil)
	assert.ErrorIs(t, err, ErrDelivererRequired)
	_, err = New(src, client, d, nil, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)

	cfg := DefaultConfig()
	cfg.BatchSize = 0
	_, err = New(src, client, d, h.store, cfg)
	assert.Error(t, err)
}
