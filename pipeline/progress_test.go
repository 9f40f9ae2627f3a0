package pipeline

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_ReportsAtInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100)

	tracker.Start()
	tracker.ChunkDone(0, 60)
	assert.Empty(t, buf.String(), "below the interval")

	tracker.ChunkDone(1, 60)
	assert.Contains(t, buf.String(), "Progress: 120 records in 2 chunks (last chunk 1)")

	buf.Reset()
	tracker.ChunkDone(2, 60)
	assert.Empty(t, buf.String(), "interval counts from the last report")
	assert.Equal(t, 180, tracker.Records())
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 1000)

	tracker.Start()
	tracker.ChunkDone(4, 15)
	tracker.ChunkDone(5, 30)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "Progress: 45 records in 2 chunks (last chunk 5)")
	assert.Contains(t, output, "records/s\n")
	assert.Greater(t, tracker.Elapsed(), time.Duration(0))
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 10)

	tracker.ChunkDone(0, 50)
	tracker.Finish()
	assert.Empty(t, buf.String())
	assert.Zero(t, tracker.Elapsed())
	assert.Zero(t, tracker.Records())
}

func TestProgressTracker_NonPositiveInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 0)

	tracker.Start()
	tracker.ChunkDone(0, 1)
	assert.Contains(t, buf.String(), "Progress: 1 records")
}
