package pipeline

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker reports completed chunks and record throughput.
// The size of the source is not known up front, so no percentage is shown.
type ProgressTracker struct {
	writer         io.Writer
	reportInterval int
	records        int
	chunks         int
	lastChunk      int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker creates a tracker that writes a status line to writer
// every time at least reportInterval more records have completed.
func NewProgressTracker(writer io.Writer, reportInterval int) *ProgressTracker {
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		reportInterval: reportInterval,
		lastChunk:      -1,
	}
}

// Start resets the counters and the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.records = 0
	p.chunks = 0
	p.lastChunk = -1
	p.lastReported = 0
}

// ChunkDone records that the chunk with the given index and record count completed.
func (p *ProgressTracker) ChunkDone(index, records int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.records += records
	p.chunks++
	p.lastChunk = index

	if p.records-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.records
	}
}

// Records returns the number of records completed since Start.
func (p *ProgressTracker) Records() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.records
}

// Finish writes the final status line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.report()
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time since Start.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// report must be called with the lock held.
func (p *ProgressTracker) report() {
	rate := 0.0
	if elapsed := time.Since(p.startTime).Seconds(); elapsed > 0 {
		rate = float64(p.records) / elapsed
	}
	fmt.Fprintf(p.writer, "\rProgress: %d records in %d chunks (last chunk %d) - %.1f records/s",
		p.records, p.chunks, p.lastChunk, rate)
}
