package pipeline

import (
	"sync/atomic"
	"time"
)

// Stats summarizes a pipeline run.
type Stats struct {
	ResumedFrom         int // Checkpoint found at start, checkpoint.None if absent
	ChunksSkipped       int
	ChunksProcessed     int
	Records             int
	BatchesDelivered    int
	BatchesDropped      int
	BatchesDeadLettered int
	LastChunk           int // Last checkpointed chunk, ResumedFrom if none
	Elapsed             time.Duration
}

// batchCounters collects batch outcomes from concurrent workers.
type batchCounters struct {
	delivered    atomic.Int64
	dropped      atomic.Int64
	deadLettered atomic.Int64
}

func (c *batchCounters) addTo(s *Stats) {
	s.BatchesDelivered += int(c.delivered.Load())
	s.BatchesDropped += int(c.dropped.Load())
	s.BatchesDeadLettered += int(c.deadLettered.Load())
}
