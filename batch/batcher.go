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


package batch

import (
	"fmt"
	"log/slog"

	"github.com/mschenken/usdaCoding/core"
)

const (
	// DefaultCeiling is the exclusive upper bound on a serialized batch (100 MiB).
	DefaultCeiling = 100 * 1024 * 1024

	// DefaultInitialSize is the first candidate size tried for every batch.
	DefaultInitialSize = 5000
)

// Batch is a contiguous run of records together with its serialized form.
type Batch struct {
	Offset  int // Position of the first record in the input slice
	Records []*core.Record
	Data    []byte // Serialized records, len(Data) < ceiling
}

// Batcher splits records into size-bounded batches.
type Batcher struct {
	ceiling     int
	initialSize int
	serializer  Serializer
	logger      *slog.Logger
}

// Option configures a Batcher.
type Option func(*Batcher)

// WithInitialSize sets the candidate size each batch starts from.
func WithInitialSize(size int) Option {
	return func(b *Batcher) {
		b.initialSize = size
	}
}

// WithSerializer sets the serializer used to measure batches.
func WithSerializer(s Serializer) Option {
	return func(b *Batcher) {
		b.serializer = s
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Batcher) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBatcher creates a batcher whose batches serialize to fewer than ceiling bytes.
func NewBatcher(ceiling int, opts ...Option) (*Batcher, error) {
	b := &Batcher{
		ceiling:     ceiling,
		initialSize: DefaultInitialSize,
		serializer:  CSVSerializer{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.ceiling <= 0 {
		return nil, ErrInvalidCeiling
	}
	if b.initialSize <= 0 {
		return nil, ErrInvalidInitialSize
	}
	if b.serializer == nil {
		return nil, ErrSerializerRequired
	}
	b.logger = b.logger.With("component", "batcher")
	return b, nil
}

// Ceiling returns the exclusive byte bound.
func (b *Batcher) Ceiling() int {
	return b.ceiling
}

// Serializer returns the serializer batches are measured with.
func (b *Batcher) Serializer() Serializer {
	return b.serializer
}

// Each calls fn for every batch in order. Batches are produced lazily, so an
// oversized record late in the input is only detected after the preceding
// batches were handed to fn. An error from fn stops iteration and is returned.
func (b *Batcher) Each(records []*core.Record, fn func(Batch) error) error {
	offset := 0
	for offset < len(records) {
		size := min(b.initialSize, len(records)-offset)

		for {
			candidate := records[offset : offset+size]
			data, err := b.serializer.Serialize(candidate)
			if err != nil {
				return fmt.Errorf("serialize batch at offset %d: %w", offset, err)
			}

			if len(data) < b.ceiling {
				if err := fn(Batch{Offset: offset, Records: candidate, Data: data}); err != nil {
					return err
				}
				offset += size
				break
			}

			if size == 1 {
				return fmt.Errorf("%w: record %d serializes to %d bytes, ceiling is %d",
					core.ErrRecordTooLarge, candidate[0].ID, len(data), b.ceiling)
			}

			b.logger.Debug("batch over ceiling, halving",
				"offset", offset,
				"records", size,
				"bytes", len(data))
			size /= 2
		}
	}
	return nil
}

// Split returns every batch for records. On error no batches are returned.
func (b *Batcher) Split(records []*core.Record) ([]Batch, error) {
	var batches []Batch
	err := b.Each(records, func(batch Batch) error {
		batches = append(batches, batch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batches, nil
}
