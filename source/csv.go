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


package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/mschenken/usdaCoding/core"
)

const (
	// DefaultChunkSize is the number of records per chunk.
	DefaultChunkSize = 10000

	columnID       = "id"
	columnContent  = "content"
	columnMetadata = "metadata"
)

// CSVSource streams records from a prepared CSV file in fixed-size chunks.
// It is not safe for concurrent use.
type CSVSource struct {
	reader     *csv.Reader
	closer     io.Closer
	chunkSize  int
	idCol      int
	contentCol int
	metaCol    int // -1 when the file has no metadata column
	nextIndex  int
	err        error // sticky terminal error, io.EOF once exhausted
	logger     *slog.Logger
}

// Option configures a CSVSource.
type Option func(*CSVSource)

// WithChunkSize sets the number of records per chunk.
func WithChunkSize(size int) Option {
	return func(s *CSVSource) {
		s.chunkSize = size
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *CSVSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens a prepared CSV file. The caller must Close the source.
func Open(path string, opts ...Option) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	s, err := NewCSVSource(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// NewCSVSource reads the header from r and prepares to stream chunks.
func NewCSVSource(r io.Reader, opts ...Option) (*CSVSource, error) {
	s := &CSVSource{
		chunkSize: DefaultChunkSize,
		metaCol:   -1,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	s.logger = s.logger.With("component", "csv-source")

	s.reader = csv.NewReader(r)
	header, err := s.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	idCol, contentCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))) {
		case columnID:
			idCol = i
		case columnContent:
			contentCol = i
		case columnMetadata:
			s.metaCol = i
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, columnID)
	}
	if contentCol < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, columnContent)
	}
	s.idCol = idCol
	s.contentCol = contentCol
	return s, nil
}

// Next returns the next chunk, or io.EOF when the source is exhausted.
// A malformed row aborts the whole chunk with a *RowError; no partial chunk
// is ever returned and the source stays failed.
func (s *CSVSource) Next(ctx context.Context) (*core.Chunk, error) {
	if s.err != nil {
		return nil, s.err
	}

	chunk := &core.Chunk{
		Index:   s.nextIndex,
		Records: make([]*core.Record, 0, s.chunkSize),
	}
	for len(chunk.Records) < s.chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			s.err = io.EOF
			break
		}
		if err != nil {
			s.err = s.rowError("", err)
			return nil, s.err
		}

		record, err := s.parseRow(row)
		if err != nil {
			s.err = err
			return nil, err
		}
		chunk.Records = append(chunk.Records, record)
	}

	if len(chunk.Records) == 0 {
		return nil, io.EOF
	}
	s.nextIndex++
	return chunk, nil
}

// Skip advances past n chunks without decoding their content.
// Rows are still read so chunk boundaries stay aligned with Next.
// It returns the number of chunks skipped, which is less than n only when
// the source ran out.
func (s *CSVSource) Skip(ctx context.Context, n int) (int, error) {
	skipped := 0
	for skipped < n {
		if s.err != nil {
			if errors.Is(s.err, io.EOF) {
				return skipped, nil
			}
			return skipped, s.err
		}

		rows := 0
		for rows < s.chunkSize {
			if err := ctx.Err(); err != nil {
				return skipped, err
			}
			_, err := s.reader.Read()
			if errors.Is(err, io.EOF) {
				s.err = io.EOF
				break
			}
			if err != nil {
				s.err = s.rowError("", err)
				return skipped, s.err
			}
			rows++
		}
		if rows == 0 {
			return skipped, nil
		}
		s.nextIndex++
		skipped++
	}
	s.logger.Debug("skipped chunks", "count", skipped, "next", s.nextIndex)
	return skipped, nil
}

// NextIndex returns the index the next chunk will carry.
func (s *CSVSource) NextIndex() int {
	return s.nextIndex
}

// Close closes the underlying file when the source was created with Open.
func (s *CSVSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func (s *CSVSource) parseRow(row []string) (*core.Record, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(row[s.idCol]), 10, 64)
	if err != nil {
		return nil, s.rowError(columnID, err)
	}

	content, err := decodeObject(row[s.contentCol])
	if err != nil {
		return nil, s.rowError(columnContent, err)
	}
	if content == nil {
		return nil, s.rowError(columnContent, errors.New("content is empty"))
	}

	metadata := core.Metadata{}
	if s.metaCol >= 0 {
		meta, err := decodeObject(row[s.metaCol])
		if err != nil {
			return nil, s.rowError(columnMetadata, err)
		}
		if meta != nil {
			metadata = core.Metadata(meta)
		}
	}

	return &core.Record{
		ID:       core.ID(id),
		Content:  core.Content(content),
		Metadata: metadata,
	}, nil
}

func (s *CSVSource) rowError(column string, err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return &RowError{Line: parseErr.StartLine, Column: column, Err: err}
	}
	line, _ := s.reader.FieldPos(0)
	return &RowError{Line: line, Column: column, Err: err}
}

// decodeObject parses a JSON object, preserving number literals.
// Blank input yields a nil map.
func decodeObject(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("not a JSON object")
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON object")
	}
	return obj, nil
}
