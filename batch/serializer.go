package batch

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/klauspost/compress/zstd"

	"github.com/mschenken/usdaCoding/core"
)

// Serializer renders a run of records into the bytes that are size checked.
type Serializer interface {
	Serialize(records []*core.Record) ([]byte, error)

	// Extension is the file extension for serialized output, including the dot.
	Extension() string
}

// CSVHeader is the column layout written by CSVSerializer.
var CSVHeader = []string{"id", "content", "metadata", "embedding"}

// CSVSerializer writes records as CSV with a header row. Content and metadata
// are JSON objects; the embedding is a JSON array of floats.
type CSVSerializer struct{}

// Serialize implements Serializer.
func (CSVSerializer) Serialize(records []*core.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return nil, err
	}

	row := make([]string, len(CSVHeader))
	for _, r := range records {
		content, err := r.Content.Text()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", r.ID, err)
		}

		metadata := []byte("{}")
		if len(r.Metadata) > 0 {
			if metadata, err = json.Marshal(r.Metadata); err != nil {
				return nil, fmt.Errorf("record %d: encode metadata: %w", r.ID, err)
			}
		}

		embedding := []byte("[]")
		if len(r.Embedding) > 0 {
			if embedding, err = json.Marshal(r.Embedding); err != nil {
				return nil, fmt.Errorf("record %d: encode embedding: %w", r.ID, err)
			}
		}

		row[0] = strconv.FormatUint(uint64(r.ID), 10)
		row[1] = content
		row[2] = string(metadata)
		row[3] = string(embedding)
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Extension implements Serializer.
func (CSVSerializer) Extension() string {
	return ".csv"
}

// ZstdSerializer compresses the output of another serializer, so the ceiling
// applies to the compressed size.
type ZstdSerializer struct {
	inner   Serializer
	encoder *zstd.Encoder
}

// NewZstdSerializer wraps inner with zstd compression at the given level.
func NewZstdSerializer(inner Serializer, level zstd.EncoderLevel) (*ZstdSerializer, error) {
	if inner == nil {
		return nil, ErrSerializerRequired
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &ZstdSerializer{inner: inner, encoder: enc}, nil
}

// Serialize implements Serializer.
func (z *ZstdSerializer) Serialize(records []*core.Record) ([]byte, error) {
	raw, err := z.inner.Serialize(records)
	if err != nil {
		return nil, err
	}
	return z.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// Extension implements Serializer.
func (z *ZstdSerializer) Extension() string {
	return z.inner.Extension() + ".zst"
}

// Close releases the encoder.
func (z *ZstdSerializer) Close() error {
	return z.encoder.Close()
}
