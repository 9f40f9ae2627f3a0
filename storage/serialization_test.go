package storage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschenken/usdaCoding/core"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.Error(t, err)
}

func TestMarshalUnmarshalCheckpoint(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name       string
		checkpoint *core.Checkpoint
	}{
		{"first chunk", &core.Checkpoint{Name: "usda", Chunk: 0, UpdatedAt: now}},
		{"later chunk", &core.Checkpoint{Name: "usda-export", Chunk: 1234, UpdatedAt: now}},
		{"no checkpoint sentinel", &core.Checkpoint{Name: "x", Chunk: -1, UpdatedAt: now}},
		{"empty name", &core.Checkpoint{Chunk: 7, UpdatedAt: now}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalCheckpoint(tt.checkpoint)
			decoded, err := UnmarshalCheckpoint(data)
			require.NoError(t, err)

			assert.Equal(t, tt.checkpoint.Name, decoded.Name)
			assert.Equal(t, tt.checkpoint.Chunk, decoded.Chunk)
			assert.True(t, tt.checkpoint.UpdatedAt.Equal(decoded.UpdatedAt))
		})
	}
}

func TestUnmarshalCheckpoint_Invalid(t *testing.T) {
	data := MarshalCheckpoint(&core.Checkpoint{Name: "usda", Chunk: 99, UpdatedAt: time.Now()})

	_, err := UnmarshalCheckpoint(data[:3])
	assert.Error(t, err)

	_, err = UnmarshalCheckpoint(nil)
	assert.Error(t, err)
}

func TestMarshalUnmarshalPoint(t *testing.T) {
	point := &core.Point{
		ID:     167512,
		Vector: []float32{0.25, -0.5, 1},
		Payload: map[string]any{
			"description": "Apple, raw",
			"kcal":        json.Number("52"),
			"source":      "usda",
		},
	}

	data, err := MarshalPoint(point)
	require.NoError(t, err)

	decoded, err := UnmarshalPoint(data)
	require.NoError(t, err)
	assert.Equal(t, point, decoded)
}

func TestUnmarshalPoint_Invalid(t *testing.T) {
	_, err := UnmarshalPoint([]byte("{not json"))
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalDeadLetter(t *testing.T) {
	letter := &core.DeadLetter{
		ID:        3,
		Chunk:     1,
		Batch:     5,
		Reason:    "unexpected status 500",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		Points: []core.Point{
			{ID: 1, Vector: []float32{1, 0}, Payload: map[string]any{"a": "b"}},
		},
	}

	data, err := MarshalDeadLetter(letter)
	require.NoError(t, err)

	decoded, err := UnmarshalDeadLetter(data)
	require.NoError(t, err)
	assert.Equal(t, letter.ID, decoded.ID)
	assert.Equal(t, letter.Chunk, decoded.Chunk)
	assert.Equal(t, letter.Batch, decoded.Batch)
	assert.Equal(t, letter.Reason, decoded.Reason)
	assert.True(t, letter.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, letter.Points, decoded.Points)
}
