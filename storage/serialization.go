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


package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mus-format/mus-go/varint"

	"github.com/mschenken/usdaCoding/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := varint.Uint64.Unmarshal(data)
	return core.ID(id), err
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) []byte {
	buf := make([]byte, core.CheckpointMUS.Size(*checkpoint))
	core.CheckpointMUS.Marshal(*checkpoint, buf)
	return buf
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	checkpoint, _, err := core.CheckpointMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &checkpoint, nil
}

// MarshalPoint serializes a Point to bytes. Payloads are free-form, so points
// are stored as JSON.
func MarshalPoint(point *core.Point) ([]byte, error) {
	data, err := json.Marshal(point)
	if err != nil {
		return nil, fmt.Errorf("%w: point %d: %w", ErrSerializationFailed, point.ID, err)
	}
	return data, nil
}

// UnmarshalPoint deserializes a Point from bytes. Payload numbers keep their
// original literal form.
func UnmarshalPoint(data []byte) (*core.Point, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var point core.Point
	if err := dec.Decode(&point); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &point, nil
}

// MarshalDeadLetter serializes a DeadLetter to bytes.
func MarshalDeadLetter(letter *core.DeadLetter) ([]byte, error) {
	data, err := json.Marshal(letter)
	if err != nil {
		return nil, fmt.Errorf("%w: dead letter: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalDeadLetter deserializes a DeadLetter from bytes.
func UnmarshalDeadLetter(data []byte) (*core.DeadLetter, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var letter core.DeadLetter
	if err := dec.Decode(&letter); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &letter, nil
}
