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


package core

import "errors"

// Domain errors shared by the pipeline components.
var (
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrMalformedRow indicates a source row could not be parsed into a Record.
	ErrMalformedRow = errors.New("malformed row")

	// ErrEmbeddingCountMismatch indicates the embedding service returned a
	// different number of vectors than inputs. It is never retried.
	ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")

	// ErrEmptyVector indicates the embedding service returned the right
	// number of vectors but one of them has no values. It is never retried.
	ErrEmptyVector = errors.New("empty embedding vector")

	// ErrRecordTooLarge indicates a single record cannot fit in any size-bounded batch.
	ErrRecordTooLarge = errors.New("record exceeds batch size ceiling")

	// ErrMissingEmbedding indicates a record reached delivery without a vector.
	ErrMissingEmbedding = errors.New("record has no embedding")

	// ErrDuplicateID indicates the same ID appeared twice in one chunk.
	ErrDuplicateID = errors.New("duplicate record id")
)
