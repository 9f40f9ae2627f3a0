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


// Package storage defines the persistence interfaces used by the load pipeline.
//
// Three repositories cover the pipeline's durable state:
//
//   - CheckpointRepository: last completed chunk per named pipeline
//   - PointRepository: an embedded vector index keyed by record id
//   - DeadLetterRepository: batches the index rejected, kept for replay
//
// The badger subpackage implements all three on a single BadgerDB instance.
// The bolt subpackage implements CheckpointRepository on a bbolt file for
// deployments that only need resumable progress.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	checkpoints := badger.NewCheckpointRepository(backend)
//	points := badger.NewPointRepository(backend)
//
// Tests use an in-memory backend:
//
//	backend, err := badger.OpenBackend("", true)
//
// # Thread Safety
//
// All repository implementations must be safe for concurrent use.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage
