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


package badger

// Repositories groups every badger-backed repository sharing one backend.
type Repositories struct {
	Backend     *Backend
	Checkpoints *CheckpointRepository
	Points      *PointRepository
	DeadLetters *DeadLetterRepository
}

// Close releases the repositories and closes the backend.
func (r *Repositories) Close() error {
	if err := r.DeadLetters.Close(); err != nil {
		r.Backend.Close()
		return err
	}
	return r.Backend.Close()
}

// OpenRepositories opens a backend at path and builds all repositories on it.
// Caller must Close the result when done.
func OpenRepositories(path string, inMemory bool, opts ...BackendOption) (*Repositories, error) {
	backend, err := OpenBackend(path, inMemory, opts...)
	if err != nil {
		return nil, err
	}

	deadLetters, err := NewDeadLetterRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Repositories{
		Backend:     backend,
		Checkpoints: NewCheckpointRepository(backend),
		Points:      NewPointRepository(backend),
		DeadLetters: deadLetters,
	}, nil
}

// NewMemoryRepositories creates in-memory repositories for testing.
func NewMemoryRepositories() (*Repositories, error) {
	return OpenRepositories("", true)
}
