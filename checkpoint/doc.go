// Package checkpoint persists the index of the last fully processed chunk.
//
// A Store holds a single integer per pipeline. None means no chunk has
// completed yet. Values are only ever written after a chunk is finished, so a
// restart resumes at Load()+1 and redoes at most one chunk.
//
// File keeps the value in a small text file and replaces it atomically.
// Repository adapts any storage.CheckpointRepository, such as the badger or
// bbolt implementations.
package checkpoint
