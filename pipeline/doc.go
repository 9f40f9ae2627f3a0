// Package pipeline drives a resumable load: read chunks, embed them in
// batches, deliver the points and checkpoint each finished chunk.
//
// # Lifecycle
//
// Run moves through these states:
//
//	INIT -> LOADING_CHECKPOINT -> SKIPPING -> PROCESSING <-> CHECKPOINTING -> DONE
//
// Any fatal error moves the pipeline to FAILED and is returned from Run.
//
// # Resumability
//
// The checkpoint names the last chunk whose batches have all settled. On
// start the pipeline skips every chunk up to and including it and resumes
// with the next one. A chunk interrupted part way is redone in full, so the
// index receives at-least-once delivery and relies on idempotent upserts.
//
// # Concurrency
//
// Chunks are processed strictly in order. Batches within a chunk run on an
// ants worker pool bounded by Config.Concurrency; the default of 1 keeps
// processing sequential. A fatal batch error cancels the batches still
// queued in that chunk.
package pipeline
