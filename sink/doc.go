// Package sink delivers embedded points to a vector index.
//
// A Sink performs idempotent upserts keyed by point id. Qdrant talks to a
// Qdrant collection over REST; Local writes to the embedded badger index.
//
// Deliverer wraps a Sink with a failure strategy. The default strategy logs a
// failed batch and moves on, so a run always advances. Abort turns delivery
// failures into errors, and dead-letter keeps the failed batch in a
// DeadLetterQueue for later replay.
package sink
