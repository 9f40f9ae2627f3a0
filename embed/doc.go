// Package embed turns batches of record content into embedding vectors.
//
// Client wraps an ai.Embedder with a retry policy, optional client-side rate
// limiting and an order/length check on every response. A response whose
// vector count differs from the request is a protocol error and is never
// retried: silently accepting it would assign vectors to the wrong ids.
package embed
