// Package batch splits an ordered run of records into contiguous batches whose
// serialized form stays strictly below a byte ceiling.
//
// Batcher starts each batch at a configured candidate size and halves it at
// the same offset until the serialized candidate fits. A single record that
// cannot fit on its own is a configuration error (core.ErrRecordTooLarge).
//
// The measured bytes are kept on each Batch so callers can write them out
// without serializing twice.
package batch
