// Package export embeds a chunked source and writes the annotated records as
// size-bounded files.
//
// Every chunk is embedded, split by a batch.Batcher so each file stays below
// the configured ceiling, and written through a Writer. Files are named
//
//	<prefix>_chunk_<NNNNN>_batch_<n><ext>
//
// so a redone chunk overwrites its own files. A checkpoint is saved after
// each chunk, which lets an interrupted export resume where it stopped.
//
// DirWriter writes to a local directory; MinioWriter writes to an
// S3-compatible bucket.
package export
