// Package source reads prepared record files as an ordered, chunked,
// restartable stream.
//
// A prepared file is a CSV with an integer id column, a JSON object content
// column and an optional JSON object metadata column. CSVSource streams it
// chunk by chunk without loading the file into memory; Skip advances over
// already processed chunks without decoding their JSON.
//
// Prepare converts a raw merged USDA export into that layout.
package source
