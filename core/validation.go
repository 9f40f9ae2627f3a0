package core

import "fmt"

// ValidateRecord validates a Record according to domain rules.
//
// Validation rules:
//   - Content must not be nil
//
// NOT validated:
//   - Embedding (absent until the embedding client runs)
//   - ID (0 is a valid external ID)
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	if record.Content == nil {
		return fmt.Errorf("%w: id %d has no content", ErrInvalidRecord, record.ID)
	}
	return nil
}

// ValidateEmbedded checks a record is ready for delivery to a vector index.
func ValidateEmbedded(record *Record) error {
	if err := ValidateRecord(record); err != nil {
		return err
	}
	if len(record.Embedding) == 0 {
		return fmt.Errorf("%w: id %d", ErrMissingEmbedding, record.ID)
	}
	return nil
}

// ValidateChunk checks that a chunk holds valid records with unique IDs.
func ValidateChunk(chunk *Chunk) error {
	seen := make(map[ID]struct{}, len(chunk.Records))
	for _, record := range chunk.Records {
		if err := ValidateRecord(record); err != nil {
			return err
		}
		if _, ok := seen[record.ID]; ok {
			return fmt.Errorf("%w: %d in chunk %d", ErrDuplicateID, record.ID, chunk.Index)
		}
		seen[record.ID] = struct{}{}
	}
	return nil
}
