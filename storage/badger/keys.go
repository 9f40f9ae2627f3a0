package badger

import (
	"encoding/binary"

	"github.com/mschenken/usdaCoding/core"
)

// Key prefixes for different data types
const (
	pointPrefix      = "pntrec:"
	deadLetterPrefix = "deadlt:"
	deadLetterIDSeq  = "deadltseq"
	checkpointPrefix = "chkpt:"
)

// makePointKey generates a key for a point by ID.
// Format: prefix + big-endian id, so iteration follows id order.
func makePointKey(id core.ID) []byte {
	return makeIDKey(pointPrefix, id)
}

// makeDeadLetterKey generates a key for a dead letter by ID.
func makeDeadLetterKey(id core.ID) []byte {
	return makeIDKey(deadLetterPrefix, id)
}

func makeIDKey(prefix string, id core.ID) []byte {
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeCheckpointKey generates a key for a named pipeline checkpoint.
func makeCheckpointKey(name string) []byte {
	return []byte(checkpointPrefix + name)
}
