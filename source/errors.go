package source

import (
	"errors"
	"fmt"

	"github.com/mschenken/usdaCoding/core"
)

var (
	// ErrMissingColumn is returned when a required header column is absent.
	ErrMissingColumn = errors.New("missing required column")

	// ErrInvalidChunkSize is returned when a non-positive chunk size is configured.
	ErrInvalidChunkSize = errors.New("chunk size must be greater than 0")
)

// RowError reports a row that could not be parsed into a record.
// It aborts the chunk containing the row.
type RowError struct {
	Line   int    // 1-based line in the source file
	Column string // Column that failed, empty for CSV syntax errors
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s at line %d: %v", core.ErrMalformedRow, e.Line, e.Err)
	}
	return fmt.Sprintf("%s at line %d, column %q: %v", core.ErrMalformedRow, e.Line, e.Column, e.Err)
}

// Unwrap exposes both the row sentinel and the underlying cause.
func (e *RowError) Unwrap() []error {
	return []error{core.ErrMalformedRow, e.Err}
}
