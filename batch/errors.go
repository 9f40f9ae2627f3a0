package batch

import "errors"

var (
	// ErrInvalidCeiling is returned when the byte ceiling is not positive.
	ErrInvalidCeiling = errors.New("ceiling must be greater than 0")

	// ErrInvalidInitialSize is returned when the initial candidate size is not positive.
	ErrInvalidInitialSize = errors.New("initial batch size must be greater than 0")

	// ErrSerializerRequired is returned when a nil serializer is configured.
	ErrSerializerRequired = errors.New("serializer is required")
)
