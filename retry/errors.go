package retry

import "errors"

var (
	// ErrExhausted is returned when a policy stops retrying.
	// The last operation error is joined to it.
	ErrExhausted = errors.New("retry attempts exhausted")

	// ErrInvalidPolicy is returned when a policy is constructed with invalid parameters.
	ErrInvalidPolicy = errors.New("invalid retry policy")
)

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do returns it immediately without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
