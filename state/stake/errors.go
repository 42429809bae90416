package stake

import (
	"errors"
	"fmt"
)

// InvalidSampleError is returned when a sample cannot be drawn: the requested size is
// not positive, the distribution has no members, or no random source was provided.
type InvalidSampleError struct {
	error
}

func NewInvalidSampleErrorf(msg string, args ...interface{}) error {
	return InvalidSampleError{
		error: fmt.Errorf(msg, args...),
	}
}

func (e InvalidSampleError) Unwrap() error {
	return e.error
}

// IsInvalidSampleError returns whether the given error is an InvalidSampleError error
func IsInvalidSampleError(err error) bool {
	return errors.As(err, &InvalidSampleError{})
}
