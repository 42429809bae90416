package balance

import (
	"errors"
	"fmt"
)

// NegativeAmountError is returned when a payment with a negative amount is recorded.
type NegativeAmountError struct {
	error
}

func NewNegativeAmountErrorf(msg string, args ...interface{}) error {
	return NegativeAmountError{
		error: fmt.Errorf(msg, args...),
	}
}

func (e NegativeAmountError) Unwrap() error {
	return e.error
}

// IsNegativeAmountError returns whether the given error is a NegativeAmountError error
func IsNegativeAmountError(err error) bool {
	return errors.As(err, &NegativeAmountError{})
}

// UnknownParticipantError is returned when a payment references a payer or payee
// that is not tracked by the balance sheet.
type UnknownParticipantError struct {
	error
}

func NewUnknownParticipantErrorf(msg string, args ...interface{}) error {
	return UnknownParticipantError{
		error: fmt.Errorf(msg, args...),
	}
}

func (e UnknownParticipantError) Unwrap() error {
	return e.error
}

// IsUnknownParticipantError returns whether the given error is an UnknownParticipantError error
func IsUnknownParticipantError(err error) bool {
	return errors.As(err, &UnknownParticipantError{})
}
