package market

import (
	"errors"
	"fmt"
)

// UnauthorizedParticipantError is returned when a participant that is not a member of
// the market's stake distribution tries to take part in the market.
type UnauthorizedParticipantError struct {
	error
}

func NewUnauthorizedParticipantErrorf(msg string, args ...interface{}) error {
	return UnauthorizedParticipantError{
		error: fmt.Errorf(msg, args...),
	}
}

func (e UnauthorizedParticipantError) Unwrap() error {
	return e.error
}

// IsUnauthorizedParticipantError returns whether the given error is an UnauthorizedParticipantError error
func IsUnauthorizedParticipantError(err error) bool {
	return errors.As(err, &UnauthorizedParticipantError{})
}

// InvalidBidError is returned when a mechanism rejects the shape or value of a bid.
type InvalidBidError struct {
	error
}

func NewInvalidBidErrorf(msg string, args ...interface{}) error {
	return InvalidBidError{
		error: fmt.Errorf(msg, args...),
	}
}

func (e InvalidBidError) Unwrap() error {
	return e.error
}

// IsInvalidBidError returns whether the given error is an InvalidBidError error
func IsInvalidBidError(err error) bool {
	return errors.As(err, &InvalidBidError{})
}

// UnresolvedMarketError is returned when the market cannot be resolved because
// required bids are absent and the mechanism has no default action.
type UnresolvedMarketError struct {
	error
}

func NewUnresolvedMarketErrorf(msg string, args ...interface{}) error {
	return UnresolvedMarketError{
		error: fmt.Errorf(msg, args...),
	}
}

func (e UnresolvedMarketError) Unwrap() error {
	return e.error
}

// IsUnresolvedMarketError returns whether the given error is an UnresolvedMarketError error
func IsUnresolvedMarketError(err error) bool {
	return errors.As(err, &UnresolvedMarketError{})
}

// OptimizationBudgetError is returned when a bid optimization is requested with a
// non-positive sampling budget.
type OptimizationBudgetError struct {
	error
}

func NewOptimizationBudgetErrorf(msg string, args ...interface{}) error {
	return OptimizationBudgetError{
		error: fmt.Errorf(msg, args...),
	}
}

func (e OptimizationBudgetError) Unwrap() error {
	return e.error
}

// IsOptimizationBudgetError returns whether the given error is an OptimizationBudgetError error
func IsOptimizationBudgetError(err error) bool {
	return errors.As(err, &OptimizationBudgetError{})
}
