package simulation

import (
	"errors"
	"fmt"

	"github.com/lsp-research/lspmarket/market"
	"github.com/lsp-research/lspmarket/market/balance"
	"github.com/lsp-research/lspmarket/model/lsp"
	"github.com/lsp-research/lspmarket/state/stake"
)

// ErrTerminated is returned by Runner.Next once the stop policy ended the run.
var ErrTerminated = errors.New("simulation run terminated")

// Call names the operation that failed within an epoch.
type Call string

const (
	CallSample         Call = "sample_disjoint_pair"
	CallSelectAdjust   Call = "select_adjusting"
	CallResolve        Call = "resolve"
	CallRecordPayment  Call = "record_payment"
	CallNextProposer   Call = "next_proposer"
	CallOptimizeBid    Call = "optimize_bid"
	CallPlaceBid       Call = "place_bid"
	CallDeriveRandom   Call = "derive_random"
	CallInitialSample  Call = "sample_initial_proposer"
	CallMarketCreation Call = "create_market"
)

// ErrorKind classifies the error that made a run fail.
type ErrorKind string

const (
	KindInvalidSample           ErrorKind = "invalid_sample"
	KindNegativeAmount          ErrorKind = "negative_amount"
	KindUnknownParticipant      ErrorKind = "unknown_participant"
	KindUnauthorizedParticipant ErrorKind = "unauthorized_participant"
	KindInvalidBid              ErrorKind = "invalid_bid"
	KindUnresolvedMarket        ErrorKind = "unresolved_market"
	KindOptimizationBudget      ErrorKind = "optimization_budget"
	KindUnexpected              ErrorKind = "unexpected"
)

// ClassifyError returns the kind of the given error.
func ClassifyError(err error) ErrorKind {
	switch {
	case stake.IsInvalidSampleError(err):
		return KindInvalidSample
	case balance.IsNegativeAmountError(err):
		return KindNegativeAmount
	case balance.IsUnknownParticipantError(err):
		return KindUnknownParticipant
	case market.IsUnauthorizedParticipantError(err):
		return KindUnauthorizedParticipant
	case market.IsInvalidBidError(err):
		return KindInvalidBid
	case market.IsUnresolvedMarketError(err):
		return KindUnresolvedMarket
	case market.IsOptimizationBudgetError(err):
		return KindOptimizationBudget
	default:
		return KindUnexpected
	}
}

// EpochError is the terminal error of a failed run. It carries the epoch the failure
// happened in, the failed call and the kind of the underlying error, so callers can
// decide whether to start a new run with a different seed.
type EpochError struct {
	Epoch       uint64
	Call        Call
	Kind        ErrorKind
	Participant lsp.Identifier // set if the call concerned a single participant
	Err         error
}

func (e *EpochError) Error() string {
	if e.Participant != "" {
		return fmt.Sprintf("epoch %d: %s for %s failed (%s): %v", e.Epoch, e.Call, e.Participant, e.Kind, e.Err)
	}
	return fmt.Sprintf("epoch %d: %s failed (%s): %v", e.Epoch, e.Call, e.Kind, e.Err)
}

func (e *EpochError) Unwrap() error {
	return e.Err
}

// IsEpochError returns whether the given error is an EpochError.
func IsEpochError(err error) bool {
	var epochErr *EpochError
	return errors.As(err, &epochErr)
}
