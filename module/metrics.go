package module

import (
	"time"

	"github.com/lsp-research/lspmarket/model/lsp"
)

// SimulationMetrics reports the progress of a simulation run.
type SimulationMetrics interface {
	// CurrentEpoch reports the index of the epoch the runner is about to process.
	CurrentEpoch(epoch uint64)

	// EpochResolved reports a resolved epoch: the proposer's action, the number of
	// payments and their total amount.
	EpochResolved(action lsp.Action, payments int, volume float64)

	// BidOptimized reports the duration of one bid optimization and the number of
	// candidate bids it evaluated.
	BidOptimized(duration time.Duration, candidates int)

	// BidsAdjusted reports how many participants optimized their bid in an epoch and
	// how many of them changed it.
	BidsAdjusted(adjusted int, changed int)

	// RunTerminated reports that the stop policy ended the run after the given number of epochs.
	RunTerminated(epochs uint64)

	// RunFailed reports that the run failed with an error of the given kind.
	RunFailed(kind string)
}
