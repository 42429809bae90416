package market

import (
	"github.com/onflow/flow-go/crypto/random"

	"github.com/lsp-research/lspmarket/model/lsp"
	"github.com/lsp-research/lspmarket/state/stake"
)

// Market is the contract every concrete bribery market mechanism satisfies. The
// simulation runner only ever talks to a mechanism through this interface.
//
// A market owns a reference to the stake distribution of the run and the live mapping
// from participant to current bid. Every bidder is a member of the distribution.
type Market[B lsp.Bid] interface {

	// Distribution returns the stake distribution the market was created for.
	Distribution() *stake.Distribution

	// PlaceBid replaces the participant's current bid. Only the bid mapping is
	// mutated; balances are not touched. A subsequent Bids or Bid call observes the
	// new bid.
	// Expected errors during normal operations:
	//   - UnauthorizedParticipantError if the participant is not a member of the distribution
	//   - InvalidBidError if the mechanism rejects the bid
	PlaceBid(participant lsp.Identifier, bid B) error

	// Bid returns the participant's current bid, if any.
	Bid(participant lsp.Identifier) (B, bool)

	// Bids returns a snapshot of the current bid mapping.
	Bids() lsp.BidSnapshot[B]

	// Resolve computes, for the given proposer, bid mapping and sampled candidate pools
	// of the next epoch, the proposer's action, the payments to apply and which pool
	// provides the next proposers. Resolve is a pure function of its inputs.
	// Expected errors during normal operations:
	//   - UnauthorizedParticipantError if the proposer is not a member of the distribution
	//   - UnresolvedMarketError if required bids are absent and no default action exists
	Resolve(proposer lsp.Identifier, bids lsp.BidSnapshot[B], pools lsp.CandidatePools) (*lsp.Resolution, error)

	// OptimizeBid estimates the participant's utility-maximizing bid while all bids in
	// `fixed` stay unchanged, using at most `budget` Monte-Carlo scenarios drawn from rng.
	// Ties between candidates are broken in favour of the lexicographically smaller
	// bid representation.
	// Expected errors during normal operations:
	//   - OptimizationBudgetError if budget <= 0
	//   - UnauthorizedParticipantError if the participant is not a member of the distribution
	OptimizeBid(participant lsp.Identifier, fixed lsp.BidSnapshot[B], budget int, rng random.Rand) (*lsp.Estimate[B], error)
}

// Factory creates a market for the given distribution. Runners construct the market
// lazily through a factory when the run starts.
type Factory[B lsp.Bid] func(dist *stake.Distribution) (Market[B], error)
