package market

import (
	"sync"

	"github.com/lsp-research/lspmarket/model/lsp"
	"github.com/lsp-research/lspmarket/state/stake"
)

// BidValidator checks a bid's shape and value. It returns a plain error describing the
// problem; the book wraps it into an InvalidBidError.
type BidValidator[B lsp.Bid] func(bid B) error

// Book is the live bid mapping of a market. Concrete mechanisms embed it to get
// PlaceBid, Bid, Bids and Distribution. It is safe for concurrent use.
type Book[B lsp.Bid] struct {
	mu       sync.RWMutex
	dist     *stake.Distribution
	bids     lsp.BidSnapshot[B]
	validate BidValidator[B]
}

// NewBook creates an empty bid book for the members of dist. A nil validator accepts every bid.
func NewBook[B lsp.Bid](dist *stake.Distribution, validate BidValidator[B]) *Book[B] {
	return &Book[B]{
		dist:     dist,
		bids:     make(lsp.BidSnapshot[B]),
		validate: validate,
	}
}

func (b *Book[B]) Distribution() *stake.Distribution {
	return b.dist
}

// PlaceBid replaces the participant's current bid.
// Expected errors during normal operations:
//   - UnauthorizedParticipantError if the participant is not a member of the distribution
//   - InvalidBidError if the validator rejects the bid
func (b *Book[B]) PlaceBid(participant lsp.Identifier, bid B) error {
	if !b.dist.Contains(participant) {
		return NewUnauthorizedParticipantErrorf("participant %s is not a member of the market", participant)
	}
	if b.validate != nil {
		err := b.validate(bid)
		if err != nil {
			return NewInvalidBidErrorf("bid %s of participant %s rejected: %w", bid, participant, err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.bids[participant] = bid
	return nil
}

func (b *Book[B]) Bid(participant lsp.Identifier) (B, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bid, ok := b.bids[participant]
	return bid, ok
}

func (b *Book[B]) Bids() lsp.BidSnapshot[B] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bids.Clone()
}

// Authorize returns an UnauthorizedParticipantError if id is not a member of the distribution.
func (b *Book[B]) Authorize(id lsp.Identifier) error {
	if !b.dist.Contains(id) {
		return NewUnauthorizedParticipantErrorf("participant %s is not a member of the market", id)
	}
	return nil
}
