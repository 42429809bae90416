// Package espa implements the equal second price auction for the last-slot proposer.
//
// Every participant commits to a maximum it is willing to pay individually. For both
// sides (reveal and miss) the market determines the maximum the side is willing to pay
// collectively, under the rule that each member either pays nothing or the same amount
// as every other payer. The side bidding more wins and pays what the losing side would
// collectively have paid, split equally over as many winners as possible.
package espa

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/onflow/flow-go/crypto/random"

	"github.com/lsp-research/lspmarket/market"
	"github.com/lsp-research/lspmarket/model/lsp"
	"github.com/lsp-research/lspmarket/state/stake"
)

// Name is the name the mechanism is registered under.
const Name = "espa"

const (
	ActionReveal lsp.Action = "reveal"
	ActionMiss   lsp.Action = "miss"
)

// Market is the equal second price auction.
type Market struct {
	*market.Book[Bid]
	log       zerolog.Logger
	optimizer *market.MonteCarlo[Bid]
	cfg       Config
}

var _ market.Market[Bid] = (*Market)(nil)

// Config holds the economic parameters of the auction.
type Config struct {
	// SlotValue is the value of proposing a single slot.
	SlotValue float64
	// ReputationCost is the cost of missing a slot for a participant with reputation
	// factor 1.
	ReputationCost float64
	// PayStep and ReputationStep are the perturbations applied to a bid when searching
	// for a better one.
	PayStep        decimal.Decimal
	ReputationStep decimal.Decimal
	// RequireProposerBid makes resolution fail when the proposer has no bid, instead
	// of letting it reveal.
	RequireProposerBid bool
}

// DefaultConfig returns the default auction parameters.
func DefaultConfig() Config {
	return Config{
		SlotValue:      market.DefaultProposerSlotValue,
		ReputationCost: market.DefaultProposerSlotValue,
		PayStep:        decimal.NewFromInt(10),
		ReputationStep: decimal.NewFromInt(10),
	}
}

// New creates the auction for the given distribution.
func New(log zerolog.Logger, dist *stake.Distribution, cfg Config, mcOpts ...market.MonteCarloOption) *Market {
	m := &Market{
		Book: market.NewBook[Bid](dist, validate),
		log:  log.With().Str("mechanism", Name).Logger(),
		cfg:  cfg,
	}
	m.optimizer = market.NewMonteCarlo[Bid](m.log, dist, m.Resolve, m.Utility, m, mcOpts...)
	return m
}

// Factory returns a market factory for the auction.
func Factory(log zerolog.Logger, cfg Config, mcOpts ...market.MonteCarloOption) market.Factory[Bid] {
	return func(dist *stake.Distribution) (market.Market[Bid], error) {
		return New(log, dist, cfg, mcOpts...), nil
	}
}

// Resolve runs the auction for the given proposer.
// Expected errors during normal operations:
//   - UnauthorizedParticipantError if the proposer is not a member of the distribution
//   - UnresolvedMarketError if the proposer has no bid and RequireProposerBid is set
func (m *Market) Resolve(proposer lsp.Identifier, bids lsp.BidSnapshot[Bid], pools lsp.CandidatePools) (*lsp.Resolution, error) {
	err := m.Authorize(proposer)
	if err != nil {
		return nil, err
	}

	proposerBid, ok := bids[proposer]
	if !ok {
		if m.cfg.RequireProposerBid {
			return nil, market.NewUnresolvedMarketErrorf("proposer %s has no bid", proposer)
		}
		return reveal(), nil
	}
	if !proposerBid.Bribable {
		return reveal(), nil
	}

	// participants appearing on both sides gain the same slots either way
	revealPool, missPool := lsp.CancelCommon(pools.Reveal, pools.Miss)

	revealSide := sideEntries(revealPool, bids)
	// the proposer's own slot counts as a bid for revealing
	revealSide = append(revealSide, entry{id: proposer, amount: proposerBid.ValuationOfOwnSlots()})
	missSide := sideEntries(missPool, bids)

	revealBid := CollectiveBid(amounts(revealSide)).Add(proposerBid.MinimumGain())
	missBid := CollectiveBid(amounts(missSide))

	if revealBid.GreaterThan(missBid) {
		price := decimal.Max(decimal.Zero, missBid.Sub(proposerBid.MinimumGain()))
		return &lsp.Resolution{
			Action:   ActionReveal,
			Payments: splitPrice(revealSide, price, proposer),
			Next:     lsp.PoolReveal,
		}, nil
	}
	return &lsp.Resolution{
		Action:   ActionMiss,
		Payments: splitPrice(missSide, revealBid, proposer),
		Next:     lsp.PoolMiss,
	}, nil
}

func reveal() *lsp.Resolution {
	return &lsp.Resolution{Action: ActionReveal, Next: lsp.PoolReveal}
}

// sideEntries returns one entry per slot of the pool; members without a bid are left out.
func sideEntries(pool lsp.IdentifierList, bids lsp.BidSnapshot[Bid]) []entry {
	entries := make([]entry, 0, len(pool))
	for _, id := range pool {
		bid, ok := bids[id]
		if !ok {
			continue
		}
		entries = append(entries, entry{id: id, amount: bid.WillingToPay})
	}
	return entries
}

func (m *Market) OptimizeBid(participant lsp.Identifier, fixed lsp.BidSnapshot[Bid], budget int, rng random.Rand) (*lsp.Estimate[Bid], error) {
	return m.optimizer.Optimize(participant, fixed, budget, rng)
}

// Utility is what the participant gains from a resolved scenario: the slots it proposes
// in the selected pool, its own last slot if it proposed and revealed, minus the
// reputation cost if it proposed and missed, plus the net bribes.
func (m *Market) Utility(p lsp.Participant, _ Bid, sc market.Scenario, res *lsp.Resolution) float64 {
	u := market.SlotGain(m.cfg.SlotValue, p.ID, sc.Pools, res)
	if sc.Proposer == p.ID {
		if res.Next == lsp.PoolReveal {
			u += m.cfg.SlotValue
		} else {
			u -= m.cfg.ReputationCost * p.ReputationFactor
		}
	}
	return u + market.NetTransfer(p.ID, res.Payments)
}

// Candidates returns the bids next to the current one: willingness to pay and reputation
// value one step up or down, and either bribability.
func (m *Market) Candidates(_ lsp.Participant, current Bid, placed bool) []Bid {
	if !placed {
		current = Bid{WillingToPay: decimal.Zero, ReputationValue: decimal.Zero}
	}

	pays := steps(current.WillingToPay, m.cfg.PayStep)
	reps := steps(current.ReputationValue, m.cfg.ReputationStep)

	candidates := make([]Bid, 0, len(pays)*len(reps)*2)
	for _, pay := range pays {
		for _, rep := range reps {
			for _, bribable := range []bool{false, true} {
				candidates = append(candidates, Bid{WillingToPay: pay, Bribable: bribable, ReputationValue: rep})
			}
		}
	}
	return candidates
}

// steps returns v, v+step and v-step, the latter only if it is not negative.
func steps(v, step decimal.Decimal) []decimal.Decimal {
	if !step.IsPositive() {
		return []decimal.Decimal{v}
	}
	values := []decimal.Decimal{v, v.Add(step)}
	if down := v.Sub(step); !down.IsNegative() {
		values = append(values, down)
	}
	return values
}
