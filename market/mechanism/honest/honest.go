// Package honest implements the trivial mechanism: the proposer always acts honestly,
// nobody is ever paid and the reveal pool always provides the next proposers. It is the
// baseline against which bribery mechanisms are compared.
package honest

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/onflow/flow-go/crypto/random"

	"github.com/lsp-research/lspmarket/market"
	"github.com/lsp-research/lspmarket/model/lsp"
	"github.com/lsp-research/lspmarket/state/stake"
)

// Name is the name the mechanism is registered under.
const Name = "honest"

// ActionHonest is the only action of the honest mechanism.
const ActionHonest lsp.Action = "honest"

// Bid is an optional tip a participant is willing to give. The honest mechanism never
// collects it.
type Bid struct {
	Tip decimal.Decimal
}

func (b Bid) String() string {
	return "tip=" + b.Tip.String()
}

// ZeroBid is a bid without tip.
func ZeroBid() Bid {
	return Bid{Tip: decimal.Zero}
}

// ParseBid parses the canonical representation of a bid.
func ParseBid(s string) (Bid, error) {
	raw, ok := strings.CutPrefix(s, "tip=")
	if !ok {
		return Bid{}, fmt.Errorf("invalid honest bid %q", s)
	}
	tip, err := decimal.NewFromString(raw)
	if err != nil {
		return Bid{}, fmt.Errorf("invalid tip in bid %q: %w", s, err)
	}
	return Bid{Tip: tip}, nil
}

func validate(b Bid) error {
	if b.Tip.IsNegative() {
		return fmt.Errorf("tip %s is negative", b.Tip)
	}
	return nil
}

// Market is the honest mechanism.
type Market struct {
	*market.Book[Bid]
	optimizer *market.MonteCarlo[Bid]
	slotValue float64
	mcOpts    []market.MonteCarloOption
}

var _ market.Market[Bid] = (*Market)(nil)

// Option configures the honest market.
type Option func(*Market)

// WithSlotValue sets the value of proposing a single slot.
func WithSlotValue(v float64) Option {
	return func(m *Market) {
		m.slotValue = v
	}
}

// WithOptimizer configures the Monte-Carlo bid optimizer.
func WithOptimizer(opts ...market.MonteCarloOption) Option {
	return func(m *Market) {
		m.mcOpts = append(m.mcOpts, opts...)
	}
}

// New creates the honest mechanism for the given distribution.
func New(log zerolog.Logger, dist *stake.Distribution, opts ...Option) *Market {
	m := &Market{
		Book:      market.NewBook[Bid](dist, validate),
		slotValue: market.DefaultProposerSlotValue,
	}
	for _, apply := range opts {
		apply(m)
	}
	m.optimizer = market.NewMonteCarlo[Bid](
		log.With().Str("mechanism", Name).Logger(),
		dist,
		m.Resolve,
		m.utility,
		market.NeighborhoodFunc[Bid](keepCurrent),
		m.mcOpts...,
	)
	return m
}

// Factory returns a market factory for the honest mechanism.
func Factory(log zerolog.Logger, opts ...Option) market.Factory[Bid] {
	return func(dist *stake.Distribution) (market.Market[Bid], error) {
		return New(log, dist, opts...), nil
	}
}

// Resolve always reveals without payments.
func (m *Market) Resolve(proposer lsp.Identifier, _ lsp.BidSnapshot[Bid], _ lsp.CandidatePools) (*lsp.Resolution, error) {
	err := m.Authorize(proposer)
	if err != nil {
		return nil, err
	}
	return &lsp.Resolution{
		Action: ActionHonest,
		Next:   lsp.PoolReveal,
	}, nil
}

func (m *Market) OptimizeBid(participant lsp.Identifier, fixed lsp.BidSnapshot[Bid], budget int, rng random.Rand) (*lsp.Estimate[Bid], error) {
	return m.optimizer.Optimize(participant, fixed, budget, rng)
}

func (m *Market) utility(p lsp.Participant, _ Bid, sc market.Scenario, res *lsp.Resolution) float64 {
	return market.SlotGain(m.slotValue, p.ID, sc.Pools, res) + market.NetTransfer(p.ID, res.Payments)
}

// keepCurrent is the neighborhood of the honest mechanism: bidding differently never
// changes the outcome, so the only candidate is the current bid.
func keepCurrent(_ lsp.Participant, current Bid, placed bool) []Bid {
	if !placed {
		return []Bid{ZeroBid()}
	}
	return []Bid{current}
}
