package unittest

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/onflow/flow-go/crypto/random"

	"github.com/lsp-research/lspmarket/model/lsp"
	"github.com/lsp-research/lspmarket/state/stake"
	"github.com/lsp-research/lspmarket/utils/prg"
)

// DistributionFixture returns a distribution with participants "a", "b", "c", ... where
// the i-th participant holds stakes[i].
func DistributionFixture(t testing.TB, stakes ...uint64) *stake.Distribution {
	participants := make(lsp.ParticipantList, 0, len(stakes))
	for i, s := range stakes {
		participants = append(participants, lsp.Participant{
			ID:               lsp.Identifier(string(rune('a' + i))),
			Stake:            s,
			ReputationFactor: 1,
		})
	}
	dist, err := stake.NewDistribution(participants)
	require.NoError(t, err)
	return dist
}

// PRGFixture returns a deterministic PRG for the given seed.
func PRGFixture(t testing.TB, seed uint64) random.Rand {
	rng, err := prg.FromSeed(seed, []byte("test"))
	require.NoError(t, err)
	return rng
}

// DecimalFixture parses a decimal or fails the test.
func DecimalFixture(t testing.TB, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// EpochSummaryFixture returns the summary of an epoch in which "b" bribed "a" to miss
// its slot, taking the slots of "a" and "c" in the reveal pool.
func EpochSummaryFixture(epoch uint64) *lsp.EpochSummary {
	amount := decimal.RequireFromString("12.5")
	return &lsp.EpochSummary{
		Epoch:    epoch,
		Proposer: "a",
		Pools: lsp.CandidatePools{
			Reveal: lsp.IdentifierList{"a", "c"},
			Miss:   lsp.IdentifierList{"b", "b"},
		},
		Action:       "miss",
		Next:         lsp.PoolMiss,
		NextProposer: "b",
		Payments: []lsp.Payment{
			{Payer: "b", Payee: "a", Amount: amount},
		},
		Effects: map[lsp.Identifier]lsp.SlotEffect{
			"a": {Earnings: decimal.Zero, Costs: decimal.NewFromInt(200), Reputation: decimal.NewFromInt(100)},
			"b": {Earnings: decimal.NewFromInt(200), Costs: decimal.Zero, Reputation: decimal.Zero},
			"c": {Earnings: decimal.Zero, Costs: decimal.NewFromInt(100), Reputation: decimal.Zero},
		},
		Balances: map[lsp.Identifier]lsp.Account{
			"a": {Paid: decimal.Zero, Received: amount},
			"b": {Paid: amount, Received: decimal.Zero},
			"c": {Paid: decimal.Zero, Received: decimal.Zero},
		},
		Standings: map[lsp.Identifier]lsp.Standing{
			"a": {ExtraSlotEarnings: decimal.Zero, ExtraSlotCosts: decimal.NewFromInt(200), Reputation: decimal.NewFromInt(100), ReputationFactor: 0.5, Participated: true},
			"b": {ExtraSlotEarnings: decimal.NewFromInt(200), ExtraSlotCosts: decimal.Zero, Reputation: decimal.Zero, ReputationFactor: 1, Participated: true},
			"c": {ExtraSlotEarnings: decimal.Zero, ExtraSlotCosts: decimal.NewFromInt(100), Reputation: decimal.Zero, ReputationFactor: 1},
		},
		Bids: map[lsp.Identifier]string{
			"a": "pay=0;bribable=true;rep=10",
			"b": "pay=20;bribable=false;rep=0",
		},
		Adjustments: []lsp.AdjustmentSummary{
			{Participant: "b", Bid: "pay=20;bribable=false;rep=0", Utility: 87.5, StdErr: 1.25, Changed: true},
		},
	}
}
