package honest_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsp-research/lspmarket/market"
	"github.com/lsp-research/lspmarket/market/mechanism/honest"
	"github.com/lsp-research/lspmarket/model/lsp"
	"github.com/lsp-research/lspmarket/utils/unittest"
)

func TestResolve_AlwaysHonest(t *testing.T) {
	dist := unittest.DistributionFixture(t, 1, 2, 3)
	m := honest.New(unittest.Logger(), dist)
	rng := unittest.PRGFixture(t, 1)

	for _, proposer := range dist.IDs() {
		pools, err := dist.SampleDisjointPair(rng, 8, 8)
		require.NoError(t, err)

		res, err := m.Resolve(proposer, m.Bids(), pools)
		require.NoError(t, err)
		assert.Equal(t, honest.ActionHonest, res.Action)
		assert.Equal(t, lsp.PoolReveal, res.Next)
		assert.Empty(t, res.Payments)
	}

	_, err := m.Resolve("z", m.Bids(), lsp.CandidatePools{})
	unittest.RequireErrorAs(t, err, market.IsUnauthorizedParticipantError)
}

func TestPlaceBid(t *testing.T) {
	dist := unittest.DistributionFixture(t, 1, 2)
	m := honest.New(unittest.Logger(), dist)

	err := m.PlaceBid("a", honest.Bid{Tip: decimal.NewFromInt(-1)})
	unittest.RequireErrorAs(t, err, market.IsInvalidBidError)
	_, ok := m.Bid("a")
	assert.False(t, ok)

	err = m.PlaceBid("a", honest.Bid{Tip: decimal.NewFromInt(3)})
	require.NoError(t, err)
	bid, ok := m.Bid("a")
	require.True(t, ok)
	assert.Equal(t, "tip=3", bid.String())
}

func TestOptimizeBid_KeepsCurrentBid(t *testing.T) {
	dist := unittest.DistributionFixture(t, 1, 2, 3)
	m := honest.New(unittest.Logger(), dist, honest.WithOptimizer(market.WithPoolSize(4)))

	fixed := lsp.BidSnapshot[honest.Bid]{"c": {Tip: decimal.NewFromInt(2)}}
	est, err := m.OptimizeBid("c", fixed, 200, unittest.PRGFixture(t, 2))
	require.NoError(t, err)
	assert.Equal(t, "tip=2", est.Bid.String())
	assert.Equal(t, 1, est.Candidates)
	assert.Equal(t, 200, est.Samples)
	// participant c proposes half of all slots on average, 4 slots of value 100
	assert.InDelta(t, 200, est.Utility, 40)

	est, err = m.OptimizeBid("a", fixed, 10, unittest.PRGFixture(t, 2))
	require.NoError(t, err)
	assert.Equal(t, honest.ZeroBid().String(), est.Bid.String())
}

func TestParseBid(t *testing.T) {
	bid, err := honest.ParseBid("tip=1.5")
	require.NoError(t, err)
	assert.True(t, bid.Tip.Equal(decimal.RequireFromString("1.5")))

	_, err = honest.ParseBid("pay=1")
	require.Error(t, err)
	_, err = honest.ParseBid("tip=abc")
	require.Error(t, err)
}
