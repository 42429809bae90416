package simulation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/onflow/flow-go/crypto/random"

	"github.com/lsp-research/lspmarket/market"
	"github.com/lsp-research/lspmarket/market/mechanism/espa"
	"github.com/lsp-research/lspmarket/market/mechanism/honest"
	"github.com/lsp-research/lspmarket/model/lsp"
	"github.com/lsp-research/lspmarket/module/metrics"
	mockmodule "github.com/lsp-research/lspmarket/module/mock"
	"github.com/lsp-research/lspmarket/simulation"
	"github.com/lsp-research/lspmarket/state/stake"
	"github.com/lsp-research/lspmarket/utils/unittest"
)

// RunnerSuite tests the runner state machine with the honest mechanism.
type RunnerSuite struct {
	suite.Suite
	dist *stake.Distribution
	ctx  context.Context
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(RunnerSuite))
}

func (s *RunnerSuite) SetupTest() {
	s.dist = unittest.DistributionFixture(s.T(), 1, 2, 3)
	s.ctx = context.Background()
}

func zeroHonestBids(ids lsp.IdentifierList) lsp.BidSnapshot[honest.Bid] {
	bids := make(lsp.BidSnapshot[honest.Bid])
	for _, id := range ids {
		bids[id] = honest.ZeroBid()
	}
	return bids
}

func (s *RunnerSuite) honestRunner(seed uint64, stop simulation.StopPolicy[honest.Bid], adjust simulation.AdjustPolicy, opts ...simulation.Option) *simulation.Runner[honest.Bid] {
	cfg := simulation.DefaultConfig()
	cfg.Budget = 10
	runner, err := simulation.NewRunner[honest.Bid](
		unittest.Logger(),
		metrics.NewNoopCollector(),
		cfg,
		s.dist,
		honest.Factory(unittest.Logger()),
		zeroHonestBids(s.dist.IDs()),
		stop,
		adjust,
		unittest.PRGFixture(s.T(), seed),
		opts...,
	)
	s.Require().NoError(err)
	return runner
}

// TestHonestScenario runs three participants with stakes 1, 2 and 3 under the honest
// mechanism for five epochs without any bid adjustment.
func (s *RunnerSuite) TestHonestScenario() {
	runner := s.honestRunner(1, simulation.MaxEpochs[honest.Bid](5), simulation.AdjustNone())
	s.Equal(simulation.StateInit, runner.State())
	s.Nil(runner.Balances())

	records, err := runner.Collect(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 5)
	s.Equal(simulation.StateTerminated, runner.State())
	s.Equal(uint64(5), runner.Epoch())

	for i, record := range records {
		s.Equal(uint64(i), record.Epoch)
		s.Equal(honest.ActionHonest, record.Action)
		s.Empty(record.Payments)
		s.Len(record.Pools.Reveal, simulation.DefaultConfig().EpochSize)
		s.Len(record.Pools.Miss, simulation.DefaultConfig().EpochSize)
		last, _ := record.Pools.Reveal.Last()
		s.Equal(last, record.NextProposer)
		if i > 0 {
			s.Equal(records[i-1].NextProposer, record.Proposer)
		}
		s.Len(record.Bids, 3)
	}

	for id, acc := range runner.Balances() {
		s.True(acc.IsZero(), "balance of %s changed", id)
	}

	// the sequence is finite
	_, err = runner.Next(s.ctx)
	s.ErrorIs(err, simulation.ErrTerminated)
}

// TestProposerFrequency checks that over many seeded runs the proposer sequence
// favours participants with more stake.
func (s *RunnerSuite) TestProposerFrequency() {
	counts := make(map[lsp.Identifier]int)
	for seed := uint64(0); seed < 300; seed++ {
		runner := s.honestRunner(seed, simulation.MaxEpochs[honest.Bid](5), simulation.AdjustNone())
		records, err := runner.Collect(s.ctx)
		s.Require().NoError(err)
		for _, record := range records {
			counts[record.Proposer]++
		}
	}
	s.Greater(counts["c"], counts["b"])
	s.Greater(counts["b"], counts["a"])
	s.InDelta(0.5, float64(counts["c"])/1500, 0.05)
}

func (s *RunnerSuite) TestStopBeforeFirstEpoch() {
	runner := s.honestRunner(1, simulation.MaxEpochs[honest.Bid](0), simulation.AdjustNone())
	_, err := runner.Next(s.ctx)
	s.ErrorIs(err, simulation.ErrTerminated)
	s.Equal(simulation.StateTerminated, runner.State())
	s.NotNil(runner.Balances(), "the market was initialized")
}

func (s *RunnerSuite) TestInitialProposer() {
	runner := s.honestRunner(1, simulation.MaxEpochs[honest.Bid](1), simulation.AdjustNone(), simulation.WithInitialProposer("a"))
	record, err := runner.Next(s.ctx)
	s.Require().NoError(err)
	s.Equal(lsp.Identifier("a"), record.Proposer)

	runner = s.honestRunner(1, simulation.MaxEpochs[honest.Bid](1), simulation.AdjustNone(), simulation.WithInitialProposer("z"))
	_, err = runner.Next(s.ctx)
	var epochErr *simulation.EpochError
	s.Require().ErrorAs(err, &epochErr)
	s.Equal(simulation.KindUnauthorizedParticipant, epochErr.Kind)
	s.Equal(simulation.StateFailed, runner.State())
}

func (s *RunnerSuite) TestCancelledContext() {
	runner := s.honestRunner(1, simulation.MaxEpochs[honest.Bid](2), simulation.AdjustNone())

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := runner.Next(ctx)
	s.ErrorIs(err, context.Canceled)
	s.Equal(simulation.StateInit, runner.State())

	records, err := runner.Collect(s.ctx)
	s.Require().NoError(err)
	s.Len(records, 2)
}

// TestFailedOnBudget checks that an invalid optimization budget fails the run at the
// epoch it happened in and that the failure is sticky.
func (s *RunnerSuite) TestFailedOnBudget() {
	cfg := simulation.DefaultConfig()
	cfg.Budget = 0
	runner, err := simulation.NewRunner[honest.Bid](
		unittest.Logger(),
		metrics.NewNoopCollector(),
		cfg,
		s.dist,
		honest.Factory(unittest.Logger()),
		zeroHonestBids(s.dist.IDs()),
		simulation.MaxEpochs[honest.Bid](5),
		simulation.AdjustAll(),
		unittest.PRGFixture(s.T(), 1),
	)
	s.Require().NoError(err)

	records, err := runner.Collect(s.ctx)
	s.Empty(records)
	var epochErr *simulation.EpochError
	s.Require().ErrorAs(err, &epochErr)
	s.Equal(uint64(0), epochErr.Epoch)
	s.Equal(simulation.CallOptimizeBid, epochErr.Call)
	s.Equal(simulation.KindOptimizationBudget, epochErr.Kind)
	s.Equal(lsp.Identifier("a"), epochErr.Participant)
	s.True(market.IsOptimizationBudgetError(err))
	s.Equal(simulation.StateFailed, runner.State())

	_, again := runner.Next(s.ctx)
	s.Equal(err, again)
	s.Equal(err, runner.Err())
}

func (s *RunnerSuite) TestFailedOnInitialBid() {
	bids := zeroHonestBids(s.dist.IDs()).With("mallory", honest.ZeroBid())
	runner, err := simulation.NewRunner[honest.Bid](
		unittest.Logger(),
		metrics.NewNoopCollector(),
		simulation.DefaultConfig(),
		s.dist,
		honest.Factory(unittest.Logger()),
		bids,
		simulation.MaxEpochs[honest.Bid](5),
		nil,
		unittest.PRGFixture(s.T(), 1),
	)
	s.Require().NoError(err)

	_, err = runner.Next(s.ctx)
	var epochErr *simulation.EpochError
	s.Require().ErrorAs(err, &epochErr)
	s.Equal(simulation.CallPlaceBid, epochErr.Call)
	s.Equal(simulation.KindUnauthorizedParticipant, epochErr.Kind)
	s.Equal(lsp.Identifier("mallory"), epochErr.Participant)
}

// flakyMarket fails to resolve from a given call on.
type flakyMarket struct {
	market.Market[honest.Bid]
	calls  int
	failAt int
}

func (m *flakyMarket) Resolve(proposer lsp.Identifier, bids lsp.BidSnapshot[honest.Bid], pools lsp.CandidatePools) (*lsp.Resolution, error) {
	m.calls++
	if m.calls > m.failAt {
		return nil, market.NewUnresolvedMarketErrorf("no default action")
	}
	return m.Market.Resolve(proposer, bids, pools)
}

func (s *RunnerSuite) TestFailedAtLaterEpoch() {
	factory := func(dist *stake.Distribution) (market.Market[honest.Bid], error) {
		return &flakyMarket{Market: honest.New(unittest.Logger(), dist), failAt: 2}, nil
	}
	runner, err := simulation.NewRunner[honest.Bid](
		unittest.Logger(),
		metrics.NewNoopCollector(),
		simulation.DefaultConfig(),
		s.dist,
		factory,
		zeroHonestBids(s.dist.IDs()),
		simulation.MaxEpochs[honest.Bid](10),
		simulation.AdjustNone(),
		unittest.PRGFixture(s.T(), 1),
	)
	s.Require().NoError(err)

	records, err := runner.Collect(s.ctx)
	s.Len(records, 2)
	var epochErr *simulation.EpochError
	s.Require().ErrorAs(err, &epochErr)
	s.Equal(uint64(2), epochErr.Epoch)
	s.Equal(simulation.CallResolve, epochErr.Call)
	s.Equal(simulation.KindUnresolvedMarket, epochErr.Kind)
	s.Contains(err.Error(), "epoch 2")
}

// payingMarket resolves like the honest mechanism but always makes "a" pay "b". Once
// rejectBids is set, every bid of "c" is rejected.
type payingMarket struct {
	market.Market[honest.Bid]
	rejectBids bool
}

func (m *payingMarket) Resolve(proposer lsp.Identifier, bids lsp.BidSnapshot[honest.Bid], pools lsp.CandidatePools) (*lsp.Resolution, error) {
	res, err := m.Market.Resolve(proposer, bids, pools)
	if err != nil {
		return nil, err
	}
	res.Payments = []lsp.Payment{{Payer: "a", Payee: "b", Amount: decimal.NewFromInt(5)}}
	return res, nil
}

func (m *payingMarket) PlaceBid(participant lsp.Identifier, bid honest.Bid) error {
	if m.rejectBids && participant == "c" {
		return market.NewInvalidBidErrorf("bid of %s rejected", participant)
	}
	return m.Market.PlaceBid(participant, bid)
}

// TestFailedEpochIsNotCommitted checks that an epoch failing after its payments were
// computed leaves the balances and standings of the last completed epoch.
func (s *RunnerSuite) TestFailedEpochIsNotCommitted() {
	created := 0
	factory := func(dist *stake.Distribution) (market.Market[honest.Bid], error) {
		created++
		return &payingMarket{Market: honest.New(unittest.Logger(), dist), rejectBids: created > 1}, nil
	}
	// nobody adjusts in epoch 0, everybody in epoch 1
	adjust := simulation.AdjustFunc(func(epoch uint64, participants lsp.IdentifierList, _ random.Rand) (lsp.IdentifierList, error) {
		if epoch == 0 {
			return nil, nil
		}
		return participants, nil
	})
	cfg := simulation.DefaultConfig()
	cfg.Budget = 5
	runner, err := simulation.NewRunner[honest.Bid](
		unittest.Logger(),
		metrics.NewNoopCollector(),
		cfg,
		s.dist,
		factory,
		zeroHonestBids(s.dist.IDs()),
		simulation.MaxEpochs[honest.Bid](5),
		adjust,
		unittest.PRGFixture(s.T(), 1),
	)
	s.Require().NoError(err)

	first, err := runner.Next(s.ctx)
	s.Require().NoError(err)
	before := runner.Balances()
	s.True(before["a"].Paid.Equal(decimal.NewFromInt(5)))
	standings := runner.Standings()

	_, err = runner.Next(s.ctx)
	var epochErr *simulation.EpochError
	s.Require().ErrorAs(err, &epochErr)
	s.Equal(uint64(1), epochErr.Epoch)
	s.Equal(simulation.CallPlaceBid, epochErr.Call)
	s.Equal(simulation.KindInvalidBid, epochErr.Kind)
	s.Equal(lsp.Identifier("c"), epochErr.Participant)

	s.Empty(cmp.Diff(before, runner.Balances(), decimalComparer))
	s.Empty(cmp.Diff(first.Balances, runner.Balances(), decimalComparer))
	s.Empty(cmp.Diff(standings, runner.Standings(), decimalComparer))
	s.Equal(uint64(1), runner.Epoch())
}

// TestStandings checks that standings follow the slot effects of every epoch and that
// total balances of a closed payment system only move by slot effects.
func TestStandings(t *testing.T) {
	records := espaRun(t, 11, 1, 12)
	dist := unittest.DistributionFixture(t, 1, 2, 3, 5)

	previous := make(map[lsp.Identifier]lsp.Standing)
	for _, p := range dist.Participants() {
		previous[p.ID] = lsp.NewStanding(p)
	}
	for _, record := range records {
		require.Len(t, record.Standings, dist.Len())
		if record.Next == lsp.PoolReveal {
			assert.Empty(t, record.Effects)
		} else {
			require.Contains(t, record.Effects, record.Proposer)
			assert.True(t, record.Effects[record.Proposer].Reputation.IsPositive())
		}
		for id, st := range record.Standings {
			expected := previous[id].Apply(record.Effects[id])
			assert.True(t, expected.ExtraSlotEarnings.Equal(st.ExtraSlotEarnings))
			assert.True(t, expected.ExtraSlotCosts.Equal(st.ExtraSlotCosts))
			assert.True(t, expected.Reputation.Equal(st.Reputation))
			// every participant starts with a bid
			assert.True(t, st.Participated)
		}
		previous = record.Standings

		totals := record.Summary().TotalBalances()
		require.Len(t, totals, dist.Len())
	}
}

func (s *RunnerSuite) TestMetrics() {
	collector := mockmodule.NewSimulationMetrics(s.T())
	collector.On("CurrentEpoch", uint64(0)).Once()
	collector.On("CurrentEpoch", uint64(1)).Once()
	collector.On("EpochResolved", honest.ActionHonest, 0, 0.0).Twice()
	collector.On("BidOptimized", mock.Anything, 1).Times(6)
	collector.On("BidsAdjusted", 3, 0).Twice()
	collector.On("RunTerminated", uint64(2)).Once()

	cfg := simulation.DefaultConfig()
	cfg.Budget = 5
	runner, err := simulation.NewRunner[honest.Bid](
		unittest.Logger(),
		collector,
		cfg,
		s.dist,
		honest.Factory(unittest.Logger()),
		zeroHonestBids(s.dist.IDs()),
		simulation.MaxEpochs[honest.Bid](2),
		simulation.AdjustAll(),
		unittest.PRGFixture(s.T(), 1),
	)
	s.Require().NoError(err)

	records, err := runner.Collect(s.ctx)
	s.Require().NoError(err)
	s.Len(records, 2)
}

func (s *RunnerSuite) TestRunConsumerError() {
	runner := s.honestRunner(1, simulation.MaxEpochs[honest.Bid](5), simulation.AdjustNone())
	sentinel := errors.New("disk full")

	err := runner.Run(s.ctx, func(*lsp.EpochRecord[honest.Bid]) error { return sentinel })
	s.ErrorIs(err, sentinel)
	s.Equal(simulation.StateRunning, runner.State())
	s.Equal(uint64(1), runner.Epoch())
}

func TestNewRunner_InvalidInput(t *testing.T) {
	dist := unittest.DistributionFixture(t, 1)
	factory := honest.Factory(unittest.Logger())
	stop := simulation.MaxEpochs[honest.Bid](1)
	rng := unittest.PRGFixture(t, 1)
	log := unittest.Logger()
	noop := metrics.NewNoopCollector()

	_, err := simulation.NewRunner[honest.Bid](log, noop, simulation.DefaultConfig(), nil, factory, nil, stop, nil, rng)
	require.Error(t, err)
	_, err = simulation.NewRunner[honest.Bid](log, noop, simulation.DefaultConfig(), dist, nil, nil, stop, nil, rng)
	require.Error(t, err)
	_, err = simulation.NewRunner[honest.Bid](log, noop, simulation.DefaultConfig(), dist, factory, nil, nil, nil, rng)
	require.Error(t, err)
	_, err = simulation.NewRunner[honest.Bid](log, noop, simulation.DefaultConfig(), dist, factory, nil, stop, nil, nil)
	require.Error(t, err)
	_, err = simulation.NewRunner[honest.Bid](log, noop, simulation.Config{EpochSize: 0}, dist, factory, nil, stop, nil, rng)
	require.Error(t, err)

	// a missing collector falls back to no metrics
	runner, err := simulation.NewRunner[honest.Bid](log, nil, simulation.DefaultConfig(), dist, factory, nil, stop, nil, rng)
	require.NoError(t, err)
	records, err := runner.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func espaRun(t *testing.T, seed uint64, workers int, epochs uint64) []*lsp.EpochRecord[espa.Bid] {
	dist := unittest.DistributionFixture(t, 1, 2, 3, 5)
	cfg := simulation.Config{EpochSize: 8, Budget: 20, Workers: workers, Valuation: market.DefaultValuation()}

	bids := make(lsp.BidSnapshot[espa.Bid])
	for i, id := range dist.IDs() {
		bids[id] = espa.Bid{
			WillingToPay:    decimal.NewFromInt(int64(10 * i)),
			Bribable:        i%2 == 0,
			ReputationValue: decimal.NewFromInt(5),
		}
	}

	runner, err := simulation.NewRunner[espa.Bid](
		unittest.Logger(),
		metrics.NewNoopCollector(),
		cfg,
		dist,
		espa.Factory(unittest.Logger(), espa.DefaultConfig(), market.WithPoolSize(cfg.EpochSize), market.WithWorkers(workers)),
		bids,
		simulation.MaxEpochs[espa.Bid](epochs),
		simulation.AdjustRandomSubset(2),
		unittest.PRGFixture(t, seed),
	)
	require.NoError(t, err)

	records, err := runner.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, records, int(epochs))

	// balances form a closed system after every epoch
	for _, record := range records {
		paid, received := decimal.Zero, decimal.Zero
		for _, acc := range record.Balances {
			paid = paid.Add(acc.Paid)
			received = received.Add(acc.Received)
		}
		require.True(t, paid.Equal(received))
	}
	return records
}

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool {
	return a.Equal(b)
})

// TestDeterminism checks that two runs with the same seed produce identical records,
// independently of how many workers optimize bids.
func TestDeterminism(t *testing.T) {
	first := espaRun(t, 42, 1, 8)
	second := espaRun(t, 42, 1, 8)
	parallel := espaRun(t, 42, 4, 8)

	assert.Empty(t, cmp.Diff(first, second, decimalComparer))
	assert.Empty(t, cmp.Diff(first, parallel, decimalComparer))

	other := espaRun(t, 43, 1, 8)
	assert.NotEmpty(t, cmp.Diff(first, other, decimalComparer))
}

func TestRecordSummary(t *testing.T) {
	records := espaRun(t, 7, 1, 3)
	for _, record := range records {
		summary := record.Summary()
		assert.Equal(t, record.Epoch, summary.Epoch)
		assert.Equal(t, len(record.Bids), len(summary.Bids))
		for id, bid := range record.Bids {
			assert.Equal(t, bid.String(), summary.Bids[id])
		}
		assert.Len(t, summary.Adjustments, 2)
	}
}
