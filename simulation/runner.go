package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/onflow/flow-go/crypto/random"

	"github.com/lsp-research/lspmarket/market"
	"github.com/lsp-research/lspmarket/market/balance"
	"github.com/lsp-research/lspmarket/model/lsp"
	"github.com/lsp-research/lspmarket/module"
	"github.com/lsp-research/lspmarket/module/metrics"
	"github.com/lsp-research/lspmarket/state/stake"
	"github.com/lsp-research/lspmarket/utils/logging"
	"github.com/lsp-research/lspmarket/utils/prg"
)

// State is the lifecycle state of a Runner.
type State uint32

const (
	StateInit State = iota
	StateRunning
	StateTerminated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(s))
	}
}

// Config holds the parameters of a run.
type Config struct {
	// EpochSize is the number of slots per epoch, i.e. the size of both candidate pools.
	EpochSize int
	// Budget is the sampling budget of every bid optimization.
	Budget int
	// Workers is the number of bid optimizations run concurrently within an epoch.
	Workers int
	// Valuation turns resolutions into the slot effects tracked in the standings.
	Valuation market.Valuation
}

func DefaultConfig() Config {
	return Config{
		EpochSize: market.DefaultPoolSize,
		Budget:    100,
		Workers:   1,
		Valuation: market.DefaultValuation(),
	}
}

// Option configures optional runner behaviour.
type Option func(*runnerOptions)

type runnerOptions struct {
	initialProposer lsp.Identifier
}

// WithInitialProposer fixes the proposer of the first epoch instead of sampling it.
func WithInitialProposer(id lsp.Identifier) Option {
	return func(o *runnerOptions) {
		o.initialProposer = id
	}
}

// Runner drives a simulation epoch by epoch using only the Market contract. It exposes
// the run as a lazy, finite sequence of epoch records: every call to Next processes
// one epoch. A runner cannot be restarted; construct a new one for a new run.
//
// State transitions: Init -> Running on the first call to Next, Running -> Terminated
// when the stop policy says so, and any state -> Failed when an epoch cannot be
// completed. Failed and Terminated are final.
//
// An epoch is committed as a whole: payments, standings and bid adjustments are staged
// and only become visible once every step of the epoch succeeded. A failed run keeps
// the state of the last completed epoch.
type Runner[B lsp.Bid] struct {
	log         zerolog.Logger
	metrics     module.SimulationMetrics
	cfg         Config
	dist        *stake.Distribution
	factory     market.Factory[B]
	initialBids lsp.BidSnapshot[B]
	stop        StopPolicy[B]
	adjust      AdjustPolicy
	rng         random.Rand // proposer and pool sampling
	opts        runnerOptions

	state *atomic.Uint32
	epoch *atomic.Uint64

	mu        sync.Mutex // serializes Next
	adjustRNG random.Rand
	market    market.Market[B]
	sheet     *balance.Sheet
	standings map[lsp.Identifier]lsp.Standing
	proposer  lsp.Identifier
	err       error
}

// NewRunner creates a runner. Nothing happens until the first call to Next; the market
// is created through the factory then. A nil collector disables metrics.
// No errors are expected during normal operations; all errors indicate invalid input.
func NewRunner[B lsp.Bid](
	log zerolog.Logger,
	collector module.SimulationMetrics,
	cfg Config,
	dist *stake.Distribution,
	factory market.Factory[B],
	initialBids lsp.BidSnapshot[B],
	stop StopPolicy[B],
	adjust AdjustPolicy,
	rng random.Rand,
	opts ...Option,
) (*Runner[B], error) {
	if dist == nil {
		return nil, fmt.Errorf("stake distribution is required")
	}
	if factory == nil {
		return nil, fmt.Errorf("market factory is required")
	}
	if stop == nil {
		return nil, fmt.Errorf("stop policy is required")
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if cfg.EpochSize <= 0 {
		return nil, fmt.Errorf("epoch size must be positive, got %d", cfg.EpochSize)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if adjust == nil {
		adjust = AdjustNone()
	}
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}

	r := &Runner[B]{
		log:         log.With().Str("component", "simulation_runner").Logger(),
		metrics:     collector,
		cfg:         cfg,
		dist:        dist,
		factory:     factory,
		initialBids: initialBids.Clone(),
		stop:        stop,
		adjust:      adjust,
		rng:         rng,
		state:       atomic.NewUint32(uint32(StateInit)),
		epoch:       atomic.NewUint64(0),
	}
	for _, apply := range opts {
		apply(&r.opts)
	}
	return r, nil
}

// State returns the current lifecycle state.
func (r *Runner[B]) State() State {
	return State(r.state.Load())
}

// Epoch returns the index of the next epoch to be processed, which is the number of
// completed epochs.
func (r *Runner[B]) Epoch() uint64 {
	return r.epoch.Load()
}

// Err returns the error the run failed with, or nil.
func (r *Runner[B]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Balances returns a snapshot of all accounts, or nil if the run has not started.
func (r *Runner[B]) Balances() map[lsp.Identifier]lsp.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sheet == nil {
		return nil
	}
	return r.sheet.Snapshot()
}

// Standings returns a snapshot of all standings, or nil if the run has not started.
func (r *Runner[B]) Standings() map[lsp.Identifier]lsp.Standing {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.standings == nil {
		return nil
	}
	return copyStandings(r.standings)
}

func copyStandings(standings map[lsp.Identifier]lsp.Standing) map[lsp.Identifier]lsp.Standing {
	cp := make(map[lsp.Identifier]lsp.Standing, len(standings))
	for id, st := range standings {
		cp[id] = st
	}
	return cp
}

// Next processes one epoch and returns its record.
//   - ErrTerminated is returned once the stop policy ended the run, and on every later call.
//   - An *EpochError is returned when the run failed, and on every later call.
//   - ctx.Err() is returned if ctx is done before the epoch started; the run is not
//     affected and Next may be called again. An epoch that has started always completes.
func (r *Runner[B]) Next(ctx context.Context) (*lsp.EpochRecord[B], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.State() {
	case StateTerminated:
		return nil, ErrTerminated
	case StateFailed:
		return nil, r.err
	}
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	if r.State() == StateInit {
		err := r.init()
		if err != nil {
			return nil, err
		}
		r.state.Store(uint32(StateRunning))
		if r.stop.ShouldStop(0, nil) {
			r.terminate()
			return nil, ErrTerminated
		}
	}

	record, err := r.processEpoch()
	if err != nil {
		return nil, err
	}

	completed := r.epoch.Inc()
	r.proposer = record.NextProposer
	if r.stop.ShouldStop(completed, record) {
		r.terminate()
	}
	return record, nil
}

// init creates the market, seeds the initial bids in id order and picks the first proposer.
func (r *Runner[B]) init() error {
	m, err := r.factory(r.dist)
	if err != nil {
		return r.fail(CallMarketCreation, "", err)
	}
	if m == nil {
		return r.fail(CallMarketCreation, "", fmt.Errorf("factory returned no market"))
	}
	r.market = m
	r.sheet = balance.NewSheet(r.dist.IDs())
	r.standings = make(map[lsp.Identifier]lsp.Standing, r.dist.Len())
	for _, p := range r.dist.Participants() {
		r.standings[p.ID] = lsp.NewStanding(p)
	}

	for _, id := range r.initialBids.IDs() {
		err := r.market.PlaceBid(id, r.initialBids[id])
		if err != nil {
			return r.fail(CallPlaceBid, id, err)
		}
		r.markParticipated(r.standings, id)
	}

	// bid adjustments draw from their own stream, so the proposer sequence does not
	// depend on how many participants adjust
	r.adjustRNG, err = prg.Derive(r.rng, prg.Adjustment)
	if err != nil {
		return r.fail(CallDeriveRandom, "", err)
	}

	if r.opts.initialProposer != "" {
		if !r.dist.Contains(r.opts.initialProposer) {
			return r.fail(CallInitialSample, r.opts.initialProposer,
				market.NewUnauthorizedParticipantErrorf("initial proposer %s is not a member of the market", r.opts.initialProposer))
		}
		r.proposer = r.opts.initialProposer
	} else {
		sample, err := r.dist.Sample(r.rng, 1)
		if err != nil {
			return r.fail(CallInitialSample, "", err)
		}
		r.proposer = sample[0]
	}

	r.log.Info().
		Int("participants", r.dist.Len()).
		Uint64("total_stake", r.dist.TotalStake()).
		Int("initial_bids", len(r.initialBids)).
		Str("initial_proposer", r.proposer.String()).
		Msg("simulation run started")
	return nil
}

// processEpoch runs a single epoch. Any failure moves the runner to Failed and leaves
// the committed state untouched.
func (r *Runner[B]) processEpoch() (*lsp.EpochRecord[B], error) {
	epoch := r.epoch.Load()
	r.metrics.CurrentEpoch(epoch)

	pools, err := r.dist.SampleDisjointPair(r.rng, r.cfg.EpochSize, r.cfg.EpochSize)
	if err != nil {
		return nil, r.fail(CallSample, "", err)
	}

	res, err := r.market.Resolve(r.proposer, r.market.Bids(), pools)
	if err != nil {
		return nil, r.fail(CallResolve, r.proposer, err)
	}
	if res == nil {
		return nil, r.fail(CallResolve, r.proposer, fmt.Errorf("market returned no resolution"))
	}

	sheet := r.sheet.Clone()
	err = sheet.RecordPayments(res.Payments...)
	if err != nil {
		return nil, r.fail(CallRecordPayment, "", err)
	}

	next, err := pools.NextProposer(res.Next)
	if err != nil {
		return nil, r.fail(CallNextProposer, "", err)
	}

	effects := r.cfg.Valuation.SlotEffects(r.proposer, pools, res)
	standings := copyStandings(r.standings)
	for id, e := range effects {
		st, ok := standings[id]
		if !ok {
			return nil, r.fail(CallRecordPayment, id, balance.NewUnknownParticipantErrorf("slot effect for unknown participant %s", id))
		}
		standings[id] = st.Apply(e)
	}

	adjusted, adjustments, err := r.adjustBids(epoch)
	if err != nil {
		return nil, err
	}
	for _, a := range adjustments {
		r.markParticipated(standings, a.Participant)
	}

	// commit
	r.sheet = sheet
	r.standings = standings
	r.market = adjusted

	record := &lsp.EpochRecord[B]{
		Epoch:        epoch,
		Proposer:     r.proposer,
		Pools:        pools,
		Action:       res.Action,
		Next:         res.Next,
		NextProposer: next,
		Payments:     res.Payments,
		Effects:      effects,
		Balances:     r.sheet.Snapshot(),
		Standings:    copyStandings(r.standings),
		Bids:         r.market.Bids(),
		Adjustments:  adjustments,
	}

	var volume float64
	for _, p := range res.Payments {
		volume += p.Amount.InexactFloat64()
	}
	r.metrics.EpochResolved(res.Action, len(res.Payments), volume)

	r.log.Debug().
		Uint64("epoch", epoch).
		Str("proposer", r.proposer.String()).
		Str("action", string(res.Action)).
		Str("next_pool", res.Next.String()).
		Str("next_proposer", next.String()).
		Int("payments", len(res.Payments)).
		Float64("payment_volume", volume).
		Int("slot_effects", len(effects)).
		Int("adjustments", len(adjustments)).
		Strs("balances", logging.Accounts(record.Balances)).
		Msg("epoch processed")

	return record, nil
}

func (r *Runner[B]) markParticipated(standings map[lsp.Identifier]lsp.Standing, id lsp.Identifier) {
	st, ok := standings[id]
	if !ok {
		return
	}
	st.Participated = true
	standings[id] = st
}

type optimization[B lsp.Bid] struct {
	estimate *lsp.Estimate[B]
	duration time.Duration
	err      error
}

// adjustBids lets the participants selected by the adjust policy optimize their bid
// against the bids as they stand after resolution. Optimizations are independent and may
// run concurrently; each gets its own random source, derived in id order.
//
// The new bids are placed in id order on a fresh market holding the current bids, which
// is returned for the caller to commit. Without adjustments the current market is
// returned as is.
func (r *Runner[B]) adjustBids(epoch uint64) (market.Market[B], []lsp.Adjustment[B], error) {
	selected, err := r.adjust.Select(epoch, r.dist.IDs(), r.adjustRNG)
	if err != nil {
		return nil, nil, r.fail(CallSelectAdjust, "", err)
	}
	ids := selected.Sorted()
	if len(ids) == 0 {
		r.metrics.BidsAdjusted(0, 0)
		return r.market, nil, nil
	}

	rngs := make([]random.Rand, 0, len(ids))
	for _, id := range ids {
		rng, err := prg.Derive(r.adjustRNG, prg.BidOptimization)
		if err != nil {
			return nil, nil, r.fail(CallDeriveRandom, id, err)
		}
		rngs = append(rngs, rng)
	}

	fixed := r.market.Bids()
	results := make([]optimization[B], len(ids))
	optimize := func(i int) {
		start := time.Now()
		est, err := r.market.OptimizeBid(ids[i], fixed, r.cfg.Budget, rngs[i])
		results[i] = optimization[B]{estimate: est, duration: time.Since(start), err: err}
	}
	if r.cfg.Workers > 1 && len(ids) > 1 {
		pool := workerpool.New(r.cfg.Workers)
		for i := range ids {
			i := i
			pool.Submit(func() { optimize(i) })
		}
		pool.StopWait()
	} else {
		for i := range ids {
			optimize(i)
		}
	}

	adjustments := make([]lsp.Adjustment[B], 0, len(ids))
	bids := fixed.Clone()
	changed := 0
	for i, id := range ids {
		res := results[i]
		if res.err != nil {
			return nil, nil, r.fail(CallOptimizeBid, id, res.err)
		}
		if res.estimate == nil {
			return nil, nil, r.fail(CallOptimizeBid, id, fmt.Errorf("market returned no estimate"))
		}
		r.metrics.BidOptimized(res.duration, res.estimate.Candidates)

		previous, placed := fixed[id]
		isChange := !placed || previous.String() != res.estimate.Bid.String()
		if isChange {
			changed++
		}
		bids[id] = res.estimate.Bid
		adjustments = append(adjustments, lsp.Adjustment[B]{
			Participant: id,
			Estimate:    *res.estimate,
			Changed:     isChange,
		})
	}

	staged, err := r.factory(r.dist)
	if err != nil {
		return nil, nil, r.fail(CallMarketCreation, "", err)
	}
	if staged == nil {
		return nil, nil, r.fail(CallMarketCreation, "", fmt.Errorf("factory returned no market"))
	}
	for _, id := range bids.IDs() {
		err := staged.PlaceBid(id, bids[id])
		if err != nil {
			return nil, nil, r.fail(CallPlaceBid, id, err)
		}
	}

	r.metrics.BidsAdjusted(len(adjustments), changed)
	r.log.Debug().
		Uint64("epoch", epoch).
		Strs("participants", logging.IDs(ids)).
		Int("changed", changed).
		Msg("bids adjusted")

	return staged, adjustments, nil
}

func (r *Runner[B]) terminate() {
	r.state.Store(uint32(StateTerminated))
	epochs := r.epoch.Load()
	r.metrics.RunTerminated(epochs)
	r.log.Info().Uint64("epochs", epochs).Msg("simulation run terminated")
}

// fail moves the runner to Failed and returns the resulting EpochError.
func (r *Runner[B]) fail(call Call, participant lsp.Identifier, err error) error {
	epochErr := &EpochError{
		Epoch:       r.epoch.Load(),
		Call:        call,
		Kind:        ClassifyError(err),
		Participant: participant,
		Err:         err,
	}
	r.err = epochErr
	r.state.Store(uint32(StateFailed))
	r.metrics.RunFailed(string(epochErr.Kind))
	r.log.Error().
		Err(err).
		Uint64("epoch", epochErr.Epoch).
		Str("call", string(call)).
		Str("kind", string(epochErr.Kind)).
		Msg("simulation run failed")
	return epochErr
}

// Run processes epochs until the run terminates or fails, handing every record to
// consume. It returns nil when the stop policy ended the run. An error returned by
// consume stops the iteration and is returned; the runner itself stays usable.
func (r *Runner[B]) Run(ctx context.Context, consume func(*lsp.EpochRecord[B]) error) error {
	for {
		record, err := r.Next(ctx)
		if errors.Is(err, ErrTerminated) {
			return nil
		}
		if err != nil {
			return err
		}
		err = consume(record)
		if err != nil {
			return fmt.Errorf("could not consume record of epoch %d: %w", record.Epoch, err)
		}
	}
}

// Collect runs the simulation to its end and returns all records. On failure, the
// records of the completed epochs are returned together with the error.
func (r *Runner[B]) Collect(ctx context.Context) ([]*lsp.EpochRecord[B], error) {
	var records []*lsp.EpochRecord[B]
	err := r.Run(ctx, func(record *lsp.EpochRecord[B]) error {
		records = append(records, record)
		return nil
	})
	return records, err
}
