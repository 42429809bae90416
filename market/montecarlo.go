package market

import (
	"fmt"
	"math"
	"sort"

	"github.com/gammazero/workerpool"
	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"

	"github.com/onflow/flow-go/crypto/random"

	"github.com/lsp-research/lspmarket/model/lsp"
	"github.com/lsp-research/lspmarket/state/stake"
)

// ResolveFunc resolves the market for one scenario. Mechanisms pass their own Resolve.
type ResolveFunc[B lsp.Bid] func(proposer lsp.Identifier, bids lsp.BidSnapshot[B], pools lsp.CandidatePools) (*lsp.Resolution, error)

// UtilityFunc measures how much the participant gains from a resolved scenario when it
// bid `bid`.
type UtilityFunc[B lsp.Bid] func(participant lsp.Participant, bid B, scenario Scenario, res *lsp.Resolution) float64

// Neighborhood is the mechanism-specific strategy producing the candidate bids a
// participant considers. `placed` is false if the participant has no current bid, in
// which case `current` is the zero value. The returned list must not be empty.
type Neighborhood[B lsp.Bid] interface {
	Candidates(participant lsp.Participant, current B, placed bool) []B
}

// NeighborhoodFunc adapts a plain function to the Neighborhood interface.
type NeighborhoodFunc[B lsp.Bid] func(participant lsp.Participant, current B, placed bool) []B

func (f NeighborhoodFunc[B]) Candidates(participant lsp.Participant, current B, placed bool) []B {
	return f(participant, current, placed)
}

// MonteCarlo is the default bid optimization scaffold. It samples `budget` scenarios
// (a stake-weighted proposer and a pair of candidate pools) and evaluates every candidate
// bid of the neighborhood on the same scenarios, so candidates are compared under
// common random numbers. The candidate with the highest mean utility wins; ties go to
// the lexicographically smaller bid representation.
//
// Candidates may be evaluated concurrently; the result does not depend on the number
// of workers.
type MonteCarlo[B lsp.Bid] struct {
	log          zerolog.Logger
	dist         *stake.Distribution
	poolSize     int
	workers      int
	resolve      ResolveFunc[B]
	utility      UtilityFunc[B]
	neighborhood Neighborhood[B]
}

// MonteCarloOption configures a MonteCarlo optimizer.
type MonteCarloOption func(*monteCarloConfig)

type monteCarloConfig struct {
	poolSize int
	workers  int
}

// WithPoolSize sets the size of the sampled candidate pools, i.e. the epoch length.
func WithPoolSize(size int) MonteCarloOption {
	return func(cfg *monteCarloConfig) {
		cfg.poolSize = size
	}
}

// WithWorkers sets the number of candidates evaluated concurrently.
func WithWorkers(workers int) MonteCarloOption {
	return func(cfg *monteCarloConfig) {
		cfg.workers = workers
	}
}

// DefaultPoolSize is the number of slots per epoch.
const DefaultPoolSize = 32

func NewMonteCarlo[B lsp.Bid](
	log zerolog.Logger,
	dist *stake.Distribution,
	resolve ResolveFunc[B],
	utility UtilityFunc[B],
	neighborhood Neighborhood[B],
	opts ...MonteCarloOption,
) *MonteCarlo[B] {
	cfg := monteCarloConfig{
		poolSize: DefaultPoolSize,
		workers:  1,
	}
	for _, apply := range opts {
		apply(&cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}

	return &MonteCarlo[B]{
		log:          log.With().Str("component", "montecarlo_optimizer").Logger(),
		dist:         dist,
		poolSize:     cfg.poolSize,
		workers:      cfg.workers,
		resolve:      resolve,
		utility:      utility,
		neighborhood: neighborhood,
	}
}

// candidateResult holds the utility statistics of a single candidate bid.
type candidateResult struct {
	mean   float64
	stdErr float64
	err    error
}

// Optimize estimates the participant's best bid given the fixed bids of everyone else.
// Expected errors during normal operations:
//   - OptimizationBudgetError if budget <= 0
//   - UnauthorizedParticipantError if the participant is not a member of the distribution
//
// Errors of the resolve function are propagated.
func (mc *MonteCarlo[B]) Optimize(participant lsp.Identifier, fixed lsp.BidSnapshot[B], budget int, rng random.Rand) (*lsp.Estimate[B], error) {
	if budget <= 0 {
		return nil, NewOptimizationBudgetErrorf("sampling budget must be positive, got %d", budget)
	}
	p, ok := mc.dist.ByID(participant)
	if !ok {
		return nil, NewUnauthorizedParticipantErrorf("participant %s is not a member of the market", participant)
	}

	current, placed := fixed[participant]
	candidates := uniqueSorted(mc.neighborhood.Candidates(p, current, placed))
	if len(candidates) == 0 {
		return nil, fmt.Errorf("neighborhood produced no candidate bids for %s", participant)
	}

	scenarios, err := mc.sampleScenarios(rng, budget)
	if err != nil {
		return nil, fmt.Errorf("could not sample scenarios: %w", err)
	}

	results := make([]candidateResult, len(candidates))
	evaluate := func(i int) {
		results[i] = mc.evaluate(p, candidates[i], fixed, scenarios)
	}
	if mc.workers > 1 && len(candidates) > 1 {
		pool := workerpool.New(mc.workers)
		for i := range candidates {
			i := i
			pool.Submit(func() { evaluate(i) })
		}
		pool.StopWait()
	} else {
		for i := range candidates {
			evaluate(i)
		}
	}

	best := -1
	for i, res := range results {
		if res.err != nil {
			return nil, fmt.Errorf("could not evaluate candidate bid %s: %w", candidates[i], res.err)
		}
		// strict comparison: on equal utility the earlier, lexicographically smaller bid stays
		if best < 0 || res.mean > results[best].mean {
			best = i
		}
	}

	estimate := &lsp.Estimate[B]{
		Bid:        candidates[best],
		Utility:    results[best].mean,
		StdErr:     results[best].stdErr,
		Samples:    budget,
		Candidates: len(candidates),
	}

	mc.log.Debug().
		Str("participant", participant.String()).
		Str("bid", estimate.Bid.String()).
		Float64("utility", estimate.Utility).
		Float64("std_err", estimate.StdErr).
		Int("candidates", estimate.Candidates).
		Int("samples", budget).
		Msg("bid optimized")

	return estimate, nil
}

// sampleScenarios draws all scenarios upfront, so every candidate is evaluated on
// exactly the same outcomes.
func (mc *MonteCarlo[B]) sampleScenarios(rng random.Rand, budget int) ([]Scenario, error) {
	scenarios := make([]Scenario, 0, budget)
	for i := 0; i < budget; i++ {
		proposers, err := mc.dist.Sample(rng, 1)
		if err != nil {
			return nil, fmt.Errorf("could not sample proposer: %w", err)
		}
		pools, err := mc.dist.SampleDisjointPair(rng, mc.poolSize, mc.poolSize)
		if err != nil {
			return nil, fmt.Errorf("could not sample candidate pools: %w", err)
		}
		scenarios = append(scenarios, Scenario{Proposer: proposers[0], Pools: pools})
	}
	return scenarios, nil
}

func (mc *MonteCarlo[B]) evaluate(p lsp.Participant, candidate B, fixed lsp.BidSnapshot[B], scenarios []Scenario) candidateResult {
	bids := fixed.With(p.ID, candidate)
	utilities := make([]float64, 0, len(scenarios))
	for _, sc := range scenarios {
		res, err := mc.resolve(sc.Proposer, bids, sc.Pools)
		if err != nil {
			return candidateResult{err: err}
		}
		utilities = append(utilities, mc.utility(p, candidate, sc, res))
	}

	mean, err := stats.Mean(utilities)
	if err != nil {
		return candidateResult{err: fmt.Errorf("could not compute mean utility: %w", err)}
	}
	var stdErr float64
	if len(utilities) > 1 {
		sd, err := stats.StandardDeviationSample(utilities)
		if err != nil {
			return candidateResult{err: fmt.Errorf("could not compute utility deviation: %w", err)}
		}
		stdErr = sd / math.Sqrt(float64(len(utilities)))
	}
	return candidateResult{mean: mean, stdErr: stdErr}
}

// uniqueSorted removes candidates with the same representation and orders the rest by
// their representation.
func uniqueSorted[B lsp.Bid](candidates []B) []B {
	seen := make(map[string]struct{}, len(candidates))
	unique := make([]B, 0, len(candidates))
	for _, c := range candidates {
		key := c.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, c)
	}
	sort.Slice(unique, func(i, j int) bool {
		return unique[i].String() < unique[j].String()
	})
	return unique
}
