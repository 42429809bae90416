package lsp

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Adjustment describes one participant revising its bid at the end of an epoch.
type Adjustment[B Bid] struct {
	Participant Identifier
	Estimate    Estimate[B]
	// Changed is true if the new bid differs from the one placed before.
	Changed bool
}

// EpochRecord is everything that happened in a single epoch of a simulation run.
type EpochRecord[B Bid] struct {
	Epoch        uint64
	Proposer     Identifier
	Pools        CandidatePools
	Action       Action
	Next         PoolSide
	NextProposer Identifier
	Payments     []Payment
	// Effects holds the non-zero slot effects of the epoch's resolution.
	Effects map[Identifier]SlotEffect
	// Balances is the state of all accounts after the epoch's payments were applied.
	Balances map[Identifier]Account
	// Standings is the state of all standings after the epoch's slot effects were applied.
	Standings map[Identifier]Standing
	// Bids is the bid mapping after the epoch's adjustments were placed.
	Bids        BidSnapshot[B]
	Adjustments []Adjustment[B]
}

// AdjustmentSummary is the mechanism independent form of an Adjustment.
type AdjustmentSummary struct {
	Participant Identifier
	Bid         string
	Utility     float64
	StdErr      float64
	Changed     bool
}

// EpochSummary is the mechanism independent form of an EpochRecord, with all bids
// replaced by their canonical representation.
type EpochSummary struct {
	Epoch        uint64
	Proposer     Identifier
	Pools        CandidatePools
	Action       Action
	Next         PoolSide
	NextProposer Identifier
	Payments     []Payment
	Effects      map[Identifier]SlotEffect
	Balances     map[Identifier]Account
	Standings    map[Identifier]Standing
	Bids         map[Identifier]string
	Adjustments  []AdjustmentSummary
}

// Summary converts the record into its mechanism independent form.
func (r *EpochRecord[B]) Summary() *EpochSummary {
	adjustments := make([]AdjustmentSummary, 0, len(r.Adjustments))
	for _, a := range r.Adjustments {
		adjustments = append(adjustments, AdjustmentSummary{
			Participant: a.Participant,
			Bid:         a.Estimate.Bid.String(),
			Utility:     a.Estimate.Utility,
			StdErr:      a.Estimate.StdErr,
			Changed:     a.Changed,
		})
	}
	balances := make(map[Identifier]Account, len(r.Balances))
	for id, acc := range r.Balances {
		balances[id] = acc
	}
	standings := make(map[Identifier]Standing, len(r.Standings))
	for id, st := range r.Standings {
		standings[id] = st
	}
	effects := make(map[Identifier]SlotEffect, len(r.Effects))
	for id, e := range r.Effects {
		effects[id] = e
	}
	return &EpochSummary{
		Epoch:        r.Epoch,
		Proposer:     r.Proposer,
		Pools:        r.Pools,
		Action:       r.Action,
		Next:         r.Next,
		NextProposer: r.NextProposer,
		Payments:     append([]Payment(nil), r.Payments...),
		Effects:      effects,
		Balances:     balances,
		Standings:    standings,
		Bids:         r.Bids.Strings(),
		Adjustments:  adjustments,
	}
}

// TotalBalances returns the total balance of every participant with both an account
// and a standing.
func (s *EpochSummary) TotalBalances() map[Identifier]decimal.Decimal {
	return TotalBalances(s.Balances, s.Standings)
}

// TotalBalances combines accounts and standings into total balances. Participants
// missing from either map are left out.
func TotalBalances(balances map[Identifier]Account, standings map[Identifier]Standing) map[Identifier]decimal.Decimal {
	totals := make(map[Identifier]decimal.Decimal, len(balances))
	for id, acc := range balances {
		st, ok := standings[id]
		if !ok {
			continue
		}
		totals[id] = st.TotalBalance(acc)
	}
	return totals
}

// AccountIDs returns the identifiers of all accounts in ascending order.
func (s *EpochSummary) AccountIDs() IdentifierList {
	ids := make(IdentifierList, 0, len(s.Balances))
	for id := range s.Balances {
		ids = append(ids, id)
	}
	sort.Sort(ids)
	return ids
}
