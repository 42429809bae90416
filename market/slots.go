package market

import (
	"github.com/shopspring/decimal"

	"github.com/lsp-research/lspmarket/model/lsp"
)

// DefaultProposerSlotValue is the value of proposing one slot, in the unit payments are
// denominated in.
const DefaultProposerSlotValue = 100

// Scenario is one sampled outcome of proposer selection: the proposer of the current
// epoch and the candidate pools of the next epoch.
type Scenario struct {
	Proposer lsp.Identifier
	Pools    lsp.CandidatePools
}

// SlotGain returns slotValue times the number of slots the participant proposes in the
// pool selected by the resolution.
func SlotGain(slotValue float64, participant lsp.Identifier, pools lsp.CandidatePools, res *lsp.Resolution) float64 {
	return slotValue * float64(pools.Side(res.Next).Count(participant))
}

// NetTransfer returns everything the participant received minus everything it paid in
// the given payments.
func NetTransfer(participant lsp.Identifier, payments []lsp.Payment) float64 {
	var net float64
	for _, p := range payments {
		if p.Payee == participant {
			net += p.Amount.InexactFloat64()
		}
		if p.Payer == participant {
			net -= p.Amount.InexactFloat64()
		}
	}
	return net
}

// Valuation holds what slots and reputation are worth to participants. It turns a
// resolution into the slot effects recorded next to the payments.
type Valuation struct {
	// SlotValue is the value of proposing a single slot.
	SlotValue float64
	// ReputationCost is the reputation a proposer loses by missing its slot.
	ReputationCost float64
}

// DefaultValuation values slots and reputation at DefaultProposerSlotValue.
func DefaultValuation() Valuation {
	return Valuation{
		SlotValue:      DefaultProposerSlotValue,
		ReputationCost: DefaultProposerSlotValue,
	}
}

// SlotEffects returns the non-zero slot effects of a resolution, measured against the
// honest outcome in which the proposer reveals and the reveal pool is selected.
// When the miss pool is selected, every participant gains or loses the difference of
// its slot counts in both pools, and the proposer additionally loses its own last
// slot and reputation.
func (v Valuation) SlotEffects(proposer lsp.Identifier, pools lsp.CandidatePools, res *lsp.Resolution) map[lsp.Identifier]lsp.SlotEffect {
	effects := make(map[lsp.Identifier]lsp.SlotEffect)
	if res.Next != lsp.PoolMiss {
		return effects
	}

	slot := decimal.NewFromFloat(v.SlotValue)
	counts := make(map[lsp.Identifier]int64)
	for _, id := range pools.Miss {
		counts[id]++
	}
	for _, id := range pools.Reveal {
		counts[id]--
	}
	for id, diff := range counts {
		var e lsp.SlotEffect
		switch {
		case diff > 0:
			e.Earnings = slot.Mul(decimal.NewFromInt(diff))
		case diff < 0:
			e.Costs = slot.Mul(decimal.NewFromInt(-diff))
		}
		if e.IsZero() {
			continue
		}
		effects[id] = e
	}

	e := effects[proposer]
	e.Costs = e.Costs.Add(slot)
	e.Reputation = e.Reputation.Add(decimal.NewFromFloat(v.ReputationCost))
	if e.IsZero() {
		delete(effects, proposer)
	} else {
		effects[proposer] = e
	}
	return effects
}
