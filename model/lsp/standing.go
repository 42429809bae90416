package lsp

import (
	"github.com/shopspring/decimal"
)

// SlotEffect is what the resolution of one epoch changed for a participant besides
// payments, measured against the honest outcome in which the reveal pool is selected.
type SlotEffect struct {
	// Earnings is the value of the slots gained over the honest outcome.
	Earnings decimal.Decimal
	// Costs is the value of the slots lost against the honest outcome, including the
	// proposer's own missed slot.
	Costs decimal.Decimal
	// Reputation is the reputation lost by a proposer that missed its slot.
	Reputation decimal.Decimal
}

// IsZero returns true if the effect changes nothing.
func (e SlotEffect) IsZero() bool {
	return e.Earnings.IsZero() && e.Costs.IsZero() && e.Reputation.IsZero()
}

// Standing accumulates everything a participant gained or lost through the market
// that is not a payment. Together with the participant's Account it gives the total
// balance.
type Standing struct {
	ExtraSlotEarnings decimal.Decimal
	ExtraSlotCosts    decimal.Decimal
	Reputation        decimal.Decimal
	ReputationFactor  float64
	// Participated is true once the participant placed a bid.
	Participated bool
}

// NewStanding returns the empty standing of the given participant.
func NewStanding(p Participant) Standing {
	return Standing{ReputationFactor: p.ReputationFactor}
}

// Apply returns the standing after the given effect.
func (s Standing) Apply(e SlotEffect) Standing {
	s.ExtraSlotEarnings = s.ExtraSlotEarnings.Add(e.Earnings)
	s.ExtraSlotCosts = s.ExtraSlotCosts.Add(e.Costs)
	s.Reputation = s.Reputation.Add(e.Reputation)
	return s
}

// ReputationCost is the lost reputation weighted by how much the participant values it.
func (s Standing) ReputationCost() decimal.Decimal {
	return s.Reputation.Mul(decimal.NewFromFloat(s.ReputationFactor))
}

// TotalBalance returns what the participant earned from the market overall: net
// payments plus extra slot earnings, minus extra slot costs and reputation cost.
// A participant that never bid may still end up negative when others take its slots.
func (s Standing) TotalBalance(acc Account) decimal.Decimal {
	return acc.Net().
		Add(s.ExtraSlotEarnings).
		Sub(s.ExtraSlotCosts).
		Sub(s.ReputationCost())
}

// Equal compares two standings by value, ignoring the decimal exponent.
func (s Standing) Equal(other Standing) bool {
	return s.ExtraSlotEarnings.Equal(other.ExtraSlotEarnings) &&
		s.ExtraSlotCosts.Equal(other.ExtraSlotCosts) &&
		s.Reputation.Equal(other.Reputation) &&
		s.ReputationFactor == other.ReputationFactor &&
		s.Participated == other.Participated
}
