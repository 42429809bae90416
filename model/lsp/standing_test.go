package lsp

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStanding_TotalBalance(t *testing.T) {
	d := decimal.NewFromInt
	acc := Account{Paid: d(10), Received: d(20)}
	s := NewStanding(Participant{ID: "a", Stake: 1, ReputationFactor: 1})
	assert.True(t, s.TotalBalance(acc).Equal(d(10)))

	acc.Paid = acc.Paid.Add(d(20))
	assert.True(t, s.TotalBalance(acc).Equal(d(-10)))

	// reputation is a cost, weighted by the factor
	s = s.Apply(SlotEffect{Reputation: d(4)})
	assert.True(t, s.ReputationCost().Equal(d(4)))
	assert.True(t, s.TotalBalance(acc).Equal(d(-14)))
	s.ReputationFactor = 2.5
	assert.True(t, s.TotalBalance(acc).Equal(d(-20)))

	s = s.Apply(SlotEffect{Earnings: d(26)})
	assert.True(t, s.TotalBalance(acc).Equal(d(6)))
	s = s.Apply(SlotEffect{Costs: d(9)})
	assert.True(t, s.TotalBalance(acc).Equal(d(-3)))

	assert.False(t, s.Participated)
}

func TestStanding_Apply(t *testing.T) {
	d := decimal.NewFromInt
	s := NewStanding(Participant{ID: "a", Stake: 1, ReputationFactor: 1})
	effect := SlotEffect{Earnings: d(100), Costs: d(200), Reputation: d(50)}

	next := s.Apply(effect).Apply(effect)
	assert.True(t, next.ExtraSlotEarnings.Equal(d(200)))
	assert.True(t, next.ExtraSlotCosts.Equal(d(400)))
	assert.True(t, next.Reputation.Equal(d(100)))
	// value receiver, the original is untouched
	assert.True(t, s.Equal(NewStanding(Participant{ID: "a", Stake: 1, ReputationFactor: 1})))

	assert.True(t, SlotEffect{}.IsZero())
	assert.False(t, effect.IsZero())
}
