package espa

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Bid is a standing bid in the equal second price auction. A single bid expresses both
// sides of the market: how much the participant pays to get its preferred pool, and
// whether (and above which gain) it accepts bribes when it is the last-slot proposer.
type Bid struct {
	// WillingToPay is the maximum amount the participant pays individually for the side
	// it is on to win. It also is the value the participant puts on its own slots.
	WillingToPay decimal.Decimal
	// Bribable is true if the participant, as proposer, accepts to miss its slot.
	Bribable bool
	// ReputationValue is the minimum amount by which the miss side has to outbid the
	// reveal side for the participant to miss its slot.
	ReputationValue decimal.Decimal
}

func (b Bid) String() string {
	return fmt.Sprintf("pay=%s;bribable=%t;rep=%s", b.WillingToPay, b.Bribable, b.ReputationValue)
}

// MinimumGain is the margin the miss side has to exceed the reveal side by.
func (b Bid) MinimumGain() decimal.Decimal {
	return b.ReputationValue
}

// ValuationOfOwnSlots is how much the proposer values the slot it would give up.
func (b Bid) ValuationOfOwnSlots() decimal.Decimal {
	return b.WillingToPay
}

func validate(b Bid) error {
	if b.WillingToPay.IsNegative() {
		return fmt.Errorf("willing to pay %s is negative", b.WillingToPay)
	}
	if b.ReputationValue.IsNegative() {
		return fmt.Errorf("reputation value %s is negative", b.ReputationValue)
	}
	return nil
}
