package lsp

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Payment is a single transfer from payer to payee produced by market resolution.
type Payment struct {
	Payer  Identifier
	Payee  Identifier
	Amount decimal.Decimal
}

func (p Payment) String() string {
	return fmt.Sprintf("%s->%s:%s", p.Payer, p.Payee, p.Amount.String())
}

// Account holds the running totals of what a participant paid and received.
// Both totals only ever grow.
type Account struct {
	Paid     decimal.Decimal
	Received decimal.Decimal
}

// Net returns received minus paid.
func (a Account) Net() decimal.Decimal {
	return a.Received.Sub(a.Paid)
}

// IsZero returns true if the account never paid nor received anything.
func (a Account) IsZero() bool {
	return a.Paid.IsZero() && a.Received.IsZero()
}

// Equal compares two accounts by value, ignoring the decimal exponent.
func (a Account) Equal(other Account) bool {
	return a.Paid.Equal(other.Paid) && a.Received.Equal(other.Received)
}
