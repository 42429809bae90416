package balance

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/lsp-research/lspmarket/model/lsp"
)

// Sheet tracks how much every participant of a run paid and received. Recording a
// payment is the only way to change it; payer and payee are updated under the same
// lock, so readers never observe half of a payment.
type Sheet struct {
	mu       sync.RWMutex
	accounts map[lsp.Identifier]*lsp.Account
}

// NewSheet creates a balance sheet tracking the given participants, all with empty accounts.
func NewSheet(ids lsp.IdentifierList) *Sheet {
	accounts := make(map[lsp.Identifier]*lsp.Account, len(ids))
	for _, id := range ids {
		accounts[id] = &lsp.Account{}
	}
	return &Sheet{accounts: accounts}
}

// RecordPayment transfers amount from payer to payee.
// Expected errors during normal operations:
//   - NegativeAmountError if amount < 0
//   - UnknownParticipantError if payer or payee is not tracked
func (s *Sheet) RecordPayment(payer, payee lsp.Identifier, amount decimal.Decimal) error {
	return s.RecordPayments(lsp.Payment{Payer: payer, Payee: payee, Amount: amount})
}

// RecordPayments applies a batch of payments. The whole batch is validated before any
// account is touched: either all payments are recorded or none.
// Expected errors during normal operations:
//   - NegativeAmountError if any amount is negative
//   - UnknownParticipantError if any payer or payee is not tracked
func (s *Sheet) RecordPayments(payments ...lsp.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range payments {
		err := s.validate(p)
		if err != nil {
			return fmt.Errorf("invalid payment %d (%s): %w", i, p, err)
		}
	}

	for _, p := range payments {
		payer := s.accounts[p.Payer]
		payee := s.accounts[p.Payee]
		payer.Paid = payer.Paid.Add(p.Amount)
		payee.Received = payee.Received.Add(p.Amount)
	}
	return nil
}

func (s *Sheet) validate(p lsp.Payment) error {
	if p.Amount.IsNegative() {
		return NewNegativeAmountErrorf("amount %s is negative", p.Amount)
	}
	if _, ok := s.accounts[p.Payer]; !ok {
		return NewUnknownParticipantErrorf("unknown payer %s", p.Payer)
	}
	if _, ok := s.accounts[p.Payee]; !ok {
		return NewUnknownParticipantErrorf("unknown payee %s", p.Payee)
	}
	return nil
}

// Account returns the account of the given participant.
func (s *Sheet) Account(id lsp.Identifier) (lsp.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return lsp.Account{}, false
	}
	return *acc, true
}

// Snapshot returns a copy of all accounts.
func (s *Sheet) Snapshot() map[lsp.Identifier]lsp.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[lsp.Identifier]lsp.Account, len(s.accounts))
	for id, acc := range s.accounts {
		snapshot[id] = *acc
	}
	return snapshot
}

// Totals returns the sum of all payments made and the sum of all payments received.
// In a closed system both are always equal.
func (s *Sheet) Totals() (paid decimal.Decimal, received decimal.Decimal) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acc := range s.accounts {
		paid = paid.Add(acc.Paid)
		received = received.Add(acc.Received)
	}
	return paid, received
}

// Clone returns an independent copy of the sheet. Payments recorded on the copy do
// not affect the original, which lets callers stage a batch and swap the sheets once
// everything else succeeded.
func (s *Sheet) Clone() *Sheet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make(map[lsp.Identifier]*lsp.Account, len(s.accounts))
	for id, acc := range s.accounts {
		cp := *acc
		accounts[id] = &cp
	}
	return &Sheet{accounts: accounts}
}
