package espa

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/lsp-research/lspmarket/model/lsp"
)

// paymentPrecision is the number of decimal places individual payments are truncated to.
const paymentPrecision = 8

// entry is one willingness to pay on one side of the auction. A participant has one
// entry per slot it would get from its side winning.
type entry struct {
	id     lsp.Identifier
	amount decimal.Decimal
}

// sortDesc orders entries by amount, largest first; equal amounts are ordered by id.
func sortDesc(entries []entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		c := entries[i].amount.Cmp(entries[j].amount)
		if c != 0 {
			return c > 0
		}
		return entries[i].id < entries[j].id
	})
}

// CollectiveBid returns the maximum amount a side is willing to pay collectively when
// every member either pays nothing or the same share as every other payer:
// max_i sorted_desc[i] * (i+1). An empty side bids zero.
func CollectiveBid(amounts []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(amounts))
	copy(sorted, amounts)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].GreaterThan(sorted[j])
	})

	best := decimal.Zero
	for i, a := range sorted {
		candidate := a.Mul(decimal.NewFromInt(int64(i + 1)))
		if candidate.GreaterThan(best) {
			best = candidate
		}
	}
	return best
}

func amounts(entries []entry) []decimal.Decimal {
	list := make([]decimal.Decimal, 0, len(entries))
	for _, e := range entries {
		list = append(list, e.amount)
	}
	return list
}

// splitPrice distributes price over the winning side. The largest number N of top
// entries is chosen such that each of them can afford price/N; each pays that share.
// Payments are aggregated per payer and ordered by payer id. Payments from the
// payee to itself are dropped.
func splitPrice(winners []entry, price decimal.Decimal, payee lsp.Identifier) []lsp.Payment {
	if !price.IsPositive() || len(winners) == 0 {
		return nil
	}
	sorted := make([]entry, len(winners))
	copy(sorted, winners)
	sortDesc(sorted)

	n := 0
	for i := len(sorted); i > 0; i-- {
		if sorted[i-1].amount.Mul(decimal.NewFromInt(int64(i))).GreaterThanOrEqual(price) {
			n = i
			break
		}
	}
	if n == 0 {
		return nil
	}

	share := price.Div(decimal.NewFromInt(int64(n))).Truncate(paymentPrecision)
	owed := make(map[lsp.Identifier]decimal.Decimal)
	for _, e := range sorted[:n] {
		if e.id == payee {
			continue
		}
		owed[e.id] = owed[e.id].Add(share)
	}

	payers := make(lsp.IdentifierList, 0, len(owed))
	for id := range owed {
		payers = append(payers, id)
	}
	sort.Sort(payers)

	payments := make([]lsp.Payment, 0, len(payers))
	for _, id := range payers {
		if owed[id].IsZero() {
			continue
		}
		payments = append(payments, lsp.Payment{Payer: id, Payee: payee, Amount: owed[id]})
	}
	return payments
}
