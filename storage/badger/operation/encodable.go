package operation

import (
	"fmt"
	"sort"
	"time"

	"github.com/coreos/go-semver/semver"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lsp-research/lspmarket/model/lsp"
	"github.com/lsp-research/lspmarket/storage"
)

// Decimals are stored in their canonical string form so the exact value survives a
// round trip through msgpack.

type encodableParticipant struct {
	ID               string
	Stake            uint64
	ReputationFactor float64
}

type encodableRun struct {
	ID           []byte
	Mechanism    string
	Seed         uint64
	Participants []encodableParticipant
	StartedAt    int64
	Version      string
}

type encodablePayment struct {
	Payer  string
	Payee  string
	Amount string
}

type encodableAccount struct {
	ID       string
	Paid     string
	Received string
}

type encodableEffect struct {
	ID         string
	Earnings   string
	Costs      string
	Reputation string
}

type encodableStanding struct {
	ID                string
	ExtraSlotEarnings string
	ExtraSlotCosts    string
	Reputation        string
	ReputationFactor  float64
	Participated      bool
}

type encodableBid struct {
	ID  string
	Bid string
}

type encodableAdjustment struct {
	Participant string
	Bid         string
	Utility     float64
	StdErr      float64
	Changed     bool
}

type encodableSummary struct {
	Epoch        uint64
	Proposer     string
	Reveal       []string
	Miss         []string
	Action       string
	Next         uint8
	NextProposer string
	Payments     []encodablePayment
	Effects      []encodableEffect
	Balances     []encodableAccount
	Standings    []encodableStanding
	Bids         []encodableBid
	Adjustments  []encodableAdjustment
}

func encodableFromRun(run *storage.RunInfo) encodableRun {
	participants := make([]encodableParticipant, 0, len(run.Participants))
	for _, p := range run.Participants {
		participants = append(participants, encodableParticipant{
			ID:               string(p.ID),
			Stake:            p.Stake,
			ReputationFactor: p.ReputationFactor,
		})
	}
	return encodableRun{
		ID:           run.ID[:],
		Mechanism:    run.Mechanism,
		Seed:         run.Seed,
		Participants: participants,
		StartedAt:    run.StartedAt.UnixNano(),
		Version:      storage.SchemaVersion.String(),
	}
}

func runFromEncodable(enc encodableRun) (*storage.RunInfo, error) {
	id, err := uuid.FromBytes(enc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid run id: %w", err)
	}
	version, err := semver.NewVersion(enc.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid schema version %q of run %s: %w", enc.Version, id, err)
	}
	participants := make(lsp.ParticipantList, 0, len(enc.Participants))
	for _, p := range enc.Participants {
		participants = append(participants, lsp.Participant{
			ID:               lsp.Identifier(p.ID),
			Stake:            p.Stake,
			ReputationFactor: p.ReputationFactor,
		})
	}
	return &storage.RunInfo{
		ID:           id,
		Mechanism:    enc.Mechanism,
		Seed:         enc.Seed,
		Participants: participants,
		StartedAt:    time.Unix(0, enc.StartedAt).UTC(),
		Version:      *version,
	}, nil
}

func encodableFromSummary(s *lsp.EpochSummary) encodableSummary {
	enc := encodableSummary{
		Epoch:        s.Epoch,
		Proposer:     string(s.Proposer),
		Reveal:       s.Pools.Reveal.Strings(),
		Miss:         s.Pools.Miss.Strings(),
		Action:       string(s.Action),
		Next:         uint8(s.Next),
		NextProposer: string(s.NextProposer),
		Payments:     make([]encodablePayment, 0, len(s.Payments)),
		Effects:      make([]encodableEffect, 0, len(s.Effects)),
		Balances:     make([]encodableAccount, 0, len(s.Balances)),
		Standings:    make([]encodableStanding, 0, len(s.Standings)),
		Bids:         make([]encodableBid, 0, len(s.Bids)),
		Adjustments:  make([]encodableAdjustment, 0, len(s.Adjustments)),
	}
	for _, p := range s.Payments {
		enc.Payments = append(enc.Payments, encodablePayment{
			Payer:  string(p.Payer),
			Payee:  string(p.Payee),
			Amount: p.Amount.String(),
		})
	}
	for _, id := range s.AccountIDs() {
		acc := s.Balances[id]
		enc.Balances = append(enc.Balances, encodableAccount{
			ID:       string(id),
			Paid:     acc.Paid.String(),
			Received: acc.Received.String(),
		})
	}
	for _, id := range sortedIDs(s.Effects) {
		e := s.Effects[id]
		enc.Effects = append(enc.Effects, encodableEffect{
			ID:         string(id),
			Earnings:   e.Earnings.String(),
			Costs:      e.Costs.String(),
			Reputation: e.Reputation.String(),
		})
	}
	for _, id := range sortedIDs(s.Standings) {
		st := s.Standings[id]
		enc.Standings = append(enc.Standings, encodableStanding{
			ID:                string(id),
			ExtraSlotEarnings: st.ExtraSlotEarnings.String(),
			ExtraSlotCosts:    st.ExtraSlotCosts.String(),
			Reputation:        st.Reputation.String(),
			ReputationFactor:  st.ReputationFactor,
			Participated:      st.Participated,
		})
	}
	bidders := make([]string, 0, len(s.Bids))
	for id := range s.Bids {
		bidders = append(bidders, string(id))
	}
	sort.Strings(bidders)
	for _, id := range bidders {
		enc.Bids = append(enc.Bids, encodableBid{ID: id, Bid: s.Bids[lsp.Identifier(id)]})
	}
	for _, a := range s.Adjustments {
		enc.Adjustments = append(enc.Adjustments, encodableAdjustment{
			Participant: string(a.Participant),
			Bid:         a.Bid,
			Utility:     a.Utility,
			StdErr:      a.StdErr,
			Changed:     a.Changed,
		})
	}
	return enc
}

func summaryFromEncodable(enc encodableSummary) (*lsp.EpochSummary, error) {
	s := &lsp.EpochSummary{
		Epoch:    enc.Epoch,
		Proposer: lsp.Identifier(enc.Proposer),
		Pools: lsp.CandidatePools{
			Reveal: identifiers(enc.Reveal),
			Miss:   identifiers(enc.Miss),
		},
		Action:       lsp.Action(enc.Action),
		Next:         lsp.PoolSide(enc.Next),
		NextProposer: lsp.Identifier(enc.NextProposer),
		Payments:     make([]lsp.Payment, 0, len(enc.Payments)),
		Effects:      make(map[lsp.Identifier]lsp.SlotEffect, len(enc.Effects)),
		Balances:     make(map[lsp.Identifier]lsp.Account, len(enc.Balances)),
		Standings:    make(map[lsp.Identifier]lsp.Standing, len(enc.Standings)),
		Bids:         make(map[lsp.Identifier]string, len(enc.Bids)),
		Adjustments:  make([]lsp.AdjustmentSummary, 0, len(enc.Adjustments)),
	}
	for _, p := range enc.Payments {
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid payment amount %q: %w", p.Amount, err)
		}
		s.Payments = append(s.Payments, lsp.Payment{
			Payer:  lsp.Identifier(p.Payer),
			Payee:  lsp.Identifier(p.Payee),
			Amount: amount,
		})
	}
	for _, a := range enc.Balances {
		paid, err := decimal.NewFromString(a.Paid)
		if err != nil {
			return nil, fmt.Errorf("invalid paid total of %s: %w", a.ID, err)
		}
		received, err := decimal.NewFromString(a.Received)
		if err != nil {
			return nil, fmt.Errorf("invalid received total of %s: %w", a.ID, err)
		}
		s.Balances[lsp.Identifier(a.ID)] = lsp.Account{Paid: paid, Received: received}
	}
	for _, e := range enc.Effects {
		amounts, err := decimals(e.Earnings, e.Costs, e.Reputation)
		if err != nil {
			return nil, fmt.Errorf("invalid slot effect of %s: %w", e.ID, err)
		}
		s.Effects[lsp.Identifier(e.ID)] = lsp.SlotEffect{
			Earnings:   amounts[0],
			Costs:      amounts[1],
			Reputation: amounts[2],
		}
	}
	for _, st := range enc.Standings {
		amounts, err := decimals(st.ExtraSlotEarnings, st.ExtraSlotCosts, st.Reputation)
		if err != nil {
			return nil, fmt.Errorf("invalid standing of %s: %w", st.ID, err)
		}
		s.Standings[lsp.Identifier(st.ID)] = lsp.Standing{
			ExtraSlotEarnings: amounts[0],
			ExtraSlotCosts:    amounts[1],
			Reputation:        amounts[2],
			ReputationFactor:  st.ReputationFactor,
			Participated:      st.Participated,
		}
	}
	for _, b := range enc.Bids {
		s.Bids[lsp.Identifier(b.ID)] = b.Bid
	}
	for _, a := range enc.Adjustments {
		s.Adjustments = append(s.Adjustments, lsp.AdjustmentSummary{
			Participant: lsp.Identifier(a.Participant),
			Bid:         a.Bid,
			Utility:     a.Utility,
			StdErr:      a.StdErr,
			Changed:     a.Changed,
		})
	}
	return s, nil
}

func identifiers(ids []string) lsp.IdentifierList {
	list := make(lsp.IdentifierList, 0, len(ids))
	for _, id := range ids {
		list = append(list, lsp.Identifier(id))
	}
	return list
}

func decimals(values ...string) ([]decimal.Decimal, error) {
	parsed := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, d)
	}
	return parsed, nil
}

func sortedIDs[V any](m map[lsp.Identifier]V) lsp.IdentifierList {
	ids := make(lsp.IdentifierList, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Sort(ids)
	return ids
}
