package lsp

import (
	"fmt"
)

// Participant is a market actor (cluster) with a stake proportional influence over
// proposer selection. Stake is counted in validators and must be positive.
type Participant struct {
	ID    Identifier
	Stake uint64
	// ReputationFactor scales the reputational cost a participant incurs when, as
	// proposer, it deviates from honest behaviour.
	ReputationFactor float64
}

func (p Participant) String() string {
	return fmt.Sprintf("%s(stake=%d)", p.ID, p.Stake)
}

// ParticipantList is an ordered list of participants.
type ParticipantList []Participant

// IDs returns the identifiers of all participants, in list order.
func (pl ParticipantList) IDs() IdentifierList {
	ids := make(IdentifierList, 0, len(pl))
	for _, p := range pl {
		ids = append(ids, p.ID)
	}
	return ids
}

// ByID returns the participant with the given identifier.
func (pl ParticipantList) ByID(id Identifier) (Participant, bool) {
	for _, p := range pl {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// TotalStake returns the sum of all participant stakes. Callers must make sure the
// sum does not overflow.
func (pl ParticipantList) TotalStake() uint64 {
	var total uint64
	for _, p := range pl {
		total += p.Stake
	}
	return total
}
