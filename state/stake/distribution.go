package stake

import (
	"fmt"
	"math"

	"github.com/onflow/flow-go/crypto/random"

	"github.com/lsp-research/lspmarket/model/lsp"
)

// Distribution is an ordered, immutable set of participants weighted by stake.
// It is safe for concurrent use.
type Distribution struct {
	participants lsp.ParticipantList
	index        map[lsp.Identifier]int
	// weightSums[i] is the cumulative stake of participants 0..i; the last entry is
	// the total stake
	weightSums []uint64
}

// NewDistribution creates a distribution over the given participants. The order of the
// participants is kept and defines the order of sampling weights.
// Expected errors during normal operations: none, all errors indicate invalid input.
func NewDistribution(participants lsp.ParticipantList) (*Distribution, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("stake distribution requires at least one participant")
	}

	d := &Distribution{
		participants: make(lsp.ParticipantList, len(participants)),
		index:        make(map[lsp.Identifier]int, len(participants)),
		weightSums:   make([]uint64, 0, len(participants)),
	}
	copy(d.participants, participants)

	var cumsum uint64
	for i, p := range d.participants {
		if p.ID == "" {
			return nil, fmt.Errorf("participant at index %d has an empty identifier", i)
		}
		if _, dup := d.index[p.ID]; dup {
			return nil, fmt.Errorf("duplicate participant %s", p.ID)
		}
		if p.Stake == 0 {
			return nil, fmt.Errorf("participant %s has zero stake", p.ID)
		}
		if p.ReputationFactor < 0 || math.IsNaN(p.ReputationFactor) {
			return nil, fmt.Errorf("participant %s has invalid reputation factor %v", p.ID, p.ReputationFactor)
		}
		if cumsum > math.MaxUint64-p.Stake {
			return nil, fmt.Errorf("total stake overflows at participant %s", p.ID)
		}
		cumsum += p.Stake
		d.index[p.ID] = i
		d.weightSums = append(d.weightSums, cumsum)
	}

	return d, nil
}

// Participants returns a copy of the ordered participant list.
func (d *Distribution) Participants() lsp.ParticipantList {
	cpy := make(lsp.ParticipantList, len(d.participants))
	copy(cpy, d.participants)
	return cpy
}

// IDs returns the participant identifiers in distribution order.
func (d *Distribution) IDs() lsp.IdentifierList {
	return d.participants.IDs()
}

// Len returns the number of participants.
func (d *Distribution) Len() int {
	return len(d.participants)
}

// TotalStake returns the sum of all stakes.
func (d *Distribution) TotalStake() uint64 {
	if len(d.weightSums) == 0 {
		return 0
	}
	return d.weightSums[len(d.weightSums)-1]
}

// ByID returns the participant with the given identifier.
func (d *Distribution) ByID(id lsp.Identifier) (lsp.Participant, bool) {
	i, ok := d.index[id]
	if !ok {
		return lsp.Participant{}, false
	}
	return d.participants[i], true
}

// Contains returns true if the identifier belongs to a member of the distribution.
func (d *Distribution) Contains(id lsp.Identifier) bool {
	_, ok := d.index[id]
	return ok
}

// StakeFraction returns stake/total stake of the given participant, or 0 for non-members.
func (d *Distribution) StakeFraction(id lsp.Identifier) float64 {
	p, ok := d.ByID(id)
	if !ok {
		return 0
	}
	return float64(p.Stake) / float64(d.TotalStake())
}

// Sample draws k participants with replacement; each draw selects a participant with
// probability stake/total stake. The result only depends on the stake weights and the
// state of the given rng.
// Expected errors during normal operations:
//   - InvalidSampleError if k <= 0, the distribution is empty or rng is nil
func (d *Distribution) Sample(rng random.Rand, k int) (lsp.IdentifierList, error) {
	if k <= 0 {
		return nil, NewInvalidSampleErrorf("sample size must be positive, got %d", k)
	}
	if d == nil || len(d.participants) == 0 {
		return nil, NewInvalidSampleErrorf("cannot sample from an empty distribution")
	}
	if rng == nil {
		return nil, NewInvalidSampleErrorf("no random source provided")
	}

	total := d.TotalStake()
	sample := make(lsp.IdentifierList, 0, k)
	for i := 0; i < k; i++ {
		// pick a random number from 0 (inclusive) to total (exclusive). Or [0, total)
		randomness := rng.UintN(total)

		// binary search to find the participant index by the random number
		idx := binarySearchStrictlyBigger(randomness, d.weightSums)
		sample = append(sample, d.participants[idx].ID)
	}
	return sample, nil
}

// SampleDisjointPair draws the two candidate proposer pools for the next epoch, one for
// each possible action of the current proposer. Both pools are independent draws, so a
// participant may appear in both of them.
// Expected errors during normal operations:
//   - InvalidSampleError if m <= 0 or n <= 0, the distribution is empty or rng is nil
func (d *Distribution) SampleDisjointPair(rng random.Rand, m, n int) (lsp.CandidatePools, error) {
	if m <= 0 || n <= 0 {
		return lsp.CandidatePools{}, NewInvalidSampleErrorf("pool sizes must be positive, got (%d, %d)", m, n)
	}
	reveal, err := d.Sample(rng, m)
	if err != nil {
		return lsp.CandidatePools{}, fmt.Errorf("could not sample reveal pool: %w", err)
	}
	miss, err := d.Sample(rng, n)
	if err != nil {
		return lsp.CandidatePools{}, fmt.Errorf("could not sample miss pool: %w", err)
	}
	return lsp.CandidatePools{Reveal: reveal, Miss: miss}, nil
}

// binarySearchStrictlyBigger finds the index of the first item in the given array that is
// strictly bigger to the given value.
// There are a few assumptions on inputs:
// - `arr` must be non-empty
// - items in `arr` must be in non-decreasing order
// - `value` must be less than the last item in `arr`
func binarySearchStrictlyBigger(value uint64, arr []uint64) int {
	left := 0
	right := len(arr) - 1
	for left < right {
		mid := int(uint(left+right) >> 1)
		if arr[mid] <= value {
			left = mid + 1
		} else {
			right = mid
		}
	}
	return left
}
