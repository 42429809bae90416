package simulation

import (
	"fmt"

	"github.com/onflow/flow-go/crypto/random"

	"github.com/lsp-research/lspmarket/model/lsp"
)

// StopPolicy decides when a run ends. It is consulted once before the first epoch with
// epochs == 0 and a nil record, and after every epoch with the number of completed
// epochs and the epoch's record.
type StopPolicy[B lsp.Bid] interface {
	ShouldStop(epochs uint64, last *lsp.EpochRecord[B]) bool
}

// StopFunc adapts a plain function to the StopPolicy interface.
type StopFunc[B lsp.Bid] func(epochs uint64, last *lsp.EpochRecord[B]) bool

func (f StopFunc[B]) ShouldStop(epochs uint64, last *lsp.EpochRecord[B]) bool {
	return f(epochs, last)
}

// MaxEpochs stops the run after n epochs.
func MaxEpochs[B lsp.Bid](n uint64) StopPolicy[B] {
	return StopFunc[B](func(epochs uint64, _ *lsp.EpochRecord[B]) bool {
		return epochs >= n
	})
}

// AnyOf stops as soon as one of the given policies does. All policies are consulted on
// every call, so stateful policies observe every epoch.
func AnyOf[B lsp.Bid](policies ...StopPolicy[B]) StopPolicy[B] {
	return StopFunc[B](func(epochs uint64, last *lsp.EpochRecord[B]) bool {
		stop := false
		for _, p := range policies {
			if p.ShouldStop(epochs, last) {
				stop = true
			}
		}
		return stop
	})
}

// bidsStable stops once no participant changed its bid for a number of consecutive epochs.
type bidsStable[B lsp.Bid] struct {
	window uint64
	streak uint64
}

// BidsStable stops the run once bids stayed unchanged for `window` consecutive epochs.
// The returned policy is stateful and must not be shared between runs.
func BidsStable[B lsp.Bid](window uint64) StopPolicy[B] {
	return &bidsStable[B]{window: window}
}

func (s *bidsStable[B]) ShouldStop(_ uint64, last *lsp.EpochRecord[B]) bool {
	if last == nil {
		return false
	}
	changed := false
	for _, a := range last.Adjustments {
		if a.Changed {
			changed = true
			break
		}
	}
	if changed {
		s.streak = 0
	} else {
		s.streak++
	}
	return s.streak >= s.window
}

// AdjustPolicy selects the participants that revise their bid at the end of an epoch.
// The runner processes the selection in id order, whatever order it is returned in.
type AdjustPolicy interface {
	Select(epoch uint64, participants lsp.IdentifierList, rng random.Rand) (lsp.IdentifierList, error)
}

// AdjustFunc adapts a plain function to the AdjustPolicy interface.
type AdjustFunc func(epoch uint64, participants lsp.IdentifierList, rng random.Rand) (lsp.IdentifierList, error)

func (f AdjustFunc) Select(epoch uint64, participants lsp.IdentifierList, rng random.Rand) (lsp.IdentifierList, error) {
	return f(epoch, participants, rng)
}

// AdjustNone never lets anybody adjust.
func AdjustNone() AdjustPolicy {
	return AdjustFunc(func(uint64, lsp.IdentifierList, random.Rand) (lsp.IdentifierList, error) {
		return nil, nil
	})
}

// AdjustAll lets every participant adjust in every epoch.
func AdjustAll() AdjustPolicy {
	return AdjustFunc(func(_ uint64, participants lsp.IdentifierList, _ random.Rand) (lsp.IdentifierList, error) {
		return participants.Copy(), nil
	})
}

// AdjustRandomSubset lets k participants, drawn uniformly without replacement, adjust in
// every epoch. If there are at most k participants, all of them adjust.
func AdjustRandomSubset(k int) AdjustPolicy {
	return AdjustFunc(func(_ uint64, participants lsp.IdentifierList, rng random.Rand) (lsp.IdentifierList, error) {
		if k <= 0 {
			return nil, nil
		}
		if k >= len(participants) {
			return participants.Copy(), nil
		}
		shuffled := participants.Copy()
		err := rng.Samples(len(shuffled), k, func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		if err != nil {
			return nil, fmt.Errorf("could not sample adjusting participants: %w", err)
		}
		return shuffled[:k].Sorted(), nil
	})
}
