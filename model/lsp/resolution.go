package lsp

import (
	"fmt"
)

// Action is the proposer's decision as chosen by a concrete mechanism. The engine
// treats it as an opaque label.
type Action string

// PoolSide selects which of the two sampled candidate pools provides the proposers of
// the next epoch.
type PoolSide uint8

const (
	// PoolReveal is the pool used when the proposer reveals (acts honestly).
	PoolReveal PoolSide = iota
	// PoolMiss is the pool used when the proposer misses its slot.
	PoolMiss
)

func (s PoolSide) String() string {
	switch s {
	case PoolReveal:
		return "reveal"
	case PoolMiss:
		return "miss"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ParsePoolSide parses the string representation of a pool side.
func ParsePoolSide(s string) (PoolSide, error) {
	switch s {
	case "reveal":
		return PoolReveal, nil
	case "miss":
		return PoolMiss, nil
	default:
		return 0, fmt.Errorf("invalid pool side %q", s)
	}
}

// CandidatePools holds the proposer sequences of the next epoch for both possible
// actions of the current proposer. The same participant may appear in both pools
// and several times within one pool.
type CandidatePools struct {
	Reveal IdentifierList
	Miss   IdentifierList
}

// Side returns the pool belonging to the given side.
func (c CandidatePools) Side(side PoolSide) IdentifierList {
	if side == PoolMiss {
		return c.Miss
	}
	return c.Reveal
}

// NextProposer returns the last-slot proposer of the next epoch if the given side is
// chosen, i.e. the final entry of that pool.
func (c CandidatePools) NextProposer(side PoolSide) (Identifier, error) {
	id, ok := c.Side(side).Last()
	if !ok {
		return "", fmt.Errorf("candidate pool %s is empty", side)
	}
	return id, nil
}

// Resolution is the outcome of resolving the market for one proposer.
type Resolution struct {
	Action   Action
	Payments []Payment
	Next     PoolSide
}
