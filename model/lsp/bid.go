package lsp

import (
	"sort"
)

// Bid is the per-mechanism bid payload. The simulation engine never looks inside a
// bid; the canonical string representation is used to break ties deterministically
// and to report bids to external collaborators.
type Bid interface {
	String() string
}

// BidSnapshot is a point-in-time copy of a participant to bid mapping. A participant
// without a key has no bid.
type BidSnapshot[B Bid] map[Identifier]B

// Clone returns a copy of the snapshot that can be modified independently.
func (s BidSnapshot[B]) Clone() BidSnapshot[B] {
	cpy := make(BidSnapshot[B], len(s))
	for id, bid := range s {
		cpy[id] = bid
	}
	return cpy
}

// With returns a copy of the snapshot in which the given participant's bid is replaced.
func (s BidSnapshot[B]) With(id Identifier, bid B) BidSnapshot[B] {
	cpy := s.Clone()
	cpy[id] = bid
	return cpy
}

// IDs returns the identifiers of all bidders in ascending order.
func (s BidSnapshot[B]) IDs() IdentifierList {
	ids := make(IdentifierList, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Sort(ids)
	return ids
}

// Strings returns the canonical representation of every bid.
func (s BidSnapshot[B]) Strings() map[Identifier]string {
	out := make(map[Identifier]string, len(s))
	for id, bid := range s {
		out[id] = bid.String()
	}
	return out
}

// Equal reports whether both snapshots hold the same bidders with the same canonical bids.
func (s BidSnapshot[B]) Equal(other BidSnapshot[B]) bool {
	if len(s) != len(other) {
		return false
	}
	for id, bid := range s {
		o, ok := other[id]
		if !ok || o.String() != bid.String() {
			return false
		}
	}
	return true
}
