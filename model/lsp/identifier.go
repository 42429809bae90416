package lsp

import (
	"sort"
)

// Identifier uniquely identifies a participant (cluster) within a stake distribution.
type Identifier string

func (id Identifier) String() string {
	return string(id)
}

// IdentifierList is an ordered list of participant identifiers. Lists produced by
// sampling may contain the same identifier more than once.
type IdentifierList []Identifier

// Len returns length of the IdentiferList in the number of stored identifiers.
// It satisfies the sort.Interface making the IdentifierList sortable.
func (il IdentifierList) Len() int {
	return len(il)
}

// Less returns true if element i in the IdentifierList is less than j based on its identifier.
// It satisfies the sort.Interface making the IdentifierList sortable.
func (il IdentifierList) Less(i, j int) bool {
	return il[i] < il[j]
}

// Swap swaps the element i and j in the IdentifierList.
// It satisfies the sort.Interface making the IdentifierList sortable.
func (il IdentifierList) Swap(i, j int) {
	il[j], il[i] = il[i], il[j]
}

// Copy returns a copy of the list.
func (il IdentifierList) Copy() IdentifierList {
	cpy := make(IdentifierList, len(il))
	copy(cpy, il)
	return cpy
}

// Sorted returns a sorted copy of the list.
func (il IdentifierList) Sorted() IdentifierList {
	cpy := il.Copy()
	sort.Sort(cpy)
	return cpy
}

// Contains returns whether the list contains the given identifier at least once.
func (il IdentifierList) Contains(target Identifier) bool {
	for _, id := range il {
		if id == target {
			return true
		}
	}
	return false
}

// Count returns how many times the given identifier appears in the list.
func (il IdentifierList) Count(target Identifier) int {
	n := 0
	for _, id := range il {
		if id == target {
			n++
		}
	}
	return n
}

// Last returns the final identifier of the list.
func (il IdentifierList) Last() (Identifier, bool) {
	if len(il) == 0 {
		return "", false
	}
	return il[len(il)-1], true
}

// Strings returns the identifiers as plain strings, in list order.
func (il IdentifierList) Strings() []string {
	list := make([]string, 0, len(il))
	for _, id := range il {
		list = append(list, id.String())
	}
	return list
}

// CancelCommon removes from both lists the identifiers they have in common, counting
// multiplicity: an identifier appearing x times in a and y times in b is kept
// max(x-y, 0) times in the first result and max(y-x, 0) times in the second.
// Relative order of the remaining entries is preserved.
func CancelCommon(a, b IdentifierList) (IdentifierList, IdentifierList) {
	inA := make(map[Identifier]int, len(a))
	for _, id := range a {
		inA[id]++
	}
	inB := make(map[Identifier]int, len(b))
	for _, id := range b {
		inB[id]++
	}

	keep := func(list IdentifierList, own, other map[Identifier]int) IdentifierList {
		// number of leading occurrences to drop for each identifier
		drop := make(map[Identifier]int, len(own))
		for id, n := range own {
			m := other[id]
			if m > n {
				m = n
			}
			drop[id] = m
		}
		result := make(IdentifierList, 0, len(list))
		for _, id := range list {
			if drop[id] > 0 {
				drop[id]--
				continue
			}
			result = append(result, id)
		}
		return result
	}

	return keep(a, inA, inB), keep(b, inB, inA)
}
