package symbolic

import (
	"fmt"
	"sort"
)

// HoelderID identifies a Hölder parameter within one bound computation.
type HoelderID int

// Hoelder is a conjugate pair (p, q) used to split a bound over dependent
// processes. P and Q are stored independently; keeping 1/p + 1/q = 1 is
// left to whoever steps them.
type Hoelder struct {
	ID HoelderID
	P  float64
	Q  float64
}

// NewHoelder returns the neutral pair p = q = 2.
func NewHoelder(id HoelderID) Hoelder {
	return Hoelder{ID: id, P: 2, Q: 2}
}

// Value returns P when useP is set, Q otherwise.
func (h Hoelder) Value(useP bool) float64 {
	if useP {
		return h.P
	}
	return h.Q
}

// ConjugateGap returns 1/p + 1/q - 1, which is zero for a proper pair.
func (h Hoelder) ConjugateGap() float64 {
	return 1/h.P + 1/h.Q - 1
}

func (h Hoelder) String() string {
	return fmt.Sprintf("hoelder(%d: p=%g, q=%g)", h.ID, h.P, h.Q)
}

// Assignment maps every Hölder id to its current value. It is the search
// position handed to each evaluation.
type Assignment map[HoelderID]Hoelder

// NewAssignment creates neutral parameters for every id in ids.
func NewAssignment(ids IDSet) Assignment {
	a := make(Assignment, len(ids))
	for id := range ids {
		a[id] = NewHoelder(id)
	}
	return a
}

// Clone returns an independent copy.
func (a Assignment) Clone() Assignment {
	c := make(Assignment, len(a))
	for id, h := range a {
		c[id] = h
	}
	return c
}

// Reset puts every parameter back to p = q = 2. Entries that are already
// neutral are not written, so resetting a neutral assignment is read-only.
func (a Assignment) Reset() {
	for id, h := range a {
		if n := NewHoelder(id); h != n {
			a[id] = n
		}
	}
}

// IDs returns the parameter ids in ascending order.
func (a Assignment) IDs() []HoelderID {
	ids := make([]HoelderID, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Subset returns the entries named by ids. Missing ids are reported as a
// parameter mismatch.
func (a Assignment) Subset(ids IDSet) (Assignment, error) {
	sub := make(Assignment, len(ids))
	for _, id := range ids.Sorted() {
		h, ok := a[id]
		if !ok {
			return nil, fmt.Errorf("%w: hoelder %d not supplied", ErrParameterMismatch, id)
		}
		sub[id] = h
	}
	return sub, nil
}

// IDSet is a set of Hölder ids.
type IDSet map[HoelderID]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...HoelderID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in the set.
func (s IDSet) Contains(id HoelderID) bool {
	_, ok := s[id]
	return ok
}

// Union returns a new set holding the ids of s and every other set.
func (s IDSet) Union(others ...IDSet) IDSet {
	u := make(IDSet, len(s))
	for id := range s {
		u[id] = struct{}{}
	}
	for _, o := range others {
		for id := range o {
			u[id] = struct{}{}
		}
	}
	return u
}

// Sorted returns the ids in ascending order.
func (s IDSet) Sorted() []HoelderID {
	ids := make([]HoelderID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IDAllocator hands out fresh Hölder ids for one bound computation.
// The zero value starts at 1.
type IDAllocator struct {
	last HoelderID
}

// Next returns an id that has not been handed out before.
func (a *IDAllocator) Next() HoelderID {
	a.last++
	return a.last
}

// Reserve makes sure later calls to Next never return id.
func (a *IDAllocator) Reserve(id HoelderID) {
	if id > a.last {
		a.last = id
	}
}
