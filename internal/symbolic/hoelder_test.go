package symbolic

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAssignmentCloneIsIndependent(t *testing.T) {
	a := NewAssignment(NewIDSet(1, 2))
	c := a.Clone()
	c[1] = Hoelder{ID: 1, P: 1.5, Q: 3}

	if a[1].P != 2 {
		t.Errorf("clone mutated original: %v", a[1])
	}

	c.Reset()
	if c[1] != NewHoelder(1) {
		t.Errorf("Reset left %v", c[1])
	}
}

func TestAssignmentSubset(t *testing.T) {
	a := NewAssignment(NewIDSet(1, 2, 3))

	sub, err := a.Subset(NewIDSet(1, 3))
	if err != nil {
		t.Fatalf("Subset: %v", err)
	}
	want := Assignment{1: NewHoelder(1), 3: NewHoelder(3)}
	if diff := cmp.Diff(want, sub); diff != "" {
		t.Errorf("Subset mismatch (-want +got):\n%s", diff)
	}

	if _, err := a.Subset(NewIDSet(4)); !errors.Is(err, ErrParameterMismatch) {
		t.Errorf("got %v, want ErrParameterMismatch", err)
	}
}

func TestConjugateGap(t *testing.T) {
	h := Hoelder{ID: 1, P: 4, Q: 4.0 / 3}
	if g := h.ConjugateGap(); g > 1e-12 || g < -1e-12 {
		t.Errorf("gap = %g, want 0", g)
	}
	if g := NewHoelder(1).ConjugateGap(); g != 0 {
		t.Errorf("neutral gap = %g, want 0", g)
	}
}

func TestIDAllocator(t *testing.T) {
	var alloc IDAllocator
	if id := alloc.Next(); id != 1 {
		t.Errorf("first id = %d, want 1", id)
	}
	alloc.Reserve(5)
	if id := alloc.Next(); id != 6 {
		t.Errorf("id after Reserve(5) = %d, want 6", id)
	}
	alloc.Reserve(2)
	if id := alloc.Next(); id != 7 {
		t.Errorf("id after Reserve(2) = %d, want 7", id)
	}
}
