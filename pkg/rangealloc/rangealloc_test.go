package rangealloc

import (
	"testing"

	"vmkernel.dev/core/pkg/hostarch"
)

const pageSize = hostarch.PageSize

func TestReserveCarvesFromFront(t *testing.T) {
	a, err := New(0, 4*pageSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r, ok := a.Reserve(pageSize)
	if !ok {
		t.Fatalf("Reserve failed on a fresh allocator")
	}
	want := hostarch.AddrRange{Start: 0, End: hostarch.Addr(pageSize)}
	if r != want {
		t.Errorf("Reserve() = %v, want %v", r, want)
	}
	if got := a.FreeBytes(); got != 3*pageSize {
		t.Errorf("FreeBytes() = %d, want %d", got, 3*pageSize)
	}
}

func TestReserveExhaustion(t *testing.T) {
	a, _ := New(0, pageSize)
	if _, ok := a.Reserve(pageSize); !ok {
		t.Fatalf("first Reserve should succeed")
	}
	if _, ok := a.Reserve(pageSize); ok {
		t.Errorf("second Reserve on an exhausted allocator should fail")
	}
}

func TestReserveAtExactRange(t *testing.T) {
	a, _ := New(0, 4*pageSize)
	base := hostarch.Addr(2 * pageSize)
	r, ok := a.ReserveAt(base, pageSize)
	if !ok {
		t.Fatalf("ReserveAt on a free span should succeed")
	}
	if r.Start != base {
		t.Errorf("ReserveAt start = %#x, want %#x", r.Start, base)
	}
	if _, ok := a.ReserveAt(base, pageSize); ok {
		t.Errorf("ReserveAt on an already-reserved span should fail")
	}
}

func TestReleaseMergesAdjacentFreeRanges(t *testing.T) {
	a, _ := New(0, 4*pageSize)
	r1, _ := a.Reserve(pageSize)
	r2, _ := a.Reserve(pageSize)

	a.Release(r1)
	a.Release(r2)

	// The whole extent should be free and, crucially, merged back into a
	// single reservable span rather than left fragmented.
	full, ok := a.Reserve(4 * pageSize)
	if !ok {
		t.Fatalf("expected the full extent to be reservable after releasing all carved sub-ranges")
	}
	want := hostarch.AddrRange{Start: 0, End: hostarch.Addr(4 * pageSize)}
	if full != want {
		t.Errorf("Reserve(4*pageSize) = %v, want %v", full, want)
	}
}

func TestReleaseOverlapPanics(t *testing.T) {
	a, _ := New(0, 2*pageSize)
	r, _ := a.Reserve(pageSize)
	a.Release(r)

	defer func() {
		if recover() == nil {
			t.Errorf("expected double Release to panic")
		}
	}()
	a.Release(r)
}

func TestReserveRejectsUnalignedSize(t *testing.T) {
	a, _ := New(0, 4*pageSize)
	if _, ok := a.Reserve(pageSize / 2); ok {
		t.Errorf("Reserve with a sub-page size should fail")
	}
}

func TestNewRejectsUnalignedBase(t *testing.T) {
	if _, err := New(1, pageSize); err == nil {
		t.Errorf("New with an unaligned base should fail")
	}
}

func TestContainsChecksExtentNotReservationState(t *testing.T) {
	a, _ := New(hostarch.Addr(pageSize), 4*pageSize)
	inside := hostarch.AddrRange{Start: hostarch.Addr(pageSize), End: hostarch.Addr(2 * pageSize)}
	if !a.Contains(inside) {
		t.Errorf("Contains(%v) = false, want true (within extent)", inside)
	}
	outside := hostarch.AddrRange{Start: 0, End: hostarch.Addr(pageSize)}
	if a.Contains(outside) {
		t.Errorf("Contains(%v) = true, want false (below extent)", outside)
	}
	// Contains reflects the extent, not current reservation state.
	r, ok := a.Reserve(pageSize)
	if !ok {
		t.Fatalf("Reserve failed")
	}
	if !a.Contains(r) {
		t.Errorf("Contains(%v) = false after reserving it, want true", r)
	}
}
