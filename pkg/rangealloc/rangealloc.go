// Package rangealloc implements the per-address-space Range Allocator:
// a page-granular allocator of virtual-address intervals supporting
// reserve, carve-out and release, the structure PageDirectory's
// RangeAllocator() and IdentityRangeAllocator() each return an instance of.
package rangealloc

import (
	"fmt"

	"vmkernel.dev/core/pkg/hostarch"
	"vmkernel.dev/core/pkg/sync"
)

// Allocator tracks the free virtual-address space of a single address
// space (or, for the identity allocator, a single fixed-offset window)
// as a sorted list of disjoint free ranges. It has no notion of what a
// reservation is used for; pkg/region attaches that meaning.
type Allocator struct {
	mu     sync.Mutex
	extent hostarch.AddrRange
	free   []hostarch.AddrRange // sorted by Start, pairwise disjoint and non-adjacent
}

// New returns an Allocator whose entire extent [base, base+size) starts
// out free. size must be a nonzero, page-aligned multiple of the page
// size and base must be page-aligned.
func New(base hostarch.Addr, size uint64) (*Allocator, error) {
	if size == 0 || !hostarch.MustPageSize(size) {
		return nil, fmt.Errorf("rangealloc: size %#x is not a nonzero page-size multiple", size)
	}
	if !base.IsPageAligned() {
		return nil, fmt.Errorf("rangealloc: base %#x is not page-aligned", base)
	}
	extent := hostarch.AddrRange{Start: base, End: base + hostarch.Addr(size)}
	return &Allocator{extent: extent, free: []hostarch.AddrRange{extent}}, nil
}

// Contains reports whether r falls entirely within this allocator's
// extent, the equivalent of RangeAllocator::contains used by
// Region::unmap to pick the user vs. identity allocator a range should be
// released back to. It does not imply r is currently reserved.
func (a *Allocator) Contains(r hostarch.AddrRange) bool {
	return a.extent.IsSupersetOf(r)
}

// Reserve finds and removes the first free range of at least size bytes,
// returning the carved-out sub-range starting at that free range's base.
// It reports false if no free range is large enough.
func (a *Allocator) Reserve(size uint64) (hostarch.AddrRange, bool) {
	if size == 0 || !hostarch.MustPageSize(size) {
		return hostarch.AddrRange{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, r := range a.free {
		if uint64(r.Length()) < size {
			continue
		}
		out := hostarch.AddrRange{Start: r.Start, End: r.Start + hostarch.Addr(size)}
		a.removeLocked(i, out)
		return out, true
	}
	return hostarch.AddrRange{}, false
}

// ReserveAt carves out exactly [base, base+size) if that entire span is
// currently free, reporting false otherwise (already reserved, or
// outside the allocator's extent).
func (a *Allocator) ReserveAt(base hostarch.Addr, size uint64) (hostarch.AddrRange, bool) {
	if size == 0 || !hostarch.MustPageSize(size) || !base.IsPageAligned() {
		return hostarch.AddrRange{}, false
	}
	want := hostarch.AddrRange{Start: base, End: base + hostarch.Addr(size)}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, r := range a.free {
		if r.IsSupersetOf(want) {
			a.removeLocked(i, want)
			return want, true
		}
	}
	return hostarch.AddrRange{}, false
}

// removeLocked splits free range i to exclude out, which must be a
// sub-range of a.free[i]. Called with a.mu held.
func (a *Allocator) removeLocked(i int, out hostarch.AddrRange) {
	r := a.free[i]
	var remainder []hostarch.AddrRange
	if r.Start != out.Start {
		remainder = append(remainder, hostarch.AddrRange{Start: r.Start, End: out.Start})
	}
	if out.End != r.End {
		remainder = append(remainder, hostarch.AddrRange{Start: out.End, End: r.End})
	}
	a.free = append(a.free[:i], append(remainder, a.free[i+1:]...)...)
}

// Release returns r to the free list, merging it with any adjacent free
// ranges. r need not have come from this allocator's own Reserve call in
// particular, but it must not overlap any range already free — doing so
// would indicate a double-release and panics.
func (a *Allocator) Release(r hostarch.AddrRange) {
	if !r.WellFormed() {
		panic("rangealloc: Release of malformed range")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	insertAt := len(a.free)
	for i, f := range a.free {
		if f.Overlaps(r) {
			panic("rangealloc: Release of a range that overlaps an already-free range (double release)")
		}
		if r.Start < f.Start {
			insertAt = i
			break
		}
	}

	merged := r
	if insertAt > 0 && a.free[insertAt-1].End == merged.Start {
		merged.Start = a.free[insertAt-1].Start
		insertAt--
		a.free = append(a.free[:insertAt], a.free[insertAt+1:]...)
	}
	if insertAt < len(a.free) && a.free[insertAt].Start == merged.End {
		merged.End = a.free[insertAt].End
		a.free = append(a.free[:insertAt], a.free[insertAt+1:]...)
	}

	a.free = append(a.free, hostarch.AddrRange{})
	copy(a.free[insertAt+1:], a.free[insertAt:])
	a.free[insertAt] = merged
}

// FreeBytes returns the total number of bytes currently free, for tests
// and diagnostics.
func (a *Allocator) FreeBytes() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var total uint64
	for _, r := range a.free {
		total += uint64(r.Length())
	}
	return total
}
