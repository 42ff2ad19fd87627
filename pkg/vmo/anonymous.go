package vmo

import (
	"fmt"

	"vmkernel.dev/core/pkg/bitmap"
	"vmkernel.dev/core/pkg/hostarch"
	"vmkernel.dev/core/pkg/pagefault"
	"vmkernel.dev/core/pkg/pfa"
)

// Strategy selects how create_with_size populates a fresh AnonymousObject.
type Strategy int

const (
	// Reserve commits n pages and fills every slot with LazyCommitted;
	// pages materialize on first fault.
	Reserve Strategy = iota
	// AllocateNow commits n pages and immediately materializes each one.
	AllocateNow
	// None fills every slot with SharedZero; nothing is committed.
	None
)

// QuickMapper is the scratch-mapping facility pkg/mm's Manager provides.
// AnonymousObject.HandleCowFault uses it to get a writable view of the
// frame it is copying into, matching the original's
// MM.quickmap_page/unquickmap_page bracket around the CoW byte copy.
type QuickMapper interface {
	QuickMapPage(f *pfa.Frame) []byte
	UnquickMapPage()
}

// AnonymousObject is the zero-initialized, CoW-capable, purgeable VMO
// variant, the Go analog of AnonymousVMObject.
type AnonymousObject struct {
	base

	alloc *pfa.Allocator

	cowMap               bitmap.Bitmap
	unusedCommittedPages uint64
	sharedCowPool        *committedCowPages

	purgeableRanges       []*PurgeableRange
	nonvolatileCache      bitmap.Bitmap
	nonvolatileCacheDirty bool
}

func (a *AnonymousObject) Kind() Kind { return Anonymous }

// CreateWithSize implements create_with_size. It reports false if the
// chosen strategy requires a commit that the allocator cannot satisfy.
func CreateWithSize(alloc *pfa.Allocator, pageCount uint64, strategy Strategy) (*AnonymousObject, bool) {
	a := &AnonymousObject{
		alloc:                 alloc,
		base:                  base{slots: make([]*pfa.Frame, pageCount)},
		nonvolatileCacheDirty: true,
	}
	switch strategy {
	case Reserve, AllocateNow:
		if !alloc.Commit(pageCount) {
			return nil, false
		}
	}
	switch strategy {
	case AllocateNow:
		for i := range a.slots {
			a.slots[i] = alloc.AllocateCommittedFrame(true)
		}
	case Reserve:
		a.unusedCommittedPages = pageCount
		for i := range a.slots {
			a.slots[i] = alloc.LazyCommittedFrame()
		}
	case None:
		for i := range a.slots {
			a.slots[i] = alloc.SharedZeroFrame()
		}
	}
	return a, true
}

// CreateWithFrames implements create_with_frames: it adopts an
// already-allocated span of frames, one per slot, without touching the
// global commit accounting (the caller already owns these frames).
func CreateWithFrames(alloc *pfa.Allocator, frames []*pfa.Frame) *AnonymousObject {
	slots := make([]*pfa.Frame, len(frames))
	copy(slots, frames)
	return &AnonymousObject{alloc: alloc, base: base{slots: slots}, nonvolatileCacheDirty: true}
}

// CreateForPhysicalRange implements create_for_physical_range: it wraps a
// fixed physical span (e.g. MMIO) with non-returnable Reserved frames.
func CreateForPhysicalRange(alloc *pfa.Allocator, paddr hostarch.Addr, size uint64) (*AnonymousObject, error) {
	if !hostarch.MustPageSize(size) {
		return nil, fmt.Errorf("vmo: CreateForPhysicalRange size %#x is not a nonzero page-size multiple", size)
	}
	n := hostarch.PageCount(size)
	slots := make([]*pfa.Frame, n)
	for i := range slots {
		slots[i] = alloc.NewReservedFrame(paddr + hostarch.Addr(uint64(i)*hostarch.PageSize))
	}
	return &AnonymousObject{alloc: alloc, base: base{slots: slots}, nonvolatileCacheDirty: true}, nil
}

// TryClone implements the fork primitive described in spec.md §4.2.
func (a *AnonymousObject) TryClone() (Object, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	need := a.countNonvolatilePagesLocked()
	if !a.alloc.Commit(need) {
		return nil, false
	}
	pool := newCommittedCowPages(need)
	a.sharedCowPool = pool

	a.ensureOrResetCowMapLocked()

	clone := &AnonymousObject{
		alloc:                 a.alloc,
		base:                  base{slots: cloneSlotsLocked(a.slots)},
		unusedCommittedPages:  a.unusedCommittedPages,
		sharedCowPool:         pool,
		nonvolatileCacheDirty: true,
	}
	clone.ensureOrResetCowMapLocked()

	// The clone inherited a.unusedCommittedPages as a byte-for-byte
	// count, but try_clone only committed `need` fresh pages for the
	// shared CoW pool — not a second commit for the clone's own copy of
	// any LazyCommitted slots. Relinquish that double claim by
	// converting up to unusedCommittedPages of the clone's own
	// LazyCommitted slots to SharedZero, the same fixup
	// AnonymousVMObject's copy constructor performs.
	for i := range clone.slots {
		if clone.unusedCommittedPages == 0 {
			break
		}
		if clone.slots[i].IsLazyCommitted() {
			clone.slots[i] = a.alloc.SharedZeroFrame()
			clone.unusedCommittedPages--
		}
	}

	return clone, true
}

// ShouldCow implements should_cow.
func (a *AnonymousObject) ShouldCow(pageIdx uint64, isShared bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	slot := a.slots[pageIdx]
	if slot.IsSharedZero() || slot.IsLazyCommitted() {
		return true
	}
	if isShared {
		return false
	}
	return !a.cowMap.IsZero() && a.cowMap.Get(uint32(pageIdx))
}

// SetShouldCow implements set_should_cow. Callers must only invoke this
// for private regions (spec.md §4.2: "for private regions only").
func (a *AnonymousObject) SetShouldCow(pageIdx uint64, cow bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ensureCowMapLocked()
	a.cowMap.Set(uint32(pageIdx), cow)
}

// CowPages implements cow_pages.
func (a *AnonymousObject) CowPages() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cowMap.IsZero() {
		return 0
	}
	return uint64(a.cowMap.CountSet())
}

func (a *AnonymousObject) ensureCowMapLocked() {
	if a.cowMap.IsZero() {
		a.cowMap = bitmap.New(uint32(len(a.slots)), true)
	}
}

func (a *AnonymousObject) ensureOrResetCowMapLocked() {
	if a.cowMap.IsZero() {
		a.ensureCowMapLocked()
	} else {
		a.cowMap.Fill(uint32(len(a.slots)), true)
	}
}

// HandleCowFault implements handle_cow_fault's four cases.
func (a *AnonymousObject) HandleCowFault(pageIdx uint64, qm QuickMapper) pagefault.Response {
	a.mu.Lock()
	defer a.mu.Unlock()

	slot := a.slots[pageIdx]
	haveCommitted := a.sharedCowPool != nil && a.isNonvolatileLocked(pageIdx)

	if slot.RefCount() == 1 {
		a.cowMap.Set(uint32(pageIdx), false)
		if haveCommitted {
			if a.sharedCowPool.returnOne(a.alloc) {
				a.sharedCowPool = nil
			}
		}
		return pagefault.Continue
	}

	var next *pfa.Frame
	if haveCommitted {
		next = a.sharedCowPool.allocateOne(a.alloc, false)
	} else {
		var ok bool
		next, ok = a.alloc.AllocateUserFrame(false)
		if !ok {
			return pagefault.OutOfMemory
		}
	}

	dst := qm.QuickMapPage(next)
	copy(dst, slot.Bytes())
	qm.UnquickMapPage()

	old := slot
	a.slots[pageIdx] = next
	old.DecRef()
	a.cowMap.Set(uint32(pageIdx), false)
	return pagefault.Continue
}

// AllocateCommittedPageFor implements allocate_committed_page_for.
func (a *AnonymousObject) AllocateCommittedPageFor(pageIdx uint64) *pfa.Frame {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocateCommittedPageForLocked(pageIdx)
}

// AllocateCommittedPageForLocked is the equivalent of
// AllocateCommittedPageFor for a caller that already holds the VMO lock
// (via Object.Lock/Unlock). pkg/region uses this so a fault handler's
// "check the slot, then install the frame" sequence stays inside one
// critical section instead of releasing and re-acquiring the lock
// between the check and the install, which would let a second concurrent
// fault on the same page observe the same stale slot and double-allocate.
func (a *AnonymousObject) AllocateCommittedPageForLocked(pageIdx uint64) *pfa.Frame {
	return a.allocateCommittedPageForLocked(pageIdx)
}

func (a *AnonymousObject) allocateCommittedPageForLocked(pageIdx uint64) *pfa.Frame {
	if a.unusedCommittedPages == 0 {
		panic("vmo: AllocateCommittedPageFor called with no unused committed pages")
	}
	for _, pr := range a.purgeableRanges {
		if pr.volatile && pr.overlapsPage(pageIdx) {
			panic("vmo: AllocateCommittedPageFor called on a page volatile for some registrant")
		}
	}
	a.unusedCommittedPages--
	return a.alloc.AllocateCommittedFrame(true)
}

// AmountResident sums PageSize over slots that are Normal (not a
// sentinel), the equivalent of Region::amount_resident generalized to
// the whole object.
func (a *AnonymousObject) AmountResident() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var n uint64
	for _, f := range a.slots {
		if f.IsNormal() {
			n += hostarch.PageSize
		}
	}
	return n
}
