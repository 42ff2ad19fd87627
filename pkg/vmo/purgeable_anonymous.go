package vmo

import "vmkernel.dev/core/pkg/bitmap"

// RegisterPurgeableRange implements register_purgeable_range, attaching a
// fresh volatility registration over [base, base+count) in VMO-relative
// page indices.
func (a *AnonymousObject) RegisterPurgeableRange(base, count uint64) *PurgeableRange {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := &PurgeableRange{base: base, count: count}
	a.purgeableRanges = append(a.purgeableRanges, r)
	return r
}

// UnregisterPurgeableRange implements unregister_purgeable_range.
func (a *AnonymousObject) UnregisterPurgeableRange(r *PurgeableRange) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, pr := range a.purgeableRanges {
		if pr == r {
			a.purgeableRanges = append(a.purgeableRanges[:i], a.purgeableRanges[i+1:]...)
			return
		}
	}
	panic("vmo: UnregisterPurgeableRange of an unregistered range")
}

// MakeVolatile implements the "transition to volatile" protocol step: it
// marks r volatile, then uncommits any LazyCommitted slots the range now
// covers, per spec.md §4.2.
func (a *AnonymousObject) MakeVolatile(r *PurgeableRange) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r.volatile {
		return
	}
	r.volatile = true
	a.nonvolatileCacheDirty = true

	if a.unusedCommittedPages == 0 {
		return
	}
	removed := a.removeLazyCommitPagesLocked(r.base, r.count)
	if removed > 0 {
		a.alloc.Uncommit(removed)
	}
}

// MakeNonvolatile implements the "transition to non-volatile" protocol
// step: it counts how many SharedZero, non-CoW slots fall within r,
// attempts a single commit for that count, and only on success converts
// those slots to LazyCommitted. Partial success is not allowed; it
// reports false (leaving r volatile) if the commit could not be made.
func (a *AnonymousObject) MakeNonvolatile(r *PurgeableRange) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !r.volatile {
		return true
	}

	need := a.countNeededCommitPagesLocked(r)
	if need > 0 && !a.alloc.Commit(need) {
		return false
	}
	if need > 0 {
		a.markCommittedPagesLocked(r, need)
	}

	r.volatile = false
	a.nonvolatileCacheDirty = true
	return true
}

// Purge implements purge: every volatile range has its non-SharedZero
// slots replaced with SharedZero, and every Region mapping this VMO is
// asked to remap the affected pages. It returns the total page count
// purged.
func (a *AnonymousObject) Purge() uint64 {
	a.mu.Lock()
	var purgedTotal uint64
	type touched struct{ base, count uint64 }
	var toRemap []touched

	for _, r := range a.purgeableRanges {
		if !r.volatile {
			continue
		}
		var purgedInRange uint64
		for i := r.base; i < r.end(); i++ {
			slot := a.slots[i]
			if !slot.IsSharedZero() {
				purgedInRange++
				slot.DecRef()
			}
			a.slots[i] = a.alloc.SharedZeroFrame()
		}
		if purgedInRange > 0 {
			purgedTotal += purgedInRange
			r.wasPurged = true
			toRemap = append(toRemap, touched{r.base, r.count})
		}
	}
	a.mu.Unlock()

	for _, t := range toRemap {
		a.ForEachRegion(func(reg Region) {
			for i := t.base; i < t.base+t.count; i++ {
				reg.RemapPage(i)
			}
		})
	}
	return purgedTotal
}

// isNonvolatileLocked answers is_nonvolatile, rebuilding the cached
// complement first if it has been invalidated since the last query. Must
// be called with a.mu held.
func (a *AnonymousObject) isNonvolatileLocked(pageIdx uint64) bool {
	if a.nonvolatileCacheDirty {
		a.rebuildNonvolatileCacheLocked()
	}
	return a.nonvolatileCache.Get(uint32(pageIdx))
}

// countNonvolatilePagesLocked sums the cached non-volatile complement,
// the equivalent of summing for_each_nonvolatile_range's range counts.
// Must be called with a.mu held.
func (a *AnonymousObject) countNonvolatilePagesLocked() uint64 {
	if a.nonvolatileCacheDirty {
		a.rebuildNonvolatileCacheLocked()
	}
	return uint64(a.nonvolatileCache.CountSet())
}

// rebuildNonvolatileCacheLocked recomputes the non-volatile complement
// from the registered volatile ranges: every page starts non-volatile,
// then every page covered by a currently-volatile registration is
// cleared. Must be called with a.mu held.
func (a *AnonymousObject) rebuildNonvolatileCacheLocked() {
	a.nonvolatileCache = bitmap.New(uint32(len(a.slots)), true)
	for _, r := range a.purgeableRanges {
		if !r.volatile {
			continue
		}
		for i := r.base; i < r.end(); i++ {
			a.nonvolatileCache.Set(uint32(i), false)
		}
	}
	a.nonvolatileCacheDirty = false
}

// removeLazyCommitPagesLocked converts up to a.unusedCommittedPages
// LazyCommitted slots within [base, base+count) to SharedZero, returning
// the number converted. Must be called with a.mu held.
func (a *AnonymousObject) removeLazyCommitPagesLocked(base, count uint64) uint64 {
	var removed uint64
	for i := base; i < base+count; i++ {
		if a.unusedCommittedPages == 0 {
			break
		}
		if a.slots[i].IsLazyCommitted() {
			a.slots[i] = a.alloc.SharedZeroFrame()
			removed++
			a.unusedCommittedPages--
		}
	}
	return removed
}

// countNeededCommitPagesLocked implements
// count_needed_commit_pages_for_nonvolatile_range. Must be called with
// a.mu held.
func (a *AnonymousObject) countNeededCommitPagesLocked(r *PurgeableRange) uint64 {
	var need uint64
	for i := r.base; i < r.end(); i++ {
		if !a.cowMap.IsZero() && a.cowMap.Get(uint32(i)) {
			continue
		}
		if a.slots[i].IsSharedZero() {
			need++
		}
	}
	return need
}

// markCommittedPagesLocked implements
// mark_committed_pages_for_nonvolatile_range: it converts up to
// markTotal SharedZero, non-CoW slots within r to LazyCommitted. Must be
// called with a.mu held.
func (a *AnonymousObject) markCommittedPagesLocked(r *PurgeableRange, markTotal uint64) {
	var updated uint64
	for i := r.base; i < r.end() && updated < markTotal; i++ {
		if !a.cowMap.IsZero() && a.cowMap.Get(uint32(i)) {
			continue
		}
		if a.slots[i].IsSharedZero() {
			a.slots[i] = a.alloc.LazyCommittedFrame()
			updated++
		}
	}
	a.unusedCommittedPages += updated
}
