// Package region implements the Region: a mapping of a contiguous
// virtual range into a slice of a VM Object, with access rights,
// caching, and sharing policy, and the fault-classification state
// machine that resolves a page fault landing inside it.
package region

import (
	"context"
	"fmt"

	"vmkernel.dev/core/pkg/arch"
	"vmkernel.dev/core/pkg/hostarch"
	"vmkernel.dev/core/pkg/log"
	"vmkernel.dev/core/pkg/pagefault"
	"vmkernel.dev/core/pkg/pfa"
	"vmkernel.dev/core/pkg/rangealloc"
	"vmkernel.dev/core/pkg/vmo"
)

// Access is the set of permissions a Region grants over its range.
type Access uint8

const (
	// Read permits loads.
	Read Access = 1 << iota
	// Write permits stores.
	Write
	// Execute permits instruction fetches.
	Execute
)

// Readable, Writable and Executable report the individual access bits.
func (a Access) Readable() bool   { return a&Read != 0 }
func (a Access) Writable() bool   { return a&Write != 0 }
func (a Access) Executable() bool { return a&Execute != 0 }

// ShouldFlushTLB selects whether Map invalidates the TLB for the range it
// just installed.
type ShouldFlushTLB int

const (
	FlushTLB   ShouldFlushTLB = iota
	NoFlushTLB
)

// ShouldDeallocate selects whether Unmap releases the virtual range back
// to its owning PageDirectory's allocator.
type ShouldDeallocate int

const (
	DeallocateRange   ShouldDeallocate = iota
	KeepRangeReserved
)

// PageDirectory is the subset of pkg/mm's PageDirectory a Region needs:
// the structural lock and the two allocators a Region's range comes from.
// Defined here rather than imported from pkg/mm to avoid a
// region<->mm import cycle (pkg/mm depends on pkg/region, not the other
// way around), the same decoupling pkg/vmo uses for its Region/QuickMapper
// consumer interfaces.
type PageDirectory interface {
	Lock()
	Unlock()
	RangeAllocator() *rangealloc.Allocator
	IdentityRangeAllocator() *rangealloc.Allocator
}

// MM is the subset of pkg/mm's Manager a Region calls into to touch page
// tables, the physical frame allocator, the quick-map scratch window, and
// the current address space's user/kernel boundary.
type MM interface {
	// EnsurePTEExists lazily instantiates any missing page-table levels
	// for vaddr under pd, reporting false on allocation failure.
	EnsurePTEExists(pd PageDirectory, vaddr hostarch.Addr) bool
	// ClearPTE clears the mapping at vaddr under pd.
	ClearPTE(pd PageDirectory, vaddr hostarch.Addr)
	// SetPTE installs a present mapping at vaddr under pd with the given
	// field values. EnsurePTEExists must have been called first.
	SetPTE(pd PageDirectory, vaddr hostarch.Addr, physBase hostarch.Addr, cacheDisabled, writable, executeDisabled, userAccessible bool)
	// ReleasePTE clears the mapping at vaddr under pd, additionally
	// collapsing now-empty table levels when last is set.
	ReleasePTE(pd PageDirectory, vaddr hostarch.Addr, last bool)
	// FlushTLBPage invalidates a single translation.
	FlushTLBPage(pd PageDirectory, vaddr hostarch.Addr)
	// FlushTLBRange invalidates count consecutive page translations
	// starting at base.
	FlushTLBRange(pd PageDirectory, base hostarch.Addr, count uint64)

	// AllocateUserPhysicalPage routes to the global Physical Frame
	// Allocator for a page with no existing commit reservation behind
	// it (handle_zero_fault's non-lazy-committed branch,
	// handle_inode_fault's read-in allocation).
	AllocateUserPhysicalPage(zeroFill bool) (*pfa.Frame, bool)

	vmo.QuickMapper

	// IsUserAddress reports whether vaddr falls within the user-mapped
	// half of the address space, the equivalent of is_user_address.
	IsUserAddress(vaddr hostarch.Addr) bool

	// RegisterRegion and UnregisterRegion add and remove r from the
	// global Region registry, the equivalent of
	// register_region/unregister_region.
	RegisterRegion(r *Region)
	UnregisterRegion(r *Region)
}

// Region is a mapping of a contiguous virtual range into a slice of a
// VM Object.
type Region struct {
	rng          hostarch.AddrRange
	offsetPages  uint64
	vmobject     vmo.Object
	name         string
	access       Access
	originalAccess Access
	cacheable    bool
	shared       bool
	isUserRegion bool

	stack   bool
	mmap    bool
	syscall bool

	mm MM
	pd PageDirectory
}

// VirtualRange returns the range of virtual addresses this Region maps.
func (r *Region) VirtualRange() hostarch.AddrRange { return r.rng }

// Name implements vmo.Region.
func (r *Region) Name() string { return r.name }

// PageCount returns the number of pages this Region spans.
func (r *Region) PageCount() uint64 { return r.rng.PageCount() }

// Access returns the Region's current access bits.
func (r *Region) Access() Access { return r.access }

// SetAccess installs a temporary protection change, keeping the original
// access bits available via OriginalAccess for later restoration.
func (r *Region) SetAccess(a Access) { r.access = a }

// OriginalAccess returns the access bits this Region was created with.
func (r *Region) OriginalAccess() Access { return r.originalAccess }

// RestoreOriginalAccess undoes any temporary protection change.
func (r *Region) RestoreOriginalAccess() { r.access = r.originalAccess }

// Shared reports whether this Region aliases its VMO (vs. owning a
// private, CoW-capable view of it).
func (r *Region) Shared() bool { return r.shared }

// SetStack, SetMmap and SetSyscallRegion set the Region's tags.
func (r *Region) SetStack(v bool)         { r.stack = v }
func (r *Region) SetMmap(v bool)          { r.mmap = v }
func (r *Region) SetSyscallRegion(v bool) { r.syscall = v }

// IsStack, IsMmap and IsSyscallRegion report the Region's tags.
func (r *Region) IsStack() bool         { return r.stack }
func (r *Region) IsMmap() bool          { return r.mmap }
func (r *Region) IsSyscallRegion() bool { return r.syscall }

func newRegion(rng hostarch.AddrRange, obj vmo.Object, offsetPages uint64, name string, access Access, cacheable, shared, isUserRegion bool, mm MM) (*Region, bool) {
	if !rng.IsPageAligned() || rng.Length() == 0 {
		return nil, false
	}
	r := &Region{
		rng:            rng,
		offsetPages:    offsetPages,
		vmobject:       obj,
		name:           name,
		access:         access,
		originalAccess: access,
		cacheable:      cacheable,
		shared:         shared,
		isUserRegion:   isUserRegion,
		mm:             mm,
	}
	obj.AddRegion(r)
	mm.RegisterRegion(r)
	return r, true
}

// TryCreateUser implements try_create_user_accessible: a factory for a
// Region in the user-accessible half of the address space.
func TryCreateUser(rng hostarch.AddrRange, obj vmo.Object, offsetPages uint64, name string, access Access, cacheable, shared bool, mm MM) (*Region, bool) {
	return newRegion(rng, obj, offsetPages, name, access, cacheable, shared, true, mm)
}

// TryCreateKernel implements try_create_kernel_only: shared is always
// false and the Region is never treated as user-accessible by
// mapIndividualPageImpl's user_allowed computation.
func TryCreateKernel(rng hostarch.AddrRange, obj vmo.Object, offsetPages uint64, name string, access Access, cacheable bool, mm MM) (*Region, bool) {
	return newRegion(rng, obj, offsetPages, name, access, cacheable, false, false, mm)
}

// Destroy implements the destructor's side effects: deregister from the
// VMO and the MM registry, and unmap if still mapped.
func (r *Region) Destroy() {
	r.vmobject.RemoveRegion(r)
	if r.pd != nil {
		r.Unmap(DeallocateRange)
	}
	r.mm.UnregisterRegion(r)
}

// Clone implements clone(): shared Regions alias the same VMO in a fresh
// Region; private Regions clone the VMO (CoW for anonymous, a private
// deep copy for private-inode) and get a fresh Region over the clone.
// The returned Region is not mapped; the caller maps it into the child's
// PageDirectory. Either way the caller's own Region is remapped first
// (if it is mapped), so the child never observes stale write bits the
// parent's own clone just cleared.
func (r *Region) Clone() (*Region, bool) {
	if r.shared {
		if r.pd != nil {
			r.Remap()
		}
		clone, ok := TryCreateUser(r.rng, r.vmobject, r.offsetPages, r.name, r.access, r.cacheable, r.shared, r.mm)
		if !ok {
			return nil, false
		}
		clone.mmap = r.mmap
		clone.syscall = r.syscall
		return clone, true
	}

	vmoClone, ok := r.vmobject.TryClone()
	if !ok {
		return nil, false
	}
	r.Remap()

	clone, ok := TryCreateUser(r.rng, vmoClone, r.offsetPages, r.name, r.access, r.cacheable, r.shared, r.mm)
	if !ok {
		return nil, false
	}
	if r.stack {
		if !r.access.Readable() || !r.access.Writable() || r.vmobject.Kind() != vmo.Anonymous {
			panic("region: stack-tagged region must be a readable+writable anonymous mapping")
		}
		clone.stack = true
	}
	clone.syscall = r.syscall
	clone.mmap = r.mmap
	return clone, true
}

// SetVMObject implements set_vmobject: deregisters from the current VMO
// and registers with obj, a no-op if obj is already installed.
func (r *Region) SetVMObject(obj vmo.Object) {
	if r.vmobject == obj {
		return
	}
	r.vmobject.RemoveRegion(r)
	r.vmobject = obj
	r.vmobject.AddRegion(r)
}

func (r *Region) vaddrFromPageIndex(pageIndexInRegion uint64) hostarch.Addr {
	return r.rng.Start + hostarch.Addr(pageIndexInRegion*hostarch.PageSize)
}

func (r *Region) pageIndexFromAddress(vaddr hostarch.Addr) uint64 {
	return uint64(vaddr-r.rng.Start) / hostarch.PageSize
}

// shouldCow reports whether a write to pageIdxInVMO must divert rather
// than write in place. Extended beyond the original's anonymous-only
// gate to also cover a Private InodeObject, per this core's explicit
// support for CoW file mappings.
func (r *Region) shouldCow(pageIdxInVMO uint64) bool {
	switch o := r.vmobject.(type) {
	case *vmo.AnonymousObject:
		return o.ShouldCow(pageIdxInVMO, r.shared)
	case *vmo.InodeObject:
		return o.ShouldCow(pageIdxInVMO)
	default:
		return false
	}
}

// SetShouldCow implements set_should_cow. Valid only for non-shared
// Regions.
func (r *Region) SetShouldCow(pageIndexInRegion uint64, cow bool) {
	if r.shared {
		panic("region: SetShouldCow on a shared region")
	}
	pageIdxInVMO := r.offsetPages + pageIndexInRegion
	switch o := r.vmobject.(type) {
	case *vmo.AnonymousObject:
		o.SetShouldCow(pageIdxInVMO, cow)
	case *vmo.InodeObject:
		o.SetShouldCow(pageIdxInVMO, cow)
	}
}

// CowPages implements cow_pages: 0 for any VMO variant that cannot carry
// a CoW bitmap.
func (r *Region) CowPages() uint64 {
	switch o := r.vmobject.(type) {
	case *vmo.AnonymousObject:
		return o.CowPages()
	default:
		_ = o
		return 0
	}
}

// AmountResident implements amount_resident: PAGE_SIZE for every slot in
// this Region's window that is materialized (Normal or Reserved, not a
// sentinel awaiting a fault).
func (r *Region) AmountResident() uint64 {
	r.vmobject.Lock()
	defer r.vmobject.Unlock()
	var bytes uint64
	for i := uint64(0); i < r.PageCount(); i++ {
		slot := r.vmobject.Slot(r.offsetPages + i)
		if slot != nil && !slot.IsSentinel() {
			bytes += hostarch.PageSize
		}
	}
	return bytes
}

// AmountShared implements amount_shared: the amount_resident subset
// whose frame has more than one referent.
func (r *Region) AmountShared() uint64 {
	r.vmobject.Lock()
	defer r.vmobject.Unlock()
	var bytes uint64
	for i := uint64(0); i < r.PageCount(); i++ {
		slot := r.vmobject.Slot(r.offsetPages + i)
		if slot != nil && !slot.IsSentinel() && slot.RefCount() > 1 {
			bytes += hostarch.PageSize
		}
	}
	return bytes
}

// AmountDirty implements amount_dirty: delegated to the Inode variant
// when this Region maps one, otherwise amount_resident.
func (r *Region) AmountDirty() uint64 {
	switch o := r.vmobject.(type) {
	case *vmo.InodeObject:
		return o.AmountDirty()
	default:
		_ = o
		return r.AmountResident()
	}
}

// mapIndividualPageImpl installs or clears the PTE for one page of this
// Region. The caller must already hold the owning PageDirectory's lock;
// callers that also need a consistent view of the VMO slot (any caller
// other than the initial Map/Remap sweep, which runs before anyone else
// can touch a freshly created or cloned VMO) must additionally hold the
// VMO lock across the call.
func (r *Region) mapIndividualPageImpl(pageIndexInRegion uint64) bool {
	vaddr := r.vaddrFromPageIndex(pageIndexInRegion)
	userAllowed := r.isUserRegion && r.mm.IsUserAddress(vaddr)
	if r.mmap && !userAllowed {
		panic(fmt.Sprintf("region: about to map mmap'ed page %v at a non-user address", vaddr))
	}

	if !r.mm.EnsurePTEExists(r.pd, vaddr) {
		return false
	}

	pageIdxInVMO := r.offsetPages + pageIndexInRegion
	slot := r.vmobject.Slot(pageIdxInVMO)
	if slot == nil || (!r.access.Readable() && !r.access.Writable()) {
		r.mm.ClearPTE(r.pd, vaddr)
		return true
	}

	writable := r.access.Writable() && !slot.IsSentinel() && !r.shouldCow(pageIdxInVMO)
	var executeDisabled bool
	if arch.Current().HasFeature(arch.NX) {
		executeDisabled = !r.access.Executable()
	}
	r.mm.SetPTE(r.pd, vaddr, slot.PhysAddr(), !r.cacheable, writable, executeDisabled, userAllowed)
	return true
}

// RemapPage implements vmo.Region, and is the Go analog of
// do_remap_vmobject_page. pageIdxInVMO is VMO-relative; pages outside
// this Region's own window are a no-op success, matching
// translate_vmobject_page's bounds check.
func (r *Region) RemapPage(pageIdxInVMO uint64) bool {
	r.vmobject.Lock()
	defer r.vmobject.Unlock()

	if r.pd == nil {
		return true
	}
	if pageIdxInVMO < r.offsetPages {
		return true
	}
	pageIndexInRegion := pageIdxInVMO - r.offsetPages
	if pageIndexInRegion >= r.PageCount() {
		return true
	}

	r.pd.Lock()
	defer r.pd.Unlock()
	ok := r.mapIndividualPageImpl(pageIndexInRegion)
	r.mm.FlushTLBPage(r.pd, r.vaddrFromPageIndex(pageIndexInRegion))
	return ok
}

// remapVMObjectPage fans RemapPage out across every Region registered on
// obj, the Go analog of Region::remap_vmobject_page.
func remapVMObjectPage(obj vmo.Object, pageIdxInVMO uint64) bool {
	ok := true
	obj.ForEachRegion(func(reg vmo.Region) {
		if !reg.RemapPage(pageIdxInVMO) {
			ok = false
		}
	})
	return ok
}

// Map implements map(): installs every page of this Region under pd,
// establishing ownership of the range. On mid-sequence failure it flushes
// up to the failed index and reports false.
func (r *Region) Map(pd PageDirectory, flush ShouldFlushTLB) bool {
	pd.Lock()
	defer pd.Unlock()
	r.pd = pd

	var i uint64
	for ; i < r.PageCount(); i++ {
		if !r.mapIndividualPageImpl(i) {
			break
		}
	}
	if i == 0 {
		return false
	}
	if flush == FlushTLB {
		r.mm.FlushTLBRange(r.pd, r.rng.Start, i)
	}
	return i == r.PageCount()
}

// Remap implements remap(): re-installs every page using the current VMO
// slots and access bits.
func (r *Region) Remap() {
	if r.pd == nil {
		panic("region: Remap on an unmapped region")
	}
	r.Map(r.pd, FlushTLB)
}

// Unmap implements unmap(): clears every PTE, flushes the TLB once across
// the whole range, and optionally releases the virtual range back to the
// PD's appropriate allocator.
func (r *Region) Unmap(dealloc ShouldDeallocate) {
	if r.pd == nil {
		return
	}
	pd := r.pd
	pd.Lock()
	defer pd.Unlock()

	count := r.PageCount()
	for i := uint64(0); i < count; i++ {
		r.mm.ReleasePTE(pd, r.vaddrFromPageIndex(i), i == count-1)
	}
	r.mm.FlushTLBRange(pd, r.rng.Start, count)

	if dealloc == DeallocateRange {
		if pd.RangeAllocator().Contains(r.rng) {
			pd.RangeAllocator().Release(r.rng)
		} else {
			pd.IdentityRangeAllocator().Release(r.rng)
		}
	}
	r.pd = nil
}

// HandleFault is the arbitration point: it classifies fault against the
// current access bits and slot state, and dispatches to the handler the
// classification names.
func (r *Region) HandleFault(ctx context.Context, fault pagefault.Fault) pagefault.Response {
	pageIndexInRegion := r.pageIndexFromAddress(fault.VAddr)

	switch fault.Kind {
	case pagefault.NotPresent:
		if fault.IsRead() && !r.access.Readable() {
			log.Warningf("region: NP(non-readable) fault in %s[%d]", r.name, pageIndexInRegion)
			return pagefault.ShouldCrash
		}
		if fault.IsWrite() && !r.access.Writable() {
			log.Warningf("region: NP(non-writable) write fault in %s[%d]", r.name, pageIndexInRegion)
			return pagefault.ShouldCrash
		}
		if r.isInodeBacked() {
			return r.handleInodeFault(ctx, pageIndexInRegion)
		}

		pageIdxInVMO := r.offsetPages + pageIndexInRegion
		r.vmobject.Lock()
		slot := r.vmobject.Slot(pageIdxInVMO)
		switch {
		case slot != nil && slot.IsLazyCommitted():
			anon, ok := r.vmobject.(*vmo.AnonymousObject)
			if !ok {
				r.vmobject.Unlock()
				return pagefault.ShouldCrash
			}
			newFrame := anon.AllocateCommittedPageForLocked(pageIdxInVMO)
			r.vmobject.SetSlot(pageIdxInVMO, newFrame)
			r.vmobject.Unlock()
		case slot != nil && !slot.IsSentinel():
			// A racing fault on the same page already won; idempotent retry.
			r.vmobject.Unlock()
		default:
			r.vmobject.Unlock()
			log.Warningf("region: BUG! unexpected NP fault at %s", fault.VAddr)
			return pagefault.ShouldCrash
		}
		if !remapVMObjectPage(r.vmobject, pageIdxInVMO) {
			return pagefault.OutOfMemory
		}
		return pagefault.Continue

	case pagefault.ProtectionViolation:
		if fault.Access == pagefault.Write && r.access.Writable() && r.shouldCow(r.offsetPages+pageIndexInRegion) {
			pageIdxInVMO := r.offsetPages + pageIndexInRegion
			r.vmobject.Lock()
			slot := r.vmobject.Slot(pageIdxInVMO)
			r.vmobject.Unlock()
			if slot == nil || slot.IsSharedZero() || slot.IsLazyCommitted() {
				return r.handleZeroFault(pageIndexInRegion)
			}
			return r.handleCowFault(pageIndexInRegion)
		}
		log.Warningf("region: PV(error) fault in %s[%d] at %s", r.name, pageIndexInRegion, fault.VAddr)
		return pagefault.ShouldCrash
	}
	return pagefault.ShouldCrash
}

func (r *Region) isInodeBacked() bool {
	k := r.vmobject.Kind()
	return k == vmo.PrivateInode || k == vmo.SharedInode
}

// handleZeroFault implements handle_zero_fault. The slot check and the
// frame install it leads to happen inside one held r.vmobject lock, the
// Go analog of Region.cpp's single ScopedSpinLock spanning the whole
// check-then-install sequence: otherwise two concurrent faults on the
// same page (spec.md §5, §8 property 8, scenario S5) would both read the
// stale sentinel, both allocate a frame, and the loser's SetSlot would
// clobber the winner's already-installed frame.
func (r *Region) handleZeroFault(pageIndexInRegion uint64) pagefault.Response {
	pageIdxInVMO := r.offsetPages + pageIndexInRegion

	r.vmobject.Lock()
	slot := r.vmobject.Slot(pageIdxInVMO)

	if slot != nil && !slot.IsSharedZero() && !slot.IsLazyCommitted() {
		// A racing fault on the same page already won; idempotent retry.
		r.vmobject.Unlock()
		if !remapVMObjectPage(r.vmobject, pageIdxInVMO) {
			return pagefault.OutOfMemory
		}
		return pagefault.Continue
	}

	var newFrame *pfa.Frame
	if slot != nil && slot.IsLazyCommitted() {
		anon, ok := r.vmobject.(*vmo.AnonymousObject)
		if !ok {
			r.vmobject.Unlock()
			return pagefault.ShouldCrash
		}
		newFrame = anon.AllocateCommittedPageForLocked(pageIdxInVMO)
	} else {
		var ok bool
		newFrame, ok = r.mm.AllocateUserPhysicalPage(true)
		if !ok {
			r.vmobject.Unlock()
			log.Warningf("region: handleZeroFault unable to allocate a physical page")
			return pagefault.OutOfMemory
		}
	}

	r.vmobject.SetSlot(pageIdxInVMO, newFrame)
	r.vmobject.Unlock()

	if !remapVMObjectPage(r.vmobject, pageIdxInVMO) {
		log.Warningf("region: handleZeroFault unable to map the new page")
		return pagefault.OutOfMemory
	}
	return pagefault.Continue
}

// handleCowFault implements handle_cow_fault, dispatching into whichever
// VMO variant's own CoW resolution applies.
func (r *Region) handleCowFault(pageIndexInRegion uint64) pagefault.Response {
	pageIdxInVMO := r.offsetPages + pageIndexInRegion

	var resp pagefault.Response
	switch o := r.vmobject.(type) {
	case *vmo.AnonymousObject:
		resp = o.HandleCowFault(pageIdxInVMO, r.mm)
	case *vmo.InodeObject:
		resp = o.HandleCowFault(pageIdxInVMO, r.mm)
	default:
		return pagefault.ShouldCrash
	}
	if resp != pagefault.Continue {
		return resp
	}
	if !remapVMObjectPage(r.vmobject, pageIdxInVMO) {
		return pagefault.OutOfMemory
	}
	return resp
}

// handleInodeFault implements handle_inode_fault: the inode read runs
// before the VMO lock is ever taken, so a blocking filesystem read never
// happens while a spinlock-equivalent is held; the slot is re-checked
// after the lock is finally acquired, since another fault may have filled
// it while this one was reading.
func (r *Region) handleInodeFault(ctx context.Context, pageIndexInRegion uint64) pagefault.Response {
	inodeObj, ok := r.vmobject.(*vmo.InodeObject)
	if !ok {
		return pagefault.ShouldCrash
	}
	pageIdxInVMO := r.offsetPages + pageIndexInRegion
	slots := inodeObj.PhysicalPages()

	if slots[pageIdxInVMO] != nil {
		log.Debugf("region: inode fault pre-read hint: page %d already has a slot, expect a discard after the authoritative re-check", pageIdxInVMO)
	}

	var buf [hostarch.PageSize]byte
	n, err := inodeObj.Inode().ReadBytes(ctx, int64(pageIdxInVMO*hostarch.PageSize), buf[:])
	if err != nil {
		log.Warningf("region: handleInodeFault: error reading from inode: %v", err)
		return pagefault.ShouldCrash
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}

	inodeObj.Lock()
	if slots[pageIdxInVMO] != nil {
		inodeObj.Unlock()
		log.Debugf("region: handleInodeFault: page %d faulted in by someone else, remapping", pageIdxInVMO)
		if !remapVMObjectPage(r.vmobject, pageIdxInVMO) {
			return pagefault.OutOfMemory
		}
		return pagefault.Continue
	}

	frame, ok := r.mm.AllocateUserPhysicalPage(false)
	if !ok {
		inodeObj.Unlock()
		log.Warningf("region: handleInodeFault unable to allocate a physical page")
		return pagefault.OutOfMemory
	}
	dst := r.mm.QuickMapPage(frame)
	copy(dst, buf[:])
	r.mm.UnquickMapPage()
	slots[pageIdxInVMO] = frame
	inodeObj.Unlock()

	remapVMObjectPage(r.vmobject, pageIdxInVMO)
	return pagefault.Continue
}
