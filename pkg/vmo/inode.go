package vmo

import (
	"context"

	"vmkernel.dev/core/pkg/bitmap"
	"vmkernel.dev/core/pkg/hostarch"
	"vmkernel.dev/core/pkg/pagefault"
	"vmkernel.dev/core/pkg/pfa"
)

// Inode is the subset of the filesystem layer's inode this core consumes
// directly, the equivalent of spec.md §6's
// `Inode::read_bytes(offset, length, kernel_buffer, out_actual)`.
type Inode interface {
	ReadBytes(ctx context.Context, offset int64, buf []byte) (n int, err error)
}

// InodeObject is the file-backed VMO variant, the Go analog of
// InodeVMObject and its Private/Shared specializations.
type InodeObject struct {
	base

	alloc   *pfa.Allocator
	inode   Inode
	private bool

	// cowMap and dirty are only ever populated for the Private variant:
	// shared mappings alias directly and never diverge, so Region's
	// should_cow check (is_anonymous() only, in the original) is
	// extended here to also consult a Private InodeObject's own cow
	// state, per spec.md §4.3's "mark parent/child CoW via an anonymous
	// clone path" — see DESIGN.md's Open Question on this.
	cowMap bitmap.Bitmap
	dirty  bitmap.Bitmap
}

func (o *InodeObject) Kind() Kind {
	if o.private {
		return PrivateInode
	}
	return SharedInode
}

// CreateShared implements create_shared(inode).
func CreateShared(alloc *pfa.Allocator, inode Inode, pageCount uint64) *InodeObject {
	return &InodeObject{alloc: alloc, inode: inode, base: base{slots: make([]*pfa.Frame, pageCount)}}
}

// CreatePrivate implements create_private(inode).
func CreatePrivate(alloc *pfa.Allocator, inode Inode, pageCount uint64) *InodeObject {
	return &InodeObject{
		alloc:   alloc,
		inode:   inode,
		private: true,
		base:    base{slots: make([]*pfa.Frame, pageCount)},
	}
}

// Inode returns the backing inode.
func (o *InodeObject) Inode() Inode { return o.inode }

// Private reports whether this is the Private (CoW) variant.
func (o *InodeObject) Private() bool { return o.private }

// PhysicalPages exposes the slot array the way handle_inode_fault needs
// to index and publish directly into, mirroring
// InodeVMObject::physical_pages(). Callers must hold the Object's lock
// across any read-then-write sequence on the returned slice.
func (o *InodeObject) PhysicalPages() []*pfa.Frame { return o.slots }

// TryClone implements try_clone: Shared clones alias the same slots;
// Private clones deep-copy the slot references (bumping refcounts) and
// reset a private CoW bitmap over the whole object, so a subsequent
// write on either parent or child diverges instead of corrupting the
// other's view of the file.
func (o *InodeObject) TryClone() (Object, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.private {
		return &InodeObject{alloc: o.alloc, inode: o.inode, base: base{slots: o.slots}}, true
	}

	clone := &InodeObject{
		alloc:   o.alloc,
		inode:   o.inode,
		private: true,
		base:    base{slots: cloneSlotsLocked(o.slots)},
	}
	o.ensureOrResetCowMapLocked()
	clone.ensureOrResetCowMapLocked()
	return clone, true
}

func (o *InodeObject) ensureOrResetCowMapLocked() {
	if o.cowMap.IsZero() {
		o.cowMap = bitmap.New(uint32(len(o.slots)), true)
	} else {
		o.cowMap.Fill(uint32(len(o.slots)), true)
	}
}

// ShouldCow reports whether a write to pageIdx must divert rather than
// write in place. It is only ever true for the Private variant.
func (o *InodeObject) ShouldCow(pageIdx uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.private || o.cowMap.IsZero() {
		return false
	}
	return o.cowMap.Get(uint32(pageIdx))
}

// SetShouldCow sets or clears the CoW bit for pageIdx. Valid only on the
// Private variant.
func (o *InodeObject) SetShouldCow(pageIdx uint64, cow bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cowMap.IsZero() {
		o.cowMap = bitmap.New(uint32(len(o.slots)), true)
	}
	o.cowMap.Set(uint32(pageIdx), cow)
}

// HandleCowFault resolves a write fault on a Private InodeObject's CoW
// page: if no one else shares the slot, it clears the CoW bit in place;
// otherwise it allocates a fresh user frame, copies the shared page's
// bytes into it via qm, installs it, and marks the page dirty.
func (o *InodeObject) HandleCowFault(pageIdx uint64, qm QuickMapper) pagefault.Response {
	o.mu.Lock()
	defer o.mu.Unlock()

	slot := o.slots[pageIdx]
	if slot.RefCount() == 1 {
		o.cowMap.Set(uint32(pageIdx), false)
		o.markDirtyLocked(pageIdx)
		return pagefault.Continue
	}

	next, ok := o.alloc.AllocateUserFrame(false)
	if !ok {
		return pagefault.OutOfMemory
	}
	dst := qm.QuickMapPage(next)
	copy(dst, slot.Bytes())
	qm.UnquickMapPage()

	old := slot
	o.slots[pageIdx] = next
	old.DecRef()
	o.cowMap.Set(uint32(pageIdx), false)
	o.markDirtyLocked(pageIdx)
	return pagefault.Continue
}

// MarkDirty records that pageIdx has been written since it was last
// considered clean. HandleCowFault records its own writes; pkg/region's
// fault paths do not call MarkDirty, so a page installed writable by
// handleInodeFault is not marked dirty.
func (o *InodeObject) MarkDirty(pageIdx uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.markDirtyLocked(pageIdx)
}

func (o *InodeObject) markDirtyLocked(pageIdx uint64) {
	if o.dirty.IsZero() {
		o.dirty = bitmap.New(uint32(len(o.slots)), false)
	}
	o.dirty.Set(uint32(pageIdx), true)
}

// AmountDirty implements amount_dirty. For Private mappings this is the
// set of pages marked dirty by a resolved CoW write; for Shared mappings,
// which write through directly once mapped writable with no further
// fault to observe, it falls back to resident bytes — the same fallback
// Region::amount_dirty itself uses for any non-inode VMO, since this core
// has no hardware dirty-bit sampling (filesystem writeback is an
// explicit Non-goal).
func (o *InodeObject) AmountDirty() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.private {
		return o.amountResidentLocked()
	}
	if o.dirty.IsZero() {
		return 0
	}
	return uint64(o.dirty.CountSet()) * hostarch.PageSize
}

func (o *InodeObject) amountResidentLocked() uint64 {
	var n uint64
	for _, f := range o.slots {
		if f != nil && f.IsNormal() {
			n += hostarch.PageSize
		}
	}
	return n
}
