// Package vmo implements the VM Object: the ordered array of physical
// frame slots backing either anonymous (zero-initialized, CoW-capable,
// purgeable) or inode-sourced (file-backed, Private/Shared) memory.
package vmo

import (
	"vmkernel.dev/core/pkg/pfa"
	"vmkernel.dev/core/pkg/sync"
)

// Kind distinguishes the VMO variants spec.md §3 describes.
type Kind int

const (
	// Anonymous backs zero-initialized, CoW-capable, purgeable memory.
	Anonymous Kind = iota
	// PrivateInode backs a private (CoW-on-write) file mapping.
	PrivateInode
	// SharedInode backs a shared (aliased, no CoW) file mapping.
	SharedInode
)

func (k Kind) String() string {
	switch k {
	case Anonymous:
		return "Anonymous"
	case PrivateInode:
		return "PrivateInode"
	case SharedInode:
		return "SharedInode"
	default:
		return "Unknown"
	}
}

// Region is the subset of pkg/region's *Region that a VMO needs to call
// back into when one of its slots changes (e.g. on purge or CoW
// resolution). Defining it here rather than importing pkg/region avoids
// a vmo<->region import cycle, the same decoupling gvisor's
// memmap.Mappable/memmap.MappingSpace pair uses for the equivalent
// problem.
type Region interface {
	// RemapPage reinstalls the PTE for pageIdx (a VMO-relative page
	// index) from this VMO's current slot contents, returning false on
	// allocation failure along the way (e.g. a missing page table level).
	RemapPage(pageIdx uint64) bool

	// Name returns the Region's name, used only for diagnostics.
	Name() string
}

// Object is the capability set every VMO variant exposes to pkg/region
// and pkg/mm.
type Object interface {
	// PageCount returns the number of page-sized slots the VMO has.
	PageCount() uint64

	// Lock and Unlock guard slot contents, the CoW bitmap (if any), and
	// variant-specific bookkeeping. Callers must hold the lock across
	// any Slot/SetSlot pair that must observe a consistent value.
	Lock()
	Unlock()

	// Slot returns the frame currently installed at pageIdx. Must be
	// called with the VMO locked.
	Slot(pageIdx uint64) *pfa.Frame
	// SetSlot installs f at pageIdx. Must be called with the VMO locked.
	SetSlot(pageIdx uint64, f *pfa.Frame)

	// AddRegion and RemoveRegion register and deregister a Region that
	// maps this VMO, mirroring VMObject::add_region/remove_region.
	AddRegion(r Region)
	RemoveRegion(r Region)
	// ForEachRegion calls fn once for every currently registered Region.
	ForEachRegion(fn func(Region))

	// TryClone implements the fork primitive: it returns a new Object
	// sharing or diverging from this one per the variant's semantics,
	// or false if a required commit reservation could not be made.
	TryClone() (Object, bool)

	// Kind reports which variant this Object is.
	Kind() Kind
}

// base holds the state common to every VMO variant: the slot array, the
// lock guarding it, and the set of Regions currently mapping this VMO.
// It is embedded by AnonymousObject and InodeObject rather than used
// standalone.
type base struct {
	mu      sync.Mutex
	slots   []*pfa.Frame
	regions []Region
}

func (b *base) PageCount() uint64 { return uint64(len(b.slots)) }

func (b *base) Lock()   { b.mu.Lock() }
func (b *base) Unlock() { b.mu.Unlock() }

func (b *base) Slot(pageIdx uint64) *pfa.Frame { return b.slots[pageIdx] }

func (b *base) SetSlot(pageIdx uint64, f *pfa.Frame) { b.slots[pageIdx] = f }

func (b *base) AddRegion(r Region) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.regions = append(b.regions, r)
}

func (b *base) RemoveRegion(r Region) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, reg := range b.regions {
		if reg == r {
			b.regions = append(b.regions[:i], b.regions[i+1:]...)
			return
		}
	}
}

func (b *base) ForEachRegion(fn func(Region)) {
	b.mu.Lock()
	regions := append([]Region(nil), b.regions...)
	b.mu.Unlock()
	for _, r := range regions {
		fn(r)
	}
}

// cloneSlotsLocked returns a copy of b.slots with every Normal frame's
// refcount bumped by one, the Go equivalent of RefPtr's copy-constructor
// semantics when VMObject's copy constructor duplicates m_physical_pages.
// A nil slot (an InodeObject page never yet faulted in) is copied as nil.
// Must be called with b locked.
func cloneSlotsLocked(slots []*pfa.Frame) []*pfa.Frame {
	out := make([]*pfa.Frame, len(slots))
	for i, f := range slots {
		if f != nil {
			f.IncRef()
		}
		out[i] = f
	}
	return out
}
