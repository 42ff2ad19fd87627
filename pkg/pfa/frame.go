package pfa

import "vmkernel.dev/core/pkg/hostarch"

// Kind distinguishes the three physical-frame states spec.md §3 requires
// (an ordinary refcounted frame, the single process-wide zero frame, and
// the commit-but-not-materialized sentinel), plus a fourth, Reserved, for
// frames wrapping a caller-supplied physical address.
type Kind uint8

const (
	// Normal is an ordinary, refcounted physical frame.
	Normal Kind = iota
	// SharedZero is the single process-wide frame of zeros. It is never
	// freed and its refcount is meaningless.
	SharedZero
	// LazyCommitted is a placeholder denoting a commitment charged
	// against the global reserve but not yet materialized. It is never
	// freed and its refcount is meaningless.
	LazyCommitted
	// Reserved wraps a caller-supplied physical address (MMIO or other
	// reserved memory) outside the allocator's arena. Like the
	// sentinels, it is never returned to the free list.
	Reserved
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Normal:
		return "Normal"
	case SharedZero:
		return "SharedZero"
	case LazyCommitted:
		return "LazyCommitted"
	case Reserved:
		return "Reserved"
	default:
		return "Unknown"
	}
}

// Frame is a reference to a physical frame. Sentinel Frames (SharedZero,
// LazyCommitted) are process-wide singletons compared by identity, per
// spec.md §9 ("the sentinels are immutable values compared by identity");
// every VMO slot holding a sentinel holds the exact same *Frame pointer.
type Frame struct {
	alloc    *Allocator
	kind     Kind
	index    uint64 // valid only when kind == Normal
	resAddr  hostarch.Addr // valid only when kind == Reserved
	resBytes []byte        // valid only when kind == Reserved
}

// Kind returns the Frame's discriminant.
func (f *Frame) Kind() Kind { return f.kind }

// IsNormal reports whether f is an ordinary refcounted frame.
func (f *Frame) IsNormal() bool { return f.kind == Normal }

// IsSharedZero reports whether f is the shared-zero sentinel.
func (f *Frame) IsSharedZero() bool { return f.kind == SharedZero }

// IsLazyCommitted reports whether f is the lazy-committed sentinel.
func (f *Frame) IsLazyCommitted() bool { return f.kind == LazyCommitted }

// IsReserved reports whether f wraps an externally-owned physical range.
func (f *Frame) IsReserved() bool { return f.kind == Reserved }

// IsSentinel reports whether f is a placeholder that must trap writes
// until some fault handler materializes a real frame behind it. Reserved
// frames are real, directly-writable backing memory (e.g. MMIO) and are
// deliberately excluded, unlike SharedZero and LazyCommitted.
func (f *Frame) IsSentinel() bool { return f.kind == SharedZero || f.kind == LazyCommitted }

// PhysAddr returns f's physical address. Sentinels have no real backing
// frame; PhysAddr is only meaningful for Normal and Reserved frames.
func (f *Frame) PhysAddr() hostarch.Addr {
	if f.kind == Reserved {
		return f.resAddr
	}
	return hostarch.Addr(f.index * hostarch.PageSize)
}

// RefCount returns the frame's current reference count. It is only
// meaningful for Normal frames; sentinels report 0.
func (f *Frame) RefCount() int32 {
	if f.kind != Normal {
		return 0
	}
	return f.alloc.refCount(f.index)
}

// IncRef increments f's reference count. It is a no-op for sentinels,
// which are never freed.
func (f *Frame) IncRef() {
	if f.kind == Normal {
		f.alloc.incRef(f.index)
	}
}

// DecRef decrements f's reference count, returning the frame to the
// allocator's free list when it reaches zero. It is a no-op for
// sentinels, matching spec.md §3's invariant that SharedZero and
// LazyCommitted are never freed.
func (f *Frame) DecRef() {
	if f.kind == Normal {
		f.alloc.decRef(f.index)
	}
}

// Bytes returns the frame's backing storage. Sentinels other than
// SharedZero have no materialized backing storage and Bytes panics for
// them — a LazyCommitted slot must be replaced with a real allocation
// before anything reads or writes through it, which is exactly what
// handle_zero_fault and allocate_committed_page exist to do.
func (f *Frame) Bytes() []byte {
	switch f.kind {
	case Normal:
		return f.alloc.pool.frameBytes(f.index)
	case SharedZero:
		return f.alloc.zeroBytes
	case Reserved:
		return f.resBytes
	default:
		panic("pfa: Bytes() called on an unmaterialized LazyCommitted sentinel")
	}
}
