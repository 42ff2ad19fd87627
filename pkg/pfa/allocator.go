package pfa

import (
	"vmkernel.dev/core/pkg/hostarch"
	"vmkernel.dev/core/pkg/log"
	"vmkernel.dev/core/pkg/sync"
)

// Allocator is the Physical Frame Allocator. It owns the single backing
// arena for the core's simulated physical memory, the free list of
// unused frames, and the two sentinel frames every VMO slot may point
// at instead of a real frame: SharedZero and LazyCommitted.
//
// A commitment is the contract that allocate_committed_frame never
// fails for a frame already charged by commit(n). Allocator tracks that
// contract with committed, the count of frames charged but not yet
// handed out, separately from free, the count of frames available to
// hand out at all (charged or not).
type Allocator struct {
	pool *pool

	mu   sync.Mutex
	free []uint64 // indices of unused frames in the arena
	refs []int32  // refs[i] is frame i's reference count; 0 means free

	totalFrames uint64
	committed   uint64 // frames charged by Commit but not yet allocated

	sharedZero    *Frame
	lazyCommitted *Frame
	zeroBytes     []byte
}

// NewAllocator creates an Allocator backed by an arena of numFrames
// page-sized physical frames.
func NewAllocator(numFrames uint64) (*Allocator, error) {
	p, err := newPool(numFrames)
	if err != nil {
		return nil, err
	}
	a := &Allocator{
		pool:        p,
		free:        make([]uint64, numFrames),
		refs:        make([]int32, numFrames),
		totalFrames: numFrames,
		zeroBytes:   make([]byte, hostarch.PageSize),
	}
	for i := range a.free {
		a.free[i] = uint64(len(a.free) - 1 - i)
	}
	a.sharedZero = &Frame{alloc: a, kind: SharedZero}
	a.lazyCommitted = &Frame{alloc: a, kind: LazyCommitted}
	return a, nil
}

// NewReservedFrame wraps paddr as a non-returnable frame outside this
// allocator's arena, the equivalent of
// PhysicalPage::create(paddr, MayReturnToFreeList::No) used to back MMIO
// or other externally-owned physical ranges. paddr need not fall inside
// the arena this Allocator manages.
func (a *Allocator) NewReservedFrame(paddr hostarch.Addr) *Frame {
	return &Frame{alloc: a, kind: Reserved, resAddr: paddr, resBytes: make([]byte, hostarch.PageSize)}
}

// SharedZeroFrame returns the process-wide shared-zero sentinel.
func (a *Allocator) SharedZeroFrame() *Frame { return a.sharedZero }

// LazyCommittedFrame returns the process-wide lazy-committed sentinel.
func (a *Allocator) LazyCommittedFrame() *Frame { return a.lazyCommitted }

// FreeFrames returns the number of frames currently on the free list,
// charged or not.
func (a *Allocator) FreeFrames() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return uint64(len(a.free))
}

// CommittedFrames returns the number of frames charged by Commit but not
// yet materialized by AllocateCommittedFrame.
func (a *Allocator) CommittedFrames() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.committed
}

// Commit charges n frames against the free pool, reserving them for a
// future AllocateCommittedFrame call. It reports false, charging
// nothing, if fewer than n uncommitted frames remain free.
func (a *Allocator) Commit(n uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if uint64(len(a.free)) < a.committed+n {
		return false
	}
	a.committed += n
	return true
}

// Uncommit releases a charge of n frames previously made by Commit,
// without touching any frame that has already been materialized. It is
// the caller's responsibility to have decremented its own commitment
// bookkeeping by the same amount it calls Uncommit with.
func (a *Allocator) Uncommit(n uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n > a.committed {
		log.Warningf("pfa: Uncommit(%d) exceeds outstanding commitment %d, clamping", n, a.committed)
		n = a.committed
	}
	a.committed -= n
}

// AllocateUserFrame removes one frame from the free list and returns it
// with a reference count of one. It does not touch the commitment
// counter; callers that pre-committed must also call Uncommit(1). It
// reports false if no frame is free.
func (a *Allocator) AllocateUserFrame(zeroFill bool) (*Frame, bool) {
	a.mu.Lock()
	if len(a.free) == 0 {
		a.mu.Unlock()
		return nil, false
	}
	idx := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	a.refs[idx] = 1
	a.mu.Unlock()

	f := &Frame{alloc: a, kind: Normal, index: idx}
	if zeroFill {
		clear(f.Bytes())
	}
	return f, true
}

// AllocateCommittedFrame removes one frame from the free list, decrements
// the commitment counter, and returns the frame with a reference count
// of one. The caller must have previously reserved this allocation with
// Commit; per spec.md §4.1 this call is infallible within a valid
// commitment and panics if the accounting has been violated.
func (a *Allocator) AllocateCommittedFrame(zeroFill bool) *Frame {
	a.mu.Lock()
	if a.committed == 0 {
		a.mu.Unlock()
		panic("pfa: AllocateCommittedFrame called with no outstanding commitment")
	}
	if len(a.free) == 0 {
		a.mu.Unlock()
		panic("pfa: AllocateCommittedFrame found no free frame despite an outstanding commitment")
	}
	idx := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	a.refs[idx] = 1
	a.committed--
	a.mu.Unlock()

	f := &Frame{alloc: a, kind: Normal, index: idx}
	if zeroFill {
		clear(f.Bytes())
	}
	return f
}

func (a *Allocator) refCount(idx uint64) int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refs[idx]
}

func (a *Allocator) incRef(idx uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refs[idx]++
}

func (a *Allocator) decRef(idx uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refs[idx]--
	if a.refs[idx] < 0 {
		panic("pfa: frame refcount dropped below zero")
	}
	if a.refs[idx] == 0 {
		a.free = append(a.free, idx)
	}
}
