package vmo

import (
	"vmkernel.dev/core/pkg/pfa"
	"vmkernel.dev/core/pkg/sync"
)

// committedCowPages is the shared pool a clone pair consults when
// resolving a CoW fault on a page known to be non-volatile: a
// reservation, already charged against the global commit, of frames
// that will be materialized as the parent and child diverge on write.
// The equivalent of the original's CommittedCowPages.
type committedCowPages struct {
	mu        sync.Mutex
	remaining uint64
}

func newCommittedCowPages(n uint64) *committedCowPages {
	return &committedCowPages{remaining: n}
}

// allocateOne materializes one of this pool's reserved frames, the
// equivalent of CommittedCowPages::allocate_one.
func (p *committedCowPages) allocateOne(alloc *pfa.Allocator, zeroFill bool) *pfa.Frame {
	p.mu.Lock()
	if p.remaining == 0 {
		p.mu.Unlock()
		panic("vmo: committedCowPages.allocateOne on an exhausted pool")
	}
	p.remaining--
	p.mu.Unlock()
	return alloc.AllocateCommittedFrame(zeroFill)
}

// returnOne gives back one credit without materializing a frame, used
// when a CoW fault resolves without copying (the slot's only remaining
// owner is the faulter). It reports true when the pool is now fully
// drained, telling the caller to drop its reference to it, the
// equivalent of CommittedCowPages::return_one.
func (p *committedCowPages) returnOne(alloc *pfa.Allocator) bool {
	alloc.Uncommit(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remaining == 0 {
		panic("vmo: committedCowPages.returnOne on an already-drained pool")
	}
	p.remaining--
	return p.remaining == 0
}
