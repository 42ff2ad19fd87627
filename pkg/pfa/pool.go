// Package pfa implements the Physical Frame Allocator: the component that
// hands out and reclaims page-sized physical frames, tracks each frame's
// kind (Normal, the SharedZero and LazyCommitted sentinels, and Reserved
// frames wrapping caller-supplied physical ranges), and enforces that
// outstanding commits never exceed the free pool.
package pfa

import (
	"fmt"

	"golang.org/x/sys/unix"
	"vmkernel.dev/core/pkg/hostarch"
)

// pool is the backing physical-memory arena. It is a single large
// anonymous mmap, the same technique gvisor's own pgalloc.MemoryFile uses
// to back all application memory with one memory-file-like object (see
// pkg/sentry/pgalloc/context.go's CtxMemoryFile) — here scaled down to an
// in-process arena rather than an actual memfd, since this core has no
// need to share the arena with another process.
type pool struct {
	arena     []byte
	numFrames uint64
}

func newPool(numFrames uint64) (*pool, error) {
	size := int(numFrames * hostarch.PageSize)
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("pfa: failed to mmap %d-frame arena: %w", numFrames, err)
	}
	return &pool{arena: mem, numFrames: numFrames}, nil
}

// frameBytes returns the arena slice backing frame index i.
func (p *pool) frameBytes(i uint64) []byte {
	off := i * hostarch.PageSize
	return p.arena[off : off+hostarch.PageSize]
}

// close unmaps the arena. It is not wired to any public Allocator method
// because this core's Allocator, like MM's singleton PFA, is a
// process-wide object with kernel lifetime (spec.md §9: "never torn
// down") — exposed only for tests that want to release the mapping
// explicitly.
func (p *pool) close() error {
	return unix.Munmap(p.arena)
}
