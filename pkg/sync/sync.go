// Package sync mirrors the call-site idiom of gvisor's pkg/sync: code
// throughout this core takes its locks through this package's aliases
// rather than importing "sync" directly, so the locking primitives used
// by pkg/pfa, pkg/vmo, pkg/region and pkg/mm have one common name. It
// does not replicate gvisor's runtime-linkname-based race-instrumented
// Mutex (that machinery exists to let gVisor's own race detector see
// through its custom futex, which this core has no use for); see
// DESIGN.md.
package sync

import "sync"

// Aliases of standard library types, kept so call sites read the same way
// regardless of which package contributed the synchronization idiom.
type (
	// Mutex is an alias of sync.Mutex.
	Mutex = sync.Mutex

	// RWMutex is an alias of sync.RWMutex.
	RWMutex = sync.RWMutex

	// Cond is an alias of sync.Cond.
	Cond = sync.Cond

	// Locker is an alias of sync.Locker.
	Locker = sync.Locker

	// Once is an alias of sync.Once.
	Once = sync.Once

	// WaitGroup is an alias of sync.WaitGroup.
	WaitGroup = sync.WaitGroup

	// Map is an alias of sync.Map.
	Map = sync.Map
)

// NewCond is a wrapper around sync.NewCond.
func NewCond(l Locker) *Cond {
	return sync.NewCond(l)
}
