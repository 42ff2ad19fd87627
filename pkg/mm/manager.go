package mm

import (
	"fmt"

	"vmkernel.dev/core/pkg/hostarch"
	"vmkernel.dev/core/pkg/log"
	"vmkernel.dev/core/pkg/pfa"
	"vmkernel.dev/core/pkg/region"
	"vmkernel.dev/core/pkg/sync"
)

// Manager is the process-global coordinator: it owns the Physical Frame
// Allocator, the single quick-map scratch window, the global Region
// registry, and global commit accounting, and it is the concrete type
// behind pkg/region's MM interface. There is conventionally exactly one
// Manager per running core, but unlike the once-initialized module façade
// spec.md §9 describes for MM/shared_zero/lazy_committed, callers
// construct it explicitly with New rather than reaching through a
// package-level global, so tests can run several Managers side by side.
type Manager struct {
	pfa *pfa.Allocator

	userLo, userHi hostarch.Addr

	quickmap   sync.Mutex
	quickInUse bool

	regMu   sync.Mutex
	regions []*region.Region
}

// New creates a Manager backed by alloc, whose user-accessible address
// range is [userLo, userHi).
func New(alloc *pfa.Allocator, userLo, userHi hostarch.Addr) *Manager {
	return &Manager{pfa: alloc, userLo: userLo, userHi: userHi}
}

// EnsurePTEExists implements region.MM: it lazily instantiates any
// missing page-table levels for vaddr under pd. This core's
// pagetables.PageTables grows its interior levels on demand and has no
// allocation-failure mode of its own (spec.md §1 treats the
// architecture-specific table encoding as an interface with no fixed
// capacity here), so EnsurePTEExists always succeeds; the bool return
// exists for architecture layers whose table-level allocation can fail.
func (m *Manager) EnsurePTEExists(pd region.PageDirectory, vaddr hostarch.Addr) bool {
	pd.(*PageDirectory).tables.EnsurePTE(vaddr)
	return true
}

// ClearPTE implements region.MM: it clears the mapping at vaddr under pd.
func (m *Manager) ClearPTE(pd region.PageDirectory, vaddr hostarch.Addr) {
	pd.(*PageDirectory).tables.EnsurePTE(vaddr).Clear()
}

// SetPTE implements region.MM: it installs a present mapping at vaddr
// under pd with the given field values. EnsurePTEExists must have been
// called first, matching map_individual_page_impl's call sequence.
func (m *Manager) SetPTE(pd region.PageDirectory, vaddr, physBase hostarch.Addr, cacheDisabled, writable, executeDisabled, userAccessible bool) {
	pte := pd.(*PageDirectory).tables.EnsurePTE(vaddr)
	pte.SetPresent(true)
	pte.SetCacheDisabled(cacheDisabled)
	pte.SetWritable(writable)
	pte.SetExecuteDisabled(executeDisabled)
	pte.SetUserAccessible(userAccessible)
	pte.SetPhysicalBase(uint64(physBase))
}

// ReleasePTE implements region.MM: it clears the mapping at vaddr under
// pd, additionally collapsing now-empty table levels when last is set.
func (m *Manager) ReleasePTE(pd region.PageDirectory, vaddr hostarch.Addr, last bool) {
	pd.(*PageDirectory).tables.ReleasePTE(vaddr, last)
}

// FlushTLBPage implements region.MM: it invalidates a single
// translation. This core has no hardware TLB to invalidate; the call
// exists so pkg/region's call sites stay identical to the original's
// MM::flush_tlb(page_directory, vaddr) and a future architecture layer
// has a single place to hook real invalidation.
func (m *Manager) FlushTLBPage(pd region.PageDirectory, vaddr hostarch.Addr) {
	log.Debugf("mm: flush TLB %s", vaddr)
}

// FlushTLBRange implements region.MM: it invalidates count consecutive
// page translations starting at base.
func (m *Manager) FlushTLBRange(pd region.PageDirectory, base hostarch.Addr, count uint64) {
	log.Debugf("mm: flush TLB range %s+%d", base, count)
}

// AllocateUserPhysicalPage implements region.MM: it routes to the
// Physical Frame Allocator for a page with no existing commit
// reservation behind it, the equivalent of
// MM::allocate_user_physical_page.
func (m *Manager) AllocateUserPhysicalPage(zeroFill bool) (*pfa.Frame, bool) {
	return m.pfa.AllocateUserFrame(zeroFill)
}

// AllocateCommittedUserPhysicalPage implements the external interface's
// allocate_committed_user_physical_page: infallible within a prior
// CommitUserPhysicalPages reservation, per spec.md §4.1's contract.
func (m *Manager) AllocateCommittedUserPhysicalPage(zeroFill bool) *pfa.Frame {
	return m.pfa.AllocateCommittedFrame(zeroFill)
}

// CommitUserPhysicalPages implements commit_user_physical_pages: reserve
// n pages from the global pool, failing if the pool is exhausted.
func (m *Manager) CommitUserPhysicalPages(n uint64) bool {
	return m.pfa.Commit(n)
}

// UncommitUserPhysicalPages implements uncommit_user_physical_pages:
// release a reservation of n pages previously made by
// CommitUserPhysicalPages.
func (m *Manager) UncommitUserPhysicalPages(n uint64) {
	m.pfa.Uncommit(n)
}

// SharedZeroPage implements shared_zero_page: the process-wide
// zero-filled sentinel frame.
func (m *Manager) SharedZeroPage() *pfa.Frame { return m.pfa.SharedZeroFrame() }

// LazyCommittedPage implements lazy_committed_page: the process-wide
// lazy-commit sentinel frame.
func (m *Manager) LazyCommittedPage() *pfa.Frame { return m.pfa.LazyCommittedFrame() }

// PFA exposes the underlying Physical Frame Allocator for components
// (VMO factories) that need to drive it directly rather than through the
// region.MM subset Manager otherwise presents.
func (m *Manager) PFA() *pfa.Allocator { return m.pfa }

// QuickMapPage implements vmo.QuickMapper and region.MM: it maps f into
// the single per-Manager scratch window for the duration of a CoW or
// inode-fault copy. Acquire -> memcpy -> release only, never nested — a
// reentrant call panics, the Go analog of quick_map's "never nested"
// discipline from spec.md §9. There is no virtual aliasing of physical
// memory to simulate here (a Frame's Bytes() are already directly
// addressable Go memory, see DESIGN.md's Open Question decision on
// this), so the window's only real job is enforcing that discipline.
func (m *Manager) QuickMapPage(f *pfa.Frame) []byte {
	m.quickmap.Lock()
	if m.quickInUse {
		m.quickmap.Unlock()
		panic("mm: QuickMapPage called while another quickmap is in flight")
	}
	m.quickInUse = true
	m.quickmap.Unlock()
	return f.Bytes()
}

// UnquickMapPage implements vmo.QuickMapper and region.MM: it releases
// the scratch window QuickMapPage most recently acquired.
func (m *Manager) UnquickMapPage() {
	m.quickmap.Lock()
	defer m.quickmap.Unlock()
	if !m.quickInUse {
		panic("mm: UnquickMapPage called with no quickmap in flight")
	}
	m.quickInUse = false
}

// IsUserAddress implements region.MM: it reports whether vaddr falls
// within the user-mapped half of the address space, the equivalent of
// is_user_address.
func (m *Manager) IsUserAddress(vaddr hostarch.Addr) bool {
	return vaddr >= m.userLo && vaddr < m.userHi
}

// RegisterRegion implements region.MM: it adds r to the global Region
// registry, the equivalent of MM::register_region.
func (m *Manager) RegisterRegion(r *region.Region) {
	m.regMu.Lock()
	defer m.regMu.Unlock()
	m.regions = append(m.regions, r)
}

// UnregisterRegion implements region.MM: it removes r from the global
// Region registry, the equivalent of MM::unregister_region. It panics if
// r is not currently registered, matching the original's assertion that
// a Region's destructor only ever runs once.
func (m *Manager) UnregisterRegion(r *region.Region) {
	m.regMu.Lock()
	defer m.regMu.Unlock()
	for i, reg := range m.regions {
		if reg == r {
			m.regions = append(m.regions[:i], m.regions[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("mm: UnregisterRegion(%p) not registered", r))
}

// RegionCount returns the number of Regions currently registered, for
// tests and diagnostics.
func (m *Manager) RegionCount() int {
	m.regMu.Lock()
	defer m.regMu.Unlock()
	return len(m.regions)
}

// FindRegion returns the registered Region whose virtual range contains
// vaddr, or nil if none does, the equivalent of the MM-side half of the
// fault dispatcher described in spec.md §2 and §4.5 ("Routes page
// faults to the owning Region... by consulting the current thread's
// address space"). This core has no per-thread address-space notion to
// consult; it walks the flat global registry instead, which is
// equivalent for the single-address-space-per-Manager shape the rest of
// this package assumes.
func (m *Manager) FindRegion(vaddr hostarch.Addr) *region.Region {
	m.regMu.Lock()
	defer m.regMu.Unlock()
	for _, r := range m.regions {
		if r.VirtualRange().Contains(vaddr) {
			return r
		}
	}
	return nil
}
