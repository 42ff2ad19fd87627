// Package mm implements the Memory Manager and Page Directory: the
// process-global coordinator (page-table scratch window, PFA routing,
// TLB invalidation, commit accounting, Region registry) and the
// per-address-space page-table root plus its two Range Allocators.
package mm

import (
	"vmkernel.dev/core/pkg/hostarch"
	"vmkernel.dev/core/pkg/pagetables"
	"vmkernel.dev/core/pkg/rangealloc"
	"vmkernel.dev/core/pkg/sync"
)

// PageDirectory is the root of one address space: its page-table tree,
// its two RangeAllocators (user-reservable and identity-mapped), and the
// lock guarding structural changes to either. Region.Map/Unmap/Remap and
// Manager's EnsurePTEExists/ReleasePTE/SetPTE/ClearPTE all operate on a
// PageDirectory under that lock, per spec.md §5's VMO lock -> mm_lock ->
// PD lock descent order (the PD lock is always the innermost).
type PageDirectory struct {
	mu sync.Mutex

	tables *pagetables.PageTables
	ra     *rangealloc.Allocator
	ira    *rangealloc.Allocator
}

// NewPageDirectory creates a fresh address space whose user-reservable
// range is [userBase, userBase+userSize) and whose identity-mapped range
// is [identityBase, identityBase+identitySize).
func NewPageDirectory(userBase hostarch.Addr, userSize uint64, identityBase hostarch.Addr, identitySize uint64) (*PageDirectory, error) {
	ra, err := rangealloc.New(userBase, userSize)
	if err != nil {
		return nil, err
	}
	ira, err := rangealloc.New(identityBase, identitySize)
	if err != nil {
		return nil, err
	}
	return &PageDirectory{
		tables: pagetables.New(),
		ra:     ra,
		ira:    ira,
	}, nil
}

// Lock and Unlock guard structural changes to this address space's page
// tables, the per-PD lock of spec.md §5.
func (pd *PageDirectory) Lock()   { pd.mu.Lock() }
func (pd *PageDirectory) Unlock() { pd.mu.Unlock() }

// RangeAllocator returns the allocator Regions reserve their
// user-accessible virtual ranges from, the equivalent of
// PageDirectory::range_allocator().
func (pd *PageDirectory) RangeAllocator() *rangealloc.Allocator { return pd.ra }

// IdentityRangeAllocator returns the allocator Regions reserve
// kernel/identity virtual ranges from, the equivalent of
// PageDirectory::identity_range_allocator().
func (pd *PageDirectory) IdentityRangeAllocator() *rangealloc.Allocator { return pd.ira }
