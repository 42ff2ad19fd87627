package region

import (
	"context"
	"testing"

	"vmkernel.dev/core/pkg/hostarch"
	"vmkernel.dev/core/pkg/pagefault"
	"vmkernel.dev/core/pkg/pagetables"
	"vmkernel.dev/core/pkg/pfa"
	"vmkernel.dev/core/pkg/rangealloc"
	"vmkernel.dev/core/pkg/sync"
	"vmkernel.dev/core/pkg/vmo"
)

const pageSize = hostarch.PageSize

type testPD struct {
	mu     sync.Mutex
	ra     *rangealloc.Allocator
	ira    *rangealloc.Allocator
	tables *pagetables.PageTables
}

func newTestPD(t *testing.T) *testPD {
	t.Helper()
	ra, err := rangealloc.New(hostarch.Addr(0x10000*pageSize), 16*pageSize)
	if err != nil {
		t.Fatalf("rangealloc.New(user): %v", err)
	}
	ira, err := rangealloc.New(0, 16*pageSize)
	if err != nil {
		t.Fatalf("rangealloc.New(identity): %v", err)
	}
	return &testPD{ra: ra, ira: ira, tables: pagetables.New()}
}

func (pd *testPD) Lock()   { pd.mu.Lock() }
func (pd *testPD) Unlock() { pd.mu.Unlock() }

func (pd *testPD) RangeAllocator() *rangealloc.Allocator         { return pd.ra }
func (pd *testPD) IdentityRangeAllocator() *rangealloc.Allocator { return pd.ira }

type flushRange struct {
	base  hostarch.Addr
	count uint64
}

type testMM struct {
	alloc         *pfa.Allocator
	userLo, userHi hostarch.Addr
	quickmapInUse bool
	flushedPages  []hostarch.Addr
	flushedRanges []flushRange
	registered    []*Region
}

func newTestMM(t *testing.T, frames uint64) *testMM {
	t.Helper()
	alloc, err := pfa.NewAllocator(frames)
	if err != nil {
		t.Fatalf("pfa.NewAllocator: %v", err)
	}
	return &testMM{alloc: alloc, userLo: hostarch.Addr(0x10000 * pageSize), userHi: hostarch.Addr(0x20000 * pageSize)}
}

func (m *testMM) EnsurePTEExists(pd PageDirectory, vaddr hostarch.Addr) bool {
	pd.(*testPD).tables.EnsurePTE(vaddr)
	return true
}

func (m *testMM) ClearPTE(pd PageDirectory, vaddr hostarch.Addr) {
	pd.(*testPD).tables.EnsurePTE(vaddr).Clear()
}

func (m *testMM) SetPTE(pd PageDirectory, vaddr, physBase hostarch.Addr, cacheDisabled, writable, executeDisabled, userAccessible bool) {
	pte := pd.(*testPD).tables.EnsurePTE(vaddr)
	pte.SetPresent(true)
	pte.SetCacheDisabled(cacheDisabled)
	pte.SetWritable(writable)
	pte.SetExecuteDisabled(executeDisabled)
	pte.SetUserAccessible(userAccessible)
	pte.SetPhysicalBase(uint64(physBase))
}

func (m *testMM) ReleasePTE(pd PageDirectory, vaddr hostarch.Addr, last bool) {
	pd.(*testPD).tables.ReleasePTE(vaddr, last)
}

func (m *testMM) FlushTLBPage(pd PageDirectory, vaddr hostarch.Addr) {
	m.flushedPages = append(m.flushedPages, vaddr)
}

func (m *testMM) FlushTLBRange(pd PageDirectory, base hostarch.Addr, count uint64) {
	m.flushedRanges = append(m.flushedRanges, flushRange{base, count})
}

func (m *testMM) AllocateUserPhysicalPage(zeroFill bool) (*pfa.Frame, bool) {
	return m.alloc.AllocateUserFrame(zeroFill)
}

func (m *testMM) QuickMapPage(f *pfa.Frame) []byte {
	if m.quickmapInUse {
		panic("testMM: nested quickmap")
	}
	m.quickmapInUse = true
	return f.Bytes()
}

func (m *testMM) UnquickMapPage() { m.quickmapInUse = false }

func (m *testMM) IsUserAddress(vaddr hostarch.Addr) bool {
	return vaddr >= m.userLo && vaddr < m.userHi
}

func (m *testMM) RegisterRegion(r *Region) { m.registered = append(m.registered, r) }

func (m *testMM) UnregisterRegion(r *Region) {
	for i, reg := range m.registered {
		if reg == r {
			m.registered = append(m.registered[:i], m.registered[i+1:]...)
			return
		}
	}
}

func userRange(pageOffset, pages uint64) hostarch.AddrRange {
	base := hostarch.Addr((0x10000 + pageOffset) * pageSize)
	return hostarch.AddrRange{Start: base, End: base + hostarch.Addr(pages*pageSize)}
}

func TestTryCreateUserRegistersWithVMOAndMM(t *testing.T) {
	mm := newTestMM(t, 4)
	alloc, _ := pfa.NewAllocator(4)
	obj, _ := vmo.CreateWithSize(alloc, 2, vmo.None)

	r, ok := TryCreateUser(userRange(0, 2), obj, 0, "r1", Read|Write, true, false, mm)
	if !ok {
		t.Fatalf("TryCreateUser failed")
	}
	if len(mm.registered) != 1 || mm.registered[0] != r {
		t.Errorf("TryCreateUser did not register with MM")
	}
	var seen []string
	obj.ForEachRegion(func(reg vmo.Region) { seen = append(seen, reg.Name()) })
	if len(seen) != 1 || seen[0] != "r1" {
		t.Errorf("TryCreateUser did not register with the VMO, got %v", seen)
	}
}

func TestTryCreateUserRejectsUnalignedRange(t *testing.T) {
	mm := newTestMM(t, 4)
	alloc, _ := pfa.NewAllocator(4)
	obj, _ := vmo.CreateWithSize(alloc, 1, vmo.None)
	bad := hostarch.AddrRange{Start: 1, End: hostarch.Addr(pageSize) + 1}
	if _, ok := TryCreateUser(bad, obj, 0, "bad", Read, true, false, mm); ok {
		t.Errorf("TryCreateUser should reject a non-page-aligned range")
	}
}

func TestMapInstallsWritablePTEForNormalPage(t *testing.T) {
	mm := newTestMM(t, 4)
	obj, _ := vmo.CreateWithSize(mm.alloc, 1, vmo.AllocateNow)
	r, _ := TryCreateUser(userRange(0, 1), obj, 0, "r", Read|Write, true, false, mm)
	pd := newTestPD(t)

	if !r.Map(pd, FlushTLB) {
		t.Fatalf("Map failed")
	}
	pte := pd.tables.Lookup(r.rng.Start)
	if pte == nil || !pte.Valid() {
		t.Fatalf("expected a present PTE after Map")
	}
	if !pte.Writable() {
		t.Errorf("a writable Region mapping a Normal page should install a writable PTE")
	}
	if len(mm.flushedRanges) != 1 {
		t.Errorf("Map should flush once, got %d flushes", len(mm.flushedRanges))
	}
}

func TestMapSentinelPageIsReadOnly(t *testing.T) {
	mm := newTestMM(t, 4)
	obj, _ := vmo.CreateWithSize(mm.alloc, 1, vmo.None)
	r, _ := TryCreateUser(userRange(0, 1), obj, 0, "r", Read|Write, true, false, mm)
	pd := newTestPD(t)

	if !r.Map(pd, FlushTLB) {
		t.Fatalf("Map failed")
	}
	pte := pd.tables.Lookup(r.rng.Start)
	if pte.Writable() {
		t.Errorf("a SharedZero slot must never be mapped writable even when the Region is writable")
	}
}

func TestMapClearsPTEWhenAccessIsNone(t *testing.T) {
	mm := newTestMM(t, 4)
	obj, _ := vmo.CreateWithSize(mm.alloc, 1, vmo.AllocateNow)
	r, _ := TryCreateUser(userRange(0, 1), obj, 0, "r", 0, true, false, mm)
	pd := newTestPD(t)

	if !r.Map(pd, FlushTLB) {
		t.Fatalf("Map failed")
	}
	pte := pd.tables.Lookup(r.rng.Start)
	if pte.Valid() {
		t.Errorf("a Region with neither Read nor Write access should have its PTE cleared")
	}
}

func TestUnmapReleasesRangeBackToUserAllocator(t *testing.T) {
	mm := newTestMM(t, 4)
	obj, _ := vmo.CreateWithSize(mm.alloc, 1, vmo.AllocateNow)
	pd := newTestPD(t)
	before := pd.ra.FreeBytes()

	rng := userRange(0, 1)
	if _, ok := pd.ra.ReserveAt(rng.Start, uint64(rng.Length())); !ok {
		t.Fatalf("ReserveAt failed")
	}
	r, _ := TryCreateUser(rng, obj, 0, "r", Read|Write, true, false, mm)
	r.Map(pd, FlushTLB)

	r.Unmap(DeallocateRange)
	if got := pd.ra.FreeBytes(); got != before {
		t.Errorf("FreeBytes() after Unmap = %d, want %d (fully released)", got, before)
	}
	if pte := pd.tables.Lookup(rng.Start); pte != nil && pte.Valid() {
		t.Errorf("PTE should be cleared after Unmap")
	}
}

func TestHandleFaultNotPresentLazyCommittedAllocatesAndContinues(t *testing.T) {
	mm := newTestMM(t, 4)
	obj, _ := vmo.CreateWithSize(mm.alloc, 1, vmo.Reserve)
	r, _ := TryCreateUser(userRange(0, 1), obj, 0, "r", Read|Write, true, false, mm)
	pd := newTestPD(t)
	r.Map(pd, FlushTLB)

	resp := r.HandleFault(context.Background(), pagefault.Fault{VAddr: r.rng.Start, Kind: pagefault.NotPresent, Access: pagefault.Write})
	if resp != pagefault.Continue {
		t.Fatalf("HandleFault(NotPresent, LazyCommitted) = %v, want Continue", resp)
	}
	obj.Lock()
	slot := obj.Slot(0)
	obj.Unlock()
	if !slot.IsNormal() {
		t.Errorf("lazy-committed page should have materialized into a Normal frame")
	}
}

func TestHandleFaultNotPresentNonReadableReadCrashes(t *testing.T) {
	mm := newTestMM(t, 4)
	obj, _ := vmo.CreateWithSize(mm.alloc, 1, vmo.AllocateNow)
	r, _ := TryCreateUser(userRange(0, 1), obj, 0, "r", Write, true, false, mm)

	resp := r.HandleFault(context.Background(), pagefault.Fault{VAddr: r.rng.Start, Kind: pagefault.NotPresent, Access: pagefault.Read})
	if resp != pagefault.ShouldCrash {
		t.Errorf("HandleFault(read on non-readable) = %v, want ShouldCrash", resp)
	}
}

func TestHandleFaultProtectionViolationZeroFaultOnSentinel(t *testing.T) {
	mm := newTestMM(t, 4)
	obj, _ := vmo.CreateWithSize(mm.alloc, 1, vmo.None)
	r, _ := TryCreateUser(userRange(0, 1), obj, 0, "r", Read|Write, true, false, mm)
	r.SetShouldCow(0, true)
	pd := newTestPD(t)
	r.Map(pd, FlushTLB)

	resp := r.HandleFault(context.Background(), pagefault.Fault{VAddr: r.rng.Start, Kind: pagefault.ProtectionViolation, Access: pagefault.Write})
	if resp != pagefault.Continue {
		t.Fatalf("HandleFault(PV, sentinel) = %v, want Continue", resp)
	}
	obj.Lock()
	slot := obj.Slot(0)
	obj.Unlock()
	if !slot.IsNormal() {
		t.Errorf("write fault on a CoW SharedZero page should materialize a Normal frame")
	}
}

func TestHandleFaultProtectionViolationCowFaultOnSharedFrame(t *testing.T) {
	mm := newTestMM(t, 4)
	obj, _ := vmo.CreateWithSize(mm.alloc, 1, vmo.AllocateNow)
	obj.Lock()
	obj.Slot(0).Bytes()[0] = 0x11
	obj.Slot(0).IncRef() // a second owner, e.g. a sibling clone
	obj.Unlock()
	r, _ := TryCreateUser(userRange(0, 1), obj, 0, "r", Read|Write, true, false, mm)
	r.SetShouldCow(0, true)
	pd := newTestPD(t)
	r.Map(pd, FlushTLB)

	resp := r.HandleFault(context.Background(), pagefault.Fault{VAddr: r.rng.Start, Kind: pagefault.ProtectionViolation, Access: pagefault.Write})
	if resp != pagefault.Continue {
		t.Fatalf("HandleFault(PV, cow) = %v, want Continue", resp)
	}
	obj.Lock()
	got := obj.Slot(0).Bytes()[0]
	obj.Unlock()
	if got != 0x11 {
		t.Errorf("diverged CoW copy lost original byte: got %#x, want 0x11", got)
	}
	pte := pd.tables.Lookup(r.rng.Start)
	if !pte.Writable() {
		t.Errorf("remap after CoW divergence should leave the page writable (cow bit now clear)")
	}
}

func TestCloneSharedRegionAliasesSameVMO(t *testing.T) {
	mm := newTestMM(t, 4)
	obj, _ := vmo.CreateWithSize(mm.alloc, 1, vmo.None)
	r, _ := TryCreateUser(userRange(0, 1), obj, 0, "r", Read|Write, true, true, mm)

	clone, ok := r.Clone()
	if !ok {
		t.Fatalf("Clone failed")
	}
	if clone.vmobject != r.vmobject {
		t.Errorf("a shared Region's clone must alias the same VMO")
	}
}

func TestClonePrivateAnonymousRegionProducesCowVMO(t *testing.T) {
	mm := newTestMM(t, 8)
	obj, _ := vmo.CreateWithSize(mm.alloc, 1, vmo.AllocateNow)
	r, _ := TryCreateUser(userRange(0, 1), obj, 0, "r", Read|Write, true, false, mm)
	pd := newTestPD(t)
	if !r.Map(pd, FlushTLB) {
		t.Fatalf("Map failed")
	}

	clone, ok := r.Clone()
	if !ok {
		t.Fatalf("Clone failed")
	}
	if clone.vmobject == r.vmobject {
		t.Errorf("a private Region's clone must get its own VMO, not alias the parent's")
	}
	if !r.shouldCow(0) || !clone.shouldCow(0) {
		t.Errorf("both parent and clone should be CoW on every page right after a private clone")
	}
}

func TestAmountResidentAndSharedCountOnlyMaterializedPages(t *testing.T) {
	mm := newTestMM(t, 4)
	obj, _ := vmo.CreateWithSize(mm.alloc, 2, vmo.None)
	obj.Lock()
	frame, _ := mm.alloc.AllocateUserFrame(false)
	frame.IncRef()
	obj.SetSlot(0, frame)
	obj.Unlock()

	r, _ := TryCreateUser(userRange(0, 2), obj, 0, "r", Read|Write, true, false, mm)
	if got := r.AmountResident(); got != pageSize {
		t.Errorf("AmountResident() = %d, want %d (one materialized page)", got, pageSize)
	}
	if got := r.AmountShared(); got != pageSize {
		t.Errorf("AmountShared() = %d, want %d (refcount 2)", got, pageSize)
	}
}

// TestHandleFaultConcurrentLazyCommitFaultAllocatesExactlyOnce is
// scenario S5: two goroutines deliver a NotPresent fault against the
// same LazyCommitted page concurrently. Exactly one frame must be
// allocated and exactly one commitment consumed; the loser must just
// observe the winner's already-installed frame and return Continue.
func TestHandleFaultConcurrentLazyCommitFaultAllocatesExactlyOnce(t *testing.T) {
	mm := newTestMM(t, 4)
	obj, ok := vmo.CreateWithSize(mm.alloc, 1, vmo.Reserve)
	if !ok {
		t.Fatalf("CreateWithSize(Reserve) failed")
	}
	r, _ := TryCreateUser(userRange(0, 1), obj, 0, "r", Read|Write, true, false, mm)
	pd := newTestPD(t)
	if !r.Map(pd, FlushTLB) {
		t.Fatalf("Map failed")
	}

	var wg sync.WaitGroup
	responses := make([]pagefault.Response, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i] = r.HandleFault(context.Background(), pagefault.Fault{VAddr: r.rng.Start, Kind: pagefault.NotPresent, Access: pagefault.Write})
		}(i)
	}
	wg.Wait()

	for i, resp := range responses {
		if resp != pagefault.Continue {
			t.Errorf("racer %d: HandleFault = %v, want Continue", i, resp)
		}
	}
	if got := mm.alloc.FreeFrames(); got != 3 {
		t.Errorf("FreeFrames() after concurrent lazy-commit fault = %d, want 3 (exactly one frame allocated)", got)
	}
	if got := mm.alloc.CommittedFrames(); got != 0 {
		t.Errorf("CommittedFrames() after concurrent lazy-commit fault = %d, want 0 (exactly one commitment consumed)", got)
	}
	obj.Lock()
	slot := obj.Slot(0)
	obj.Unlock()
	if !slot.IsNormal() {
		t.Errorf("page should have materialized into a single Normal frame")
	}
}

// TestHandleFaultConcurrentZeroFaultAllocatesExactlyOnce is S5's
// counterpart for a write fault on a CoW SharedZero page: two
// goroutines deliver a ProtectionViolation write fault concurrently, and
// exactly one frame must be allocated.
func TestHandleFaultConcurrentZeroFaultAllocatesExactlyOnce(t *testing.T) {
	mm := newTestMM(t, 4)
	obj, _ := vmo.CreateWithSize(mm.alloc, 1, vmo.None)
	r, _ := TryCreateUser(userRange(0, 1), obj, 0, "r", Read|Write, true, false, mm)
	r.SetShouldCow(0, true)
	pd := newTestPD(t)
	if !r.Map(pd, FlushTLB) {
		t.Fatalf("Map failed")
	}

	var wg sync.WaitGroup
	responses := make([]pagefault.Response, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i] = r.HandleFault(context.Background(), pagefault.Fault{VAddr: r.rng.Start, Kind: pagefault.ProtectionViolation, Access: pagefault.Write})
		}(i)
	}
	wg.Wait()

	for i, resp := range responses {
		if resp != pagefault.Continue {
			t.Errorf("racer %d: HandleFault = %v, want Continue", i, resp)
		}
	}
	if got := mm.alloc.FreeFrames(); got != 3 {
		t.Errorf("FreeFrames() after concurrent zero fault = %d, want 3 (exactly one frame allocated)", got)
	}
	obj.Lock()
	slot := obj.Slot(0)
	obj.Unlock()
	if !slot.IsNormal() {
		t.Errorf("page should have materialized into a single Normal frame")
	}
}

// fakeInode is a minimal vmo.Inode backed by an in-memory byte slice,
// short reads returned as-is (handleInodeFault pads the remainder with
// zero) the same way a short read near end-of-file would behave.
type fakeInode struct{ data []byte }

func (f fakeInode) ReadBytes(ctx context.Context, offset int64, buf []byte) (int, error) {
	if offset >= int64(len(f.data)) {
		return 0, nil
	}
	return copy(buf, f.data[offset:]), nil
}

// TestHandleFaultNotPresentSharedInodeReadsAndPadsWithZero is scenario
// S4, driven through Region.HandleFault end to end: a NotPresent fault
// on a Shared inode VMO backed by a 1-byte file reads that byte in and
// zero-pads the rest of the page.
func TestHandleFaultNotPresentSharedInodeReadsAndPadsWithZero(t *testing.T) {
	mm := newTestMM(t, 4)
	obj := vmo.CreateShared(mm.alloc, fakeInode{data: []byte{0x42}}, 1)
	r, _ := TryCreateUser(userRange(0, 1), obj, 0, "r", Read, true, true, mm)
	pd := newTestPD(t)
	if !r.Map(pd, FlushTLB) {
		t.Fatalf("Map failed")
	}

	resp := r.HandleFault(context.Background(), pagefault.Fault{VAddr: r.rng.Start, Kind: pagefault.NotPresent, Access: pagefault.Read})
	if resp != pagefault.Continue {
		t.Fatalf("HandleFault(inode NotPresent read) = %v, want Continue", resp)
	}

	slot := obj.PhysicalPages()[0]
	if slot == nil || !slot.IsNormal() {
		t.Fatalf("inode fault should materialize a Normal frame")
	}
	b := slot.Bytes()
	if b[0] != 0x42 {
		t.Errorf("byte 0 = %#x, want 0x42", b[0])
	}
	if b[1] != 0 {
		t.Errorf("byte 1 = %#x, want 0 (short read zero-padded)", b[1])
	}
}
