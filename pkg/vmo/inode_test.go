package vmo

import (
	"context"
	"testing"

	"vmkernel.dev/core/pkg/hostarch"
	"vmkernel.dev/core/pkg/pagefault"
)

type fakeInode struct{}

func (fakeInode) ReadBytes(ctx context.Context, offset int64, buf []byte) (int, error) {
	return len(buf), nil
}

func TestCreateSharedAndCreatePrivateKinds(t *testing.T) {
	alloc := newTestAllocator(t, 4)
	shared := CreateShared(alloc, fakeInode{}, 2)
	if shared.Kind() != SharedInode {
		t.Errorf("CreateShared Kind() = %v, want SharedInode", shared.Kind())
	}
	if shared.Private() {
		t.Errorf("CreateShared should not be Private")
	}

	private := CreatePrivate(alloc, fakeInode{}, 2)
	if private.Kind() != PrivateInode {
		t.Errorf("CreatePrivate Kind() = %v, want PrivateInode", private.Kind())
	}
	if !private.Private() {
		t.Errorf("CreatePrivate should be Private")
	}
}

func TestSharedInodeTryCloneAliasesSlots(t *testing.T) {
	alloc := newTestAllocator(t, 4)
	shared := CreateShared(alloc, fakeInode{}, 2)
	frame, ok := alloc.AllocateUserFrame(false)
	if !ok {
		t.Fatalf("AllocateUserFrame failed")
	}
	shared.PhysicalPages()[0] = frame

	cloneObj, ok := shared.TryClone()
	if !ok {
		t.Fatalf("TryClone failed")
	}
	clone := cloneObj.(*InodeObject)
	if clone.Kind() != SharedInode {
		t.Errorf("clone Kind() = %v, want SharedInode", clone.Kind())
	}
	if clone.PhysicalPages()[0] != shared.PhysicalPages()[0] {
		t.Errorf("shared clone should alias the same slot slice contents")
	}
	if clone.ShouldCow(0) {
		t.Errorf("shared clone should never report CoW")
	}
}

func TestPrivateInodeTryCloneDeepCopiesAndMarksCow(t *testing.T) {
	alloc := newTestAllocator(t, 4)
	parent := CreatePrivate(alloc, fakeInode{}, 2)
	frame, ok := alloc.AllocateUserFrame(false)
	if !ok {
		t.Fatalf("AllocateUserFrame failed")
	}
	parent.PhysicalPages()[0] = frame

	cloneObj, ok := parent.TryClone()
	if !ok {
		t.Fatalf("TryClone failed")
	}
	clone := cloneObj.(*InodeObject)

	if !clone.Private() {
		t.Errorf("clone of a Private InodeObject must also be Private")
	}
	if clone.PhysicalPages()[0] != frame {
		t.Errorf("private clone should still share the underlying frame immediately after clone")
	}
	if !parent.ShouldCow(0) || !clone.ShouldCow(0) {
		t.Errorf("both parent and clone should be CoW on every page right after a private clone")
	}
}

func TestInodeSetShouldCowAndShouldCow(t *testing.T) {
	alloc := newTestAllocator(t, 4)
	private := CreatePrivate(alloc, fakeInode{}, 2)
	if private.ShouldCow(0) {
		t.Fatalf("fresh private InodeObject should not be CoW before SetShouldCow")
	}
	private.SetShouldCow(0, true)
	if !private.ShouldCow(0) {
		t.Errorf("ShouldCow should be true after SetShouldCow(true)")
	}

	shared := CreateShared(alloc, fakeInode{}, 2)
	shared.SetShouldCow(0, true)
	if shared.ShouldCow(0) {
		t.Errorf("SetShouldCow on a Shared InodeObject should never make ShouldCow true")
	}
}

func TestPrivateInodeHandleCowFaultRefCountOneClearsInPlace(t *testing.T) {
	alloc := newTestAllocator(t, 4)
	private := CreatePrivate(alloc, fakeInode{}, 1)
	frame, ok := alloc.AllocateUserFrame(false)
	if !ok {
		t.Fatalf("AllocateUserFrame failed")
	}
	private.PhysicalPages()[0] = frame
	private.SetShouldCow(0, true)

	before := private.PhysicalPages()[0]
	resp := private.HandleCowFault(0, directQuickMapper{})
	if resp != pagefault.Continue {
		t.Fatalf("HandleCowFault refcount=1 case = %v, want Continue", resp)
	}
	if private.PhysicalPages()[0] != before {
		t.Errorf("refcount=1 case should not replace the slot's frame")
	}
	if private.ShouldCow(0) {
		t.Errorf("cow bit should be cleared after refcount=1 resolution")
	}
	if got := private.AmountDirty(); got != hostarch.PageSize {
		t.Errorf("AmountDirty() = %d, want one page", got)
	}
}

func TestPrivateInodeHandleCowFaultSharedFrameCopiesAndDiverges(t *testing.T) {
	alloc := newTestAllocator(t, 4)
	private := CreatePrivate(alloc, fakeInode{}, 1)
	frame, ok := alloc.AllocateUserFrame(false)
	if !ok {
		t.Fatalf("AllocateUserFrame failed")
	}
	frame.Bytes()[0] = 0x7a
	private.PhysicalPages()[0] = frame
	private.SetShouldCow(0, true)
	frame.IncRef() // simulate a second owner sharing this slot

	resp := private.HandleCowFault(0, directQuickMapper{})
	if resp != pagefault.Continue {
		t.Fatalf("HandleCowFault shared case = %v, want Continue", resp)
	}
	if got := private.PhysicalPages()[0].Bytes()[0]; got != 0x7a {
		t.Errorf("diverged copy lost original byte: got %#x, want 0x7a", got)
	}
	if private.PhysicalPages()[0] == frame {
		t.Errorf("divergent write should install a new frame, not reuse the shared one")
	}
	if private.ShouldCow(0) {
		t.Errorf("cow bit should be cleared after divergence")
	}
}

func TestSharedInodeAmountDirtyFallsBackToResident(t *testing.T) {
	alloc := newTestAllocator(t, 4)
	shared := CreateShared(alloc, fakeInode{}, 2)
	frame, ok := alloc.AllocateUserFrame(false)
	if !ok {
		t.Fatalf("AllocateUserFrame failed")
	}
	shared.PhysicalPages()[0] = frame

	if got := shared.AmountDirty(); got != hostarch.PageSize {
		t.Errorf("AmountDirty() = %d, want one resident page (%d)", got, hostarch.PageSize)
	}
}

func TestInodeAmountDirtyBeforeAnyFaultIsZero(t *testing.T) {
	alloc := newTestAllocator(t, 4)
	private := CreatePrivate(alloc, fakeInode{}, 2)
	if got := private.AmountDirty(); got != 0 {
		t.Errorf("AmountDirty() on an untouched private InodeObject = %d, want 0", got)
	}
}
