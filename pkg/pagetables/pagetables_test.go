// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pagetables

import (
	"testing"

	"vmkernel.dev/core/pkg/hostarch"
)

func TestEnsureThenLookup(t *testing.T) {
	pt := New()
	addr := hostarch.Addr(0x4000)
	pte := pt.EnsurePTE(addr)
	pte.SetPresent(true)
	pte.SetPhysicalBase(0x8000)

	got := pt.Lookup(addr)
	if got == nil {
		t.Fatalf("Lookup after EnsurePTE returned nil")
	}
	if !got.Valid() || got.PhysicalBase() != 0x8000 {
		t.Errorf("Lookup returned stale entry: valid=%v physBase=%#x", got.Valid(), got.PhysicalBase())
	}
}

func TestLookupMissingReturnsNil(t *testing.T) {
	pt := New()
	if got := pt.Lookup(hostarch.Addr(0x1000)); got != nil {
		t.Errorf("Lookup on empty tree = %v, want nil", got)
	}
}

func TestReleasePTECollapsesEmptyLevels(t *testing.T) {
	pt := New()
	addr := hostarch.Addr(0x4000)
	pt.EnsurePTE(addr).SetPresent(true)

	if len(pt.root.children) == 0 {
		t.Fatalf("expected EnsurePTE to populate the root level")
	}

	pt.ReleasePTE(addr, true)

	if len(pt.root.children) != 0 {
		t.Errorf("expected ReleasePTE(last=true) to collapse the now-empty root level, got %d children", len(pt.root.children))
	}
	if got := pt.Lookup(addr); got != nil {
		t.Errorf("Lookup after collapse = %v, want nil", got)
	}
}

func TestReleasePTEWithoutLastDoesNotCollapse(t *testing.T) {
	pt := New()
	addr := hostarch.Addr(0x4000)
	pt.EnsurePTE(addr).SetPresent(true)

	pt.ReleasePTE(addr, false)

	if len(pt.root.children) == 0 {
		t.Errorf("expected table levels to survive ReleasePTE(last=false)")
	}
	if got := pt.Lookup(addr); got == nil || got.Valid() {
		t.Errorf("expected PTE to be cleared but table not collapsed")
	}
}

func TestDistinctAddressesGetDistinctEntries(t *testing.T) {
	pt := New()
	a := hostarch.Addr(0x1000)
	b := hostarch.Addr(0x2000)
	pt.EnsurePTE(a).SetPhysicalBase(1)
	pt.EnsurePTE(b).SetPhysicalBase(2)

	if got := pt.Lookup(a).PhysicalBase(); got != 1 {
		t.Errorf("Lookup(a) physBase = %d, want 1", got)
	}
	if got := pt.Lookup(b).PhysicalBase(); got != 2 {
		t.Errorf("Lookup(b) physBase = %d, want 2", got)
	}
}
