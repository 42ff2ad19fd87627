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

import "vmkernel.dev/core/pkg/hostarch"

// entryBits is the fan-out, in bits, of each interior level of the tree,
// matching the 512-entries-per-table (9 bits) convention described by
// pkg/ring0/pagetables' walker for amd64, without committing to amd64's
// actual 4-level encoding (spec.md §1 leaves the architecture layer as an
// interface).
const entryBits = 9

// entriesPerTable is the fan-out of each interior level.
const entriesPerTable = 1 << entryBits

// leafTable is the level holding actual PTEs.
type leafTable struct {
	ptes [entriesPerTable]PTE
}

func (l *leafTable) empty() bool {
	for i := range l.ptes {
		if l.ptes[i].Valid() {
			return false
		}
	}
	return true
}

// midTable is an interior level pointing at leaf tables.
type midTable struct {
	children map[uint64]*leafTable
}

// rootTable is the top interior level pointing at midTables.
type rootTable struct {
	children map[uint64]*midTable
}

// PageTables is a lazily populated, architecture-neutral multi-level
// translation tree. It is the concrete structure that PageDirectory's
// EnsurePTE/ReleasePTE operate on; it holds no lock of its own — the
// caller (pkg/mm's PageDirectory) must serialize access under its own
// lock, per spec.md §5's per-PD lock.
type PageTables struct {
	root rootTable
}

// New returns an empty PageTables.
func New() *PageTables {
	return &PageTables{root: rootTable{children: map[uint64]*midTable{}}}
}

// split decomposes a page-aligned address into the three levels of index
// this tree uses.
func split(vaddr hostarch.Addr) (rootIdx, midIdx, leafIdx uint64) {
	pn := uint64(vaddr) >> hostarch.PageShift
	leafIdx = pn & (entriesPerTable - 1)
	pn >>= entryBits
	midIdx = pn & (entriesPerTable - 1)
	pn >>= entryBits
	rootIdx = pn
	return
}

// EnsurePTE returns the PTE for vaddr, lazily instantiating any missing
// interior table levels, the equivalent of MM.ensure_pte.
func (pt *PageTables) EnsurePTE(vaddr hostarch.Addr) *PTE {
	r, m, l := split(vaddr)
	mid := pt.root.children[r]
	if mid == nil {
		mid = &midTable{children: map[uint64]*leafTable{}}
		pt.root.children[r] = mid
	}
	leaf := mid.children[m]
	if leaf == nil {
		leaf = &leafTable{}
		mid.children[m] = leaf
	}
	return &leaf.ptes[l]
}

// Lookup returns the PTE for vaddr without allocating, or nil if no table
// level exists for vaddr yet.
func (pt *PageTables) Lookup(vaddr hostarch.Addr) *PTE {
	r, m, l := split(vaddr)
	mid := pt.root.children[r]
	if mid == nil {
		return nil
	}
	leaf := mid.children[m]
	if leaf == nil {
		return nil
	}
	return &leaf.ptes[l]
}

// ReleasePTE clears the PTE for vaddr. When last is set, it additionally
// collapses the leaf (and, if that empties the interior level, the mid)
// table containing vaddr, the equivalent of MM.release_pte(pd, vaddr,
// last) as called from Region::unmap with last == (i == count-1).
func (pt *PageTables) ReleasePTE(vaddr hostarch.Addr, last bool) {
	r, m, l := split(vaddr)
	mid := pt.root.children[r]
	if mid == nil {
		return
	}
	leaf := mid.children[m]
	if leaf == nil {
		return
	}
	leaf.ptes[l].Clear()
	if !last {
		return
	}
	if leaf.empty() {
		delete(mid.children, m)
		if len(mid.children) == 0 {
			delete(pt.root.children, r)
		}
	}
}
