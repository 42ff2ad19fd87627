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

// Package pagetables implements the architecture-neutral multi-level
// translation tree that pkg/mm's PageDirectory and pkg/region's Region
// operate on.
package pagetables

// PTE is a single page-table entry. Per spec.md §9's redesign note on the
// original's bit-packed access shadow ("Implementers should represent
// this as two explicit fields rather than bit packing"), every flag here
// is its own field rather than a packed bitmask.
type PTE struct {
	present         bool
	writable        bool
	userAccessible  bool
	cacheDisabled   bool
	executeDisabled bool
	physBase        uint64
}

// Valid reports whether the entry is present, the Go analog of the
// original's `pte->is_present()` used to decide whether a page table can
// be collapsed.
func (p *PTE) Valid() bool { return p.present }

// Clear removes the mapping, the equivalent of Region.cpp's `pte->clear()`.
func (p *PTE) Clear() { *p = PTE{} }

// SetPresent sets whether the entry is present.
func (p *PTE) SetPresent(v bool) { p.present = v }

// SetWritable sets whether writes through this entry are permitted.
func (p *PTE) SetWritable(v bool) { p.writable = v }

// SetUserAccessible sets whether user-mode accesses through this entry are
// permitted.
func (p *PTE) SetUserAccessible(v bool) { p.userAccessible = v }

// SetCacheDisabled sets whether the mapped page bypasses the cache.
func (p *PTE) SetCacheDisabled(v bool) { p.cacheDisabled = v }

// SetExecuteDisabled sets whether instruction fetches through this entry
// are permitted.
func (p *PTE) SetExecuteDisabled(v bool) { p.executeDisabled = v }

// SetPhysicalBase sets the physical address this entry translates to.
func (p *PTE) SetPhysicalBase(addr uint64) { p.physBase = addr }

// Writable reports whether writes through this entry are permitted.
func (p *PTE) Writable() bool { return p.present && p.writable }

// Executable reports whether instruction fetches through this entry are
// permitted.
func (p *PTE) Executable() bool { return p.present && !p.executeDisabled }

// UserAccessible reports whether user-mode accesses through this entry
// are permitted.
func (p *PTE) UserAccessible() bool { return p.present && p.userAccessible }

// PhysicalBase returns the physical address this entry translates to.
func (p *PTE) PhysicalBase() uint64 { return p.physBase }
