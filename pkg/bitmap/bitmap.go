// Copyright 2021 The gVisor Authors.
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

// Package bitmap provides a fixed-size bitmap, used by the Anonymous VMO
// to track which of its pages are currently copy-on-write.
package bitmap

// Bitmap is a fixed-size, one-bit-per-entry bitmap.
type Bitmap struct {
	numOnes  uint32
	bitBlock []uint64
}

// New returns a Bitmap with size bits, all initially clear, unless fillOnes
// is set, matching AnonymousVMObject::ensure_cow_map's `Bitmap{page_count(),
// true}` construction (a freshly cloned VMO's CoW bitmap starts all-ones).
func New(size uint32, fillOnes bool) Bitmap {
	b := Bitmap{bitBlock: make([]uint64, (size+63)/64)}
	if fillOnes {
		b.Fill(size, true)
	}
	return b
}

// Size returns the Bitmap's capacity in bits: the size passed to New,
// rounded up to a multiple of 64.
func (b *Bitmap) Size() uint32 {
	return uint32(len(b.bitBlock)) * 64
}

// Get returns the value of bit i.
func (b *Bitmap) Get(i uint32) bool {
	return b.bitBlock[i/64]&(uint64(1)<<(i%64)) != 0
}

// Set sets bit i to v.
func (b *Bitmap) Set(i uint32, v bool) {
	block, mask := i/64, uint64(1)<<(i%64)
	old := b.bitBlock[block]
	if v {
		b.bitBlock[block] = old | mask
		if old&mask == 0 {
			b.numOnes++
		}
	} else {
		b.bitBlock[block] = old &^ mask
		if old&mask != 0 {
			b.numOnes--
		}
	}
}

// Fill sets the first n bits to v, matching Bitmap::fill(true) used by
// AnonymousVMObject::ensure_or_reset_cow_map to reset a whole VMO's CoW
// bitmap to all-ones on clone.
func (b *Bitmap) Fill(n uint32, v bool) {
	for i := uint32(0); i < n; i++ {
		b.Set(i, v)
	}
}

// CountSet returns the number of set bits, the equivalent of
// Bitmap::count_slow(true) used by AnonymousVMObject::cow_pages.
func (b *Bitmap) CountSet() uint32 {
	return b.numOnes
}

// IsZero returns true if the Bitmap has never been allocated, the
// equivalent of the original's Bitmap::is_null() used to distinguish "no
// CoW bitmap has ever been needed" from "CoW bitmap exists and is empty".
func (b *Bitmap) IsZero() bool {
	return b.bitBlock == nil
}
