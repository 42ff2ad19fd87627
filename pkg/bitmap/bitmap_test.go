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

package bitmap

import "testing"

func TestNewFillOnes(t *testing.T) {
	b := New(10, true)
	if got, want := b.CountSet(), uint32(10); got != want {
		t.Fatalf("CountSet() = %d, want %d", got, want)
	}
	for i := uint32(0); i < 10; i++ {
		if !b.Get(i) {
			t.Errorf("Get(%d) = false, want true", i)
		}
	}
}

func TestSetClearTracksCount(t *testing.T) {
	b := New(4, false)
	b.Set(1, true)
	b.Set(2, true)
	if got, want := b.CountSet(), uint32(2); got != want {
		t.Fatalf("CountSet() = %d, want %d", got, want)
	}
	b.Set(1, false)
	if got, want := b.CountSet(), uint32(1); got != want {
		t.Fatalf("CountSet() = %d, want %d", got, want)
	}
	if b.Get(1) {
		t.Errorf("Get(1) = true after clearing")
	}
	if !b.Get(2) {
		t.Errorf("Get(2) = false, want true")
	}
}

func TestIsZero(t *testing.T) {
	var b Bitmap
	if !b.IsZero() {
		t.Errorf("zero-value Bitmap should report IsZero")
	}
	allocated := New(1, false)
	if allocated.IsZero() {
		t.Errorf("allocated Bitmap should not report IsZero")
	}
}
