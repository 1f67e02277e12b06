// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package osheap

import (
	"math/bits"
	"unsafe"

	"buf.build/go/osheap/internal/xunsafe"
)

// Calloc returns zeroed payload for nmemb elements of size bytes each, or
// nil when the element count or size is zero, or their product overflows.
//
// Unlike [Allocator.Malloc], the arena-selection threshold is the page size:
// a fresh anonymous mapping is zero by the OS contract, so steering anything
// page-sized or larger to the mapped arena makes the explicit clear
// unnecessary there.
func (a *Allocator) Calloc(nmemb, size int) unsafe.Pointer {
	if nmemb <= 0 || size <= 0 {
		return nil
	}

	hi, lo := bits.Mul64(uint64(nmemb), uint64(size))
	if hi != 0 || lo > uint64(maxRequest) {
		return nil
	}
	total := int(lo)

	need := blockSize(total)
	a.allocs++
	if need <= a.zeroMapThreshold() {
		p := a.segmentAlloc(need)
		xunsafe.Clear((*byte)(p), xunsafe.RoundUp(total, Align))
		return p
	}
	return a.mapAlloc(need)
}
