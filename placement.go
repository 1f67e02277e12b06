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
	"unsafe"

	"buf.build/go/osheap/internal/xunsafe"
)

// Malloc returns size bytes of payload aligned to [Align], or nil when size
// is zero or negative.
//
// Blocks whose header-inclusive size is at most the map threshold are placed
// in the segment arena, reusing FREE blocks best-fit-first; larger blocks
// each get their own mapping.
func (a *Allocator) Malloc(size int) unsafe.Pointer {
	if size <= 0 || size > maxRequest {
		return nil
	}

	need := blockSize(size)
	a.allocs++
	if need <= a.mapThreshold {
		return a.segmentAlloc(need)
	}
	return a.mapAlloc(need)
}

// segmentAlloc places a block of the given header-inclusive size in the
// segment arena.
func (a *Allocator) segmentAlloc(need int) unsafe.Pointer {
	if a.segment.head == nil {
		return a.segmentPrelude(need)
	}

	// Restore "no two adjacent FREE blocks" before searching, so that
	// best-fit sees every merged candidate at its full size.
	a.segment.coalesce()

	if best := a.segment.bestFit(need); best != nil {
		a.carve(best, need)
		best.status = statusSegment
		a.log("best fit", "%v:%d", xunsafe.AddrOf(best), best.size)
		a.segment.check()
		return best.payload()
	}

	return a.segmentGrow(need)
}

// segmentPrelude grows the empty segment by the prelude amount and carves
// the first block out of it. The rest of the prelude becomes one FREE block.
func (a *Allocator) segmentPrelude(need int) unsafe.Pointer {
	grow := max(xunsafe.RoundUp(a.prelude, Align), need)
	b := (*header)(a.sbrk(grow))
	*b = header{size: grow, status: statusSegment}
	a.segment.head = b
	a.carve(b, need)

	a.log("prelude", "%v:%d of %d", xunsafe.AddrOf(b), b.size, grow)
	a.segment.check()
	return b.payload()
}

// segmentGrow extends the segment when no FREE block fits: a FREE tail is
// widened in place by exactly the missing bytes, and an in-use tail gets a
// fresh block appended at the old break.
func (a *Allocator) segmentGrow(need int) unsafe.Pointer {
	tail := a.segment.last()
	if tail.status == statusFree {
		a.sbrk(need - tail.size)
		tail.size = need
		tail.status = statusSegment
		a.log("expand tail", "%v:%d", xunsafe.AddrOf(tail), tail.size)
		a.segment.check()
		return tail.payload()
	}

	b := (*header)(a.sbrk(need))
	*b = header{size: need, status: statusSegment}
	insertAfter(tail, b)
	a.log("grow", "%v:%d", xunsafe.AddrOf(b), b.size)
	a.segment.check()
	return b.payload()
}

// mapAlloc gives the block its own anonymous mapping.
func (a *Allocator) mapAlloc(need int) unsafe.Pointer {
	p, err := a.sys.Map(need)
	if err != nil {
		die("map", err)
	}

	b := (*header)(p)
	*b = header{size: need, status: statusMapped}
	a.mapped.push(b)
	a.mappings++
	a.log("map", "%v:%d", xunsafe.AddrOf(b), b.size)
	return b.payload()
}

// carve claims the first need bytes of b, splicing the rest in as a FREE
// block when there is enough of it to stand alone. A remainder smaller than
// minSplitRemainder stays inside b, so neighboring headers remain adjacent
// in memory.
func (a *Allocator) carve(b *header, need int) {
	rest := b.size - need
	if rest < minSplitRemainder {
		return
	}

	rem := xunsafe.ByteAdd[header](b, need)
	*rem = header{size: rest, status: statusFree}
	insertAfter(b, rem)
	b.size = need
}
