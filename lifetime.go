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

// Free releases the block whose payload is p.
//
// A segment block flips to FREE and stays in the arena for reuse; a mapped
// block is unlinked and its mapping returned to the OS. Free tolerates nil,
// and a pointer the allocator does not own (including one already freed and
// coalesced away) is a no-op.
func (a *Allocator) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}

	if b := a.segment.findPayload(p); b != nil {
		if b.status == statusFree {
			// Double free: the block is already FREE and coalesced.
			return
		}
		b.status = statusFree
		a.segment.coalesce()
		a.allocs--
		a.log("free", "%v:%d", xunsafe.AddrOf(b), b.size)
		a.segment.check()
		return
	}

	if b := a.mapped.findPayload(p); b != nil {
		a.mapped.unlink(b)
		a.mappings--
		a.allocs--
		a.log("unmap", "%v:%d", xunsafe.AddrOf(b), b.size)
		if err := a.sys.Unmap(unsafe.Pointer(b), b.size); err != nil {
			die("unmap", err)
		}
		return
	}
}

// Realloc resizes the block whose payload is p to size bytes, preserving the
// first min(old payload, size) bytes of content.
//
// A nil p delegates to [Allocator.Malloc]; a zero size delegates to
// [Allocator.Free] and returns nil. Segment blocks are resized in place
// whenever possible: shrinking splits off a FREE remainder, growing absorbs
// a FREE right neighbor or extends the segment when the block is last.
// Everything else, including every mapped block, relocates to a fresh
// allocation. Resizing a block that is already FREE returns nil.
func (a *Allocator) Realloc(p unsafe.Pointer, size int) unsafe.Pointer {
	if p == nil {
		return a.Malloc(size)
	}
	if size <= 0 {
		a.Free(p)
		return nil
	}
	if size > maxRequest {
		return nil
	}

	if b := a.segment.findPayload(p); b != nil {
		return a.segmentResize(b, size)
	}
	if b := a.mapped.findPayload(p); b != nil {
		return a.relocate(b, size)
	}
	return nil
}

// segmentResize tries the in-place strategies in order before falling back
// to relocation. The payload pointer never moves during an in-place resize,
// which is why the left neighbor is never consulted.
func (a *Allocator) segmentResize(b *header, size int) unsafe.Pointer {
	if b.status == statusFree {
		// Resizing a freed block is a usage error; fail softly.
		return nil
	}

	need := blockSize(size)

	// Shrink or exact fit.
	if b.size >= need {
		a.carve(b, need)
		a.log("resize in place", "%v:%d", xunsafe.AddrOf(b), b.size)
		a.segment.coalesce()
		a.segment.check()
		return b.payload()
	}

	// Absorb a FREE right neighbor, then trim the merged block.
	if r := b.next; r != nil && r.status == statusFree && b.size+r.size >= need {
		b.size += r.size
		b.next = r.next
		if r.next != nil {
			r.next.prev = b
		}
		a.carve(b, need)
		a.log("absorb right", "%v:%d", xunsafe.AddrOf(b), b.size)
		a.segment.coalesce()
		a.segment.check()
		return b.payload()
	}

	// The last block can grow by moving the break.
	if b.next == nil {
		a.sbrk(need - b.size)
		b.size = need
		a.log("extend tail", "%v:%d", xunsafe.AddrOf(b), b.size)
		a.segment.check()
		return b.payload()
	}

	return a.relocate(b, size)
}

// relocate copies b's content into a fresh allocation and frees b.
func (a *Allocator) relocate(b *header, size int) unsafe.Pointer {
	n := min(b.payloadSize(), size)
	q := a.Malloc(size)
	xunsafe.Copy((*byte)(q), (*byte)(b.payload()), n)
	a.Free(b.payload())
	a.log("relocate", "%v -> %v", xunsafe.AddrOf(b), xunsafe.AddrOf((*byte)(q)))
	return q
}
