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

	"buf.build/go/osheap/internal/debug"
	"buf.build/go/osheap/internal/xunsafe"
)

// Align is the alignment of every payload address and payload size.
const Align = 8

// status records which arena a block belongs to and whether it is live.
//
// Mapped blocks have no free state: freeing one unmaps it.
type status uint32

const (
	statusFree    status = iota // segment block available for reuse
	statusSegment               // segment block in use
	statusMapped                // block at the start of its own mapping
)

// header is the metadata at the start of every block, in either arena. size
// counts the header itself plus the payload; the payload begins headerSize
// bytes past the header's own address.
//
// Headers live inside segment or mapped memory, so prev and next only ever
// point at other headers in the same arena, never into the Go heap.
type header struct {
	size   int
	status status
	_      uint32
	prev   *header
	next   *header
}

const headerSize = int(unsafe.Sizeof(header{}))

// header+payload keeps payloads aligned only while this holds.
var _ [0]byte = [headerSize % Align]byte{}

// minSplitRemainder is the smallest FREE block a split may leave behind.
const minSplitRemainder = headerSize + Align

// payload returns the address handed to the user for this block.
func (b *header) payload() unsafe.Pointer {
	return unsafe.Pointer(xunsafe.ByteAdd[byte](b, headerSize))
}

// payloadSize is how many bytes of b the user may touch.
func (b *header) payloadSize() int {
	return b.size - headerSize
}

// insertAfter splices m in immediately after n.
func insertAfter(n, m *header) {
	m.prev = n
	m.next = n.next
	if n.next != nil {
		n.next.prev = m
	}
	n.next = m
}

// list threads the headers of one arena together. The segment list is kept
// in strict address order; the mapped list is append-at-tail.
type list struct {
	head *header
}

// last returns the list's tail, or nil for an empty list.
func (l *list) last() *header {
	if l.head == nil {
		return nil
	}
	b := l.head
	for b.next != nil {
		b = b.next
	}
	return b
}

// push appends b at the tail.
func (l *list) push(b *header) {
	tail := l.last()
	if tail == nil {
		l.head = b
		return
	}
	insertAfter(tail, b)
}

// unlink removes b from the list, fixing the head if necessary.
func (l *list) unlink(b *header) {
	if l.head == b {
		l.head = b.next
	}
	if b.prev != nil {
		b.prev.next = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	}
	b.prev, b.next = nil, nil
}

// findPayload returns the block whose payload address is p, or nil.
func (l *list) findPayload(p unsafe.Pointer) *header {
	for b := l.head; b != nil; b = b.next {
		if b.payload() == p {
			return b
		}
	}
	return nil
}

// bestFit returns the smallest FREE block of at least the given size,
// preferring the earlier block on ties.
func (l *list) bestFit(size int) *header {
	var best *header
	for b := l.head; b != nil; b = b.next {
		if b.status != statusFree || b.size < size {
			continue
		}
		if best == nil || b.size < best.size {
			best = b
		}
	}
	return best
}

// coalesce merges every run of adjacent FREE blocks into one. Adjacent list
// nodes are adjacent in memory, so merging is pure size accounting.
func (l *list) coalesce() {
	for b := l.head; b != nil; b = b.next {
		for b.status == statusFree && b.next != nil && b.next.status == statusFree {
			m := b.next
			b.size += m.size
			b.next = m.next
			if m.next != nil {
				m.next.prev = b
			}
		}
	}
}

// check walks the segment list asserting adjacency, alignment, back-links,
// and coalescing. Compiles to nothing outside debug builds.
func (l *list) check() {
	if !debug.Enabled {
		return
	}
	for b := l.head; b != nil; b = b.next {
		debug.Assert(b.size%Align == 0, "block %v has unaligned size %d", xunsafe.AddrOf(b), b.size)
		debug.Assert(b.size >= minSplitRemainder, "block %v has runt size %d", xunsafe.AddrOf(b), b.size)
		m := b.next
		if m == nil {
			continue
		}
		debug.Assert(m.prev == b, "broken back-link at %v", xunsafe.AddrOf(m))
		debug.Assert(xunsafe.ByteSub(m, b) == b.size,
			"gap between %v and %v", xunsafe.AddrOf(b), xunsafe.AddrOf(m))
		debug.Assert(b.status != statusFree || m.status != statusFree,
			"adjacent FREE blocks at %v", xunsafe.AddrOf(b))
	}
}
