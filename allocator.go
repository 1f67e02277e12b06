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
	"math"
	"unsafe"

	"buf.build/go/osheap/internal/debug"
	"buf.build/go/osheap/internal/sys"
	"buf.build/go/osheap/internal/xunsafe"
)

const (
	// DefaultSegmentPrelude is the one-shot growth of an empty segment.
	DefaultSegmentPrelude = 128 << 10

	// DefaultMapThreshold is the block size above which [Allocator.Malloc]
	// places blocks in their own mappings. [Allocator.Calloc] uses the page
	// size instead, because a fresh mapping is already zero.
	DefaultMapThreshold = 128 << 10
)

// Allocator is a general-purpose heap allocator over two arenas: a single
// contiguous data segment grown on demand, and a set of independent
// anonymous mappings for large blocks.
//
// Segment blocks live for the allocator's lifetime and are reused after
// [Allocator.Free]; mapped blocks are returned to the OS on free. The zero
// value is not usable; construct with [New].
//
// An Allocator is not safe for concurrent use, and its operations must not
// be reentered (for example from a signal handler) while one is in progress.
type Allocator struct {
	sys Sys

	prelude       int
	mapThreshold  int
	zeroThreshold int // 0 until resolved to the page size
	segmentCap    int

	segment list // address-ordered; FREE blocks are reused
	mapped  list // one node per live mapping

	// Bookkeeping. Never exposed; the tests balance these.
	allocs   int
	brkBytes int
	mappings int
}

// New returns an empty allocator. Both arenas are initialized lazily, on the
// first operation that needs them.
func New(opts ...Option) *Allocator {
	a := &Allocator{
		prelude:      DefaultSegmentPrelude,
		mapThreshold: DefaultMapThreshold,
	}
	for _, opt := range opts {
		opt.apply(a)
	}
	if a.sys == nil {
		a.sys = sys.New(a.segmentCap)
	}
	return a
}

// maxRequest bounds payload sizes so blockSize cannot overflow.
const maxRequest = math.MaxInt - minSplitRemainder

// blockSize converts a user payload size into a header-inclusive block size.
func blockSize(size int) int {
	return xunsafe.RoundUp(size, Align) + headerSize
}

// zeroMapThreshold resolves the arena-selection threshold for Calloc.
func (a *Allocator) zeroMapThreshold() int {
	if a.zeroThreshold == 0 {
		a.zeroThreshold = a.sys.PageSize()
	}
	return a.zeroThreshold
}

// sbrk grows the segment by delta bytes and returns its pre-call end.
// Failure is fatal.
func (a *Allocator) sbrk(delta int) unsafe.Pointer {
	p, err := a.sys.Sbrk(delta)
	if err != nil {
		die("segment-break", err)
	}
	a.brkBytes += delta
	return p
}

func (a *Allocator) log(op, format string, args ...any) {
	debug.Log([]any{"%p", a}, op, format, args...)
}
