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

//go:build linux || darwin

// Package sys provides the operating-system memory primitives the allocator
// is built on: a growable data segment and independent anonymous mappings.
package sys

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultSegmentCap is how much address space backs a segment by default.
//
// The reservation is PROT_NONE and MAP_NORESERVE: it consumes address space,
// not memory, until the accessible prefix grows over it.
const DefaultSegmentCap = 1 << 30

// Mem vends memory for a single allocator.
//
// Go programs cannot move the real program break; the runtime owns it. The
// segment is instead one large anonymous reservation whose accessible prefix
// grows with mprotect. Sbrk keeps the brk(2) contract the allocator depends
// on: the segment stays contiguous, the pre-call end is returned, and
// exhaustion surfaces as an error rather than a wild pointer.
type Mem struct {
	limit int
	seg   []byte // full reservation; inaccessible past brk
	brk   int
}

// New returns a Mem whose segment can grow to at most limit bytes.
func New(limit int) *Mem {
	if limit <= 0 {
		limit = DefaultSegmentCap
	}
	return &Mem{limit: limit}
}

// Sbrk extends (or, with negative delta, shrinks) the data segment by delta
// bytes and returns the segment's pre-call end.
func (m *Mem) Sbrk(delta int) (unsafe.Pointer, error) {
	if m.seg == nil {
		seg, err := unix.Mmap(-1, 0, m.limit,
			unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_NORESERVE)
		if err != nil {
			return nil, fmt.Errorf("reserve %d-byte segment: %w", m.limit, err)
		}
		m.seg = seg
	}

	end := m.brk + delta
	switch {
	case end < 0:
		return nil, fmt.Errorf("shrink segment below its start: %w", unix.EINVAL)
	case end > m.limit:
		return nil, fmt.Errorf("grow segment past %d bytes: %w", m.limit, unix.ENOMEM)
	}

	if delta > 0 {
		if err := unix.Mprotect(m.seg[:end], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			return nil, fmt.Errorf("unprotect segment: %w", err)
		}
	} else if delta < 0 {
		if err := unix.Mprotect(m.seg[end:m.brk], unix.PROT_NONE); err != nil {
			return nil, fmt.Errorf("reprotect segment: %w", err)
		}
	}

	old := m.brk
	m.brk = end
	return unsafe.Add(unsafe.Pointer(unsafe.SliceData(m.seg)), old), nil
}

// Map returns a fresh anonymous page-aligned region of length bytes,
// readable, writable, and private.
func (m *Mem) Map(length int) (unsafe.Pointer, error) {
	b, err := unix.Mmap(-1, 0, length,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("map %d bytes: %w", length, err)
	}
	return unsafe.Pointer(unsafe.SliceData(b)), nil
}

// Unmap releases a region previously returned by Map.
func (m *Mem) Unmap(p unsafe.Pointer, length int) error {
	if err := unix.Munmap(unsafe.Slice((*byte)(p), length)); err != nil {
		return fmt.Errorf("unmap %d bytes at %p: %w", length, p, err)
	}
	return nil
}

// PageSize queries the VM page size.
func (m *Mem) PageSize() int {
	return unix.Getpagesize()
}
