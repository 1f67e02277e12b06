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
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSys is a deterministic, inspectable Sys backed by ordinary Go memory.
// It honors the same contracts as the real backend: a contiguous segment
// whose pre-call end Sbrk returns, and zeroed independent mappings.
type fakeSys struct {
	seg []byte
	brk int

	maps     map[unsafe.Pointer][]byte
	mapCalls int
	pageSize int

	sbrkErr error
	mapErr  error
}

func newFakeSys(limit int) *fakeSys {
	return &fakeSys{
		seg:      make([]byte, limit),
		maps:     map[unsafe.Pointer][]byte{},
		pageSize: 4096,
	}
}

func (s *fakeSys) segBase() unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(s.seg))
}

func (s *fakeSys) Sbrk(delta int) (unsafe.Pointer, error) {
	if s.sbrkErr != nil {
		return nil, s.sbrkErr
	}
	end := s.brk + delta
	if end < 0 || end > len(s.seg) {
		return nil, errors.New("segment exhausted")
	}
	old := s.brk
	s.brk = end
	return unsafe.Add(s.segBase(), old), nil
}

func (s *fakeSys) Map(length int) (unsafe.Pointer, error) {
	if s.mapErr != nil {
		return nil, s.mapErr
	}
	s.mapCalls++
	b := make([]byte, length)
	p := unsafe.Pointer(unsafe.SliceData(b))
	s.maps[p] = b
	return p, nil
}

func (s *fakeSys) Unmap(p unsafe.Pointer, length int) error {
	b, ok := s.maps[p]
	if !ok {
		return errors.New("unmap of unknown region")
	}
	if len(b) != length {
		return errors.New("unmap length mismatch")
	}
	delete(s.maps, p)
	return nil
}

func (s *fakeSys) PageSize() int { return s.pageSize }

// newTestHeap returns an allocator over a fake backend, for tests that
// inspect arena internals.
func newTestHeap(t *testing.T, opts ...Option) (*Allocator, *fakeSys) {
	t.Helper()
	captureDebugLogs(t)
	fs := newFakeSys(16 << 20)
	a := New(append([]Option{WithSys(fs)}, opts...)...)
	return a, fs
}

// segLayout flattens the segment list into (size, status) pairs.
func segLayout(a *Allocator) (sizes []int, stats []status) {
	for b := a.segment.head; b != nil; b = b.next {
		sizes = append(sizes, b.size)
		stats = append(stats, b.status)
	}
	return sizes, stats
}

// checkHeap asserts the structural invariants every public call must
// restore: aligned sizes, adjacency, intact back-links, and no two
// neighboring FREE blocks.
func checkHeap(t *testing.T, a *Allocator) {
	t.Helper()
	for b := a.segment.head; b != nil; b = b.next {
		assert.Zero(t, b.size%Align, "segment block size %d not aligned", b.size)
		assert.GreaterOrEqual(t, b.size, minSplitRemainder)
		if b.next != nil {
			assert.Same(t, b, b.next.prev, "broken back-link")
			assert.Equal(t, b.size, int(uintptr(unsafe.Pointer(b.next))-uintptr(unsafe.Pointer(b))),
				"adjacent blocks not adjacent in memory")
			if b.status == statusFree {
				assert.NotEqual(t, statusFree, b.next.status, "adjacent FREE blocks")
			}
		}
	}
	for b := a.mapped.head; b != nil; b = b.next {
		assert.Equal(t, statusMapped, b.status)
		if b.next != nil {
			assert.Same(t, b, b.next.prev, "broken back-link in mapped list")
		}
	}
}

// mustMalloc fails the test rather than returning nil.
func mustMalloc(t *testing.T, a *Allocator, size int) unsafe.Pointer {
	t.Helper()
	p := a.Malloc(size)
	require.NotNil(t, p)
	require.Zero(t, uintptr(p)%Align, "misaligned payload")
	return p
}
