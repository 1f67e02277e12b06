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
	"fmt"
	"unsafe"
)

// Sys is the operating-system surface an [Allocator] is parameterized over.
//
// The default implementation lives in internal/sys and is backed by anonymous
// mappings. Tests substitute their own to observe or fail individual
// primitives.
type Sys interface {
	// Sbrk extends (or, with negative delta, shrinks) the data segment by
	// delta bytes and returns the segment's pre-call end.
	Sbrk(delta int) (unsafe.Pointer, error)

	// Map returns a fresh anonymous page-aligned region of length bytes,
	// readable, writable, and private. Fresh regions are zero.
	Map(length int) (unsafe.Pointer, error)

	// Unmap releases a region previously returned by Map.
	Unmap(p unsafe.Pointer, length int) error

	// PageSize queries the VM page size.
	PageSize() int
}

// die aborts the process when an OS primitive fails.
//
// The allocator cannot continue without its arenas, and surfacing the error
// would thread failure through every allocation site in the program above it.
func die(primitive string, err error) {
	panic(fmt.Errorf("osheap: %s failed: %w", primitive, err))
}
