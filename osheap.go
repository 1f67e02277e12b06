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

	"github.com/xyproto/env/v2"
)

// std is the process-wide allocator behind the package-level functions.
// It is initialized lazily on first use and never torn down.
var std *Allocator

func lazyStd() *Allocator {
	if std == nil {
		std = New(
			WithSegmentPrelude(env.Int("OSHEAP_PRELUDE", DefaultSegmentPrelude)),
			WithMapThreshold(env.Int("OSHEAP_MAP_THRESHOLD", DefaultMapThreshold)),
			WithZeroMapThreshold(env.Int("OSHEAP_ZERO_MAP_THRESHOLD", 0)),
		)
	}
	return std
}

// Malloc allocates size bytes from the process-wide allocator.
// See [Allocator.Malloc].
func Malloc(size int) unsafe.Pointer { return lazyStd().Malloc(size) }

// Calloc allocates zeroed memory for nmemb elements of size bytes each from
// the process-wide allocator. See [Allocator.Calloc].
func Calloc(nmemb, size int) unsafe.Pointer { return lazyStd().Calloc(nmemb, size) }

// Realloc resizes an allocation made by this package.
// See [Allocator.Realloc].
func Realloc(p unsafe.Pointer, size int) unsafe.Pointer { return lazyStd().Realloc(p, size) }

// Free releases an allocation made by this package. See [Allocator.Free].
func Free(p unsafe.Pointer) { lazyStd().Free(p) }
