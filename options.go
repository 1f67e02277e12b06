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

// Option is a configuration setting for [New].
type Option struct{ apply func(*Allocator) }

// WithSys replaces the OS memory primitives backing the allocator.
//
// Primarily for tests; the default backend reserves its segment lazily and
// maps large blocks anonymously.
func WithSys(s Sys) Option {
	return Option{func(a *Allocator) { a.sys = s }}
}

// WithSegmentPrelude sets the one-shot growth performed when the segment
// arena receives its first block. A larger prelude trades address space for
// fewer segment-break calls.
func WithSegmentPrelude(bytes int) Option {
	return Option{func(a *Allocator) { a.prelude = bytes }}
}

// WithMapThreshold sets the header-inclusive block size above which
// [Allocator.Malloc] steers blocks to their own mappings.
func WithMapThreshold(bytes int) Option {
	return Option{func(a *Allocator) { a.mapThreshold = bytes }}
}

// WithZeroMapThreshold sets the same threshold for [Allocator.Calloc].
// Zero means the VM page size, the point past which a pre-zeroed fresh
// mapping is cheaper than clearing reused segment memory.
func WithZeroMapThreshold(bytes int) Option {
	return Option{func(a *Allocator) { a.zeroThreshold = bytes }}
}

// WithSegmentCap bounds how far the default backend's segment may grow.
// Ignored when combined with [WithSys].
func WithSegmentCap(bytes int) Option {
	return Option{func(a *Allocator) { a.segmentCap = bytes }}
}
