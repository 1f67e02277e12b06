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

// Package osheap is a user-space heap allocator built directly on the
// operating system's virtual-memory primitives: malloc, calloc, realloc,
// and free over a growable data segment plus independent anonymous mappings.
//
// Every block carries an intrusive header (size, status, neighbor links)
// immediately before its payload. Small blocks share the segment arena,
// where freed blocks are coalesced with their neighbors and reused by a
// best-fit search that splits oversized candidates; blocks past a threshold
// (128 KiB for [Malloc], the page size for [Calloc]) each get their own
// mapping, released back to the OS on [Free]. [Realloc] prefers resizing in
// place — trimming, absorbing a free right neighbor, or extending the
// segment when the block is last — and only then falls back to
// copy-and-relocate.
//
// Construct an [Allocator] to own an isolated heap, or use the package-level
// functions, which share one lazily-initialized process-wide allocator. The
// process-wide allocator reads OSHEAP_PRELUDE, OSHEAP_MAP_THRESHOLD, and
// OSHEAP_ZERO_MAP_THRESHOLD from the environment.
//
// # Safety
//
// Payloads are raw, pointer-free memory: they are invisible to the garbage
// collector, and storing Go pointers in them will not keep the referents
// alive. Nothing here is goroutine-safe.
package osheap
