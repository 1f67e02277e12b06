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

// Package heaptest replays YAML-described allocation workloads against an
// allocator.
//
// Each trace shadows every live payload with a Go-side copy and re-checks
// all of them after every step, so corruption introduced by one operation
// (a bad split, an over-eager coalesce, a miscopied realloc) is caught at
// the step that caused it rather than at teardown.
package heaptest

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"buf.build/go/osheap"
)

// Trace is one workload: a named sequence of heap operations.
type Trace struct {
	Name string `yaml:"-"`
	Ops  []Op   `yaml:"ops"`
}

// Op is a single step of a trace. Which fields are meaningful depends on Op.
type Op struct {
	Op    string `yaml:"op"`    // malloc, calloc, realloc, or free
	Ptr   string `yaml:"ptr"`   // name bound to the resulting payload
	Size  int    `yaml:"size"`  // payload size (element size for calloc)
	Nmemb int    `yaml:"nmemb"` // element count, calloc only
	Fill  int    `yaml:"fill"`  // byte pattern written after the op
	Nil   bool   `yaml:"nil"`   // the op must return nil
}

// Load reads every .yaml trace under dir.
func Load(t *testing.T, dir string) []Trace {
	t.Helper()

	var traces []Trace
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".yaml" {
			return err
		}

		file, err := os.ReadFile(path)
		require.NoError(t, err)

		var trace Trace
		require.NoError(t, yaml.Unmarshal(file, &trace), "in %s", path)
		trace.Name = strings.TrimSuffix(d.Name(), ".yaml")
		traces = append(traces, trace)
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, traces)
	return traces
}

// live pairs a payload with its shadow copy.
type live struct {
	p      unsafe.Pointer
	shadow []byte
}

// Replay runs the trace against a.
func (tr Trace) Replay(t *testing.T, a *osheap.Allocator) {
	t.Helper()

	heap := map[string]*live{}
	for i, op := range tr.Ops {
		switch op.Op {
		case "malloc":
			tr.place(t, heap, op, i, a.Malloc(op.Size), op.Size, false)
		case "calloc":
			tr.place(t, heap, op, i, a.Calloc(op.Nmemb, op.Size), op.Nmemb*op.Size, true)
		case "realloc":
			tr.realloc(t, heap, op, i, a)
		case "free":
			b := heap[op.Ptr]
			require.NotNil(t, b, "op %d frees unknown pointer %q", i, op.Ptr)
			a.Free(b.p)
			delete(heap, op.Ptr)
		default:
			t.Fatalf("op %d: unknown op %q", i, op.Op)
		}

		for name, b := range heap {
			assert.Equal(t, b.shadow, payload(b.p, len(b.shadow)),
				"op %d corrupted %q", i, name)
		}
	}
}

func (tr Trace) place(t *testing.T, heap map[string]*live, op Op, i int, p unsafe.Pointer, size int, zeroed bool) {
	t.Helper()

	if op.Nil {
		require.Nil(t, p, "op %d must return nil", i)
		return
	}
	require.NotNil(t, p, "op %d returned nil", i)
	require.Zero(t, uintptr(p)%osheap.Align, "op %d returned a misaligned payload", i)

	got := payload(p, size)
	if zeroed {
		require.Equal(t, make([]byte, size), got, "op %d: calloc payload not zero", i)
	}

	fill(p, size, byte(op.Fill))
	heap[op.Ptr] = &live{p: p, shadow: bytesOf(size, byte(op.Fill))}
}

func (tr Trace) realloc(t *testing.T, heap map[string]*live, op Op, i int, a *osheap.Allocator) {
	t.Helper()

	var old unsafe.Pointer
	var shadow []byte
	if b := heap[op.Ptr]; b != nil {
		old, shadow = b.p, b.shadow
	}

	q := a.Realloc(old, op.Size)
	if op.Nil {
		require.Nil(t, q, "op %d must return nil", i)
		delete(heap, op.Ptr)
		return
	}
	require.NotNil(t, q, "op %d returned nil", i)

	keep := min(len(shadow), op.Size)
	assert.Equal(t, shadow[:keep], payload(q, keep), "op %d lost content", i)

	fill(q, op.Size, byte(op.Fill))
	heap[op.Ptr] = &live{p: q, shadow: bytesOf(op.Size, byte(op.Fill))}
}

func payload(p unsafe.Pointer, n int) []byte {
	return append([]byte(nil), unsafe.Slice((*byte)(p), n)...)
}

func fill(p unsafe.Pointer, n int, c byte) {
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		b[i] = c
	}
}

func bytesOf(n int, c byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = c
	}
	return b
}
