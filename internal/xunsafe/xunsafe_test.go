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

package xunsafe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"buf.build/go/osheap/internal/xunsafe"
)

func TestRoundUp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, xunsafe.RoundUp(0, 8))
	assert.Equal(t, 8, xunsafe.RoundUp(1, 8))
	assert.Equal(t, 8, xunsafe.RoundUp(8, 8))
	assert.Equal(t, 16, xunsafe.RoundUp(9, 8))
	assert.Equal(t, 16, xunsafe.RoundUp(15, 8))
	assert.Equal(t, 16, xunsafe.RoundUp(16, 8))

	assert.Equal(t, 0, xunsafe.Padding(8, 8))
	assert.Equal(t, 7, xunsafe.Padding(9, 8))
	assert.Equal(t, 1, xunsafe.Padding(15, 8))
}

func TestByteAdd(t *testing.T) {
	t.Parallel()

	buf := [16]byte{}
	p := &buf[0]
	q := xunsafe.ByteAdd[byte](p, 7)
	assert.Same(t, &buf[7], q)
	assert.Equal(t, 7, xunsafe.ByteSub(q, p))
	assert.Equal(t, xunsafe.AddrOf(p).ByteAdd(7), xunsafe.AddrOf(q))
}

func TestCopyClear(t *testing.T) {
	t.Parallel()

	src := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	dst := [8]byte{}
	xunsafe.Copy(&dst[0], &src[0], 8)
	assert.Equal(t, src, dst)

	xunsafe.Clear(&dst[0], 4)
	assert.Equal(t, [8]byte{0, 0, 0, 0, 5, 6, 7, 8}, dst)
}
