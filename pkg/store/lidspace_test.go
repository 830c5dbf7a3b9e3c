// Copyright 2024 The docstore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompactLidSpaceRejectsAboveCurrentLimit(t *testing.T) {
	m := testManager(t, nil)
	assert.Nil(t, m.Write(1, 2, []byte("x")))
	err := m.CompactLidSpace(100)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestShrinkLidSpaceIsNoopWithoutPriorCompact(t *testing.T) {
	m := testManager(t, nil)
	m.ShrinkLidSpace() // must not panic or block
}

func TestCompactThenShrinkLidSpace(t *testing.T) {
	m := testManager(t, nil)
	for lid := uint32(0); lid < 10; lid++ {
		assert.Nil(t, m.Write(uint64(lid)+1, lid, []byte("x")))
	}

	assert.Nil(t, m.CompactLidSpace(3))
	assert.True(t, m.dir.Len() >= 10, "CompactLidSpace must not itself shrink capacity")

	m.ShrinkLidSpace()
	assert.Equal(t, 3, m.dir.Len())

	got, err := m.Read(2)
	assert.Nil(t, err)
	assert.Equal(t, []byte("x"), got)

	got, err = m.Read(5)
	assert.Nil(t, err)
	assert.Nil(t, got)
}
