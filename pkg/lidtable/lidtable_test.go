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

package lidtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntryPacking(t *testing.T) {
	e, err := NewEntry(42, 12345, 999)
	assert.Nil(t, err)
	assert.True(t, e.Valid())
	assert.Equal(t, 42, e.FileID())
	assert.Equal(t, uint32(12345), e.ChunkID())
	assert.Equal(t, 999, e.SizeHint())
}

func TestEntrySizeSaturates(t *testing.T) {
	e, err := NewEntry(0, 0, 1<<20)
	assert.Nil(t, err)
	assert.Equal(t, maxSizeHint, e.SizeHint())
}

func TestEntryRejectsOutOfRangeFileID(t *testing.T) {
	_, err := NewEntry(MaxFileID+1, 0, 0)
	assert.NotNil(t, err)
}

func TestZeroEntryIsInvalid(t *testing.T) {
	var e Entry
	assert.False(t, e.Valid())
}

func TestDirectoryGetPutRemove(t *testing.T) {
	d := New()
	assert.False(t, d.Get(5).Valid())

	e, _ := NewEntry(1, 7, 100)
	d.Put(5, e)
	assert.True(t, d.Get(5).Valid())
	assert.Equal(t, uint32(6), d.DocIDLimit())

	d.Remove(5)
	assert.False(t, d.Get(5).Valid())
}

func TestDirectoryGetOutOfRange(t *testing.T) {
	d := New()
	assert.False(t, d.Get(1000).Valid())
}

func TestDirectoryDocIDLimitMonotonic(t *testing.T) {
	d := New()
	e, _ := NewEntry(0, 0, 0)
	d.Put(10, e)
	assert.Equal(t, uint32(11), d.DocIDLimit())

	d.UpdateDocIDLimit(5)
	assert.Equal(t, uint32(11), d.DocIDLimit(), "UpdateDocIDLimit must not lower the limit")

	d.UpdateDocIDLimit(20)
	assert.Equal(t, uint32(20), d.DocIDLimit())
}

func TestDirectoryCompactLidSpace(t *testing.T) {
	d := New()
	e, _ := NewEntry(0, 0, 0)
	for lid := uint32(0); lid < 10; lid++ {
		d.Put(lid, e)
	}
	d.CompactLidSpace(4)
	assert.Equal(t, uint32(4), d.DocIDLimit())
	assert.False(t, d.Get(9).Valid())
	assert.True(t, d.Get(3).Valid())
}

func TestDirectoryVisit(t *testing.T) {
	d := New()
	e, _ := NewEntry(0, 0, 0)
	d.Put(1, e)
	d.Put(3, e)

	var seen []uint32
	d.Visit(func(lid uint32, _ Entry) { seen = append(seen, lid) })
	assert.Equal(t, []uint32{1, 3}, seen)
}

func TestDirectoryShrinkCapacity(t *testing.T) {
	d := New()
	e, _ := NewEntry(0, 0, 0)
	for lid := uint32(0); lid < 100; lid++ {
		d.Put(lid, e)
	}
	d.CompactLidSpace(5)
	assert.True(t, cap(d.entries) >= 100, "CompactLidSpace must not itself release capacity")

	d.ShrinkCapacity()
	assert.Equal(t, 5, cap(d.entries))
	assert.Equal(t, 5, len(d.entries))
	assert.True(t, d.Get(3).Valid())
}

func TestDirectoryMemoryFootprint(t *testing.T) {
	d := New()
	e, _ := NewEntry(0, 0, 0)
	d.Put(9, e)
	assert.Equal(t, int64(10*8), d.MemoryFootprint())
}
