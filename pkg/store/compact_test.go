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

	"github.com/solarisdb/docstore/pkg/genguard"
)

// mapBucketizer is a fixed lid->bucket mapping test double for
// bucketize.Bucketizer.
type mapBucketizer struct {
	h     *genguard.Handler
	byLid map[uint32]uint64
}

func (b *mapBucketizer) GetGuard() *genguard.Guard { return b.h.Take() }
func (b *mapBucketizer) GetBucketOf(_ *genguard.Guard, lid uint32) uint64 {
	return b.byLid[lid]
}

func TestCompactNoopWhenNothingQualifies(t *testing.T) {
	m := testManager(t, nil)
	assert.Nil(t, m.Write(1, 1, []byte("x")))
	before := len(m.files)

	assert.Nil(t, m.Compact(1))
	assert.Equal(t, before, len(m.files))
}

func TestCompactRewritesWorstFileIntoNewSlot(t *testing.T) {
	m := testManager(t, func(cfg *Config) {
		cfg.MaxFileSize = 1
		cfg.MaxDiskBloatFactor = 0.1
		cfg.MinFileSizeFactor = 0.25
	})
	firstFileID := m.activeFileID
	assert.Nil(t, m.Write(1, 1, []byte("initial payload, long enough to matter")))
	assert.Nil(t, m.Write(2, 1, []byte("overwrite")))

	_, stillThere := m.files[firstFileID]
	assert.True(t, stillThere, "fully dead file should still be present before compaction")

	assert.Nil(t, m.Compact(2))

	_, stillThere = m.files[firstFileID]
	assert.False(t, stillThere, "fully dead file should have been compacted away")

	got, err := m.Read(1)
	assert.Nil(t, err)
	assert.Equal(t, []byte("overwrite"), got)
}

func TestCompactUsesActiveFileWhenConfigured(t *testing.T) {
	m := testManager(t, func(cfg *Config) {
		cfg.MaxFileSize = 1
		cfg.MaxDiskBloatFactor = 0.1
		cfg.CompactToActiveFile = true
	})
	firstFileID := m.activeFileID
	assert.Nil(t, m.Write(1, 1, []byte("initial payload, long enough to matter")))
	assert.Nil(t, m.Write(2, 1, []byte("overwrite")))
	filesBefore := len(m.files)

	assert.Nil(t, m.Compact(2))

	_, stillThere := m.files[firstFileID]
	assert.False(t, stillThere)
	assert.Equal(t, filesBefore-1, len(m.files), "compacting into the active file must not allocate a new slot")

	got, err := m.Read(1)
	assert.Nil(t, err)
	assert.Equal(t, []byte("overwrite"), got)
}

func TestCompactionGainReflectsBloatWithoutMutatingFiles(t *testing.T) {
	m := testManager(t, func(cfg *Config) {
		cfg.MaxFileSize = 1
		cfg.MaxDiskBloatFactor = 0.1
		cfg.MinFileSizeFactor = 0.25
	})
	assert.Equal(t, int64(0), m.CompactionGain(), "no bloat yet")

	assert.Nil(t, m.Write(1, 1, []byte("initial payload, long enough to matter")))
	assert.Nil(t, m.Write(2, 1, []byte("overwrite")))

	before := len(m.files)
	assert.Greater(t, m.CompactionGain(), int64(0))
	assert.Equal(t, before, len(m.files), "CompactionGain must not touch any file")
}

func TestCompactReusesErasedFileID(t *testing.T) {
	m := testManager(t, func(cfg *Config) {
		cfg.MaxFileSize = 1
		cfg.MaxDiskBloatFactor = 0.1
		cfg.MinFileSizeFactor = 0.25
	})
	firstFileID := m.activeFileID
	assert.Nil(t, m.Write(1, 1, []byte("initial payload, long enough to matter")))
	assert.Nil(t, m.Write(2, 1, []byte("overwrite")))

	assert.Nil(t, m.Compact(2)) // erases firstFileID, returning its slot to the free list

	_, stillThere := m.files[firstFileID]
	assert.False(t, stillThere)

	m.mu.Lock()
	assert.Contains(t, m.freeFileIDs, firstFileID)
	assert.Nil(t, m.rotateLocked()) // must draw firstFileID back out of the free list
	reused := m.activeFileID
	m.mu.Unlock()

	assert.Equal(t, firstFileID, reused, "a reclaimed fileID should be reused before minting a new one")
}

func TestCompactClustersLiveRecordsByBucket(t *testing.T) {
	bucketizer := &mapBucketizer{h: genguard.NewHandler(), byLid: map[uint32]uint64{1: 5, 2: 1}}
	m := testManager(t, func(cfg *Config) {
		cfg.MaxFileSize = 1 << 20
		cfg.MaxBucketSpread = 1.5
		cfg.MinFileSizeFactor = 0
		cfg.Bucketizer = bucketizer
	})
	firstFileID := m.activeFileID
	assert.Nil(t, m.Write(1, 1, []byte("bucket five")))
	assert.Nil(t, m.Write(2, 2, []byte("bucket one")))

	m.mu.Lock()
	assert.Nil(t, m.rotateLocked())
	m.mu.Unlock()

	assert.Nil(t, m.Compact(2))

	_, stillThere := m.files[firstFileID]
	assert.False(t, stillThere, "a file spanning two buckets should have been compacted")

	got1, err := m.Read(1)
	assert.Nil(t, err)
	assert.Equal(t, []byte("bucket five"), got1)

	got2, err := m.Read(2)
	assert.Nil(t, err)
	assert.Equal(t, []byte("bucket one"), got2)
}
