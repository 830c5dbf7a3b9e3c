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

package compactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectWorstNoFiles(t *testing.T) {
	_, ok := SelectWorst(nil, Thresholds{})
	assert.False(t, ok)
}

func TestSelectWorstByBloatRatio(t *testing.T) {
	files := []FileStats{
		{FileID: 0, DiskFootprint: 100, DiskBloat: 10},
		{FileID: 1, DiskFootprint: 100, DiskBloat: 60},
	}
	worst, ok := SelectWorst(files, Thresholds{MaxDiskBloatFactor: 0.5})
	assert.True(t, ok)
	assert.Equal(t, 1, worst.FileID)
}

func TestSelectWorstByBucketSpreadWhenBloatBelowThreshold(t *testing.T) {
	files := []FileStats{
		{FileID: 0, DiskFootprint: 100, DiskBloat: 10, BucketSpread: 1.1},
		{FileID: 1, DiskFootprint: 100, DiskBloat: 5, BucketSpread: 3.5},
	}
	worst, ok := SelectWorst(files, Thresholds{MaxDiskBloatFactor: 0.9, MaxBucketSpread: 2.0})
	assert.True(t, ok)
	assert.Equal(t, 1, worst.FileID)
}

func TestSelectWorstFallsBackToGlobalThreshold(t *testing.T) {
	files := []FileStats{
		{FileID: 0, DiskFootprint: 100, DiskBloat: 40},
		{FileID: 1, DiskFootprint: 100, DiskBloat: 35},
	}
	worst, ok := SelectWorst(files, Thresholds{MaxDiskBloatFactor: 0.9, MaxBucketSpread: 0.9, GlobalBloatThreshold: 0.3})
	assert.True(t, ok)
	assert.Equal(t, 0, worst.FileID, "falls back to the single worst file by bloat ratio")
}

func TestSelectWorstNoneQualifies(t *testing.T) {
	files := []FileStats{{FileID: 0, DiskFootprint: 100, DiskBloat: 5}}
	_, ok := SelectWorst(files, Thresholds{MaxDiskBloatFactor: 0.9, MaxBucketSpread: 0.9, GlobalBloatThreshold: 0.9})
	assert.False(t, ok)
}

func TestUseActiveFileWhenConfigured(t *testing.T) {
	assert.True(t, UseActiveFile(DestinationPolicy{CompactToActiveFile: true}, 1<<30))
}

func TestUseActiveFileWhenLiveSizeSmall(t *testing.T) {
	p := DestinationPolicy{MinFileSizeFactor: 0.5, MaxFileSize: 1000}
	assert.True(t, UseActiveFile(p, 400))
	assert.False(t, UseActiveFile(p, 600))
}
