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

// Package compactor holds the compaction decision logic that does not touch
// disk: which frozen file is worst, and whether its live data should land in
// the active file or a fresh one. The store package drives the actual I/O
// (spec.md §4.5); keeping the arithmetic here lets it be exercised without a
// filesystem.
package compactor

// FileStats summarizes one frozen file's bloat and bucket-spread signals,
// the two things SelectWorst compares across files.
type FileStats struct {
	FileID        int
	DiskFootprint int64
	DiskBloat     int64
	// BucketSpread is 1.0 when a file's live records all belong to one
	// bucket and grows with the number of distinct buckets present,
	// relative to an ideal of 1 (spec.md §4.5). 0 means "unknown / no
	// bucketizer configured" and is never compared.
	BucketSpread float64
}

// BloatRatio is DiskBloat/DiskFootprint, 0 for an empty file.
func (f FileStats) BloatRatio() float64 {
	if f.DiskFootprint == 0 {
		return 0
	}
	return float64(f.DiskBloat) / float64(f.DiskFootprint)
}

// Thresholds are the configured triggers a compaction round checks files
// against.
type Thresholds struct {
	MaxDiskBloatFactor   float64
	MaxBucketSpread      float64
	GlobalBloatThreshold float64
}

// SelectWorst picks the file compaction should target this round: the
// largest bloat ratio exceeding MaxDiskBloatFactor, else the largest bucket
// spread exceeding MaxBucketSpread, else — if the fleet-wide bloat ratio
// exceeds GlobalBloatThreshold — the single worst file by bloat ratio. ok is
// false when no file qualifies under any rule.
func SelectWorst(files []FileStats, t Thresholds) (worst FileStats, ok bool) {
	if len(files) == 0 {
		return FileStats{}, false
	}

	var bestBloat FileStats
	bestBloatRatio := -1.0
	var bestSpread FileStats
	bestSpreadVal := -1.0
	var totalFootprint, totalBloat int64

	for _, f := range files {
		ratio := f.BloatRatio()
		if ratio > bestBloatRatio {
			bestBloatRatio, bestBloat = ratio, f
		}
		if f.BucketSpread > bestSpreadVal {
			bestSpreadVal, bestSpread = f.BucketSpread, f
		}
		totalFootprint += f.DiskFootprint
		totalBloat += f.DiskBloat
	}

	if bestBloatRatio > t.MaxDiskBloatFactor {
		return bestBloat, true
	}
	if bestSpreadVal > t.MaxBucketSpread {
		return bestSpread, true
	}

	var globalRatio float64
	if totalFootprint > 0 {
		globalRatio = float64(totalBloat) / float64(totalFootprint)
	}
	if globalRatio > t.GlobalBloatThreshold {
		return bestBloat, true
	}
	return FileStats{}, false
}

// DestinationPolicy mirrors the manager's compactToActiveFile /
// minFileSizeFactor / maxFileSize configuration (spec.md §4.5 destination
// selection).
type DestinationPolicy struct {
	CompactToActiveFile bool
	MinFileSizeFactor   float64
	MaxFileSize         int64
}

// UseActiveFile reports whether a compaction that will carry liveSize bytes
// forward should land in the current active file rather than a new file
// slot.
func UseActiveFile(p DestinationPolicy, liveSize int64) bool {
	if p.CompactToActiveFile {
		return true
	}
	return float64(liveSize) < p.MinFileSizeFactor*float64(p.MaxFileSize)
}

// Estimate returns the total dead-weight bytes a compaction round would
// reclaim right now: the sum of DiskBloat across every file whose bloat
// ratio or bucket spread already qualifies under t. Zero means a round
// would find nothing to do (spec.md's dropped getMaxCompactGain, reinstated
// for the inspection CLI).
func Estimate(files []FileStats, t Thresholds) int64 {
	var gain int64
	for _, f := range files {
		if f.BloatRatio() > t.MaxDiskBloatFactor || f.BucketSpread > t.MaxBucketSpread {
			gain += f.DiskBloat
		}
	}
	return gain
}
