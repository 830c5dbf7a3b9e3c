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

import "github.com/solarisdb/docstore/pkg/compactor"

// FileSummary is a point-in-time snapshot of one chunk-file pair, for
// inspection tooling.
type FileSummary struct {
	NameID        uint64
	FileID        int
	Active        bool
	DiskFootprint int64
	DiskBloat     int64
	NumChunks     int
}

// Summary is a point-in-time snapshot of the whole store, for inspection
// tooling (cmd/docstorestat).
type Summary struct {
	Files          []FileSummary
	LastSyncToken  uint64
	LidCount       int
	CompactionGain int64
}

// Stats snapshots the manager's current state without mutating anything.
func (m *Manager) Stats() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	files := make([]FileSummary, 0, len(m.files))
	for fileID, f := range m.files {
		files = append(files, FileSummary{
			NameID:        f.NameID(),
			FileID:        fileID,
			Active:        fileID == m.activeFileID,
			DiskFootprint: f.DiskFootprint(),
			DiskBloat:     f.DiskBloat(),
			NumChunks:     f.NumChunks(),
		})
	}

	return Summary{
		Files:          files,
		LastSyncToken:  m.lastFlushed,
		LidCount:       m.dir.Len(),
		CompactionGain: compactor.Estimate(m.fileStatsLocked(), m.thresholds()),
	}
}
