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
	"fmt"
	"sort"

	"github.com/solarisdb/docstore/pkg/record"
)

// Accept delivers every live record exactly once, ordered by file creation
// order then by in-file position (spec.md §4.4 operations table). If prune
// is set, each non-active file is erased once it has been fully visited;
// the active file is flushed but kept, since it is still accepting writes.
func (m *Manager) Accept(visitor record.Visitor, progress record.VisitorProgress, prune bool) error {
	m.mu.Lock()
	fileIDs := make([]int, 0, len(m.files))
	for id := range m.files {
		fileIDs = append(fileIDs, id)
	}
	sort.Slice(fileIDs, func(i, j int) bool { return m.files[fileIDs[i]].NameID() < m.files[fileIDs[j]].NameID() })
	m.mu.Unlock()

	for _, fileID := range fileIDs {
		m.mu.Lock()
		f, ok := m.files[fileID]
		isActive := fileID == m.activeFileID
		m.mu.Unlock()
		if !ok {
			continue
		}

		if isActive {
			if _, err := f.Flush(); err != nil {
				return fmt.Errorf("store: accept: flush active file %d: %w", f.NameID(), err)
			}
		}

		isLive := func(r record.Record, chunkID uint32) bool {
			m.mu.Lock()
			defer m.mu.Unlock()
			e := m.dir.Get(r.Lid)
			return e.Valid() && e.FileID() == fileID && e.ChunkID() == chunkID
		}
		if err := f.VisitAll(isLive, visitor, progress); err != nil {
			return fmt.Errorf("store: accept: visit file %d: %w", f.NameID(), err)
		}

		// The active file is never erased here: it always has exactly one
		// live instance and keeps accepting writes after Accept returns.
		if prune && !isActive {
			if err := m.eraseFile(fileID); err != nil {
				return fmt.Errorf("store: accept: erase file %d: %w", fileID, err)
			}
		}
	}
	return nil
}

// eraseFile bumps the generation, waits for every reader that might still be
// holding a pointer into fileID, then unlinks it. It manages its own
// locking rather than expecting mu already held, since the wait in the
// middle must not hold the manager lock (spec.md open question: compaction
// must not block writers while it waits for readers to drain). Used by both
// Accept(prune=true) and the compactor once a source file is fully merged
// (spec.md §4.5 steps 5-7).
func (m *Manager) eraseFile(fileID int) error {
	m.mu.Lock()
	f, ok := m.files[fileID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if fileID == m.activeFileID {
		m.mu.Unlock()
		return fmt.Errorf("store: cannot erase the active file %d: %w", fileID, ErrInvalidState)
	}
	if !f.IsFrozen() {
		if err := f.Freeze(); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	superseded := m.gen.IncGeneration()
	m.mu.Unlock()

	m.gen.WaitForGeneration(superseded, m.cfg.GenerationPollInterval)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := f.Unlink(); err != nil {
		return err
	}
	delete(m.files, fileID)
	m.freeFileIDLocked(fileID)
	return nil
}
