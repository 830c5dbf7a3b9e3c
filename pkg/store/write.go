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

	"github.com/solarisdb/docstore/pkg/lidtable"
)

// Write durably buffers one record in the active file and updates the lid
// directory, following spec.md §4.4's write path exactly: append, charge
// the previous entry's size to its file's dead-bloat counter, install the
// new entry, then rotate if the active file has grown past MaxFileSize.
// MaxFileSize == 0 disables rotation: the active file grows unboundedly
// (spec.md §6).
func (m *Manager) Write(serial uint64, lid uint32, payload []byte) error {
	if m.cfg.ReadOnly {
		return ErrDisabled
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(serial, lid, payload)
}

// Remove is a tombstone write: identical to Write with an empty payload,
// which already makes the previous entry's size dead-bloat and clears the
// directory slot (spec.md §4.4 "Remove").
func (m *Manager) Remove(serial uint64, lid uint32) error {
	return m.Write(serial, lid, nil)
}

func (m *Manager) writeLocked(serial uint64, lid uint32, payload []byte) error {
	active := m.activeLocked()
	chunkID, size, err := active.Append(serial, lid, payload)
	if err != nil {
		return fmt.Errorf("store: write lid %d: %w", lid, err)
	}

	if prev := m.dir.Get(lid); prev.Valid() {
		if prevFile, ok := m.files[prev.FileID()]; ok {
			prevFile.ChargeBloat(int64(prev.SizeHint()))
		}
	}

	if len(payload) == 0 {
		m.dir.Remove(lid)
	} else {
		entry, eerr := lidtable.NewEntry(active.FileID(), chunkID, size)
		if eerr != nil {
			return fmt.Errorf("store: write lid %d: %w", lid, eerr)
		}
		m.dir.Put(lid, entry)
	}

	if m.cfg.MaxFileSize > 0 && active.DiskFootprint() > m.cfg.MaxFileSize {
		if err := m.rotateLocked(); err != nil {
			return fmt.Errorf("store: rotate after writing lid %d: %w", lid, err)
		}
	}
	return nil
}

// WriteDirect appends a record straight into fileID without touching the
// dead-bloat accounting Write performs, for the compactor's exclusive use
// (spec.md §4.4 operations table: "used by compactor only"). fileID must be
// the manager's current active file or an in-flight compaction destination.
// serial is the record's original serial, preserved across the move so the
// destination file's LastPersistedSerial stays meaningful after recovery.
func (m *Manager) WriteDirect(fileID int, serial uint64, lid uint32, payload []byte) (chunkID uint32, size int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok || f.IsFrozen() {
		return 0, 0, fmt.Errorf("store: write_direct to file %d: %w", fileID, ErrInvalidState)
	}
	chunkID, size, err = f.Append(serial, lid, payload)
	if err != nil {
		return 0, 0, fmt.Errorf("store: write_direct lid %d: %w", lid, err)
	}
	return chunkID, size, nil
}

// rotateLocked closes the active file out for background flushing and opens
// a fresh one in its place. Must be called with mu held (spec.md §4.4 step
// 5).
func (m *Manager) rotateLocked() error {
	closing := m.activeLocked()
	if err := m.openNewActiveFileLocked(); err != nil {
		return err
	}
	m.cfg.Executor.Execute(func() { m.finishRotation(closing) })
	return nil
}
