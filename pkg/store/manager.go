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

// Package store is the single source of truth for a crash-safe, chunked,
// content-addressed document store: it owns the lid directory, the set of
// on-disk chunk-file pairs, and the manager lock that serializes every
// mutation against them. Everything else in the module (chunkfile,
// lidtable, genguard, chunkcodec, bucketize, compactor) is a collaborator
// Manager wires together.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/solarisdb/docstore/golibs/logging"
	"github.com/solarisdb/docstore/pkg/chunkcodec"
	"github.com/solarisdb/docstore/pkg/chunkfile"
	"github.com/solarisdb/docstore/pkg/genguard"
	"github.com/solarisdb/docstore/pkg/lidtable"
)

// Manager is the store's public facade. A Manager must not be copied after
// first use.
type Manager struct {
	cfg    Config
	logger logging.Logger

	// mu is the manager lock: every write, rotation decision, and
	// compaction bookkeeping step is taken with it held (spec.md §5).
	mu           sync.Mutex
	dir          *lidtable.Directory
	gen          *genguard.Handler
	files        map[int]*chunkfile.File
	nextFileID   int
	freeFileIDs  []int
	activeFileID int
	nextNameID   uint64
	compacting   map[uint64]bool
	lastFlushed  uint64
	shrinkPending bool
	closed       bool
}

// Open recovers a store rooted at cfg.Dir (creating it fresh if empty) and
// returns a Manager ready to serve reads and writes.
func Open(cfg Config) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("store.Open: Dir is required: %w", ErrInvalidArgument)
	}
	if cfg.Executor == nil || cfg.TLog == nil {
		return nil, fmt.Errorf("store.Open: Executor and TLog are required: %w", ErrInvalidArgument)
	}
	if cfg.GenerationPollInterval <= 0 {
		cfg.GenerationPollInterval = time.Second
	}

	survivors, err := chunkfile.Scan(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("store.Open: %w", err)
	}

	m := &Manager{
		cfg:        cfg,
		logger:     logging.NewLogger("store.Manager"),
		dir:        lidtable.New(),
		gen:        genguard.NewHandler(),
		files:      make(map[int]*chunkfile.File, len(survivors)+1),
		compacting: make(map[uint64]bool),
	}

	fileCfg := m.fileConfig()
	var maxNameID uint64
	for _, nameID := range survivors {
		fileID := m.nextFileID
		m.nextFileID++
		f, skipped, oerr := chunkfile.OpenFrozen(cfg.Dir, nameID, fileID, fileCfg, m.dir, cfg.AllowTruncate)
		if oerr != nil {
			return nil, fmt.Errorf("store.Open: recover file %d: %w", nameID, oerr)
		}
		if skipped > 0 {
			m.logger.Warnf("file %d: %d entries skipped at recovery (lid beyond docIdLimit)", nameID, skipped)
		}
		m.files[fileID] = f
		if f.LastPersistedSerial() > m.lastFlushed {
			m.lastFlushed = f.LastPersistedSerial()
		}
		if nameID > maxNameID {
			maxNameID = nameID
		}
	}
	m.nextNameID = maxNameID + 1

	if err := m.openNewActiveFileLocked(); err != nil {
		return nil, fmt.Errorf("store.Open: %w", err)
	}
	return m, nil
}

func (m *Manager) fileConfig() chunkfile.Config {
	return chunkfile.Config{
		MaxChunkBytes:   m.cfg.MaxChunkBytes,
		MaxChunkRecords: m.cfg.MaxChunkRecords,
		SkipCRCOnRead:   m.cfg.SkipCRCOnRead,
		Codec:           func() (chunkcodec.CRCAlgo, chunkcodec.Compression) { return m.cfg.Codec, m.cfg.Compression },
		Creator:         m.cfg.Creator,
	}
}

// allocNameIDLocked returns a fresh, strictly increasing file-pair name,
// biased towards wall-clock time so file names sort roughly by creation
// time on disk the way the original store's did.
func (m *Manager) allocNameIDLocked() uint64 {
	id := uint64(time.Now().UnixNano())
	if id <= m.nextNameID {
		id = m.nextNameID
	}
	m.nextNameID = id + 1
	return id
}

// openNewActiveFileLocked creates a brand new active file and makes it the
// manager's active slot. Must be called with mu held.
func (m *Manager) openNewActiveFileLocked() error {
	nameID := m.allocNameIDLocked()
	fileID := m.allocFileIDLocked()
	f, err := chunkfile.Create(m.cfg.Dir, nameID, fileID, m.fileConfig())
	if err != nil {
		m.freeFileIDLocked(fileID)
		return err
	}
	m.files[fileID] = f
	m.activeFileID = fileID
	return nil
}

// allocFileIDLocked returns a fileId to address a new file slot, preferring
// one reclaimed from a dropped file over growing the address space, so a
// long-lived store keeps its fileIds dense (spec.md:48, spec.md:192 "free
// the slot"). Must be called with mu held.
func (m *Manager) allocFileIDLocked() int {
	if n := len(m.freeFileIDs); n > 0 {
		id := m.freeFileIDs[n-1]
		m.freeFileIDs = m.freeFileIDs[:n-1]
		return id
	}
	id := m.nextFileID
	m.nextFileID++
	return id
}

// freeFileIDLocked returns fileID to the free list once its file has been
// unlinked, or an allocation for it failed before the slot was ever
// published in m.files. Must be called with mu held.
func (m *Manager) freeFileIDLocked(fileID int) {
	m.freeFileIDs = append(m.freeFileIDs, fileID)
}

// LastSyncToken returns the serial up to which on-disk state is durable.
func (m *Manager) LastSyncToken() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFlushed
}

// Close flushes and releases every open file. It does not remove anything
// from disk.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.cfg.Executor.Sync()
	var first error
	for _, f := range m.files {
		if !f.IsFrozen() {
			if _, err := f.Flush(); err != nil && first == nil {
				first = err
			}
		}
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// activeLocked returns the manager's current active file. Must be called with mu
// held.
func (m *Manager) activeLocked() *chunkfile.File {
	return m.files[m.activeFileID]
}
