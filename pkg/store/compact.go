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
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/solarisdb/docstore/pkg/bucketize"
	"github.com/solarisdb/docstore/pkg/chunkfile"
	"github.com/solarisdb/docstore/pkg/compactor"
	"github.com/solarisdb/docstore/pkg/genguard"
	"github.com/solarisdb/docstore/pkg/lidtable"
	"github.com/solarisdb/docstore/pkg/record"
)

// Compact runs one round of worst-file compaction, then flushes up to
// syncToken (spec.md §4.4 operations table). A round that finds no file
// past any threshold is a no-op beyond the flush.
func (m *Manager) Compact(syncToken uint64) error {
	if m.cfg.ReadOnly {
		return ErrDisabled
	}
	if err := m.compactOnce(); err != nil {
		return err
	}
	return m.Flush(syncToken)
}

// compactOnce selects the single worst frozen file, if any qualifies, and
// compacts it (spec.md §4.5 trigger + algorithm).
func (m *Manager) compactOnce() error {
	m.mu.Lock()
	candidates := m.fileStatsLocked()
	worst, ok := compactor.SelectWorst(candidates, m.thresholds())
	m.mu.Unlock()
	if !ok {
		return nil
	}
	liveSize := worst.DiskFootprint - worst.DiskBloat
	return m.compactFile(worst.FileID, liveSize)
}

// fileStatsLocked snapshots every non-active, not-currently-compacting
// file's bloat and bucket-spread signals. Must be called with mu held.
func (m *Manager) fileStatsLocked() []compactor.FileStats {
	bucketizer := m.cfg.Bucketizer
	stats := make([]compactor.FileStats, 0, len(m.files))
	for fileID, f := range m.files {
		if fileID == m.activeFileID || m.compacting[f.NameID()] {
			continue
		}
		s := compactor.FileStats{
			FileID:        fileID,
			DiskFootprint: f.DiskFootprint(),
			DiskBloat:     f.DiskBloat(),
		}
		if bucketizer != nil {
			bits := bucketize.SignificantBits(m.dir, fileID, bucketizer, nil)
			s.BucketSpread = float64(uint64(1) << uint(bits))
		}
		stats = append(stats, s)
	}
	return stats
}

func (m *Manager) thresholds() compactor.Thresholds {
	return compactor.Thresholds{
		MaxDiskBloatFactor:   m.cfg.MaxDiskBloatFactor,
		MaxBucketSpread:      m.cfg.MaxBucketSpread,
		GlobalBloatThreshold: m.cfg.GlobalBloatThreshold,
	}
}

// CompactionGain reports how many bytes a Compact call would reclaim right
// now, without performing any I/O (spec.md's dropped getMaxCompactGain,
// reinstated for the inspection CLI).
func (m *Manager) CompactionGain() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return compactor.Estimate(m.fileStatsLocked(), m.thresholds())
}

// compactFile runs the full compaction algorithm against sourceFileID
// (spec.md §4.5 steps 1-8).
func (m *Manager) compactFile(sourceFileID int, liveSize int64) error {
	m.mu.Lock()
	source, ok := m.files[sourceFileID]
	if !ok || sourceFileID == m.activeFileID {
		m.mu.Unlock()
		return nil
	}
	sourceNameID := source.NameID()
	m.compacting[sourceNameID] = true // step 1

	policy := compactor.DestinationPolicy{
		CompactToActiveFile: m.cfg.CompactToActiveFile,
		MinFileSizeFactor:   m.cfg.MinFileSizeFactor,
		MaxFileSize:         m.cfg.MaxFileSize,
	}
	destIsNew := !compactor.UseActiveFile(policy, liveSize)

	var destFileID int
	if destIsNew {
		destNameID := sourceNameID + 1
		destFileID = m.allocFileIDLocked()
		f, err := chunkfile.Create(m.cfg.Dir, destNameID, destFileID, m.fileConfig())
		if err != nil {
			m.freeFileIDLocked(destFileID)
			delete(m.compacting, sourceNameID)
			m.mu.Unlock()
			return fmt.Errorf("store: compact %d: open destination: %w", sourceNameID, err)
		}
		m.files[destFileID] = f
	} else {
		destFileID = m.activeFileID
	}
	bucketizer := m.cfg.Bucketizer
	m.mu.Unlock() // step 2 (sink is open); streaming in step 3 must not hold mu

	markerPath := chunkfile.CompactingMarkerPath(m.cfg.Dir, sourceNameID)
	if destIsNew {
		if err := os.WriteFile(markerPath, nil, 0640); err != nil {
			m.abortCompaction(sourceNameID, destFileID, destIsNew)
			return fmt.Errorf("store: compact %d: write marker: %w", sourceNameID, err)
		}
	}

	migrateErr := m.migrateLiveRecords(source, sourceFileID, destFileID, bucketizer, destIsNew) // steps 3-4
	if migrateErr != nil {
		m.abortCompaction(sourceNameID, destFileID, destIsNew)
		return fmt.Errorf("store: compact %d: %w", sourceNameID, migrateErr)
	}

	if destIsNew {
		m.mu.Lock()
		dest := m.files[destFileID]
		m.mu.Unlock()
		// Same dat-then-tlog-then-idx ordering as a normal rotation: the
		// migrated records' serials must be confirmed durable in the
		// transaction log before this destination's .idx makes them
		// resolvable through recovery.
		if _, err := dest.FlushForRotation(func(serial uint64) error {
			return m.cfg.TLog.SyncToSerial(context.Background(), serial)
		}); err != nil {
			m.abortCompaction(sourceNameID, destFileID, destIsNew)
			return fmt.Errorf("store: compact %d: flush destination: %w", sourceNameID, err)
		}
		if err := dest.Freeze(); err != nil {
			m.abortCompaction(sourceNameID, destFileID, destIsNew)
			return fmt.Errorf("store: compact %d: freeze destination: %w", sourceNameID, err)
		}
		if err := os.Remove(markerPath); err != nil && !os.IsNotExist(err) {
			m.logger.Errorf("compact %d: remove marker: %v", sourceNameID, err)
		}
	}

	m.mu.Lock()
	delete(m.compacting, sourceNameID)
	m.mu.Unlock()

	return m.eraseFile(sourceFileID) // steps 5-7 (erase handles generation bump + wait)
}

// abortCompaction implements spec.md §4.5's failure semantics: the source is
// left untouched, and a freshly allocated destination slot is discarded. A
// destination that was the active file needs no rollback here — any records
// already migrated into it left the directory pointing at valid data, and
// anything not yet migrated is still live in the (retained) source.
func (m *Manager) abortCompaction(sourceNameID uint64, destFileID int, destIsNew bool) {
	m.mu.Lock()
	delete(m.compacting, sourceNameID)
	var f *chunkfile.File
	if destIsNew {
		f = m.files[destFileID]
		delete(m.files, destFileID)
		m.freeFileIDLocked(destFileID)
	}
	m.mu.Unlock()
	if f == nil {
		return
	}
	if err := f.Unlink(); err != nil {
		m.logger.Errorf("compact %d: cleanup destination %d: %v", sourceNameID, destFileID, err)
	}
	if err := os.Remove(chunkfile.CompactingMarkerPath(m.cfg.Dir, sourceNameID)); err != nil && !os.IsNotExist(err) {
		m.logger.Errorf("compact %d: remove marker: %v", sourceNameID, err)
	}
}

// migrateLiveRecords streams source in on-disk order, rewriting every
// record still live against sourceFileID into destFileID. With a bucketizer
// configured and a fresh destination, live records are staged in memory and
// spilled in bucket order instead of write order (spec.md §4.5 step 3,
// §4.6 StoreByBucket).
func (m *Manager) migrateLiveRecords(source *chunkfile.File, sourceFileID, destFileID int, bucketizer bucketize.Bucketizer, destIsNew bool) error {
	if !source.IsFrozen() {
		if err := source.Freeze(); err != nil {
			return err
		}
	}

	cluster := bucketizer != nil && destIsNew
	var bg *genguard.Guard
	if cluster {
		bg = bucketizer.GetGuard()
		defer bg.Release()
	}

	// isLive and the visitor below are called in strict sequence for the
	// same record by File.VisitAll, so stashing the serial here to read it
	// from the visitor is safe despite VisitAll's record.Visitor interface
	// not carrying a serial of its own.
	var pendingSerial uint64
	isLive := func(r record.Record, chunkID uint32) bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		e := m.dir.Get(r.Lid)
		if !e.Valid() || e.FileID() != sourceFileID || e.ChunkID() != chunkID {
			return false
		}
		pendingSerial = r.Serial
		return true
	}

	type staged struct {
		lid     uint32
		payload []byte
		serial  uint64
		key     uint64
	}
	var buffered []staged

	visitor := record.VisitorFunc(func(lid uint32, payload []byte) error {
		// Copy out of source's mmap region: an active-file destination may
		// not flush (and thus encode) this payload until long after source
		// is unlinked and its mapping torn down.
		owned := append([]byte(nil), payload...)
		if cluster {
			buffered = append(buffered, staged{lid: lid, payload: owned, serial: pendingSerial, key: bucketizer.GetBucketOf(bg, lid)})
			return nil
		}
		return m.migrateRecord(destFileID, sourceFileID, pendingSerial, lid, owned)
	})

	if err := source.VisitAll(isLive, visitor, record.NoopProgress{}); err != nil {
		return err
	}

	if cluster {
		sort.Slice(buffered, func(i, j int) bool { return buffered[i].key < buffered[j].key })
		for _, b := range buffered {
			if err := m.migrateRecord(destFileID, sourceFileID, b.serial, b.lid, b.payload); err != nil {
				return err
			}
		}
	}
	return nil
}

// migrateRecord writes one record into destFileID and repoints the
// directory at it, unless a concurrent write already moved lid somewhere
// else first — in which case the record just written is already dead and
// is left as harmless bloat for a future round.
func (m *Manager) migrateRecord(destFileID, sourceFileID int, serial uint64, lid uint32, payload []byte) error {
	m.mu.Lock()
	e := m.dir.Get(lid)
	live := e.Valid() && e.FileID() == sourceFileID
	m.mu.Unlock()
	if !live {
		return nil
	}

	chunkID, size, err := m.WriteDirect(destFileID, serial, lid, payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.dir.Get(lid)
	if !cur.Valid() || cur.FileID() != sourceFileID {
		return nil
	}
	if srcFile, ok := m.files[sourceFileID]; ok {
		srcFile.ChargeBloat(int64(cur.SizeHint()))
	}
	entry, eerr := lidtable.NewEntry(destFileID, chunkID, size)
	if eerr != nil {
		return eerr
	}
	m.dir.Put(lid, entry)
	return nil
}
