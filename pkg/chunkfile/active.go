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

package chunkfile

import (
	"fmt"

	"github.com/solarisdb/docstore/pkg/chunkcodec"
	"github.com/solarisdb/docstore/pkg/record"
)

const recordHeaderSize = 16 // serial(8) + lid(4) + len(4), matches chunkcodec.EncodeRecord

// Append adds one record to the file's currently open in-memory chunk,
// closing it for write-out if the configured size/count limit is reached.
// It never blocks on disk I/O; the actual write happens in Flush.
func (f *File) Append(serial uint64, lid uint32, payload []byte) (chunkID uint32, size int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frozen {
		return 0, 0, fmt.Errorf("append to %d: %w", f.nameID, ErrNotActive)
	}

	chunkID = f.nextChunk
	f.pending = append(f.pending, record.Record{Serial: serial, Lid: lid, Payload: payload})
	size = recordHeaderSize + len(payload)
	f.pendingLen += size

	if (f.cfg.MaxChunkBytes > 0 && f.pendingLen >= f.cfg.MaxChunkBytes) ||
		(f.cfg.MaxChunkRecords > 0 && len(f.pending) >= f.cfg.MaxChunkRecords) {
		f.closeCurrentChunkLocked()
	}
	return chunkID, size, nil
}

func (f *File) closeCurrentChunkLocked() {
	if len(f.pending) == 0 {
		return
	}
	f.closedChunks = append(f.closedChunks, pendingChunk{records: f.pending})
	f.pending = nil
	f.pendingLen = 0
	f.nextChunk++
}

// Flush freezes the current open chunk (if any), writes every closed,
// not-yet-persisted chunk to .dat in order, appends the matching .idx
// entries, then fsyncs .dat before .idx, per spec.md §4.2 flush protocol.
// It returns the highest serial now durable in this file.
func (f *File) Flush() (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	maxSerial, idxBuf, err := f.writeDatLocked()
	if err != nil || idxBuf == nil {
		return maxSerial, err
	}
	return f.commitIdxLocked(maxSerial, idxBuf)
}

// FlushForRotation is Flush split around a caller-supplied barrier that runs
// after .dat is durable but before .idx is: rotation needs the transaction
// log synced to maxSerial in between, so that any serial visible in a
// persisted .idx has already been confirmed durable in the tlog (spec.md §5
// ordering guarantees). If sync returns an error, .idx is left unwritten and
// the file keeps its previously persisted state.
func (f *File) FlushForRotation(sync func(maxSerial uint64) error) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	maxSerial, idxBuf, err := f.writeDatLocked()
	if err != nil {
		return maxSerial, err
	}
	if idxBuf == nil {
		return maxSerial, nil
	}
	if err := sync(maxSerial); err != nil {
		return f.lastPersistedSerial, err
	}
	return f.commitIdxLocked(maxSerial, idxBuf)
}

// writeDatLocked appends every closed chunk's frame to .dat and fsyncs it,
// returning the highest serial among them and the not-yet-written .idx
// entries for the caller to commit. idxBuf is nil if there was nothing to
// flush. Must be called with f.mu held.
func (f *File) writeDatLocked() (uint64, []idxEntry, error) {
	if f.frozen {
		return f.lastPersistedSerial, nil, nil
	}
	f.closeCurrentChunkLocked()
	if len(f.closedChunks) == 0 {
		return f.lastPersistedSerial, nil, nil
	}

	toFlush := f.closedChunks
	f.closedChunks = nil

	crc, compression := f.cfg.Codec()
	maxSerial := f.lastPersistedSerial
	newEntries := make([]idxEntry, 0, len(toFlush))
	for i, pc := range toFlush {
		chunkID := f.nextChunk - uint32(len(toFlush)-i)
		frame, err := chunkcodec.EncodeChunk(pc.records, crc, compression)
		if err != nil {
			return f.lastPersistedSerial, nil, fmt.Errorf("encode chunk %d of %d: %w", chunkID, f.nameID, err)
		}
		offset := f.diskFootprint
		n, werr := f.datW.Write(frame)
		if werr != nil {
			f.rewindDatLocked(offset)
			return f.lastPersistedSerial, nil, ioError("write .dat", offset, werr)
		}
		f.diskFootprint += int64(n)

		var lastSerial uint64
		for _, r := range pc.records {
			if r.Serial > lastSerial {
				lastSerial = r.Serial
			}
		}
		if lastSerial > maxSerial {
			maxSerial = lastSerial
		}
		newEntries = append(newEntries, idxEntry{ChunkID: chunkID, FileOffset: uint64(offset), LastSerial: lastSerial, NumEntries: uint32(len(pc.records))})
	}

	if err := f.datW.Sync(); err != nil {
		return f.lastPersistedSerial, nil, ioError("fsync .dat", f.diskFootprint, err)
	}
	return maxSerial, newEntries, nil
}

// commitIdxLocked writes newEntries to .idx and fsyncs it. Must be called
// with f.mu held.
func (f *File) commitIdxLocked(maxSerial uint64, newEntries []idxEntry) (uint64, error) {
	for _, entry := range newEntries {
		if _, werr := f.idxW.Write(encodeIdxEntry(entry)); werr != nil {
			return f.lastPersistedSerial, ioError("write .idx", 0, werr)
		}
		f.entries = append(f.entries, entry)
	}
	if err := f.idxW.Sync(); err != nil {
		return f.lastPersistedSerial, ioError("fsync .idx", 0, err)
	}
	f.lastPersistedSerial = maxSerial
	return maxSerial, nil
}

// rewindDatLocked truncates the .dat file back to the last known good offset
// after a failed write, per spec.md §4.2 failure semantics. Called with f.mu
// held.
func (f *File) rewindDatLocked(goodOffset int64) {
	if err := f.datW.Truncate(goodOffset); err != nil {
		f.logger.Errorf("could not rewind .dat to offset %d: %v", goodOffset, err)
		return
	}
	if _, err := f.datW.Seek(goodOffset, 0); err != nil {
		f.logger.Errorf("could not seek .dat to offset %d: %v", goodOffset, err)
		return
	}
	if err := f.datW.Sync(); err != nil {
		f.logger.Errorf("could not fsync .dat after rewind: %v", err)
	}
}

// Freeze flushes any remaining data and transitions the file to read-only,
// closing its writer descriptors and opening the mmap-backed reader path.
func (f *File) Freeze() error {
	if _, err := f.Flush(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frozen {
		return nil
	}
	if f.datW != nil {
		f.datW.Close()
		f.datW = nil
	}
	if f.idxW != nil {
		f.idxW.Close()
		f.idxW = nil
	}
	datR, err := openFrozenDat(DatPath(f.dir, f.nameID))
	if err != nil {
		return err
	}
	f.datR = datR
	f.frozen = true
	return nil
}
