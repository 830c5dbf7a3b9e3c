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

	"github.com/solarisdb/docstore/golibs/errors"
	"github.com/solarisdb/docstore/golibs/files"
	"github.com/solarisdb/docstore/pkg/chunkcodec"
	"github.com/solarisdb/docstore/pkg/record"
)

// frozenDat wraps a memory-mapped, read-only view of a .dat file. Random
// chunk reads against a frozen file are zero-copy: Buffer returns a slice of
// the mapped region directly.
type frozenDat struct {
	mmf *files.MMFile
}

func openFrozenDat(path string) (*frozenDat, error) {
	mmf, err := files.NewMMFile(path, -1)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, errors.ErrInternal)
	}
	return &frozenDat{mmf: mmf}, nil
}

func (d *frozenDat) ReadAt(offset int64, length int) ([]byte, error) {
	return d.mmf.Buffer(offset, length)
}

func (d *frozenDat) Close() error { return d.mmf.Close() }

// Lookup returns the on-disk position and total frame size (header + payload
// + checksum) of chunkID.
func (f *File) Lookup(chunkID uint32) (offset uint64, frameLength int, err error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.frozen {
		return 0, 0, fmt.Errorf("lookup on non-frozen file %d: %w", f.nameID, ErrNotActive)
	}
	if int(chunkID) >= len(f.entries) {
		return 0, 0, fmt.Errorf("chunk %d not present in file %d: %w", chunkID, f.nameID, errors.ErrNotExist)
	}
	entry := f.entries[chunkID]
	hdr, err := f.datR.ReadAt(int64(entry.FileOffset), frameHeaderSize)
	if err != nil {
		return 0, 0, fmt.Errorf("read frame header at %d: %w", entry.FileOffset, errors.ErrInternal)
	}
	length, err := chunkcodec.PeekLength(hdr)
	if err != nil {
		return 0, 0, err
	}
	return entry.FileOffset, length, nil
}

// ReadChunk decodes and returns every record stored in chunkID.
func (f *File) ReadChunk(chunkID uint32) ([]record.Record, error) {
	offset, length, err := f.Lookup(chunkID)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	frame, err := f.datR.ReadAt(int64(offset), length)
	skipCRC := f.cfg.SkipCRCOnRead
	f.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("read chunk %d of file %d: %w", chunkID, f.nameID, errors.ErrInternal)
	}
	return chunkcodec.DecodeChunk(frame, skipCRC)
}

// ReadPayload returns the payload of lid's record stored in chunkID, or nil
// if the chunk no longer contains a record for that lid (should not happen
// for a directory-consistent lookup, but is not itself an error here).
func (f *File) ReadPayload(lid uint32, chunkID uint32) ([]byte, error) {
	recs, err := f.ReadChunk(chunkID)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if r.Lid == lid {
			return r.Payload, nil
		}
	}
	return nil, nil
}

// VisitAll streams every record in the file, in on-disk order, to visitor.
// isLive reports whether the record is still the current version for its
// lid; VisitAll calls visitor only for live records but advances progress
// over all of them.
func (f *File) VisitAll(isLive func(r record.Record, chunkID uint32) bool, visitor record.Visitor, progress record.VisitorProgress) error {
	f.mu.RLock()
	n := len(f.entries)
	f.mu.RUnlock()
	for i := 0; i < n; i++ {
		recs, err := f.ReadChunk(uint32(i))
		if err != nil {
			return fmt.Errorf("visit chunk %d of file %d: %w", i, f.nameID, err)
		}
		for _, r := range recs {
			if isLive == nil || isLive(r, uint32(i)) {
				if err := visitor.Visit(r.Lid, r.Payload); err != nil {
					return err
				}
			}
		}
		if progress != nil {
			progress.UpdateProgress(float64(i+1) / float64(n))
		}
	}
	return nil
}
