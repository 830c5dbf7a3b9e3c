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

// Package lidtable holds the in-memory lid -> (fileId, chunkId, size)
// directory every lookup goes through before touching a chunk file. Entries
// are packed into a single uint64 to keep the directory's memory footprint
// proportional to the live lid count rather than to a struct with padding.
package lidtable

import (
	"fmt"
	"sync"

	"github.com/solarisdb/docstore/golibs/errors"
)

// Entry is the packed directory slot: 1 valid bit, a 15-bit fileId, a 32-bit
// chunkId and a 16-bit size hint used only by the compactor's bloat-ratio
// estimate. Sizes above 65535 bytes saturate rather than overflow — reads
// never trust Entry.Size for anything but that estimate, the chunk codec's
// own length field is authoritative.
type Entry uint64

const (
	validBit   = uint64(1) << 63
	fileIDMask = uint64(0x7fff)
	fileIDShift = 48
	chunkIDMask = uint64(0xffffffff)
	chunkIDShift = 16
	sizeMask    = uint64(0xffff)

	// MaxFileID is the largest fileId a directory entry can address.
	MaxFileID = int(fileIDMask)
	// maxSizeHint is the saturation point for the size hint field.
	maxSizeHint = int(sizeMask)
)

// NewEntry packs a live directory slot. size is clamped to the field's range;
// callers that need the exact size read it back from the chunk codec.
func NewEntry(fileID int, chunkID uint32, size int) (Entry, error) {
	if fileID < 0 || fileID > MaxFileID {
		return 0, fmt.Errorf("fileId %d out of range [0,%d]: %w", fileID, MaxFileID, errors.ErrInvalid)
	}
	if size < 0 {
		return 0, fmt.Errorf("negative size %d: %w", size, errors.ErrInvalid)
	}
	if size > maxSizeHint {
		size = maxSizeHint
	}
	v := validBit
	v |= uint64(fileID) << fileIDShift
	v |= (uint64(chunkID) & chunkIDMask) << chunkIDShift
	v |= uint64(size) & sizeMask
	return Entry(v), nil
}

// Valid reports whether the entry refers to a live record.
func (e Entry) Valid() bool { return uint64(e)&validBit != 0 }

// FileID returns the owning chunk file's slot index.
func (e Entry) FileID() int { return int((uint64(e) >> fileIDShift) & fileIDMask) }

// ChunkID returns the dense chunk identifier within the file.
func (e Entry) ChunkID() uint32 { return uint32((uint64(e) >> chunkIDShift) & chunkIDMask) }

// SizeHint returns the (possibly saturated) on-disk payload size, used only
// for bloat-ratio accounting.
func (e Entry) SizeHint() int { return int(uint64(e) & sizeMask) }

// Directory is the lid -> Entry map. The zero value is an empty directory
// ready to use, as is the one New returns.
//
// Put is always externally serialized by the store manager's write lock, so a
// plain RWMutex is sufficient: there is never writer/writer contention, only
// reader/writer, and a conventional lock keeps Get O(1) without the
// copy-on-write cost a lock-free snapshot scheme would impose on every Put.
type Directory struct {
	mu      sync.RWMutex
	entries []Entry
	docIDLimit uint32
}

// New creates an empty directory.
func New() *Directory {
	return &Directory{}
}

// Get returns the entry for lid, or the zero Entry (Valid() == false) if lid
// was never written or is out of range.
func (d *Directory) Get(lid uint32) Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(lid) >= len(d.entries) {
		return 0
	}
	return d.entries[lid]
}

// Put stores e at lid, growing the directory if needed, and advances
// docIdLimit past lid.
func (d *Directory) Put(lid uint32, e Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.growLocked(lid)
	d.entries[lid] = e
	if lid >= d.docIDLimit {
		d.docIDLimit = lid + 1
	}
}

// Remove clears lid's entry, marking it not-valid without shrinking the
// directory.
func (d *Directory) Remove(lid uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(lid) < len(d.entries) {
		d.entries[lid] = 0
	}
}

func (d *Directory) growLocked(lid uint32) {
	if int(lid) < len(d.entries) {
		return
	}
	grown := make([]Entry, lid+1)
	copy(grown, d.entries)
	d.entries = grown
}

// DocIDLimit returns one past the highest lid ever written.
func (d *Directory) DocIDLimit() uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.docIDLimit
}

// UpdateDocIDLimit raises DocIDLimit to at least limit without touching any
// entries; used during recovery to restore the high-water mark a crash lost.
func (d *Directory) UpdateDocIDLimit(limit uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if limit > d.docIDLimit {
		d.growLocked(limit - 1)
		d.docIDLimit = limit
	}
}

// Len returns the number of directory slots allocated, i.e. DocIDLimit at the
// last grow; not the number of live (valid) entries.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// MemoryFootprint estimates the directory's heap usage in bytes.
func (d *Directory) MemoryFootprint() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return int64(len(d.entries)) * 8
}

// CompactLidSpace drops every entry at or above newLimit and lowers
// docIdLimit to match, used after the store has confirmed no live record
// references a lid in the dropped range.
func (d *Directory) CompactLidSpace(newLimit uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(newLimit) < len(d.entries) {
		d.entries = d.entries[:newLimit]
	}
	if newLimit < d.docIDLimit {
		d.docIDLimit = newLimit
	}
}

// ShrinkCapacity reallocates the backing array to exactly DocIDLimit
// entries, releasing the memory CompactLidSpace left behind for any reader
// still mid-lookup against the old array to finish with. Safe to call once
// the store has confirmed no reader holds a guard from before the
// CompactLidSpace that shrunk DocIDLimit.
func (d *Directory) ShrinkCapacity() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.entries) == cap(d.entries) {
		return
	}
	shrunk := make([]Entry, len(d.entries))
	copy(shrunk, d.entries)
	d.entries = shrunk
}

// Visit calls f for every valid entry in lid order. f must not call back into
// the directory.
func (d *Directory) Visit(f func(lid uint32, e Entry)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for lid, e := range d.entries {
		if e.Valid() {
			f(uint32(lid), e)
		}
	}
}
