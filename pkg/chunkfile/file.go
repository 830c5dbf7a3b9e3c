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

// Package chunkfile implements the on-disk .dat/.idx chunk-file pair: an
// append-only data file of framed, checksummed chunks alongside an index
// file describing where each chunk lives. A File is either active (a single
// writer appends to it) or frozen (read-only, used by readers and the
// compactor).
package chunkfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/solarisdb/docstore/golibs/errors"
	"github.com/solarisdb/docstore/golibs/logging"
	"github.com/solarisdb/docstore/pkg/chunkcodec"
	"github.com/solarisdb/docstore/pkg/record"
)

// CodecPolicy supplies the checksum algorithm and compression a File should
// use when it encodes its next chunk. Evaluated per chunk so a runtime
// config change only affects chunks written after the change (spec.md §9).
type CodecPolicy func() (chunkcodec.CRCAlgo, chunkcodec.Compression)

// Config are the per-file knobs the store manager derives from its own
// configuration (spec.md §6 maxChunkBytes / maxChunkRecords / skipCrcOnRead).
type Config struct {
	MaxChunkBytes   int
	MaxChunkRecords int
	SkipCRCOnRead   bool
	Codec           CodecPolicy
	Creator         string
}

// File is one chunk-file pair identified by NameID, addressed internally by
// FileID. The directory never holds a pointer back into File; File never
// holds a pointer into the directory (spec.md §9 cycle-risk note).
type File struct {
	nameID uint64
	fileID int
	dir    string
	cfg    Config
	logger logging.Logger

	mu     sync.RWMutex
	frozen bool

	// active-only state
	datW *os.File
	idxW *os.File

	pending    []record.Record
	pendingLen int
	nextChunk  uint32

	closedChunks []pendingChunk

	// frozen-only state
	datR    *frozenDat
	entries []idxEntry

	lastPersistedSerial uint64
	diskFootprint       int64
	diskBloat           int64
}

type pendingChunk struct {
	records []record.Record
}

// DatPath returns the .dat path for nameID under dir.
func DatPath(dir string, nameID uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%020d.dat", nameID))
}

// IdxPath returns the .idx path for nameID under dir.
func IdxPath(dir string, nameID uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%020d.idx", nameID))
}

// Create makes a brand new, empty active chunk-file pair.
func Create(dir string, nameID uint64, fileID int, cfg Config) (*File, error) {
	datPath, idxPath := DatPath(dir, nameID), IdxPath(dir, nameID)
	datW, err := os.OpenFile(datPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", datPath, errors.ErrInternal)
	}
	idxW, err := os.OpenFile(idxPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		datW.Close()
		os.Remove(datPath)
		return nil, fmt.Errorf("create %s: %w", idxPath, errors.ErrInternal)
	}

	datHdr := encodeHeader(false, Header{Version: headerVersion, Creator: cfg.Creator, Desc: "docstore chunk data"})
	if _, err := datW.Write(datHdr); err != nil {
		datW.Close()
		idxW.Close()
		return nil, ioError("write .dat header", 0, err)
	}
	idxHdr := encodeHeader(true, Header{Version: headerVersion, Creator: cfg.Creator, Desc: "docstore chunk index", DocIDLimit: noDocIDLimit})
	if _, err := idxW.Write(idxHdr); err != nil {
		datW.Close()
		idxW.Close()
		return nil, ioError("write .idx header", 0, err)
	}

	f := &File{
		nameID: nameID,
		fileID: fileID,
		dir:    dir,
		cfg:    cfg,
		logger: logging.NewLogger(fmt.Sprintf("chunkfile.File.%d", nameID)),
		datW:   datW,
		idxW:   idxW,
	}
	f.diskFootprint = int64(len(datHdr))
	return f, nil
}

// NameID returns the file pair's creation-ordered identifier.
func (f *File) NameID() uint64 { return f.nameID }

// FileID returns the dense in-memory slot index.
func (f *File) FileID() int { return f.fileID }

// IsFrozen reports whether the file has been frozen.
func (f *File) IsFrozen() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.frozen
}

// NumChunks returns the number of chunks described on disk.
func (f *File) NumChunks() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.frozen {
		return len(f.entries)
	}
	return int(f.nextChunk)
}

// DiskFootprint returns the .dat file's logical size in bytes.
func (f *File) DiskFootprint() int64 {
	return atomic.LoadInt64(&f.diskFootprint)
}

// DiskBloat returns the bytes occupied by records that are no longer the
// current version for their lid.
func (f *File) DiskBloat() int64 {
	return atomic.LoadInt64(&f.diskBloat)
}

// ChargeBloat credits n additional bytes of dead weight to the file. Called
// by the store manager when an overwrite or remove makes a previous record
// in this file dead (spec.md §4.4 write path step 3).
func (f *File) ChargeBloat(n int64) {
	if n > 0 {
		atomic.AddInt64(&f.diskBloat, n)
	}
}

// BloatRatio is DiskBloat/DiskFootprint, 0 if the file is empty.
func (f *File) BloatRatio() float64 {
	footprint := f.DiskFootprint()
	if footprint == 0 {
		return 0
	}
	return float64(f.DiskBloat()) / float64(footprint)
}

// LastPersistedSerial returns the highest serial flushed to disk.
func (f *File) LastPersistedSerial() uint64 {
	return atomic.LoadUint64(&f.lastPersistedSerial)
}

// Close releases the file's descriptors/mapping without touching its content.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if f.datW != nil {
		err = f.datW.Close()
		f.datW = nil
	}
	if f.idxW != nil {
		if e := f.idxW.Close(); err == nil {
			err = e
		}
		f.idxW = nil
	}
	if f.datR != nil {
		if e := f.datR.Close(); err == nil {
			err = e
		}
		f.datR = nil
	}
	return err
}

// Unlink closes and removes both files of the pair from disk.
func (f *File) Unlink() error {
	if err := f.Close(); err != nil {
		return err
	}
	err1 := os.Remove(DatPath(f.dir, f.nameID))
	err2 := os.Remove(IdxPath(f.dir, f.nameID))
	if err1 != nil {
		return err1
	}
	return err2
}
