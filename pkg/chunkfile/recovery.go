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
	"os"

	"github.com/solarisdb/docstore/golibs/errors"
	"github.com/solarisdb/docstore/golibs/logging"
	"github.com/solarisdb/docstore/pkg/chunkcodec"
	"github.com/solarisdb/docstore/pkg/lidtable"
)

// OpenFrozen reopens an existing chunk-file pair as frozen, replaying its
// .idx against its .dat to rebuild dir's entries for every lid it describes.
// It returns the number of entries skipped because their lid was at or
// beyond docIDLimit (an advisory count per spec.md §4.2).
//
// When allowTruncate is set, a short or corrupt tail on either file is
// repaired by truncating both files back to the last fully-verified chunk
// instead of failing startup.
func OpenFrozen(dir string, nameID uint64, fileID int, cfg Config, lidDir *lidtable.Directory, allowTruncate bool) (*File, int, error) {
	datPath, idxPath := DatPath(dir, nameID), IdxPath(dir, nameID)

	idxBytes, err := os.ReadFile(idxPath)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", idxPath, errors.ErrInternal)
	}
	idxHdr, hdrLen, err := decodeHeader(true, idxBytes)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", idxPath, err)
	}
	entries, leftover := decodeIdxEntries(idxBytes[hdrLen:])
	if leftover > 0 {
		if !allowTruncate {
			return nil, 0, fmt.Errorf("%s has %d trailing bytes of a partial entry: %w", idxPath, leftover, ErrShortRead)
		}
		if err := os.Truncate(idxPath, int64(len(idxBytes)-leftover)); err != nil {
			return nil, 0, fmt.Errorf("truncate %s: %w", idxPath, errors.ErrInternal)
		}
	}

	docIDLimit := idxHdr.DocIDLimit

	datF, err := os.OpenFile(datPath, os.O_RDONLY, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", datPath, errors.ErrInternal)
	}
	defer datF.Close()
	if _, _, err := decodeHeader(false, mustReadN(datF, 0, 512)); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", datPath, err)
	}

	skipped := 0
	validEntries := entries
	var lastGoodEnd int64
	if len(entries) == 0 {
		if _, hl, herr := decodeHeaderLen(datF); herr == nil {
			lastGoodEnd = int64(hl)
		}
	}

	for i, e := range entries {
		hdr, herr := readAt(datF, int64(e.FileOffset), frameHeaderSize)
		if herr != nil {
			return nil, 0, truncOrFail(datPath, idxPath, i, entries, allowTruncate, lastGoodEnd, herr)
		}
		frameLen, perr := chunkcodec.PeekLength(hdr)
		if perr != nil {
			return nil, 0, truncOrFail(datPath, idxPath, i, entries, allowTruncate, lastGoodEnd, perr)
		}
		frame, rerr := readAt(datF, int64(e.FileOffset), frameLen)
		if rerr != nil {
			return nil, 0, truncOrFail(datPath, idxPath, i, entries, allowTruncate, lastGoodEnd, rerr)
		}
		recs, derr := chunkcodec.DecodeChunk(frame, cfg.SkipCRCOnRead)
		if derr != nil {
			return nil, 0, truncOrFail(datPath, idxPath, i, entries, allowTruncate, lastGoodEnd, derr)
		}

		for _, r := range recs {
			if docIDLimit != noDocIDLimit && r.Lid >= docIDLimit {
				skipped++
				continue
			}
			if len(r.Payload) == 0 {
				lidDir.Remove(r.Lid)
				continue
			}
			entry, eerr := lidtable.NewEntry(fileID, e.ChunkID, len(r.Payload))
			if eerr != nil {
				return nil, 0, eerr
			}
			lidDir.Put(r.Lid, entry)
		}
		lastGoodEnd = int64(e.FileOffset) + int64(frameLen)
		validEntries = entries[:i+1]
	}

	fi, err := datF.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat %s: %w", datPath, errors.ErrInternal)
	}
	if fi.Size() > lastGoodEnd {
		tail, terr := readAt(datF, lastGoodEnd, int(fi.Size()-lastGoodEnd))
		if terr != nil || !chunkcodec.IsZeroPaddedTail(tail) {
			if !allowTruncate {
				return nil, 0, fmt.Errorf("%s has a non-zero tail past the last indexed chunk: %w", datPath, ErrShortRead)
			}
		}
		if err := os.Truncate(datPath, lastGoodEnd); err != nil {
			return nil, 0, fmt.Errorf("truncate %s: %w", datPath, errors.ErrInternal)
		}
	}
	if len(validEntries) < len(entries) {
		if err := rewriteIdx(idxPath, idxBytes[:hdrLen], validEntries); err != nil {
			return nil, 0, err
		}
	}

	datR, err := openFrozenDat(datPath)
	if err != nil {
		return nil, 0, err
	}

	f := &File{
		nameID:              nameID,
		fileID:              fileID,
		dir:                 dir,
		cfg:                 cfg,
		logger:              logging.NewLogger(fmt.Sprintf("chunkfile.File.%d", nameID)),
		frozen:              true,
		datR:                datR,
		entries:             validEntries,
		diskFootprint:       lastGoodEnd,
		lastPersistedSerial: lastSerialOf(validEntries),
	}
	return f, skipped, nil
}

func lastSerialOf(entries []idxEntry) uint64 {
	var max uint64
	for _, e := range entries {
		if e.LastSerial > max {
			max = e.LastSerial
		}
	}
	return max
}

func truncOrFail(datPath, idxPath string, badIdx int, entries []idxEntry, allowTruncate bool, lastGoodEnd int64, cause error) error {
	if !allowTruncate {
		return fmt.Errorf("%s entry %d: %w", datPath, badIdx, cause)
	}
	if err := os.Truncate(datPath, lastGoodEnd); err != nil {
		return fmt.Errorf("truncate %s: %w", datPath, errors.ErrInternal)
	}
	return nil
}

func rewriteIdx(idxPath string, header []byte, entries []idxEntry) error {
	buf := append([]byte(nil), header...)
	for _, e := range entries {
		buf = append(buf, encodeIdxEntry(e)...)
	}
	return os.WriteFile(idxPath, buf, 0640)
}

func readAt(f *os.File, offset int64, size int) ([]byte, error) {
	buf := make([]byte, size)
	n, err := f.ReadAt(buf, offset)
	if err != nil && n < size {
		return nil, fmt.Errorf("read %d bytes at %d: %w", size, offset, ErrShortRead)
	}
	return buf, nil
}

func mustReadN(f *os.File, offset int64, max int) []byte {
	fi, err := f.Stat()
	if err != nil {
		return nil
	}
	n := max
	if int64(n) > fi.Size() {
		n = int(fi.Size())
	}
	buf := make([]byte, n)
	_, _ = f.ReadAt(buf, offset)
	return buf
}

func decodeHeaderLen(f *os.File) (Header, int, error) {
	buf := mustReadN(f, 0, 512)
	return decodeHeader(false, buf)
}
