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
	"encoding/binary"
	"fmt"
)

// idxEntrySize is {chunkId u32, fileOffset u64, lastSerial u64, numEntries u32}.
const idxEntrySize = 4 + 8 + 8 + 4

// idxEntry is one .idx record, describing where one chunk lives in the .dat.
type idxEntry struct {
	ChunkID    uint32
	FileOffset uint64
	LastSerial uint64
	NumEntries uint32
}

func encodeIdxEntry(e idxEntry) []byte {
	buf := make([]byte, idxEntrySize)
	binary.BigEndian.PutUint32(buf[0:4], e.ChunkID)
	binary.BigEndian.PutUint64(buf[4:12], e.FileOffset)
	binary.BigEndian.PutUint64(buf[12:20], e.LastSerial)
	binary.BigEndian.PutUint32(buf[20:24], e.NumEntries)
	return buf
}

func decodeIdxEntry(buf []byte) (idxEntry, error) {
	if len(buf) < idxEntrySize {
		return idxEntry{}, fmt.Errorf("idx entry truncated: %w", ErrShortRead)
	}
	return idxEntry{
		ChunkID:    binary.BigEndian.Uint32(buf[0:4]),
		FileOffset: binary.BigEndian.Uint64(buf[4:12]),
		LastSerial: binary.BigEndian.Uint64(buf[12:20]),
		NumEntries: binary.BigEndian.Uint32(buf[20:24]),
	}, nil
}

// decodeIdxEntries parses every complete entry out of buf, returning entries
// and the number of trailing bytes that did not form a complete entry (which
// the caller may treat as a truncation to repair under allow-truncate).
func decodeIdxEntries(buf []byte) ([]idxEntry, int) {
	var entries []idxEntry
	n := len(buf) / idxEntrySize
	for i := 0; i < n; i++ {
		e, _ := decodeIdxEntry(buf[i*idxEntrySize:])
		entries = append(entries, e)
	}
	return entries, len(buf) - n*idxEntrySize
}
