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
	"math"

	"github.com/google/uuid"
)

// magic identifies a docstore chunk-file-pair member; the last byte
// distinguishes .dat (0) from .idx (1) so a misplaced file is caught early.
var datMagic = [8]byte{'D', 'O', 'C', 'S', 'T', 'O', 'R', 0}
var idxMagic = [8]byte{'D', 'O', 'C', 'S', 'T', 'O', 'R', 1}

const headerVersion = 1

// noDocIDLimit marks a .idx header written before docIdLimit tracking
// existed, or an .idx with no enforced limit; recovery treats it as infinite.
const noDocIDLimit = math.MaxUint32

// Header is the generic tagged preamble both .dat and .idx files carry.
type Header struct {
	Version    uint32
	Creator    string
	Desc       string
	// DocIDLimit is only meaningful on .idx headers; noDocIDLimit means
	// "legacy file, treat as unlimited" (spec.md §4.2 recovery policy).
	DocIDLimit uint32
}

// NewCreatorID returns an identity string for the "creator" header field,
// unique per open store instance.
func NewCreatorID(binaryName string) string {
	return binaryName + "/" + uuid.New().String()
}

func encodeHeader(isIdx bool, h Header) []byte {
	magic := datMagic
	if isIdx {
		magic = idxMagic
	}
	buf := make([]byte, 0, 8+4+4+len(h.Creator)+4+len(h.Desc)+4)
	buf = append(buf, magic[:]...)
	buf = appendU32(buf, h.Version)
	buf = appendString(buf, h.Creator)
	buf = appendString(buf, h.Desc)
	if isIdx {
		buf = appendU32(buf, h.DocIDLimit)
	}
	return buf
}

// decodeHeader parses a header from the front of buf and returns the header
// plus the number of bytes it consumed.
func decodeHeader(isIdx bool, buf []byte) (Header, int, error) {
	wantMagic := datMagic
	if isIdx {
		wantMagic = idxMagic
	}
	if len(buf) < 8 {
		return Header{}, 0, fmt.Errorf("header truncated: %w", ErrShortRead)
	}
	var gotMagic [8]byte
	copy(gotMagic[:], buf[:8])
	if gotMagic != wantMagic {
		return Header{}, 0, fmt.Errorf("bad magic %v: %w", gotMagic, ErrUnknownFormat)
	}
	off := 8
	version, off, err := readU32(buf, off)
	if err != nil {
		return Header{}, 0, err
	}
	creator, off, err := readString(buf, off)
	if err != nil {
		return Header{}, 0, err
	}
	desc, off, err := readString(buf, off)
	if err != nil {
		return Header{}, 0, err
	}
	h := Header{Version: version, Creator: creator, Desc: desc, DocIDLimit: noDocIDLimit}
	if isIdx {
		h.DocIDLimit, off, err = readU32(buf, off)
		if err != nil {
			return Header{}, 0, err
		}
	}
	return h, off, nil
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendU32(buf, uint32(len(s)))
	return append(buf, s...)
}

func readU32(buf []byte, off int) (uint32, int, error) {
	if off+4 > len(buf) {
		return 0, off, fmt.Errorf("header truncated at offset %d: %w", off, ErrShortRead)
	}
	return binary.BigEndian.Uint32(buf[off : off+4]), off + 4, nil
}

func readString(buf []byte, off int) (string, int, error) {
	ln, off, err := readU32(buf, off)
	if err != nil {
		return "", off, err
	}
	if off+int(ln) > len(buf) {
		return "", off, fmt.Errorf("header string truncated at offset %d: %w", off, ErrShortRead)
	}
	return string(buf[off : off+int(ln)]), off + int(ln), nil
}
