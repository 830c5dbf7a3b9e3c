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

// Package chunkcodec encodes and decodes the framed byte block a chunk file
// stores one of per record group: a flavor byte, a length, an optionally
// compressed payload of concatenated records, and a trailing checksum.
package chunkcodec

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"

	"github.com/solarisdb/docstore/golibs/errors"
	"github.com/solarisdb/docstore/pkg/record"
)

type (
	// Flavor is the single self-describing byte stamped into a chunk frame.
	// It packs two independent choices so decode never needs an out-of-band
	// hint: bits [0:2) select the checksum algorithm, bits [2:4) select the
	// whole-chunk compression algorithm that was applied at write time.
	// Compression is chosen at write time; decode always honors whatever is
	// recorded in the frame, so changing the configured algorithm only
	// affects chunks written after the change.
	Flavor byte

	// Compression selects the whole-chunk compression algorithm.
	Compression byte

	// crcAlgo selects the checksum algorithm.
	crcAlgo byte
)

const (
	// FlavorZeroPad is never a real flavor: a frame header of flavor==0,
	// length==0 at end-of-file is the zero-padded-tail sentinel, not a chunk.
	FlavorZeroPad Flavor = 0

	crcNone  crcAlgo = 0
	crcCRC32 crcAlgo = 1
	crcXXH64 crcAlgo = 2

	crcMask        = 0x03
	compressionShift = 2
)

const (
	CompressionNone Compression = 0
	CompressionZstd Compression = 1
	CompressionS2   Compression = 2
)

// MakeFlavor composes the on-disk flavor byte for a chunk written with the
// given checksum algorithm and compression.
func MakeFlavor(crc CRCAlgo, c Compression) Flavor {
	return Flavor(byte(crc) | byte(c)<<compressionShift)
}

// CRCAlgo names the checksum algorithm independent of compression, for
// callers (like EncodeChunk's old call sites) that think in terms of "which
// hash". The exported constants below are the only values callers construct.
type CRCAlgo byte

const (
	CRC32 CRCAlgo = CRCAlgo(crcCRC32)
	XXH64 CRCAlgo = CRCAlgo(crcXXH64)
)

func (f Flavor) crc() crcAlgo         { return crcAlgo(byte(f) & crcMask) }
func (f Flavor) compression() Compression { return Compression(byte(f) >> compressionShift) }

// frameHeaderSize is flavor(1) + length(4).
const frameHeaderSize = 5

// checksumSize is the trailing checksum, always 4 bytes regardless of flavor:
// xxh64 is truncated to its low 32 bits to fit the on-disk layout in SPEC_FULL §6.
const checksumSize = 4

var crcTable = crc32.MakeTable(crc32.Castagnoli)

var (
	// ErrBadArgument is returned by EncodeChunk when given no records, or by
	// EncodeRecord when a payload does not fit the record length field.
	ErrBadArgument = fmt.Errorf("bad argument: %w", errors.ErrInvalid)
	// ErrBadChecksum is returned by DecodeChunk when the trailing checksum
	// does not match the frame's flavor + length + payload bytes.
	ErrBadChecksum = fmt.Errorf("checksum mismatch: %w", errors.ErrDataLoss)
	// ErrUnknownFormat is returned when the flavor byte does not name a
	// known checksum algorithm, or the compression byte is unrecognized.
	ErrUnknownFormat = fmt.Errorf("unknown chunk format: %w", errors.ErrInvalid)
	// ErrTruncated is returned when the declared frame length exceeds the
	// bytes actually supplied to DecodeChunk.
	ErrTruncated = fmt.Errorf("truncated chunk: %w", errors.ErrDataLoss)
	// ErrCorrupt is returned when a chunk's decompressed size disagrees with
	// what was encoded, or a record inside the chunk is malformed.
	ErrCorrupt = fmt.Errorf("corrupt chunk: %w", errors.ErrDataLoss)
	// ErrNeedMore is returned by PeekLength when fewer than frameHeaderSize
	// bytes are available to determine the frame length.
	ErrNeedMore = fmt.Errorf("need more bytes to determine chunk length")
)

// maxRecordPayload is the largest payload EncodeRecord accepts: the
// record-in-chunk format carries a 4-byte length field (SPEC_FULL §6).
const maxRecordPayload = 1<<32 - 1

// EncodeRecord appends the wire form of one record — {serial u64, lid u32,
// len u32, bytes} — to dst and returns the result.
func EncodeRecord(dst []byte, serial uint64, lid uint32, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > maxRecordPayload {
		return nil, fmt.Errorf("payload of %d bytes exceeds the record length field: %w", len(payload), ErrBadArgument)
	}
	var hdr [16]byte
	binary.BigEndian.PutUint64(hdr[0:8], serial)
	binary.BigEndian.PutUint32(hdr[8:12], lid)
	binary.BigEndian.PutUint32(hdr[12:16], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)
	return dst, nil
}

// decodeRecords parses a flat buffer of concatenated EncodeRecord frames.
func decodeRecords(buf []byte) ([]record.Record, error) {
	var recs []record.Record
	for len(buf) > 0 {
		if len(buf) < 16 {
			return nil, fmt.Errorf("truncated record header: %w", ErrCorrupt)
		}
		serial := binary.BigEndian.Uint64(buf[0:8])
		lid := binary.BigEndian.Uint32(buf[8:12])
		ln := binary.BigEndian.Uint32(buf[12:16])
		buf = buf[16:]
		if uint64(len(buf)) < uint64(ln) {
			return nil, fmt.Errorf("truncated record payload: %w", ErrCorrupt)
		}
		var payload []byte
		if ln > 0 {
			payload = buf[:ln]
		}
		buf = buf[ln:]
		recs = append(recs, record.Record{Serial: serial, Lid: lid, Payload: payload})
	}
	return recs, nil
}

// EncodeChunk serializes records into one framed, checksummed, optionally
// compressed block. The returned frame's flavor byte fully describes how to
// decode it; decode never needs compression passed back in.
func EncodeChunk(records []record.Record, crc CRCAlgo, compression Compression) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("cannot encode an empty chunk: %w", ErrBadArgument)
	}
	flavor := MakeFlavor(crc, compression)
	var raw []byte
	for _, r := range records {
		var err error
		raw, err = EncodeRecord(raw, r.Serial, r.Lid, r.Payload)
		if err != nil {
			return nil, err
		}
	}

	payload, err := compressPayload(raw, compression)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 0, frameHeaderSize+len(payload)+checksumSize)
	frame = append(frame, byte(flavor))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	frame = append(frame, lenBuf[:]...)
	frame = append(frame, payload...)

	sum, err := checksum(flavor, frame)
	if err != nil {
		return nil, err
	}
	var sumBuf [4]byte
	binary.BigEndian.PutUint32(sumBuf[:], sum)
	frame = append(frame, sumBuf[:]...)
	return frame, nil
}

// DecodeChunk validates and decodes one framed block produced by EncodeChunk.
// Both the checksum algorithm and the compression are read from the frame's
// own flavor byte.
func DecodeChunk(frame []byte, skipCRC bool) ([]record.Record, error) {
	if len(frame) < frameHeaderSize+checksumSize {
		return nil, fmt.Errorf("frame too small (%d bytes): %w", len(frame), ErrTruncated)
	}
	flavor := Flavor(frame[0])
	length := binary.BigEndian.Uint32(frame[1:5])
	if uint64(frameHeaderSize)+uint64(length)+checksumSize > uint64(len(frame)) {
		return nil, fmt.Errorf("declared length %d exceeds available %d bytes: %w", length, len(frame)-frameHeaderSize-checksumSize, ErrTruncated)
	}
	body := frame[:frameHeaderSize+length]
	payload := frame[frameHeaderSize : frameHeaderSize+length]
	wantSum := binary.BigEndian.Uint32(frame[frameHeaderSize+length : frameHeaderSize+length+checksumSize])

	if !skipCRC {
		gotSum, err := checksum(flavor, body)
		if err != nil {
			return nil, err
		}
		if gotSum != wantSum {
			return nil, fmt.Errorf("flavor=%d length=%d: %w", flavor, length, ErrBadChecksum)
		}
	}

	raw, err := decompressPayload(payload, flavor.compression())
	if err != nil {
		return nil, err
	}
	return decodeRecords(raw)
}

// PeekLength examines only the frame header to let a sequential reader decide
// whether the rest of the chunk is present before reading it. It returns the
// total on-disk size of the frame (header + payload + checksum).
func PeekLength(input []byte) (int, error) {
	if len(input) < frameHeaderSize {
		return 0, ErrNeedMore
	}
	length := binary.BigEndian.Uint32(input[1:5])
	return frameHeaderSize + int(length) + checksumSize, nil
}

// IsZeroPaddedTail reports whether region is a valid truncation sentinel: all
// zero bytes, no larger than 1 MiB (SPEC_FULL / spec.md §6 Truncation sentinel).
func IsZeroPaddedTail(region []byte) bool {
	const maxSentinel = 1 << 20
	if len(region) > maxSentinel {
		return false
	}
	for _, b := range region {
		if b != 0 {
			return false
		}
	}
	return true
}

func checksum(flavor Flavor, data []byte) (uint32, error) {
	switch flavor.crc() {
	case crcCRC32:
		return crc32.Checksum(data, crcTable), nil
	case crcXXH64:
		return uint32(xxhash.Sum64(data)), nil
	default:
		return 0, fmt.Errorf("flavor byte %d: %w", flavor, ErrUnknownFormat)
	}
}

func compressPayload(raw []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return raw, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return prependUncompressedLen(enc.EncodeAll(raw, nil), len(raw)), nil
	case CompressionS2:
		return prependUncompressedLen(s2.Encode(nil, raw), len(raw)), nil
	default:
		return nil, fmt.Errorf("compression byte %d: %w", c, ErrUnknownFormat)
	}
}

func decompressPayload(payload []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return payload, nil
	case CompressionZstd:
		wantLen, body, err := splitUncompressedLen(payload)
		if err != nil {
			return nil, err
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(body, make([]byte, 0, wantLen))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", ErrCorrupt)
		}
		if len(out) != wantLen {
			return nil, fmt.Errorf("decompressed size %d != encoded %d: %w", len(out), wantLen, ErrCorrupt)
		}
		return out, nil
	case CompressionS2:
		wantLen, body, err := splitUncompressedLen(payload)
		if err != nil {
			return nil, err
		}
		out, err := s2.Decode(make([]byte, 0, wantLen), body)
		if err != nil {
			return nil, fmt.Errorf("s2: %w", ErrCorrupt)
		}
		if len(out) != wantLen {
			return nil, fmt.Errorf("decompressed size %d != encoded %d: %w", len(out), wantLen, ErrCorrupt)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("compression byte %d: %w", c, ErrUnknownFormat)
	}
}

func prependUncompressedLen(compressed []byte, uncompressedLen int) []byte {
	out := make([]byte, 4+len(compressed))
	binary.BigEndian.PutUint32(out[:4], uint32(uncompressedLen))
	copy(out[4:], compressed)
	return out
}

func splitUncompressedLen(payload []byte) (int, []byte, error) {
	if len(payload) < 4 {
		return 0, nil, fmt.Errorf("compressed payload missing length prefix: %w", ErrCorrupt)
	}
	return int(binary.BigEndian.Uint32(payload[:4])), payload[4:], nil
}
