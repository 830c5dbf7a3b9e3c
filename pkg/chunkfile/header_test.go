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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatHeaderRoundTrip(t *testing.T) {
	h := Header{Version: headerVersion, Creator: "docstorestat/abc", Desc: "docstore chunk data"}
	buf := encodeHeader(false, h)

	got, n, err := decodeHeader(false, buf)
	assert.Nil(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, h.Version, got.Version)
	assert.Equal(t, h.Creator, got.Creator)
	assert.Equal(t, h.Desc, got.Desc)
	assert.Equal(t, uint32(noDocIDLimit), got.DocIDLimit)
}

func TestIdxHeaderRoundTrip(t *testing.T) {
	h := Header{Version: headerVersion, Creator: "c", Desc: "d", DocIDLimit: 42}
	buf := encodeHeader(true, h)

	got, n, err := decodeHeader(true, buf)
	assert.Nil(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, uint32(42), got.DocIDLimit)
}

func TestDecodeHeaderBadMagic(t *testing.T) {
	buf := encodeHeader(false, Header{Version: headerVersion})
	_, _, err := decodeHeader(true, buf)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDecodeHeaderTruncated(t *testing.T) {
	buf := encodeHeader(true, Header{Version: headerVersion, Creator: "creator", DocIDLimit: 1})
	_, _, err := decodeHeader(true, buf[:len(buf)-2])
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestNewCreatorIDIncludesBinaryName(t *testing.T) {
	id := NewCreatorID("docstorestat")
	assert.Contains(t, id, "docstorestat/")
}
