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
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanKeepsCompletePairs(t *testing.T) {
	dir := tempDir(t)
	f, err := Create(dir, 1, 0, testConfig())
	assert.Nil(t, err)
	f.Append(1, 1, []byte("x"))
	assert.Nil(t, f.Freeze())
	assert.Nil(t, f.Close())

	survivors, err := Scan(dir)
	assert.Nil(t, err)
	assert.Equal(t, []uint64{1}, survivors)
}

func TestScanDeletesOrphanDat(t *testing.T) {
	dir := tempDir(t)
	assert.Nil(t, os.WriteFile(DatPath(dir, 1), []byte("junk"), 0640))

	survivors, err := Scan(dir)
	assert.Nil(t, err)
	assert.Empty(t, survivors)
	_, statErr := os.Stat(DatPath(dir, 1))
	assert.True(t, os.IsNotExist(statErr))
}

func TestScanDeletesOrphanIdx(t *testing.T) {
	dir := tempDir(t)
	assert.Nil(t, os.WriteFile(IdxPath(dir, 1), []byte("junk"), 0640))

	survivors, err := Scan(dir)
	assert.Nil(t, err)
	assert.Empty(t, survivors)
	_, statErr := os.Stat(IdxPath(dir, 1))
	assert.True(t, os.IsNotExist(statErr))
}

func TestScanDeletesEmptyIdxPair(t *testing.T) {
	dir := tempDir(t)
	f, err := Create(dir, 1, 0, testConfig())
	assert.Nil(t, err)
	assert.Nil(t, f.Close())

	survivors, err := Scan(dir)
	assert.Nil(t, err)
	assert.Empty(t, survivors)
	_, statErr := os.Stat(DatPath(dir, 1))
	assert.True(t, os.IsNotExist(statErr))
}

func TestScanDeletesInterruptedCompactionPair(t *testing.T) {
	dir := tempDir(t)
	src, err := Create(dir, 1, 0, testConfig())
	assert.Nil(t, err)
	src.Append(1, 1, []byte("x"))
	assert.Nil(t, src.Freeze())
	assert.Nil(t, src.Close())

	dst, err := Create(dir, 2, 1, testConfig())
	assert.Nil(t, err)
	dst.Append(1, 1, []byte("x"))
	assert.Nil(t, dst.Freeze())
	assert.Nil(t, dst.Close())

	assert.Nil(t, os.WriteFile(CompactingMarkerPath(dir, 1), nil, 0640))

	survivors, err := Scan(dir)
	assert.Nil(t, err)
	assert.Empty(t, survivors)

	_, statErr := os.Stat(CompactingMarkerPath(dir, 1))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(DatPath(dir, 1))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(DatPath(dir, 2))
	assert.True(t, os.IsNotExist(statErr))
}
