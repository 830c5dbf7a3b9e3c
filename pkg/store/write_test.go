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

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteThenRead(t *testing.T) {
	m := testManager(t, nil)
	assert.Nil(t, m.Write(1, 7, []byte("payload")))

	got, err := m.Read(7)
	assert.Nil(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestRemoveClearsEntry(t *testing.T) {
	m := testManager(t, nil)
	assert.Nil(t, m.Write(1, 7, []byte("payload")))
	assert.Nil(t, m.Remove(2, 7))

	got, err := m.Read(7)
	assert.Nil(t, err)
	assert.Nil(t, got)
}

func TestReadOnlyRejectsWrite(t *testing.T) {
	m := testManager(t, func(cfg *Config) { cfg.ReadOnly = true })
	err := m.Write(1, 7, []byte("x"))
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestWriteRotatesAtMaxFileSize(t *testing.T) {
	m := testManager(t, func(cfg *Config) { cfg.MaxFileSize = 1 })
	beforeFiles := len(m.files)
	assert.Nil(t, m.Write(1, 1, []byte("triggers a rotation once flushed")))
	assert.True(t, len(m.files) > beforeFiles, "rotation should have opened a new active file")

	assert.Nil(t, m.Flush(1))
	assert.Equal(t, uint64(1), m.LastSyncToken())
}

func TestZeroMaxFileSizeDisablesRotation(t *testing.T) {
	m := testManager(t, func(cfg *Config) { cfg.MaxFileSize = 0 })
	beforeFiles := len(m.files)
	for i := uint32(1); i <= 5; i++ {
		assert.Nil(t, m.Write(uint64(i), i, []byte("payload that would trigger rotation if MaxFileSize were nonzero")))
	}
	assert.Equal(t, beforeFiles, len(m.files), "MaxFileSize == 0 must never rotate")
}

func TestOverwriteChargesBloatToPreviousFile(t *testing.T) {
	m := testManager(t, func(cfg *Config) { cfg.MaxFileSize = 1 })
	assert.Nil(t, m.Write(1, 1, []byte("first version, long enough to matter")))
	firstFileID := m.dir.Get(1).FileID()
	assert.Nil(t, m.Write(2, 1, []byte("second")))

	m.mu.Lock()
	firstFile := m.files[firstFileID]
	m.mu.Unlock()
	assert.True(t, firstFile.DiskBloat() > 0)
}

func TestWriteDirectRejectsFrozenFile(t *testing.T) {
	m := testManager(t, nil)
	active := m.activeLocked()
	assert.Nil(t, active.Freeze())

	_, _, err := m.WriteDirect(active.FileID(), 1, 1, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidState)
}
