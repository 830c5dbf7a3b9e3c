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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type failingSyncer struct{}

func (failingSyncer) SyncToSerial(context.Context, uint64) error {
	return errors.New("tlog unavailable")
}

func TestFlushAdvancesLastSyncToken(t *testing.T) {
	m := testManager(t, nil)
	assert.Nil(t, m.Write(1, 1, []byte("a")))
	assert.Nil(t, m.Write(2, 2, []byte("b")))

	assert.Nil(t, m.Flush(2))
	assert.Equal(t, uint64(2), m.LastSyncToken())
}

func TestInitFlushReturnsAtLeastSyncToken(t *testing.T) {
	m := testManager(t, nil)
	got := m.InitFlush(99)
	assert.Equal(t, uint64(99), got)
}

func TestRotationLeavesFileUnfrozenWhenTLogSyncFails(t *testing.T) {
	m := testManager(t, func(cfg *Config) {
		cfg.MaxFileSize = 1
		cfg.TLog = failingSyncer{}
	})
	closingID := m.activeFileID
	assert.Nil(t, m.Write(1, 1, []byte("triggers rotation")))

	closing := m.files[closingID]
	assert.False(t, closing.IsFrozen(), "a failed rotation flush must not freeze the file")
}
