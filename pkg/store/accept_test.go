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

	"github.com/solarisdb/docstore/pkg/record"
)

func TestAcceptVisitsOnlyLiveRecords(t *testing.T) {
	m := testManager(t, nil)
	assert.Nil(t, m.Write(1, 1, []byte("keep")))
	assert.Nil(t, m.Write(2, 2, []byte("overwritten")))
	assert.Nil(t, m.Write(3, 2, []byte("latest")))
	assert.Nil(t, m.Remove(4, 1))
	assert.Nil(t, m.Write(5, 3, []byte("also keep")))

	seen := map[uint32][]byte{}
	err := m.Accept(record.VisitorFunc(func(lid uint32, payload []byte) error {
		seen[lid] = append([]byte(nil), payload...)
		return nil
	}), record.NoopProgress{}, false)
	assert.Nil(t, err)

	_, hasOne := seen[1]
	assert.False(t, hasOne, "lid 1 was removed and must not be visited")
	assert.Equal(t, []byte("latest"), seen[2])
	assert.Equal(t, []byte("also keep"), seen[3])
}

func TestAcceptPruneErasesNonActiveFiles(t *testing.T) {
	m := testManager(t, func(cfg *Config) { cfg.MaxFileSize = 1 })
	assert.Nil(t, m.Write(1, 1, []byte("rotates away")))
	nonActiveCount := len(m.files) - 1
	assert.True(t, nonActiveCount > 0)

	err := m.Accept(record.VisitorFunc(func(uint32, []byte) error { return nil }), record.NoopProgress{}, true)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(m.files), "every non-active file should have been erased")
}
