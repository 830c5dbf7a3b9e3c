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

func TestReadMissingLidReturnsNil(t *testing.T) {
	m := testManager(t, nil)
	got, err := m.Read(123)
	assert.Nil(t, err)
	assert.Nil(t, got)
}

func TestReadBatchGroupsByFile(t *testing.T) {
	m := testManager(t, func(cfg *Config) { cfg.MaxFileSize = 1 })
	assert.Nil(t, m.Write(1, 1, []byte("one")))  // rotates away
	assert.Nil(t, m.Write(2, 2, []byte("two")))  // rotates away again
	assert.Nil(t, m.Write(3, 3, []byte("three"))) // stays in the active file

	seen := map[uint32][]byte{}
	err := m.ReadBatch([]uint32{1, 2, 3, 999}, record.VisitorFunc(func(lid uint32, payload []byte) error {
		seen[lid] = append([]byte(nil), payload...)
		return nil
	}))
	assert.Nil(t, err)
	assert.Equal(t, []byte("one"), seen[1])
	assert.Equal(t, []byte("two"), seen[2])
	assert.Equal(t, []byte("three"), seen[3])
	assert.Equal(t, 3, len(seen))
}
