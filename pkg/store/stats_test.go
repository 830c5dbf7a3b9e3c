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

func TestStatsReflectsWritesAndFlush(t *testing.T) {
	m := testManager(t, nil)
	assert.Nil(t, m.Write(1, 1, []byte("hello")))
	assert.Nil(t, m.Flush(0))

	s := m.Stats()
	assert.Equal(t, 1, s.LidCount)
	assert.Len(t, s.Files, 1)
	assert.True(t, s.Files[0].Active)
	assert.Greater(t, s.Files[0].DiskFootprint, int64(0))
}
