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
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/solarisdb/docstore/pkg/exec"
)

// testManager opens a Manager rooted at a fresh temp directory, synchronous
// executor, and a fast generation poll interval so tests never wait a full
// second for a compaction or shrink to observe no readers.
func testManager(t *testing.T, mutate func(*Config)) *Manager {
	dir, err := os.MkdirTemp("", "store-test")
	assert.Nil(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	cfg := DefaultConfig()
	cfg.Dir = dir
	cfg.MaxChunkRecords = 4
	cfg.MaxFileSize = 1 << 30
	cfg.Executor = exec.Immediate{}
	cfg.GenerationPollInterval = time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	m, err := Open(cfg)
	assert.Nil(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestOpenCreatesActiveFile(t *testing.T) {
	m := testManager(t, nil)
	assert.Equal(t, 1, len(m.files))
	assert.NotNil(t, m.activeLocked())
}

func TestOpenRecoversSurvivors(t *testing.T) {
	dir, err := os.MkdirTemp("", "store-test")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	cfg := DefaultConfig()
	cfg.Dir = dir
	cfg.Executor = exec.Immediate{}
	cfg.GenerationPollInterval = time.Millisecond

	m1, err := Open(cfg)
	assert.Nil(t, err)
	assert.Nil(t, m1.Write(1, 10, []byte("hello")))
	assert.Nil(t, m1.Flush(1))
	assert.Nil(t, m1.Close())

	m2, err := Open(cfg)
	assert.Nil(t, err)
	defer m2.Close()

	payload, err := m2.Read(10)
	assert.Nil(t, err)
	assert.Equal(t, []byte("hello"), payload)
}

func TestCloseIsIdempotent(t *testing.T) {
	m := testManager(t, nil)
	assert.Nil(t, m.Close())
	assert.Nil(t, m.Close())
}
