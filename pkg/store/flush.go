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
	"time"

	"github.com/solarisdb/docstore/pkg/chunkfile"
)

// finishRotation runs off the write path once a file has been replaced as
// active: flush its .dat, sync the transaction log up to its highest
// serial, commit and fsync its .idx, then freeze it (spec.md §4.4 step 5).
func (m *Manager) finishRotation(closing *chunkfile.File) {
	maxSerial, err := closing.FlushForRotation(func(serial uint64) error {
		return m.cfg.TLog.SyncToSerial(context.Background(), serial)
	})
	if err != nil {
		m.logger.Errorf("rotation flush of file %d failed, leaving it unfrozen: %v", closing.NameID(), err)
		return
	}

	m.mu.Lock()
	if maxSerial > m.lastFlushed {
		m.lastFlushed = maxSerial
	}
	m.mu.Unlock()

	if err := closing.Freeze(); err != nil {
		m.logger.Errorf("freezing rotated file %d failed: %v", closing.NameID(), err)
	}
}

// InitFlush is the non-blocking half of the two-step flush protocol: it
// returns a token at least as large as syncToken that a later Flush call
// can wait for, without itself blocking (spec.md §4.4 operations table).
func (m *Manager) InitFlush(syncToken uint64) uint64 {
	m.mu.Lock()
	active := m.activeLocked()
	m.mu.Unlock()

	m.cfg.Executor.Execute(func() {
		if _, err := active.Flush(); err != nil {
			m.logger.Errorf("init_flush: flushing active file %d failed: %v", active.NameID(), err)
		}
	})

	target := active.LastPersistedSerial()
	if target < syncToken {
		target = syncToken
	}
	return target
}

// Flush blocks until every record with serial <= syncToken is fsynced,
// across every file, then returns. It is the blocking counterpart to
// InitFlush (spec.md §4.4 operations table).
func (m *Manager) Flush(syncToken uint64) error {
	m.cfg.Executor.Sync()

	for {
		m.mu.Lock()
		if m.lastFlushed >= syncToken {
			m.mu.Unlock()
			return nil
		}
		active := m.activeLocked()
		m.mu.Unlock()

		maxSerial, err := active.Flush()
		if err != nil {
			return err
		}
		m.mu.Lock()
		if maxSerial > m.lastFlushed {
			m.lastFlushed = maxSerial
		}
		done := m.lastFlushed >= syncToken
		m.mu.Unlock()
		if done {
			return nil
		}
		time.Sleep(m.cfg.GenerationPollInterval)
	}
}
