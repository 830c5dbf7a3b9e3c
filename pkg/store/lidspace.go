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

import "fmt"

// CompactLidSpace drops every lid at or above newLimit from the directory
// and lowers docIdLimit to match. It does not shrink the directory's
// backing memory — call ShrinkLidSpace once it is safe to do so (spec.md
// §4.4 operations table).
func (m *Manager) CompactLidSpace(newLimit uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if newLimit > m.dir.DocIDLimit() {
		return fmt.Errorf("store: compact_lid_space: newLimit %d exceeds docIdLimit %d: %w", newLimit, m.dir.DocIDLimit(), ErrInvalidArgument)
	}
	m.dir.CompactLidSpace(newLimit)
	m.shrinkPending = true
	return nil
}

// ShrinkLidSpace releases the directory memory a prior CompactLidSpace call
// left behind, once no reader can still be mid-lookup against the larger
// array (spec.md §4.4 operations table: "if safe, shrinks directory
// capacity"). It is a no-op if CompactLidSpace was never called.
func (m *Manager) ShrinkLidSpace() {
	m.mu.Lock()
	if !m.shrinkPending {
		m.mu.Unlock()
		return
	}
	m.shrinkPending = false
	superseded := m.gen.IncGeneration()
	m.mu.Unlock()

	m.gen.WaitForGeneration(superseded, m.cfg.GenerationPollInterval)
	m.dir.ShrinkCapacity()
}
