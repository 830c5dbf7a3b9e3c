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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/solarisdb/docstore/golibs/logging"
)

var scanLogger = logging.NewLogger("chunkfile.Scan")

// CompactingMarkerPath names the sentinel the compactor creates before it
// starts rewriting sourceNameID and removes once the destination has been
// frozen, just before the source is unlinked. Its survival across a crash is how Scan recognizes an
// interrupted compaction: the compactor always picks the destination's
// nameId as sourceNameID+1 when it allocates a new file slot for
// compaction (spec.md §4.5), a choice normal rotation never makes since
// rotation always seeds a new nameId from the current timestamp.
func CompactingMarkerPath(dir string, sourceNameID uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%020d.compacting", sourceNameID))
}

// Scan inspects dir, deletes dangling and stale chunk files, and returns the
// nameIds of the chunk-file pairs that survive, in creation order.
func Scan(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	hasDat := map[uint64]bool{}
	hasIdx := map[uint64]bool{}
	markers := map[uint64]bool{}
	for _, de := range entries {
		name := de.Name()
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		nameID, perr := strconv.ParseUint(stem, 10, 64)
		if perr != nil {
			continue
		}
		switch ext {
		case ".dat":
			hasDat[nameID] = true
		case ".idx":
			hasIdx[nameID] = true
		case ".compacting":
			markers[nameID] = true
		}
	}

	for sourceID := range markers {
		scanLogger.Warnf("found interrupted-compaction marker for %d, deleting source and destination", sourceID)
		deletePair(dir, sourceID, hasDat, hasIdx)
		deletePair(dir, sourceID+1, hasDat, hasIdx)
		os.Remove(CompactingMarkerPath(dir, sourceID))
	}

	for nameID := range hasDat {
		if !hasIdx[nameID] {
			scanLogger.Warnf("orphan .dat %d with no .idx, deleting", nameID)
			os.Remove(DatPath(dir, nameID))
			delete(hasDat, nameID)
		}
	}
	for nameID := range hasIdx {
		if !hasDat[nameID] {
			scanLogger.Warnf("orphan .idx %d with no .dat, deleting", nameID)
			os.Remove(IdxPath(dir, nameID))
			delete(hasIdx, nameID)
		}
	}

	var survivors []uint64
	for nameID := range hasDat {
		if !hasIdx[nameID] {
			continue
		}
		empty, eerr := isIdxEmpty(IdxPath(dir, nameID))
		if eerr != nil {
			return nil, eerr
		}
		if empty {
			scanLogger.Infof("empty .idx %d, deleting pair", nameID)
			deletePair(dir, nameID, hasDat, hasIdx)
			continue
		}
		survivors = append(survivors, nameID)
	}
	sort.Slice(survivors, func(i, j int) bool { return survivors[i] < survivors[j] })
	return survivors, nil
}

func deletePair(dir string, nameID uint64, hasDat, hasIdx map[uint64]bool) {
	if hasDat[nameID] {
		os.Remove(DatPath(dir, nameID))
		delete(hasDat, nameID)
	}
	if hasIdx[nameID] {
		os.Remove(IdxPath(dir, nameID))
		delete(hasIdx, nameID)
	}
}

func isIdxEmpty(path string) (bool, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	_, hdrLen, err := decodeHeader(true, buf)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	return len(buf) == hdrLen, nil
}
