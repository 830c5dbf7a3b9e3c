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

// Package bucketize groups lids by an externally supplied bucket key so the
// compactor can rewrite a file with records clustered by bucket instead of
// by write order (spec.md §4.5 StoreByBucket). A store that has no notion of
// buckets simply never configures a Bucketizer and compaction falls back to
// a plain rewrite.
package bucketize

import (
	"math/bits"

	"github.com/solarisdb/docstore/golibs/logging"
	"github.com/solarisdb/docstore/pkg/genguard"
	"github.com/solarisdb/docstore/pkg/lidtable"
)

// Bucketizer maps a lid to the key of the bucket it belongs to. GetGuard
// pins whatever generation of the bucketizer's own mapping the caller is
// about to read; the caller must release it once done, exactly like a
// genguard.Guard.
type Bucketizer interface {
	GetGuard() *genguard.Guard
	GetBucketOf(guard *genguard.Guard, lid uint32) uint64
}

var bucketizeLogger = logging.NewLogger("bucketize")

// SignificantBits scans every lid in dir currently resident in fileID and
// returns how many of the low bits of a bucket key are actually needed to
// tell the buckets present in that file apart: one plus the index of the
// highest bit set across all of them. A file holding only bucket key 0
// needs 0 bits; the compactor takes that as "don't bother bucketizing this
// file, one destination is enough."
func SignificantBits(dir *lidtable.Directory, fileID int, bucketizer Bucketizer, lidGuard *genguard.Guard) int {
	var histogram [65]int // bits.Len64 returns 0..64 inclusive
	bg := bucketizer.GetGuard()
	defer bg.Release()

	docIDLimit := dir.DocIDLimit()
	for lid := uint32(0); lid < docIDLimit; lid++ {
		e := dir.Get(lid)
		if !e.Valid() || e.FileID() != fileID {
			continue
		}
		key := bucketizer.GetBucketOf(bg, lid)
		histogram[bits.Len64(key)]++
	}

	msb := 0
	for i, count := range histogram {
		if count > 0 {
			msb = i
		}
	}
	bucketizeLogger.Debugf("significant bits for file %d: %d", fileID, msb)
	return msb
}

// BucketOfMask returns the low nBits of key, the grouping compaction uses to
// decide which destination chunk a record belonging to key should land in.
func BucketOfMask(key uint64, nBits int) uint64 {
	if nBits <= 0 {
		return 0
	}
	if nBits >= 64 {
		return key
	}
	return key & (uint64(1)<<uint(nBits) - 1)
}
