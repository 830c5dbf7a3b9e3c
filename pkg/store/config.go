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
	"time"

	"github.com/solarisdb/docstore/pkg/bucketize"
	"github.com/solarisdb/docstore/pkg/chunkcodec"
	"github.com/solarisdb/docstore/pkg/exec"
	"github.com/solarisdb/docstore/pkg/tlog"
)

// Config carries every knob the manager derives its behavior from. Zero
// value is not usable; call DefaultConfig and override what the caller
// cares about.
type Config struct {
	// Dir is where chunk-file pairs live.
	Dir string

	// MaxFileSize triggers rotation of the active file once its on-disk
	// footprint exceeds it (spec.md §4.4 write path step 5).
	MaxFileSize int64
	// MaxChunkBytes and MaxChunkRecords bound how large an in-memory chunk
	// grows before it is closed for write-out (spec.md §6).
	MaxChunkBytes   int
	MaxChunkRecords int
	// SkipCRCOnRead disables checksum verification on the read path, for
	// throughput-sensitive deployments that trust their storage layer.
	SkipCRCOnRead bool
	// Codec picks the checksum algorithm and compression for newly written
	// chunks; re-evaluated per chunk.
	Codec chunkcodec.CRCAlgo
	// Compression is paired with Codec for the same reason.
	Compression chunkcodec.Compression
	// Creator identifies this process in every file header it writes.
	Creator string
	// AllowTruncate converts a short/corrupt tail found at startup into a
	// truncation instead of a fatal recovery error (spec.md open question).
	AllowTruncate bool

	// MaxDiskBloatFactor, MaxBucketSpread, GlobalBloatThreshold drive which
	// file compaction picks (spec.md §4.5 trigger).
	MaxDiskBloatFactor   float64
	MaxBucketSpread      float64
	GlobalBloatThreshold float64
	// CompactToActiveFile and MinFileSizeFactor drive where compaction
	// writes live data (spec.md §4.5 destination selection).
	CompactToActiveFile bool
	MinFileSizeFactor   float64

	// Bucketizer is the optional collaborator that lets compaction cluster
	// output by bucket (spec.md §4.6). Nil disables bucket clustering.
	Bucketizer bucketize.Bucketizer

	// TLog is the transaction-log sync-to-serial collaborator consulted
	// during rotation (spec.md §4.4).
	TLog tlog.Syncer
	// Executor runs rotation/flush/compaction work off the write path.
	Executor exec.Executor

	// ReadOnly rejects Write/Remove with ErrDisabled.
	ReadOnly bool
	// GenerationPollInterval is how often a generation wait re-checks hold
	// counts (spec.md open question: fixed-interval poll, not a condvar).
	GenerationPollInterval time.Duration
}

// DefaultConfig returns reasonable defaults; callers must still set Dir.
func DefaultConfig() Config {
	return Config{
		MaxFileSize:            256 << 20,
		MaxChunkBytes:          1 << 20,
		MaxChunkRecords:        1024,
		Codec:                  chunkcodec.XXH64,
		Compression:            chunkcodec.CompressionNone,
		Creator:                "docstore",
		MaxDiskBloatFactor:     0.3,
		MaxBucketSpread:        2.0,
		GlobalBloatThreshold:   0.2,
		MinFileSizeFactor:      0.25,
		TLog:                   tlog.Noop{},
		Executor:               exec.NewPool(4),
		GenerationPollInterval: time.Second,
	}
}
