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

	"github.com/solarisdb/docstore/golibs/errors"
)

var (
	// ErrShortRead is returned when a .dat or .idx file ends before the
	// format it declares says it should, outside a recognized zero-padded
	// tail sentinel.
	ErrShortRead = fmt.Errorf("short read: %w", errors.ErrDataLoss)
	// ErrUnknownFormat is returned for an unrecognized header magic or
	// version.
	ErrUnknownFormat = fmt.Errorf("unknown file format: %w", errors.ErrInvalid)
	// ErrNotActive is returned when an append-only operation is attempted
	// against a frozen file.
	ErrNotActive = fmt.Errorf("file is not active: %w", errors.ErrConflict)
)

// OffsetError wraps an I/O failure with the last-known-good offset the
// writer rewound to, per spec.md §4.2 failure semantics.
type OffsetError struct {
	Op     string
	Offset int64
	Err    error
}

func (e *OffsetError) Error() string {
	return fmt.Sprintf("%s at offset %d: %v", e.Op, e.Offset, e.Err)
}

func (e *OffsetError) Unwrap() error { return e.Err }

// ioError wraps a syscall-level failure as errors.ErrInternal carrying the
// last-known-good offset, mirroring the teacher's EmbedObject pattern for
// attaching structured context to a generic sentinel.
func ioError(op string, offset int64, err error) error {
	wrapped := fmt.Errorf("%s: %w", op, errors.ErrInternal)
	wrapped = errors.EmbedObject(struct {
		Offset int64 `json:"offset"`
	}{Offset: offset}, wrapped)
	return &OffsetError{Op: op, Offset: offset, Err: wrapped}
}
