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
	"fmt"

	"github.com/solarisdb/docstore/golibs/errors"
)

var (
	// ErrDisabled is returned by Write/Remove when the manager was opened
	// read-only.
	ErrDisabled = fmt.Errorf("store is read-only: %w", errors.ErrClosed)
	// ErrInvalidState is returned by WriteDirect against a file that is not
	// the manager's current compaction destination, and when the active file
	// would be erased.
	ErrInvalidState = fmt.Errorf("invalid state: %w", errors.ErrConflict)
	// ErrInvalidArgument covers bad caller input (lid too large, newLimit
	// above docIdLimit, and similar).
	ErrInvalidArgument = fmt.Errorf("invalid argument: %w", errors.ErrInvalid)
	// ErrBusy is surfaced when the tlog sync collaborator reports it cannot
	// take more work right now.
	ErrBusy = fmt.Errorf("busy: %w", errors.ErrExhausted)
)
