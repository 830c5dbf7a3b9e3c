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

// Package tlog narrows the store's only dependency on the external
// transaction log down to the single call rotation actually needs: a
// confirmation that every record up to some serial is durable there too. The
// transaction log itself is out of scope; this package exists so the store
// never imports it directly.
package tlog

import "context"

// Syncer is asked to guarantee serial is durable in the transaction log
// before the store fsyncs the .idx of a file it just rotated out
// (spec.md §5 ordering guarantees). An error from SyncToSerial is returned
// from a compaction round; during background rotation it is logged and the
// rotated file is left unfrozen.
type Syncer interface {
	SyncToSerial(ctx context.Context, serial uint64) error
}

// Noop never blocks and always reports serial as already synced. Useful for
// standalone tests and for a store instance run without an external log.
type Noop struct{}

func (Noop) SyncToSerial(context.Context, uint64) error { return nil }
