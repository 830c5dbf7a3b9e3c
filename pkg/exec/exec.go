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

// Package exec runs file rotation and compaction work in the background
// without letting an unbounded number of them run at once (spec.md §5: "a
// background executor with a bounded work queue runs flushes and
// compactions serially per unit of work but may have multiple workers for
// independent files").
package exec

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/solarisdb/docstore/golibs/logging"
)

// Executor runs tasks asynchronously, bounding how many run concurrently,
// and can be asked to wait for everything already submitted to finish.
type Executor interface {
	Execute(task func())
	Sync()
	Close()
}

var execLogger = logging.NewLogger("exec")

// Pool is an Executor backed by a weighted semaphore: at most maxConcurrent
// tasks run at once, further submissions block the submitter until a slot
// frees up. A panicking task is recovered and logged rather than taking the
// whole pool down, since a failed compaction or flush must still let its
// sibling files make progress.
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewPool creates a Pool that runs at most maxConcurrent tasks at a time.
func NewPool(maxConcurrent int64) *Pool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Pool{sem: semaphore.NewWeighted(maxConcurrent)}
}

// Execute blocks until a slot is available, then runs task on its own
// goroutine.
func (p *Pool) Execute(task func()) {
	_ = p.sem.Acquire(context.Background(), 1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				execLogger.Errorf("background task panicked: %v", r)
			}
		}()
		task()
	}()
}

// Sync blocks until every task submitted so far has returned.
func (p *Pool) Sync() {
	p.wg.Wait()
}

// Close waits for outstanding work to drain; a Pool has no other resources
// to release.
func (p *Pool) Close() {
	p.Sync()
}

// Immediate runs every task synchronously on the caller's goroutine. It
// exists for tests that want flush/compaction side effects to be visible
// without coordinating on a real background worker.
type Immediate struct{}

func (Immediate) Execute(task func()) { task() }
func (Immediate) Sync()               {}
func (Immediate) Close()              {}
