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

package exec

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolRunsAllTasks(t *testing.T) {
	p := NewPool(2)
	var n int64
	for i := 0; i < 20; i++ {
		p.Execute(func() { atomic.AddInt64(&n, 1) })
	}
	p.Sync()
	assert.Equal(t, int64(20), n)
}

func TestPoolRecoversPanickingTask(t *testing.T) {
	p := NewPool(1)
	var ran int32
	p.Execute(func() { panic("boom") })
	p.Execute(func() { atomic.StoreInt32(&ran, 1) })
	p.Sync()
	assert.Equal(t, int32(1), ran, "a panic in one task must not stop later tasks from running")
}

func TestImmediateRunsSynchronously(t *testing.T) {
	var i Immediate
	ran := false
	i.Execute(func() { ran = true })
	assert.True(t, ran)
	i.Sync()
	i.Close()
}
