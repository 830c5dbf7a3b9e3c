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

package genguard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTakeRelease(t *testing.T) {
	h := NewHandler()
	g := h.Take()
	assert.Equal(t, uint64(0), g.generation)
	g.Release()
}

func TestDoubleReleasePanics(t *testing.T) {
	h := NewHandler()
	g := h.Take()
	g.Release()
	assert.Panics(t, func() { g.Release() })
}

func TestIncGeneration(t *testing.T) {
	h := NewHandler()
	prev := h.IncGeneration()
	assert.Equal(t, uint64(0), prev)
	assert.Equal(t, uint64(1), h.Generation())

	prev = h.IncGeneration()
	assert.Equal(t, uint64(1), prev)
	assert.Equal(t, uint64(2), h.Generation())
}

func TestWaitForGenerationReturnsImmediatelyWhenNoHolders(t *testing.T) {
	h := NewHandler()
	h.IncGeneration()
	done := make(chan struct{})
	go func() {
		h.WaitForGeneration(0, time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForGeneration did not return with no holders")
	}
}

func TestWaitForGenerationBlocksUntilReleased(t *testing.T) {
	h := NewHandler()
	g := h.Take()
	superseded := h.IncGeneration()

	done := make(chan struct{})
	go func() {
		h.WaitForGeneration(superseded, 5*time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitForGeneration returned before the guard was released")
	case <-time.After(30 * time.Millisecond):
	}

	g.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForGeneration did not return after the guard was released")
	}
}

func TestWaitForGenerationIgnoresLaterGenerationHolders(t *testing.T) {
	h := NewHandler()
	superseded := h.IncGeneration()
	// holder at the current (post-increment) generation must not block a
	// wait for the superseded one.
	g := h.Take()
	defer g.Release()

	done := make(chan struct{})
	go func() {
		h.WaitForGeneration(superseded, time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForGeneration blocked on a holder from a newer generation")
	}
}
