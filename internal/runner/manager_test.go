// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterClaimsSlotOnce(t *testing.T) {
	m := NewManager()

	_, ok := m.Register("wf", "run1", func() {})
	require.True(t, ok)

	_, ok = m.Register("wf", "run2", func() {})
	assert.False(t, ok)

	// a different workflow is unaffected
	_, ok = m.Register("other", "run3", func() {})
	assert.True(t, ok)

	assert.True(t, m.IsRunning("wf"))
	assert.Equal(t, []string{"other", "wf"}, m.Running())
}

func TestUnregisterIsIdempotent(t *testing.T) {
	m := NewManager()

	run, ok := m.Register("wf", "run1", func() {})
	require.True(t, ok)

	m.Unregister("wf")
	m.Unregister("wf")
	m.Unregister("never_registered")

	assert.False(t, m.IsRunning("wf"))
	select {
	case <-run.Done():
	default:
		t.Fatal("done channel should be closed after unregister")
	}

	_, ok = m.Register("wf", "run2", func() {})
	assert.True(t, ok)
}

func TestCancelSignalsLiveRun(t *testing.T) {
	m := NewManager()

	var cancelled atomic.Int32
	_, ok := m.Register("wf", "run1", func() { cancelled.Add(1) })
	require.True(t, ok)

	assert.True(t, m.Cancel("wf"))
	assert.True(t, m.Cancel("wf")) // still registered; cancel fires once
	assert.Equal(t, int32(1), cancelled.Load())

	assert.False(t, m.Cancel("absent"))
}

func TestConcurrentRegisterAdmitsExactlyOne(t *testing.T) {
	m := NewManager()

	const goroutines = 32
	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.Register("wf", "run", func() {}); ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
	assert.True(t, m.IsRunning("wf"))
}

func TestCancelPropagatesThroughContext(t *testing.T) {
	m := NewManager()

	ctx, cancel := context.WithCancel(context.Background())
	_, ok := m.Register("wf", "run1", cancel)
	require.True(t, ok)

	require.True(t, m.Cancel("wf"))
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
