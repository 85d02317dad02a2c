// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMaxParallelism(t *testing.T) {
	for value, want := range map[string]int{"0": 0, "-1": -1, "12": 12} {
		got, err := ParseMaxParallelism(value)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMaxParallelism("many")
	require.Error(t, err)
	_, err = ParseMaxParallelism("-2")
	require.Error(t, err)
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv(MaxParallelismEnv, "3")
	require.Equal(t, 3, New().MaxParallelism())
	t.Setenv(MaxParallelismEnv, "0")
	require.Equal(t, 0, New().MaxParallelism())
	t.Setenv(MaxParallelismEnv, "-1")
	require.Equal(t, -1, New().MaxParallelism())
	t.Setenv(MaxParallelismEnv, "bogus")
	require.True(t, New().MaxParallelism() > 0)
}

func TestParallelFor(t *testing.T) {
	for _, parallelism := range []int{0, 1, 3, -1} {
		pool := New()
		pool.SetMaxParallelism(parallelism)
		const n = 1000
		counts := make([]int, n)
		var total atomic.Int64
		pool.ParallelFor(n, func(i int) {
			counts[i]++
			total.Add(int64(i))
		})
		for i, c := range counts {
			require.Equalf(t, 1, c, "parallelism=%d, index %d called %d times", parallelism, i, c)
		}
		require.Equal(t, int64(n*(n-1)/2), total.Load())
	}
}

func TestParallelForNested(t *testing.T) {
	pool := New()
	pool.SetMaxParallelism(2)
	var count atomic.Int32
	done := make(chan struct{})
	go func() {
		pool.ParallelFor(4, func(int) {
			pool.ParallelFor(4, func(int) { count.Add(1) })
		})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("nested ParallelFor deadlocked")
	}
	require.Equal(t, int32(16), count.Load())
}

func TestParallelForPanic(t *testing.T) {
	pool := New()
	pool.SetMaxParallelism(4)
	require.PanicsWithValue(t, "boom", func() {
		pool.ParallelFor(8, func(i int) {
			if i == 7 {
				panic("boom")
			}
		})
	})
	// Pool is still usable: all workers were released.
	var count atomic.Int32
	pool.ParallelFor(8, func(int) { count.Add(1) })
	require.Equal(t, int32(8), count.Load())
}

func TestStartIfAvailable(t *testing.T) {
	pool := New()
	pool.SetMaxParallelism(2)
	release := make(chan struct{})
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		require.True(t, pool.StartIfAvailable(func() {
			defer wg.Done()
			<-release
		}))
	}
	// Both workers are busy.
	require.False(t, pool.StartIfAvailable(func() {}))
	close(release)
	wg.Wait()

	// Workers are released asynchronously after the task returns.
	require.Eventually(t, func() bool { return pool.StartIfAvailable(func() {}) }, time.Second, time.Millisecond)

	pool.SetMaxParallelism(0)
	require.False(t, pool.StartIfAvailable(func() {}))
}
