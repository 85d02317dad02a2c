// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool implements the fork-join pool used by the numeric kernels to split work
// (usually the batch axis) across goroutines.
//
// Graph building and evaluation are single-threaded: only the inside of one kernel runs in parallel,
// and ParallelFor only returns once every worker finished.
package workerspool

import (
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// MaxParallelismEnv is the environment variable read by New to configure the default parallelism.
// Set it to 0 to disable parallelism, -1 for unlimited parallelism.
const MaxParallelismEnv = "AUTOGRAD_MAX_PARALLELISM"

// Pool of workers: it limits the number of goroutines concurrently running kernel work.
type Pool struct {
	// maxParallelism is the limit of concurrently running tasks.
	// 0 means tasks run inline, < 0 means unlimited.
	maxParallelism int
	mu             sync.Mutex
	numRunning     int
}

// New returns a new Pool of workers with the default parallelism: the value of MaxParallelismEnv
// if set and valid, otherwise runtime.NumCPU().
func New() *Pool {
	w := &Pool{maxParallelism: runtime.NumCPU()}
	if value, found := os.LookupEnv(MaxParallelismEnv); found {
		n, err := ParseMaxParallelism(value)
		if err != nil {
			klog.Warningf("ignoring $%s: %v", MaxParallelismEnv, err)
		} else {
			w.maxParallelism = n
		}
	}
	return w
}

// ParseMaxParallelism parses the value of MaxParallelismEnv.
func ParseMaxParallelism(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid max parallelism %q", value)
	}
	if n < -1 {
		return 0, errors.Errorf("invalid max parallelism %d: use -1 for unlimited, 0 to disable", n)
	}
	return n, nil
}

// MaxParallelism is the limit of concurrently running tasks.
// If set to 0 parallelism is disabled.
// If set to -1 parallelism is unlimited.
func (w *Pool) MaxParallelism() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maxParallelism
}

// SetMaxParallelism sets the maxParallelism. Tasks already running are not affected.
func (w *Pool) SetMaxParallelism(maxParallelism int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.maxParallelism = maxParallelism
}

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with Pool.mu acquired.
func (w *Pool) lockedIsFull() bool {
	if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= w.maxParallelism
}

// lockedRunTaskInGoroutine and keep tabs on w.numRunning.
//
// It must be called with Pool.mu acquired.
func (w *Pool) lockedRunTaskInGoroutine(task func()) {
	w.numRunning++
	go func() {
		defer func() {
			w.mu.Lock()
			w.numRunning--
			w.mu.Unlock()
		}()
		task()
	}()
}

// StartIfAvailable runs the task in a separate goroutine, if there are enough workers left.
// It returns true if it found workers to run the function, false otherwise.
//
// It's up to the client to synchronize the end of the function execution.
func (w *Pool) StartIfAvailable(task func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.maxParallelism == 0 || w.lockedIsFull() {
		return false
	}
	w.lockedRunTaskInGoroutine(task)
	return true
}

// ParallelFor calls fn(i) for every i in [0, n), splitting the range in contiguous chunks run by
// different workers, and returns only after all calls finished.
//
// The calling goroutine always runs a chunk itself, so ParallelFor never deadlocks waiting for workers,
// even if called from within a worker. Different values of i may run concurrently: fn must only write
// to memory owned by i.
//
// A panic in any call to fn is re-raised in the calling goroutine after all workers finish.
func (w *Pool) ParallelFor(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	numChunks := n
	if maxParallelism := w.MaxParallelism(); maxParallelism >= 0 {
		numChunks = min(n, maxParallelism+1)
	}
	if numChunks <= 1 {
		for i := range n {
			fn(i)
		}
		return
	}

	var wg sync.WaitGroup
	var panicMu sync.Mutex
	var firstPanic any
	runChunk := func(chunk int) {
		defer func() {
			if r := recover(); r != nil {
				panicMu.Lock()
				if firstPanic == nil {
					firstPanic = r
				}
				panicMu.Unlock()
			}
		}()
		start, end := chunk*n/numChunks, (chunk+1)*n/numChunks
		for i := start; i < end; i++ {
			fn(i)
		}
	}
	var inline []int
	for chunk := 1; chunk < numChunks; chunk++ {
		wg.Add(1)
		started := w.StartIfAvailable(func() {
			defer wg.Done()
			runChunk(chunk)
		})
		if !started {
			wg.Done()
			inline = append(inline, chunk)
		}
	}
	runChunk(0)
	for _, chunk := range inline {
		runChunk(chunk)
	}
	wg.Wait()
	if firstPanic != nil {
		panic(firstPanic)
	}
}
