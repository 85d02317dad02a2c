// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package simplego implements the performance sensitive float32 kernels used by the graph ops:
// matrix multiplication (sgemm), im2col/col2im and the 2D convolution family.
//
// Kernels are pure Go (gonum's blas32 for sgemm) and split the batch axis across the package's
// worker pool. Parallelism defaults to runtime.NumCPU(), and can be configured with the environment
// variable AUTOGRAD_MAX_PARALLELISM or SetMaxParallelism.
package simplego

import (
	"github.com/gomlx/autograd/internal/workerspool"
)

// pool used by all kernels of this package.
var pool = workerspool.New()

// SetMaxParallelism sets the maximum number of goroutines used concurrently by one kernel.
// 0 disables parallelism, -1 makes it unlimited.
func SetMaxParallelism(n int) {
	pool.SetMaxParallelism(n)
}

// MaxParallelism returns the current parallelism limit, see SetMaxParallelism.
func MaxParallelism() int {
	return pool.MaxParallelism()
}
