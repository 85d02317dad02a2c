// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"github.com/gomlx/exceptions"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Gemm computes c = alpha * op(a) · op(b) + beta * c, where op(a) is m×k, op(b) is k×n and c is m×n,
// all in row-major order.
//
// If transA is true, a is stored as k×m and op(a) is its transpose. Likewise for transB, with b stored as n×k.
func Gemm(transA, transB bool, m, n, k int, alpha float32, a, b []float32, beta float32, c []float32) {
	if len(a) < m*k || len(b) < k*n || len(c) < m*n {
		exceptions.Panicf("simplego.Gemm(m=%d, n=%d, k=%d): buffers too small (len(a)=%d, len(b)=%d, len(c)=%d)",
			m, n, k, len(a), len(b), len(c))
	}
	if m == 0 || n == 0 {
		return
	}
	if k == 0 {
		scale(c[:m*n], beta)
		return
	}
	tA, tB := blas.NoTrans, blas.NoTrans
	matA := blas32.General{Rows: m, Cols: k, Stride: k, Data: a}
	if transA {
		tA = blas.Trans
		matA = blas32.General{Rows: k, Cols: m, Stride: m, Data: a}
	}
	matB := blas32.General{Rows: k, Cols: n, Stride: n, Data: b}
	if transB {
		tB = blas.Trans
		matB = blas32.General{Rows: n, Cols: k, Stride: k, Data: b}
	}
	matC := blas32.General{Rows: m, Cols: n, Stride: n, Data: c}
	blas32.Gemm(tA, tB, alpha, matA, matB, beta, matC)
}

func scale(values []float32, beta float32) {
	if beta == 1 {
		return
	}
	for ii := range values {
		if beta == 0 {
			values[ii] = 0
		} else {
			values[ii] *= beta
		}
	}
}
