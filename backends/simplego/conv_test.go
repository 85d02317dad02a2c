// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego_test

import (
	"testing"

	. "github.com/gomlx/autograd/backends/simplego"
	"github.com/gomlx/autograd/types/shapes"
	"github.com/gomlx/autograd/types/tensors"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGemm(t *testing.T) {
	// a: 2x3, b: 3x2
	a := []float32{1, 2, 3, 4, 5, 6}
	b := []float32{1, 0, 0, 1, 1, 1}
	c := make([]float32, 4)
	Gemm(false, false, 2, 2, 3, 1, a, b, 0, c)
	require.Equal(t, []float32{4, 5, 10, 11}, c)

	// Accumulate with beta=1, using the transposed storage of a (3x2) and b (2x3).
	aT := []float32{1, 4, 2, 5, 3, 6}
	bT := []float32{1, 0, 1, 0, 1, 1}
	Gemm(true, true, 2, 2, 3, 1, aT, bT, 1, c)
	require.Equal(t, []float32{8, 10, 20, 22}, c)

	// k == 0 only scales c.
	Gemm(false, false, 2, 2, 0, 1, nil, nil, 0.5, c)
	require.Equal(t, []float32{4, 5, 10, 11}, c)

	require.Panics(t, func() { Gemm(false, false, 2, 2, 3, 1, a[:5], b, 0, c) })
}

func TestIm2ColCol2Im(t *testing.T) {
	// One channel 3x3 image, 2x2 kernel, pad 0, stride 1: 4 output positions.
	x := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}
	cols := make([]float32, 4*4)
	Im2Col(x, 1, 3, 3, 2, 2, DefaultConvParams, 2, 2, cols)
	require.Equal(t, []float32{
		1, 2, 4, 5, // tap (0,0)
		2, 3, 5, 6, // tap (0,1)
		4, 5, 7, 8, // tap (1,0)
		5, 6, 8, 9, // tap (1,1)
	}, cols)

	// With padding, out-of-bounds taps are 0.
	padded := ConvParams{Pad: 1, Stride: 2, Dilation: 1}
	require.Equal(t, 2, padded.OutputSize(3, 2))
	cols = make([]float32, 4*4)
	Im2Col(x, 1, 3, 3, 2, 2, padded, 2, 2, cols)
	require.Equal(t, []float32{
		0, 0, 0, 5,
		0, 0, 4, 6,
		0, 2, 0, 8,
		1, 3, 7, 9,
	}, cols)

	// Col2Im of all ones counts how many times each pixel is used.
	ones := make([]float32, 4*4)
	for ii := range ones {
		ones[ii] = 1
	}
	img := make([]float32, 9)
	Col2Im(ones, 1, 3, 3, 2, 2, DefaultConvParams, 2, 2, img)
	require.Equal(t, []float32{1, 2, 1, 2, 4, 2, 1, 2, 1}, img)
}

func TestConvParams(t *testing.T) {
	require.NoError(t, DefaultConvParams.Validate())
	require.Error(t, ConvParams{Pad: -1, Stride: 1, Dilation: 1}.Validate())
	require.Error(t, ConvParams{Stride: 0, Dilation: 1}.Validate())

	// Output size relation: for every configuration where the transposed size is exact, a Conv2D
	// over the transposed size gives back the original output size.
	for _, p := range []ConvParams{DefaultConvParams, {Pad: 1, Stride: 2, Dilation: 1}, {Pad: 2, Stride: 1, Dilation: 2}} {
		for yh := 1; yh < 6; yh++ {
			for kh := 1; kh < 4; kh++ {
				xh := p.TransposedSize(yh, kh)
				if xh <= 0 {
					continue
				}
				assert.Equalf(t, yh, p.OutputSize(xh, kh), "params=%s, yh=%d, kh=%d, xh=%d", p, yh, kh, xh)
			}
		}
	}
}

func TestConv2DTransposeFixture(t *testing.T) {
	w := tensors.Ones(2, 3, 2, 2)
	gy := tensors.Ones(2, 2, 2, 2)
	x := Conv2DTranspose(gy, w, DefaultConvParams)
	require.Equal(t, []int{2, 3, 3, 3}, x.Shape().Dimensions)
	want := []float32{2, 4, 2, 4, 8, 4, 2, 4, 2}
	for slice := range 2 * 3 {
		require.Equal(t, want, x.Data()[slice*9:(slice+1)*9])
	}
}

// conv2DReference is a direct (slow) implementation of the convolution.
func conv2DReference(x, w *tensors.Tensor, p ConvParams) *tensors.Tensor {
	yShape := must.M1(Conv2DShape(x.Shape(), w.Shape(), p))
	y := tensors.FromShape(yShape)
	xd, wd := x.Shape().Dimensions, w.Shape().Dimensions
	yd := yShape.Dimensions
	for b := range yd[0] {
		for o := range yd[1] {
			for oy := range yd[2] {
				for ox := range yd[3] {
					var sum float32
					for c := range xd[1] {
						for i := range wd[2] {
							for j := range wd[3] {
								iy, ix := oy*p.Stride-p.Pad+i*p.Dilation, ox*p.Stride-p.Pad+j*p.Dilation
								if iy < 0 || iy >= xd[2] || ix < 0 || ix >= xd[3] {
									continue
								}
								sum += x.Data()[((b*xd[1]+c)*xd[2]+iy)*xd[3]+ix] * w.Data()[((o*wd[1]+c)*wd[2]+i)*wd[3]+j]
							}
						}
					}
					y.Data()[((b*yd[1]+o)*yd[2]+oy)*yd[3]+ox] = sum
				}
			}
		}
	}
	return y
}

func iota(dims ...int) *tensors.Tensor {
	t := tensors.Zeros(dims...)
	for ii := range t.Data() {
		t.Data()[ii] = float32(ii%7) - 3
	}
	return t
}

func dot(a, b *tensors.Tensor) float64 {
	var sum float64
	for ii, v := range a.Data() {
		sum += float64(v) * float64(b.Data()[ii])
	}
	return sum
}

func TestConv2D(t *testing.T) {
	for _, parallelism := range []int{0, 3} {
		SetMaxParallelism(parallelism)
		for _, p := range []ConvParams{DefaultConvParams, {Pad: 1, Stride: 2, Dilation: 1}, {Pad: 1, Stride: 1, Dilation: 2}} {
			x := iota(3, 2, 6, 5)
			w := iota(4, 2, 3, 2)
			y := Conv2D(x, w, p)
			require.Truef(t, y.InDelta(conv2DReference(x, w, p), 1e-4), "params=%s", p)

			// Adjoint relations: <Conv2D(x, w), gy> == <x, Conv2DTranspose(gy, w)> == <w, FilterGrad(x, gy)>.
			gy := iota(y.Shape().Dimensions...)
			gx := Conv2DTransposeTo(gy, w, p, 6, 5)
			require.True(t, gx.Shape().Equal(x.Shape()))
			gw := Conv2DFilterGrad(x, gy, 3, 2, p)
			require.True(t, gw.Shape().Equal(w.Shape()))
			want := dot(y, gy)
			assert.InDeltaf(t, want, dot(x, gx), 1e-2, "params=%s", p)
			assert.InDeltaf(t, want, dot(w, gw), 1e-2, "params=%s", p)
		}
	}
	SetMaxParallelism(-1)
	require.Equal(t, -1, MaxParallelism())
}

func TestConv2DTransposeToLargeStride(t *testing.T) {
	// Stride larger than the kernel with padding: only x[0, 0] is seen by w[1, 1].
	p := ConvParams{Pad: 1, Stride: 3, Dilation: 1}
	x := tensors.FromAnyValue([][][][]float32{{{{1, 2}, {3, 4}}}})
	w := tensors.FromAnyValue([][][][]float32{{{{5, 6}, {7, 8}}}})
	y := Conv2D(x, w, p)
	require.Equal(t, []int{1, 1, 1, 1}, y.Shape().Dimensions)
	require.Equal(t, []float32{8}, y.Data())

	gy := tensors.FromAnyValue([][][][]float32{{{{2}}}})
	gx := Conv2DTransposeTo(gy, w, p, 2, 2)
	require.Equal(t, [][][][]float32{{{{16, 0}, {0, 0}}}}, gx.Value())
	gw := Conv2DFilterGrad(x, gy, 2, 2, p)
	require.Equal(t, [][][][]float32{{{{0, 0}, {0, 2}}}}, gw.Value())

	// Without the explicit size the transposed output would be empty.
	require.Panics(t, func() { Conv2DTranspose(gy, w, p) })
	require.Panics(t, func() { Conv2DTransposeTo(gy, w, p, 5, 5) })
}

func TestConvShapeErrors(t *testing.T) {
	_, err := Conv2DShape(shapes.Make(1, 2, 3, 3), shapes.Make(1, 3, 2, 2), DefaultConvParams)
	require.Error(t, err)
	_, err = Conv2DShape(shapes.Make(1, 2, 3), shapes.Make(1, 2, 2, 2), DefaultConvParams)
	require.Error(t, err)
	_, err = Conv2DShape(shapes.Make(1, 2, 2, 2), shapes.Make(1, 2, 3, 3), DefaultConvParams)
	require.Error(t, err)
	_, err = Conv2DTransposeShape(shapes.Make(1, 2, 3, 3), shapes.Make(3, 2, 2, 2), DefaultConvParams)
	require.Error(t, err)
	require.Panics(t, func() { Conv2D(tensors.Ones(1, 2, 3, 3), tensors.Ones(1, 3, 2, 2), DefaultConvParams) })
	require.Panics(t, func() { Conv2DFilterGrad(tensors.Ones(1, 2, 3, 3), tensors.Ones(1, 1, 3, 3), 2, 2, DefaultConvParams) })
}
