// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"fmt"

	"github.com/gomlx/autograd/types/shapes"
	"github.com/gomlx/autograd/types/tensors"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// ConvParams configures the 2D convolution family. The same values apply to both spatial axes.
type ConvParams struct {
	// Pad is the number of implicit zeros added on each side of the image.
	Pad int

	// Stride between consecutive kernel applications. Must be >= 1.
	Stride int

	// Dilation of the kernel, aka. atrous convolution: distance between kernel taps. Must be >= 1.
	Dilation int
}

// DefaultConvParams has no padding, stride 1 and dilation 1.
var DefaultConvParams = ConvParams{Pad: 0, Stride: 1, Dilation: 1}

// String implements fmt.Stringer.
func (p ConvParams) String() string {
	return fmt.Sprintf("pad=%d, stride=%d, dilation=%d", p.Pad, p.Stride, p.Dilation)
}

// Validate returns an error if any of the parameters is out of range.
func (p ConvParams) Validate() error {
	if p.Pad < 0 || p.Stride < 1 || p.Dilation < 1 {
		return errors.Errorf("invalid convolution parameters (%s): pad must be >= 0, stride and dilation >= 1", p)
	}
	return nil
}

// OutputSize returns the output spatial size of a convolution over an input of size `in` with a kernel of size k.
// It may be <= 0 if the dilated kernel doesn't fit the padded input.
func (p ConvParams) OutputSize(in, k int) int {
	span := p.Dilation*(k-1) + 1
	if in+2*p.Pad < span {
		return 0
	}
	return (in+2*p.Pad-span)/p.Stride + 1
}

// TransposedSize returns the spatial size produced by a transposed convolution of an input of size `out`
// with a kernel of size k: (out-1)*stride - 2*pad + dilation*(k-1) + 1.
func (p ConvParams) TransposedSize(out, k int) int {
	return (out-1)*p.Stride - 2*p.Pad + p.Dilation*(k-1) + 1
}

// Conv2DShape returns the output shape of Conv2D(x, w), with x shaped (batch, xch, xh, xw) and w shaped
// (ych, xch, kh, kw).
func Conv2DShape(x, w shapes.Shape, params ConvParams) (shapes.Shape, error) {
	if err := params.Validate(); err != nil {
		return shapes.Shape{}, err
	}
	if x.Rank() != 4 || w.Rank() != 4 {
		return shapes.Shape{}, errors.Errorf("Conv2D requires input and filters of rank 4, got input %s and filters %s", x, w)
	}
	if x.Dimensions[1] != w.Dimensions[1] {
		return shapes.Shape{}, errors.Errorf("Conv2D: input %s has %d channels, but filters %s expect %d",
			x, x.Dimensions[1], w, w.Dimensions[1])
	}
	yh, yw := params.OutputSize(x.Dimensions[2], w.Dimensions[2]), params.OutputSize(x.Dimensions[3], w.Dimensions[3])
	if yh <= 0 || yw <= 0 {
		return shapes.Shape{}, errors.Errorf("Conv2D: filters %s with %s don't fit input %s", w, params, x)
	}
	return shapes.Make(x.Dimensions[0], w.Dimensions[0], yh, yw), nil
}

// Conv2DTransposeShape returns the output shape of Conv2DTranspose(gy, w), with gy shaped (batch, ych, yh, yw)
// and w shaped (ych, xch, kh, kw).
func Conv2DTransposeShape(gy, w shapes.Shape, params ConvParams) (shapes.Shape, error) {
	if err := checkConv2DTransposeOperands(gy, w, params); err != nil {
		return shapes.Shape{}, err
	}
	xh := params.TransposedSize(gy.Dimensions[2], w.Dimensions[2])
	xw := params.TransposedSize(gy.Dimensions[3], w.Dimensions[3])
	if xh <= 0 || xw <= 0 {
		return shapes.Shape{}, errors.Errorf("Conv2DTranspose: input %s with filters %s and %s yields an empty output (%d, %d)",
			gy, w, params, xh, xw)
	}
	return shapes.Make(gy.Dimensions[0], w.Dimensions[1], xh, xw), nil
}

func checkConv2DTransposeOperands(gy, w shapes.Shape, params ConvParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if gy.Rank() != 4 || w.Rank() != 4 {
		return errors.Errorf("Conv2DTranspose requires input and filters of rank 4, got input %s and filters %s", gy, w)
	}
	if gy.Dimensions[1] != w.Dimensions[0] {
		return errors.Errorf("Conv2DTranspose: input %s has %d channels, but filters %s have %d output channels",
			gy, gy.Dimensions[1], w, w.Dimensions[0])
	}
	return nil
}

func mustShape(shape shapes.Shape, err error) shapes.Shape {
	if err != nil {
		panic(err)
	}
	return shape
}

// Conv2D computes the 2D convolution of x (batch, xch, xh, xw) with filters w (ych, xch, kh, kw),
// returning (batch, ych, yh, yw).
//
// Each batch element is unfolded with Im2Col into its own column buffer and multiplied by w, in parallel.
func Conv2D(x, w *tensors.Tensor, params ConvParams) *tensors.Tensor {
	yShape := mustShape(Conv2DShape(x.Shape(), w.Shape(), params))
	batch, xch, xh, xw := x.Shape().Dimensions[0], x.Shape().Dimensions[1], x.Shape().Dimensions[2], x.Shape().Dimensions[3]
	ych, kh, kw := w.Shape().Dimensions[0], w.Shape().Dimensions[2], w.Shape().Dimensions[3]
	yh, yw := yShape.Dimensions[2], yShape.Dimensions[3]

	y := tensors.FromShape(yShape)
	colRows, colCols := xch*kh*kw, yh*yw
	colSize := colRows * colCols
	cols := make([]float32, batch*colSize)
	xData, wData, yData := x.Data(), w.Data(), y.Data()
	xSize, ySize := xch*xh*xw, ych*yh*yw
	pool.ParallelFor(batch, func(b int) {
		col := cols[b*colSize : (b+1)*colSize]
		Im2Col(xData[b*xSize:(b+1)*xSize], xch, xh, xw, kh, kw, params, yh, yw, col)
		Gemm(false, false, ych, colCols, colRows, 1, wData, col, 0, yData[b*ySize:(b+1)*ySize])
	})
	return y
}

// Conv2DTranspose computes the transposed 2D convolution (the gradient of Conv2D with respect to its input)
// of gy (batch, ych, yh, yw) with filters w (ych, xch, kh, kw), returning (batch, xch, xh, xw), where
// xh = (yh-1)*stride - 2*pad + dilation*(kh-1) + 1 (and likewise for xw).
//
// Each batch element computes wᵀ·gy into its own column buffer, folded back with Col2Im, in parallel.
func Conv2DTranspose(gy, w *tensors.Tensor, params ConvParams) *tensors.Tensor {
	xShape := mustShape(Conv2DTransposeShape(gy.Shape(), w.Shape(), params))
	return conv2DTranspose(gy, w, params, xShape)
}

// Conv2DTransposeTo is like Conv2DTranspose, but produces the given spatial output size (xh, xw).
//
// With stride > 1 several input sizes map to the same convolution output size: this selects the one
// of the original Conv2D input, the extra trailing rows and columns get zero gradient. The size is
// used even where the Conv2DTranspose formula gives an empty output (stride larger than the kernel).
// It panics if a Conv2D over (xh, xw) would not produce gy's spatial size.
func Conv2DTransposeTo(gy, w *tensors.Tensor, params ConvParams, xh, xw int) *tensors.Tensor {
	if err := checkConv2DTransposeOperands(gy.Shape(), w.Shape(), params); err != nil {
		panic(err)
	}
	yh, yw := gy.Shape().Dimensions[2], gy.Shape().Dimensions[3]
	kh, kw := w.Shape().Dimensions[2], w.Shape().Dimensions[3]
	if params.OutputSize(xh, kh) != yh || params.OutputSize(xw, kw) != yw {
		exceptions.Panicf("Conv2DTransposeTo: output size (%d, %d) is not compatible with input %s, filters %s and %s",
			xh, xw, gy.Shape(), w.Shape(), params)
	}
	xShape := shapes.Make(gy.Shape().Dimensions[0], w.Shape().Dimensions[1], xh, xw)
	return conv2DTranspose(gy, w, params, xShape)
}

func conv2DTranspose(gy, w *tensors.Tensor, params ConvParams, xShape shapes.Shape) *tensors.Tensor {
	batch, ych, yh, yw := gy.Shape().Dimensions[0], gy.Shape().Dimensions[1], gy.Shape().Dimensions[2], gy.Shape().Dimensions[3]
	xch, kh, kw := w.Shape().Dimensions[1], w.Shape().Dimensions[2], w.Shape().Dimensions[3]
	xh, xw := xShape.Dimensions[2], xShape.Dimensions[3]

	x := tensors.FromShape(xShape)
	colRows, colCols := xch*kh*kw, yh*yw
	colSize := colRows * colCols
	cols := make([]float32, batch*colSize)
	gyData, wData, xData := gy.Data(), w.Data(), x.Data()
	xSize, ySize := xch*xh*xw, ych*yh*yw
	pool.ParallelFor(batch, func(b int) {
		col := cols[b*colSize : (b+1)*colSize]
		Gemm(true, false, colRows, colCols, ych, 1, wData, gyData[b*ySize:(b+1)*ySize], 0, col)
		Col2Im(col, xch, xh, xw, kh, kw, params, yh, yw, xData[b*xSize:(b+1)*xSize])
	})
	return x
}

// Conv2DFilterGrad computes the gradient of the filters of a convolution, shaped (ych, xch, kh, kw):
//
//	gw = Σ_batch small[b] · Im2Col(big[b])ᵀ
//
// where big (batch, xch, xh, xw) is the spatially larger operand and small (batch, ych, yh, yw) the smaller one.
// For Conv2D(x, w) big is x and small is the output gradient. For Conv2DTranspose(gy, w) big is the output
// gradient and small is gy.
//
// The Im2Col of each batch element runs in parallel, the accumulation over the batch is sequential.
func Conv2DFilterGrad(big, small *tensors.Tensor, kh, kw int, params ConvParams) *tensors.Tensor {
	if err := params.Validate(); err != nil {
		panic(err)
	}
	if big.Rank() != 4 || small.Rank() != 4 || big.Shape().Dimensions[0] != small.Shape().Dimensions[0] {
		exceptions.Panicf("Conv2DFilterGrad: operands must be rank 4 with the same batch size, got %s and %s",
			big.Shape(), small.Shape())
	}
	batch, xch, xh, xw := big.Shape().Dimensions[0], big.Shape().Dimensions[1], big.Shape().Dimensions[2], big.Shape().Dimensions[3]
	ych, yh, yw := small.Shape().Dimensions[1], small.Shape().Dimensions[2], small.Shape().Dimensions[3]
	if params.OutputSize(xh, kh) != yh || params.OutputSize(xw, kw) != yw {
		exceptions.Panicf("Conv2DFilterGrad: operand %s is not the convolution output of %s with a %dx%d kernel and %s",
			small.Shape(), big.Shape(), kh, kw, params)
	}

	gw := tensors.Zeros(ych, xch, kh, kw)
	colRows, colCols := xch*kh*kw, yh*yw
	colSize := colRows * colCols
	cols := make([]float32, batch*colSize)
	bigData, smallData, gwData := big.Data(), small.Data(), gw.Data()
	xSize, ySize := xch*xh*xw, ych*yh*yw
	pool.ParallelFor(batch, func(b int) {
		Im2Col(bigData[b*xSize:(b+1)*xSize], xch, xh, xw, kh, kw, params, yh, yw, cols[b*colSize:(b+1)*colSize])
	})
	for b := range batch {
		Gemm(false, true, ych, colRows, colCols, 1, smallData[b*ySize:(b+1)*ySize], cols[b*colSize:(b+1)*colSize], 1, gwData)
	}
	return gw
}
