// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"

	"github.com/gomlx/autograd/backends/simplego"
)

// conv2DOp inputs: [x, w].
type conv2DOp struct {
	params simplego.ConvParams
}

func (op *conv2DOp) Name() string { return fmt.Sprintf("Conv2D(%s)", op.params) }

func (op *conv2DOp) Compute(ctx *ComputeContext) []ComputeResult {
	return Results(simplego.Conv2D(ctx.Input(0), ctx.Input(1), op.params))
}

func (op *conv2DOp) Grad(gy *Node, inputs []*Node, _ *Node) []*Node {
	x, w := inputs[0], inputs[1]
	return []*Node{
		conv2DTransposeSized(gy, w, x.Shape(), op.params),
		conv2DFilterGrad(x, gy, StopGradient(w), op.params),
	}
}

// conv2DTransposeOp inputs: [gy, w] or [gy, w, shape], where the optional shape selects the output spatial size.
type conv2DTransposeOp struct {
	params simplego.ConvParams
}

func (op *conv2DTransposeOp) Name() string { return fmt.Sprintf("Conv2DTranspose(%s)", op.params) }

func (op *conv2DTransposeOp) Compute(ctx *ComputeContext) []ComputeResult {
	gy, w := ctx.Input(0), ctx.Input(1)
	if ctx.NumInputs() == 3 {
		shape := tensorShape(ctx.Input(2))
		return Results(simplego.Conv2DTransposeTo(gy, w, op.params, shape.Dim(-2), shape.Dim(-1)))
	}
	return Results(simplego.Conv2DTranspose(gy, w, op.params))
}

func (op *conv2DTransposeOp) Grad(g *Node, inputs []*Node, _ *Node) []*Node {
	gy, w := inputs[0], inputs[1]
	grads := []*Node{
		newConv2D(g, w, op.params),
		conv2DFilterGrad(g, gy, StopGradient(w), op.params),
	}
	if len(inputs) == 3 {
		grads = append(grads, nil)
	}
	return grads
}

// conv2DFilterGradOp inputs: [big, small, w], where w is only used for the kernel size.
// See simplego.Conv2DFilterGrad.
type conv2DFilterGradOp struct {
	params simplego.ConvParams
}

func (op *conv2DFilterGradOp) Name() string { return fmt.Sprintf("Conv2DFilterGrad(%s)", op.params) }

func (op *conv2DFilterGradOp) Compute(ctx *ComputeContext) []ComputeResult {
	big, small, w := ctx.Input(0), ctx.Input(1), ctx.Input(2)
	return Results(simplego.Conv2DFilterGrad(big, small, w.Shape().Dim(2), w.Shape().Dim(3), op.params))
}

// Grad: the filter gradient is bilinear on (big, small), so its gradients are the other two members of
// the convolution family, with ggw, the incoming gradient, as filters.
func (op *conv2DFilterGradOp) Grad(ggw *Node, inputs []*Node, _ *Node) []*Node {
	big, small := inputs[0], inputs[1]
	return []*Node{
		conv2DTransposeSized(small, ggw, big.Shape(), op.params),
		newConv2D(big, ggw, op.params),
		nil,
	}
}

func convParams(pad, stride, dilation int) simplego.ConvParams {
	params := simplego.ConvParams{Pad: pad, Stride: stride, Dilation: dilation}
	if err := params.Validate(); err != nil {
		panic(err)
	}
	return params
}

// Conv2D convolves x, shaped (batch, xChannels, height, width), with the filters w, shaped
// (yChannels, xChannels, kernelHeight, kernelWidth), returning (batch, yChannels, yHeight, yWidth) where
// yHeight = (height + 2*pad - (dilation*(kernelHeight-1)+1)) / stride + 1, and likewise for the width.
//
// It panics if pad < 0, stride < 1 or dilation < 1. Incompatible shapes panic at evaluation.
func Conv2D(x, w *Node, pad, stride, dilation int) *Node {
	return newConv2D(x, w, convParams(pad, stride, dilation))
}

func newConv2D(x, w *Node, params simplego.ConvParams) *Node {
	g := validateGraphFromInputs(x, w)
	return g.Builder().SetInputs(x, w).Build(&conv2DOp{params: params})
}

// Conv2DTranspose is the transposed convolution (the gradient of Conv2D with respect to its input) of gy, shaped
// (batch, yChannels, yHeight, yWidth), with the filters w, shaped (yChannels, xChannels, kernelHeight, kernelWidth).
// It returns (batch, xChannels, height, width) with height = (yHeight-1)*stride - 2*pad + dilation*(kernelHeight-1) + 1,
// and likewise for the width.
//
// It panics if pad < 0, stride < 1 or dilation < 1. Incompatible shapes panic at evaluation.
func Conv2DTranspose(gy, w *Node, pad, stride, dilation int) *Node {
	params := convParams(pad, stride, dilation)
	g := validateGraphFromInputs(gy, w)
	return g.Builder().SetInputs(gy, w).Build(&conv2DTransposeOp{params: params})
}

// conv2DTransposeSized is a Conv2DTranspose whose output spatial size is taken from shape: it is used by gradients,
// since with stride > 1 the transposed size may be smaller than the original input.
func conv2DTransposeSized(gy, w, shape *Node, params simplego.ConvParams) *Node {
	g := validateGraphFromInputs(gy, w, shape)
	return g.Builder().SetInputs(gy, w, shape).SetShape(shape).Build(&conv2DTransposeOp{params: params})
}

func conv2DFilterGrad(big, small, w *Node, params simplego.ConvParams) *Node {
	g := validateGraphFromInputs(big, small, w)
	return g.Builder().SetInputs(big, small, w).SetShape(w.Shape()).Build(&conv2DFilterGradOp{params: params})
}
