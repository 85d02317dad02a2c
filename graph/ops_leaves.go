// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"

	"github.com/gomlx/autograd/types/shapes"
	"github.com/gomlx/autograd/types/tensors"
	"github.com/gomlx/exceptions"
)

// placeholderOp is a leaf whose value is fed with Context.Feed.
type placeholderOp struct {
	dims []int
}

func (op *placeholderOp) Name() string { return fmt.Sprintf("Placeholder%v", op.dims) }

func (op *placeholderOp) Compute(ctx *ComputeContext) []ComputeResult {
	exceptions.Panicf("placeholder %s was not fed: use Context.Feed before evaluating it", ctx.Node())
	return nil
}

func (op *placeholderOp) Grad(_ *Node, _ []*Node, _ *Node) []*Node { return nil }

// Placeholder creates a leaf node whose value must be fed with Context.Feed before each evaluation that needs it.
//
// Fed values must have the given dimensions; -1 accepts any size for that axis.
// If all dimensions are known, the node has a declared (constant) shape.
func Placeholder(g *Graph, dims ...int) *Node {
	g.AssertValid()
	known := true
	for _, dim := range dims {
		if dim == -1 {
			known = false
		} else if dim < 0 {
			exceptions.Panicf("Placeholder(%v): invalid dimension %d, use -1 for an unknown dimension", dims, dim)
		}
	}
	b := g.Builder()
	if known {
		b.SetShape(constShape(g, shapes.Make(dims...)))
	}
	return b.Build(&placeholderOp{dims: dims})
}

// persistedOp is a leaf whose value is held by the Context that created it.
type persistedOp struct {
	variable bool
}

func (op *persistedOp) Name() string {
	if op.variable {
		return "Variable"
	}
	return "Constant"
}

func (op *persistedOp) Compute(ctx *ComputeContext) []ComputeResult {
	exceptions.Panicf("%s has no value in this Context: it was created by a different Context", ctx.Node())
	return nil
}

func (op *persistedOp) Grad(_ *Node, _ []*Node, _ *Node) []*Node { return nil }

// constOp is a leaf whose value is embedded in the op, so it can be evaluated in any Context.
type constOp struct {
	value *tensors.Tensor
}

func (op *constOp) Name() string {
	if op.value.Size() <= 4 {
		return fmt.Sprintf("Const(%v)", op.value.Value())
	}
	return fmt.Sprintf("Const%s", op.value.Shape())
}

func (op *constOp) Compute(_ *ComputeContext) []ComputeResult { return Results(op.value) }

func (op *constOp) Grad(_ *Node, _ []*Node, _ *Node) []*Node { return nil }

// Const creates a constant leaf holding value. It is not differentiable.
// The value is shared, not copied, and should not be modified afterward.
func Const(g *Graph, value *tensors.Tensor) *Node {
	g.AssertValid()
	value.AssertValid()
	return g.Builder().
		SetShape(constShape(g, value.Shape())).
		SetDifferentiable(false).
		Build(&constOp{value: value})
}

// Scalar creates a rank-0 constant.
func Scalar(g *Graph, value float64) *Node {
	return Const(g, tensors.FromScalar(float32(value)))
}

// Ones creates a constant with the given dimensions filled with 1.
func Ones(g *Graph, dims ...int) *Node {
	return Const(g, tensors.Ones(dims...))
}

// Zeros creates a constant with the given dimensions filled with 0.
func Zeros(g *Graph, dims ...int) *Node {
	return Const(g, tensors.Zeros(dims...))
}

// shapeOfOp outputs the shape of its input as a 1-D tensor.
type shapeOfOp struct{}

func (op *shapeOfOp) Name() string { return "ShapeOf" }

func (op *shapeOfOp) Compute(ctx *ComputeContext) []ComputeResult {
	return Results(shapeTensor(ctx.Input(0).Shape()))
}

func (op *shapeOfOp) Grad(_ *Node, _ []*Node, _ *Node) []*Node { return []*Node{nil} }

// ShapeOf returns a node with the shape of x as a 1-D tensor of dimensions, computed from x's value.
// See also Node.Shape, which uses the declared shape when available.
func ShapeOf(x *Node) *Node {
	g := validateGraphFromInputs(x)
	return g.Builder().SetInputs(x).SetDifferentiable(false).Build(&shapeOfOp{})
}

// fullOp creates a tensor filled with value, with the shape given by its input.
type fullOp struct {
	value float32
}

func (op *fullOp) Name() string { return fmt.Sprintf("Full(%g)", op.value) }

func (op *fullOp) Compute(ctx *ComputeContext) []ComputeResult {
	shape := tensorShape(ctx.Input(0))
	return Results(tensors.Full(op.value, shape.Dimensions...))
}

func (op *fullOp) Grad(_ *Node, _ []*Node, _ *Node) []*Node { return []*Node{nil} }

// Full returns a node with the given shape (a 1-D shape node, see Node.Shape) filled with value.
func Full(shape *Node, value float64) *Node {
	g := validateGraphFromInputs(shape)
	return g.Builder().SetInputs(shape).SetShape(shape).SetDifferentiable(false).Build(&fullOp{value: float32(value)})
}

// OnesLike returns a node with the same shape as x, filled with 1.
func OnesLike(x *Node) *Node {
	return Full(x.Shape(), 1)
}

// ZerosLike returns a node with the same shape as x, filled with 0.
func ZerosLike(x *Node) *Node {
	return Full(x.Shape(), 0)
}

// stopGradientOp forwards its input and blocks gradients.
type stopGradientOp struct{}

func (op *stopGradientOp) Name() string { return "StopGradient" }

func (op *stopGradientOp) Compute(_ *ComputeContext) []ComputeResult { return []ComputeResult{Delegate(0)} }

func (op *stopGradientOp) Grad(_ *Node, _ []*Node, _ *Node) []*Node { return []*Node{nil} }

// StopGradient returns x's value unchanged (no copy), but no gradient is propagated through it.
func StopGradient(x *Node) *Node {
	g := validateGraphFromInputs(x)
	b := g.Builder().SetInputs(x).SetDifferentiable(false)
	if x.shape != nil {
		b.SetShape(x.shape)
	}
	return b.Build(&stopGradientOp{})
}

// identityOp forwards its input and its gradient.
type identityOp struct{}

func (op *identityOp) Name() string { return "Identity" }

func (op *identityOp) Compute(_ *ComputeContext) []ComputeResult { return []ComputeResult{Delegate(0)} }

func (op *identityOp) Grad(gy *Node, _ []*Node, _ *Node) []*Node { return []*Node{gy} }

// Identity returns x's value unchanged (no copy), and passes the gradient through.
func Identity(x *Node) *Node {
	g := validateGraphFromInputs(x)
	b := g.Builder().SetInputs(x)
	if x.shape != nil {
		b.SetShape(x.shape)
	}
	return b.Build(&identityOp{})
}
