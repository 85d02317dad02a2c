// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"slices"

	"github.com/gomlx/autograd/types/shapes"
	"github.com/gomlx/exceptions"
)

type reduceAllSumOp struct{}

func (op *reduceAllSumOp) Name() string { return "ReduceAllSum" }

func (op *reduceAllSumOp) Compute(ctx *ComputeContext) []ComputeResult {
	return Results(ctx.Input(0).SumAll())
}

func (op *reduceAllSumOp) Grad(gy *Node, inputs []*Node, _ *Node) []*Node {
	return []*Node{BroadcastToShape(gy, inputs[0].Shape())}
}

// ReduceAllSum returns the rank-0 sum of all elements of x.
func ReduceAllSum(x *Node) *Node {
	g := validateGraphFromInputs(x)
	return g.Builder().SetInputs(x).SetShape(constShape(g, shapes.Scalar())).Build(&reduceAllSumOp{})
}

type reduceSumOp struct {
	axes []int
}

func (op *reduceSumOp) Name() string { return fmt.Sprintf("ReduceSum(axes=%v)", op.axes) }

func (op *reduceSumOp) Compute(ctx *ComputeContext) []ComputeResult {
	return Results(ctx.Input(0).SumAxes(false, op.axes...))
}

func (op *reduceSumOp) Grad(gy *Node, inputs []*Node, _ *Node) []*Node {
	x := inputs[0]
	xShape := x.Shape()
	return []*Node{BroadcastToShape(insertReducedAxes(gy, xShape, op.axes), xShape)}
}

// ReduceSum returns the sum of x over the given axes, which are removed from the output.
// Negative axes count from the end. If no axes are given, it is the same as ReduceAllSum.
func ReduceSum(x *Node, axes ...int) *Node {
	if len(axes) == 0 {
		return ReduceAllSum(x)
	}
	g := validateGraphFromInputs(x)
	return g.Builder().SetInputs(x).Build(&reduceSumOp{axes: slices.Clone(axes)})
}

// insertAxesOp reshapes its first input, the result of a ReduceSum over axes, back to the rank of the shape
// given by its second input, with dimension 1 on the reduced axes. The storage is shared.
type insertAxesOp struct {
	axes []int
}

func (op *insertAxesOp) Name() string { return fmt.Sprintf("InsertReducedAxes(axes=%v)", op.axes) }

func (op *insertAxesOp) Compute(ctx *ComputeContext) []ComputeResult {
	x, fullShape := ctx.Input(0), tensorShape(ctx.Input(1))
	rank := fullShape.Rank()
	dims := slices.Clone(fullShape.Dimensions)
	for _, axis := range op.axes {
		if axis < 0 {
			axis += rank
		}
		if axis < 0 || axis >= rank {
			exceptions.Panicf("%s: invalid axis for shape %s", op.Name(), fullShape)
		}
		dims[axis] = 1
	}
	return Results(x.Reshape(dims...))
}

func (op *insertAxesOp) Grad(gy *Node, _ []*Node, _ *Node) []*Node {
	return []*Node{ReduceSum(gy, op.axes...), nil}
}

func insertReducedAxes(x, fullShape *Node, axes []int) *Node {
	g := validateGraphFromInputs(x, fullShape)
	return g.Builder().SetInputs(x, fullShape).Build(&insertAxesOp{axes: axes})
}
