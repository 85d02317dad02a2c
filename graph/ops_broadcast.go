// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

// reduceToShapeOp sums its first input down to the shape given by the second input: the inverse of broadcasting.
// Inputs: [x, shape].
type reduceToShapeOp struct{}

func (op *reduceToShapeOp) Name() string { return "ReduceToShape" }

func (op *reduceToShapeOp) Compute(ctx *ComputeContext) []ComputeResult {
	x, target := ctx.Input(0), tensorShape(ctx.Input(1))
	if x.Shape().Equal(target) {
		return []ComputeResult{Delegate(0)}
	}
	return Results(x.ReduceToShape(target))
}

func (op *reduceToShapeOp) Grad(gy *Node, inputs []*Node, _ *Node) []*Node {
	return []*Node{BroadcastToShape(gy, inputs[0].Shape()), nil}
}

// ReduceToShape sums x over the axes that broadcasting `shape` to x's shape would have expanded, so the result
// has exactly `shape` (a 1-D shape node, see Node.Shape):
//
//   - Leading axes of x that don't exist in shape are summed away.
//   - Axes where shape has dimension 1 and x is larger are summed, keeping dimension 1.
//   - A rank-0 shape reduces x to a scalar.
//
// If x already has the shape, its value is returned without copying.
// Evaluation panics if x's shape can't be folded to shape.
func ReduceToShape(x, shape *Node) *Node {
	g := validateGraphFromInputs(x, shape)
	return g.Builder().SetInputs(x, shape).SetShape(shape).Build(&reduceToShapeOp{})
}

// expandToShapeOp broadcasts its first input to the shape given by the second input.
// Inputs: [x, shape].
type expandToShapeOp struct{}

func (op *expandToShapeOp) Name() string { return "BroadcastToShape" }

func (op *expandToShapeOp) Compute(ctx *ComputeContext) []ComputeResult {
	x, target := ctx.Input(0), tensorShape(ctx.Input(1))
	if x.Shape().Equal(target) {
		return []ComputeResult{Delegate(0)}
	}
	return Results(x.BroadcastTo(target))
}

func (op *expandToShapeOp) Grad(gy *Node, inputs []*Node, _ *Node) []*Node {
	return []*Node{ReduceToShape(gy, inputs[0].Shape()), nil}
}

// BroadcastToShape expands x to `shape` (a 1-D shape node, see Node.Shape), NumPy style: missing leading axes
// are added, and axes of dimension 1 are repeated.
//
// If x already has the shape, its value is returned without copying.
// Evaluation panics if x is not broadcastable to shape.
func BroadcastToShape(x, shape *Node) *Node {
	g := validateGraphFromInputs(x, shape)
	return g.Builder().SetInputs(x, shape).SetShape(shape).Build(&expandToShapeOp{})
}
