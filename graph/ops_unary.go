// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"

	"github.com/chewxy/math32"
)

type negOp struct{}

func (op *negOp) Name() string { return "Neg" }

func (op *negOp) Compute(ctx *ComputeContext) []ComputeResult {
	return Results(ctx.Input(0).Map(func(v float32) float32 { return -v }))
}

func (op *negOp) Grad(gy *Node, _ []*Node, _ *Node) []*Node { return []*Node{Neg(gy)} }

// Neg returns -x.
func Neg(x *Node) *Node {
	return newUnary(&negOp{}, x)
}

type powOp struct {
	exponent float32
}

func (op *powOp) Name() string { return fmt.Sprintf("Pow(%g)", op.exponent) }

func (op *powOp) Compute(ctx *ComputeContext) []ComputeResult {
	exponent := op.exponent
	return Results(ctx.Input(0).Map(func(v float32) float32 { return math32.Pow(v, exponent) }))
}

func (op *powOp) Grad(gy *Node, inputs []*Node, _ *Node) []*Node {
	x := inputs[0]
	if op.exponent == 0 {
		return []*Node{ZerosLike(x)}
	}
	if op.exponent == 1 {
		return []*Node{gy}
	}
	// d(x^p)/dx = p * x^(p-1)
	return []*Node{Mul(gy, MulScalar(Pow(x, float64(op.exponent-1)), float64(op.exponent)))}
}

// Pow returns x raised to the constant exponent, elementwise.
func Pow(x *Node, exponent float64) *Node {
	return newUnary(&powOp{exponent: float32(exponent)}, x)
}

type squareOp struct{}

func (op *squareOp) Name() string { return "Square" }

func (op *squareOp) Compute(ctx *ComputeContext) []ComputeResult {
	return Results(ctx.Input(0).Map(func(v float32) float32 { return v * v }))
}

func (op *squareOp) Grad(gy *Node, inputs []*Node, _ *Node) []*Node {
	return []*Node{Mul(gy, MulScalar(inputs[0], 2))}
}

// Square returns x*x, elementwise.
func Square(x *Node) *Node {
	return newUnary(&squareOp{}, x)
}

// newUnary builds an elementwise op node: its shape is the same as x's.
func newUnary(op Op, x *Node) *Node {
	g := validateGraphFromInputs(x)
	b := g.Builder().SetInputs(x)
	if x.shape != nil {
		b.SetShape(x.shape)
	}
	return b.Build(op)
}
