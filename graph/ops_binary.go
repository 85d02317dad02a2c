// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/autograd/types/tensors"
)

type binaryKind int

const (
	binaryAdd binaryKind = iota
	binarySub
	binaryMul
	binaryDiv
)

var binaryNames = [...]string{"Add", "Sub", "Mul", "Div"}

// binaryOp implements the elementwise arithmetic ops, with NumPy broadcasting.
//
// The in-place variants write the result into the storage of the first input and return it (delegate),
// keeping its shape: the second input must be broadcastable to it.
type binaryOp struct {
	kind    binaryKind
	inPlace bool
}

func (op *binaryOp) Name() string {
	if op.inPlace {
		return "Inplace" + binaryNames[op.kind]
	}
	return binaryNames[op.kind]
}

func (op *binaryOp) Compute(ctx *ComputeContext) []ComputeResult {
	x0, x1 := ctx.Input(0), ctx.Input(1)
	if op.inPlace {
		switch op.kind {
		case binaryAdd:
			x0.AddInPlace(x1)
		case binarySub:
			x0.SubInPlace(x1)
		case binaryMul:
			x0.MulInPlace(x1)
		case binaryDiv:
			x0.DivInPlace(x1)
		}
		return []ComputeResult{Delegate(0)}
	}
	var y *tensors.Tensor
	switch op.kind {
	case binaryAdd:
		y = tensors.Add(x0, x1)
	case binarySub:
		y = tensors.Sub(x0, x1)
	case binaryMul:
		y = tensors.Mul(x0, x1)
	case binaryDiv:
		y = tensors.Div(x0, x1)
	}
	return Results(y)
}

func (op *binaryOp) Grad(gy *Node, inputs []*Node, _ *Node) []*Node {
	x0, x1 := inputs[0], inputs[1]
	if op.inPlace && (op.kind == binaryMul || op.kind == binaryDiv) {
		// The inputs values were overwritten.
		return []*Node{nil, nil}
	}
	r0 := func(g *Node) *Node { return ReduceToShape(g, x0.Shape()) }
	r1 := func(g *Node) *Node { return ReduceToShape(g, x1.Shape()) }
	switch op.kind {
	case binaryAdd:
		return []*Node{r0(gy), r1(gy)}
	case binarySub:
		return []*Node{r0(gy), Neg(r1(gy))}
	case binaryMul:
		return []*Node{r0(Mul(gy, x1)), r1(Mul(gy, x0))}
	default: // binaryDiv
		// d(x0/x1)/dx1 = -x0 * x1^-2
		return []*Node{r0(Div(gy, x1)), r1(Neg(Mul(Mul(x0, Pow(x1, -2)), gy)))}
	}
}

func newBinary(kind binaryKind, inPlace bool, x0, x1 *Node) *Node {
	g := validateGraphFromInputs(x0, x1)
	b := g.Builder().SetInputs(x0, x1)
	if inPlace && x0.shape != nil {
		b.SetShape(x0.shape)
	}
	return b.Build(&binaryOp{kind: kind, inPlace: inPlace})
}

// Add returns x0 + x1, with broadcasting.
func Add(x0, x1 *Node) *Node { return newBinary(binaryAdd, false, x0, x1) }

// Sub returns x0 - x1, with broadcasting.
func Sub(x0, x1 *Node) *Node { return newBinary(binarySub, false, x0, x1) }

// Mul returns x0 * x1 elementwise, with broadcasting.
func Mul(x0, x1 *Node) *Node { return newBinary(binaryMul, false, x0, x1) }

// Div returns x0 / x1 elementwise, with broadcasting.
func Div(x0, x1 *Node) *Node { return newBinary(binaryDiv, false, x0, x1) }

// InplaceAdd computes x0 += x1 into x0's storage and returns it. It has the same gradients as Add.
//
// Any node sharing x0's value (including x0 itself, if it is a variable) sees the change.
func InplaceAdd(x0, x1 *Node) *Node { return newBinary(binaryAdd, true, x0, x1) }

// InplaceSub computes x0 -= x1 into x0's storage and returns it. It has the same gradients as Sub.
func InplaceSub(x0, x1 *Node) *Node { return newBinary(binarySub, true, x0, x1) }

// InplaceMul computes x0 *= x1 into x0's storage and returns it. No gradient flows through it.
func InplaceMul(x0, x1 *Node) *Node { return newBinary(binaryMul, true, x0, x1) }

// InplaceDiv computes x0 /= x1 into x0's storage and returns it. No gradient flows through it.
func InplaceDiv(x0, x1 *Node) *Node { return newBinary(binaryDiv, true, x0, x1) }

// AddScalar returns x + value.
func AddScalar(x *Node, value float64) *Node { return Add(x, Scalar(x.Graph(), value)) }

// SubScalar returns x - value.
func SubScalar(x *Node, value float64) *Node { return Sub(x, Scalar(x.Graph(), value)) }

// MulScalar returns x * value.
func MulScalar(x *Node, value float64) *Node { return Mul(x, Scalar(x.Graph(), value)) }

// DivScalar returns x / value.
func DivScalar(x *Node, value float64) *Node { return Div(x, Scalar(x.Graph(), value)) }

// ScalarSub returns value - x.
func ScalarSub(value float64, x *Node) *Node { return Sub(Scalar(x.Graph(), value), x) }

// ScalarDiv returns value / x.
func ScalarDiv(value float64, x *Node) *Node { return Div(Scalar(x.Graph(), value), x) }
