// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph_test

import (
	"testing"

	. "github.com/gomlx/autograd/graph"
	"github.com/gomlx/autograd/graph/graphtest"
	"github.com/gomlx/autograd/types/tensors"
	"github.com/stretchr/testify/require"
)

func TestGradientMultipleConsumers(t *testing.T) {
	g := New()
	ctx := NewContext(g)
	x := ctx.Variable(tensors.FromAnyValue([]float32{1, 2, 3}))
	y := Add(x, x)
	seed := Const(g, tensors.FromAnyValue([]float32{1, 10, 100}))
	grad := GradientWithSeed(y, seed, x)[0]
	require.Equal(t, []float32{2, 20, 200}, ctx.Evaluate1(grad).Value())

	// Default seed is all ones.
	require.Equal(t, []float32{2, 2, 2}, ctx.Evaluate1(Gradient(y, x)[0]).Value())

	// Gradient with respect to the output itself is the seed.
	require.Equal(t, []float32{1, 10, 100}, ctx.Evaluate1(GradientWithSeed(y, seed, y)[0]).Value())
}

func TestGradientUnreachable(t *testing.T) {
	g := New()
	ctx := NewContext(g)
	x := ctx.Variable(tensors.FromScalar(2))
	unrelated := ctx.Variable(tensors.FromScalar(5))
	c := ctx.Constant(tensors.FromScalar(7))
	y := Mul(Add(x, c), StopGradient(Square(x)))
	later := Neg(x) // Created after y: y can't depend on it.
	grads := Gradient(y, x, unrelated, c, later)
	require.NotNil(t, grads[0])
	require.Nil(t, grads[1])
	require.Nil(t, grads[2])
	require.Nil(t, grads[3])

	// Only the path without StopGradient contributes: d/dx = x^2 (held constant) = 4.
	require.Equal(t, float32(4), ctx.Evaluate1(grads[0]).Value())
	require.Nil(t, Gradient(StopGradient(x), x)[0])
	require.Nil(t, Gradient(y))
}

func TestGradientSecondOrder(t *testing.T) {
	for name, fn := range map[string]func(x *Node) *Node{
		"Square": Square,
		"Pow":    func(x *Node) *Node { return Pow(x, 2) },
		"Mul":    func(x *Node) *Node { return Mul(x, x) },
	} {
		graphtest.RunTestGraphFn(t, name, func(g *Graph, ctx *Context) (inputs, outputs []*Node) {
			x := ctx.Variable(tensors.FromScalar(3))
			y := fn(x)
			dx := Gradient(y, x)[0]
			ddx := Gradient(dx, x)[0]
			inputs = []*Node{x}
			outputs = []*Node{y, dx, ddx}
			return
		}, []any{float32(9), float32(6), float32(2)}, graphtest.Epsilon)
	}

	// Third order of x^3: 6.
	graphtest.RunTestGraphFn(t, "Pow3", func(g *Graph, ctx *Context) (inputs, outputs []*Node) {
		x := Placeholder(g)
		ctx.Feed(x, tensors.FromScalar(2))
		d1 := Gradient(Pow(x, 3), x)[0]
		d2 := Gradient(d1, x)[0]
		d3 := Gradient(d2, x)[0]
		inputs = []*Node{x}
		outputs = []*Node{d1, d2, d3}
		return
	}, []any{float32(12), float32(12), float32(6)}, graphtest.Epsilon)
}

func TestGradientArithmetic(t *testing.T) {
	graphtest.RunTestGraphFn(t, "Broadcast", func(g *Graph, ctx *Context) (inputs, outputs []*Node) {
		a := ctx.Variable(tensors.FromAnyValue([][]float32{{1, 2, 3}, {4, 5, 6}}))
		b := ctx.Variable(tensors.FromAnyValue([]float32{1, 2, 4}))
		c := ctx.Variable(tensors.FromAnyValue([][]float32{{2}, {4}}))
		loss := ReduceAllSum(Add(Sub(Mul(a, b), c), Div(a, c)))
		grads := Gradient(loss, a, b, c)
		inputs = []*Node{a, b, c}
		outputs = grads
		return
	}, []any{
		// d/da = b + 1/c
		[][]float32{{1.5, 2.5, 4.5}, {1.25, 2.25, 4.25}},
		// d/db = sum_rows(a)
		[]float32{5, 7, 9},
		// d/dc = -3 - sum_cols(a)/c^2
		[][]float32{{-3 - 6.0/4}, {-3 - 15.0/16}},
	}, graphtest.Epsilon)

	graphtest.RunTestGraphFn(t, "ScalarOps", func(g *Graph, ctx *Context) (inputs, outputs []*Node) {
		x := ctx.Variable(tensors.FromAnyValue([]float32{1, 2}))
		y := ReduceAllSum(ScalarDiv(8, AddScalar(MulScalar(ScalarSub(1, SubScalar(DivScalar(x, 2), 1)), 2), 0)))
		inputs = []*Node{x}
		outputs = []*Node{y, Gradient(y, x)[0]}
		return
	}, []any{
		// 2 - x/2 ... times 2 = 4 - x; y = sum(8 / (4 - x)) = 8/3 + 8/2
		float32(8.0/3 + 4),
		// dy/dx = 8 / (4-x)^2
		[]float32{8.0 / 9, 8.0 / 4},
	}, graphtest.Epsilon)
}

func TestGradientReduceSum(t *testing.T) {
	graphtest.RunTestGraphFn(t, "ReduceSum", func(g *Graph, ctx *Context) (inputs, outputs []*Node) {
		x := ctx.Variable(tensors.FromAnyValue([][][]float32{{{1, 2}, {3, 4}}, {{5, 6}, {7, 8}}}))
		weights := Const(g, tensors.FromAnyValue([]float32{1, 10}))
		y := ReduceSum(x, 0, -2)
		loss := ReduceAllSum(Mul(y, weights))
		inputs = []*Node{x}
		outputs = []*Node{y, Gradient(loss, x)[0]}
		return
	}, []any{
		[]float32{16, 20},
		[][][]float32{{{1, 10}, {1, 10}}, {{1, 10}, {1, 10}}},
	}, graphtest.Epsilon)
}
