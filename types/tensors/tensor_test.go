// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors_test

import (
	"testing"

	"github.com/gomlx/autograd/types/shapes"
	. "github.com/gomlx/autograd/types/tensors"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestFromAnyValue(t *testing.T) {
	x := FromAnyValue([][]int{{1, 2, 3}, {4, 5, 6}})
	require.Equal(t, []int{2, 3}, x.Shape().Dimensions)
	require.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}}, x.Value())

	s := FromAnyValue(float64(7))
	require.True(t, s.IsScalar())
	require.Equal(t, float32(7), s.Value())

	require.Same(t, x, FromAnyValue(x))
	require.Panics(t, func() { FromAnyValue([][]float32{{1, 2}, {3}}) })
	require.Panics(t, func() { FromAnyValue("string") })
}

func TestFromFlatAndViews(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	x := FromFlat(data, 2, 3)
	require.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}}, x.Value())

	r := x.Reshape(3, 2)
	require.True(t, r.SharesStorage(x))
	r.Data()[0] = 10
	require.Equal(t, float32(10), x.Data()[0])

	e := x.ExpandDims(0)
	require.Equal(t, []int{1, 2, 3}, e.Shape().Dimensions)
	require.True(t, e.SharesStorage(x))
	require.Equal(t, []int{2, 3, 1}, x.ExpandDims(-1).Shape().Dimensions)

	c := x.Clone()
	require.False(t, c.SharesStorage(x))
	require.True(t, c.Equal(x))

	require.Panics(t, func() { x.Reshape(4) })
	_, err := TryFromFlat(data, 4)
	require.Error(t, err)
	y := must.M1(TryFromFlat(data, 6))
	require.Equal(t, 6, y.Size())
}

func TestFromValuesAndFloat16(t *testing.T) {
	x := FromValues([]int64{1, 2, 3, 4}, 2, 2)
	require.Equal(t, [][]float32{{1, 2}, {3, 4}}, x.Value())

	half := []float16.Float16{float16.Fromfloat32(0.5), float16.Fromfloat32(-2)}
	h := FromFloat16(half)
	require.Equal(t, []float32{0.5, -2}, h.Value())
	require.Equal(t, half, h.Float16s())

	// Half-precision values are converted by value, also in nested slices.
	require.Equal(t, [][]float32{{0.5, -2}}, FromAnyValue([][]float16.Float16{half}).Value())
	require.Equal(t, float32(-2), FromAnyValue(half[1]).Value())
}

func TestBinaryBroadcast(t *testing.T) {
	a := FromAnyValue([][]float32{{1, 2, 3}, {4, 5, 6}})
	b := FromAnyValue([]float32{10, 20, 30})
	require.Equal(t, [][]float32{{11, 22, 33}, {14, 25, 36}}, Add(a, b).Value())
	require.Equal(t, [][]float32{{-9, -18, -27}, {-6, -15, -24}}, Sub(a, b).Value())

	col := FromAnyValue([][]float32{{2}, {3}})
	require.Equal(t, [][]float32{{2, 4, 6}, {12, 15, 18}}, Mul(a, col).Value())
	require.Equal(t, [][]float32{{20, 40, 60}, {30, 60, 90}}, Mul(col, b).Value())

	two := FromScalar(2)
	require.Equal(t, [][]float32{{0.5, 1, 1.5}, {2, 2.5, 3}}, Div(a, two).Value())
	require.Equal(t, [][]float32{{2, 1, 2.0 / 3}, {0.5, 0.4, 2.0 / 6}}, Div(two, a).Value())

	require.Panics(t, func() { Add(a, FromAnyValue([]float32{1, 2})) })
}

func TestInPlace(t *testing.T) {
	a := FromAnyValue([][]float32{{1, 2, 3}, {4, 5, 6}})
	view := a.Reshape(6)
	a.AddInPlace(FromAnyValue([]float32{1, 1, 1}))
	require.Equal(t, []float32{2, 3, 4, 5, 6, 7}, view.Value())
	a.MulInPlace(FromScalar(2))
	require.Equal(t, []float32{4, 6, 8, 10, 12, 14}, view.Value())
	a.SubInPlace(FromAnyValue([][]float32{{4}, {10}}))
	require.Equal(t, []float32{0, 2, 4, 0, 2, 4}, view.Value())
	a.DivInPlace(FromScalar(2))
	require.Equal(t, []float32{0, 1, 2, 0, 1, 2}, view.Value())

	// The target shape never changes.
	require.Panics(t, func() { FromAnyValue([]float32{1, 2, 3}).AddInPlace(a) })
}

func TestBroadcastAndReduce(t *testing.T) {
	x := FromAnyValue([][]float32{{1}, {2}})
	b := x.BroadcastTo(shapes.Make(3, 2, 2))
	require.Equal(t, [][][]float32{{{1, 1}, {2, 2}}, {{1, 1}, {2, 2}}, {{1, 1}, {2, 2}}}, b.Value())

	back := b.ReduceToShape(x.Shape())
	require.Equal(t, [][]float32{{6}, {12}}, back.Value())

	all := b.ReduceToShape(shapes.Scalar())
	require.True(t, all.IsScalar())
	require.Equal(t, float32(18), all.Value())

	require.Panics(t, func() { x.BroadcastTo(shapes.Make(3)) })
	require.Panics(t, func() { b.ReduceToShape(shapes.Make(3)) })
}

func TestSumAxes(t *testing.T) {
	x := FromAnyValue([][][]float32{{{1, 2}, {3, 4}}, {{5, 6}, {7, 8}}})
	assert.Equal(t, [][]float32{{6, 8}, {10, 12}}, x.SumAxes(false, 0).Value())
	assert.Equal(t, [][][]float32{{{4, 6}}, {{12, 14}}}, x.SumAxes(true, 1).Value())
	assert.Equal(t, []float32{14, 22}, x.SumAxes(false, 0, 1).Value())
	assert.Equal(t, float32(36), x.SumAll().Value())
	require.Panics(t, func() { x.SumAxes(false, 3) })
}

func TestString(t *testing.T) {
	require.Equal(t, "Tensor[]{3}", FromScalar(3).String())
	require.Equal(t, "Tensor[2][1 2]", FromAnyValue([]float32{1, 2}).String())
	require.Contains(t, Zeros(100).String(), "100 elements")
}
