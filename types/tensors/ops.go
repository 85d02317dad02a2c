// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"slices"

	"github.com/gomlx/autograd/types/shapes"
	"github.com/gomlx/exceptions"
)

// BinaryFn is an elementwise function of two values.
type BinaryFn func(a, b float32) float32

func addFn(a, b float32) float32 { return a + b }
func subFn(a, b float32) float32 { return a - b }
func mulFn(a, b float32) float32 { return a * b }
func divFn(a, b float32) float32 { return a / b }

// broadcastStrides returns the strides to read a tensor of shape `from` as if it was broadcast to `to`:
// broadcast axes get stride 0. It assumes from is broadcastable to `to`.
func broadcastStrides(from, to shapes.Shape) []int {
	padded := from.WithLeadingOnes(to.Rank())
	strides := padded.Strides()
	for axis, dim := range padded.Dimensions {
		if dim == 1 && to.Dimensions[axis] != 1 {
			strides[axis] = 0
		}
	}
	return strides
}

// iterate over all positions of shape in row-major order, calling fn with the flat position and the
// offsets computed with each of the given strides.
func iterate(shape shapes.Shape, stridesA, stridesB []int, fn func(pos, offsetA, offsetB int)) {
	size := shape.Size()
	if size == 0 {
		return
	}
	rank := shape.Rank()
	if rank == 0 {
		fn(0, 0, 0)
		return
	}
	index := make([]int, rank)
	var offsetA, offsetB int
	for pos := range size {
		fn(pos, offsetA, offsetB)
		// Increment the multi-dimensional index, carrying over.
		for axis := rank - 1; axis >= 0; axis-- {
			index[axis]++
			offsetA += stridesA[axis]
			offsetB += stridesB[axis]
			if index[axis] < shape.Dimensions[axis] {
				break
			}
			offsetA -= stridesA[axis] * index[axis]
			offsetB -= stridesB[axis] * index[axis]
			index[axis] = 0
		}
	}
}

// Binary applies fn elementwise to a and b, broadcasting them NumPy style, and returns a new tensor.
// It panics if the shapes can't be broadcast.
func Binary(a, b *Tensor, fn BinaryFn) *Tensor {
	a.AssertValid()
	b.AssertValid()
	if a.shape.Equal(b.shape) {
		out := FromShape(a.shape)
		for ii, v := range a.data {
			out.data[ii] = fn(v, b.data[ii])
		}
		return out
	}
	outShape, err := shapes.Broadcast(a.shape, b.shape)
	if err != nil {
		panic(err)
	}
	out := FromShape(outShape)
	switch {
	case a.IsScalar():
		av := a.data[0]
		for ii, v := range b.data {
			out.data[ii] = fn(av, v)
		}
	case b.IsScalar():
		bv := b.data[0]
		for ii, v := range a.data {
			out.data[ii] = fn(v, bv)
		}
	default:
		iterate(outShape, broadcastStrides(a.shape, outShape), broadcastStrides(b.shape, outShape),
			func(pos, offsetA, offsetB int) {
				out.data[pos] = fn(a.data[offsetA], b.data[offsetB])
			})
	}
	return out
}

// Add returns a + b, with broadcasting.
func Add(a, b *Tensor) *Tensor { return Binary(a, b, addFn) }

// Sub returns a - b, with broadcasting.
func Sub(a, b *Tensor) *Tensor { return Binary(a, b, subFn) }

// Mul returns a * b, with broadcasting.
func Mul(a, b *Tensor) *Tensor { return Binary(a, b, mulFn) }

// Div returns a / b, with broadcasting.
func Div(a, b *Tensor) *Tensor { return Binary(a, b, divFn) }

// BinaryInPlace sets t = fn(t, b) elementwise, broadcasting b to t's shape. t's shape never changes.
// It panics if b can't be broadcast to t's shape.
func (t *Tensor) BinaryInPlace(b *Tensor, fn BinaryFn) {
	t.AssertValid()
	b.AssertValid()
	switch {
	case t.shape.Equal(b.shape):
		for ii, v := range b.data {
			t.data[ii] = fn(t.data[ii], v)
		}
	case b.Size() == 1 && b.Rank() <= t.Rank():
		bv := b.data[0]
		for ii, v := range t.data {
			t.data[ii] = fn(v, bv)
		}
	default:
		if !shapes.IsBroadcastable(b.shape, t.shape) {
			exceptions.Panicf("in-place operation: shape %s cannot be broadcast into %s", b.shape, t.shape)
		}
		iterate(t.shape, t.shape.Strides(), broadcastStrides(b.shape, t.shape),
			func(_, offsetT, offsetB int) {
				t.data[offsetT] = fn(t.data[offsetT], b.data[offsetB])
			})
	}
}

// AddInPlace sets t += b.
func (t *Tensor) AddInPlace(b *Tensor) { t.BinaryInPlace(b, addFn) }

// SubInPlace sets t -= b.
func (t *Tensor) SubInPlace(b *Tensor) { t.BinaryInPlace(b, subFn) }

// MulInPlace sets t *= b.
func (t *Tensor) MulInPlace(b *Tensor) { t.BinaryInPlace(b, mulFn) }

// DivInPlace sets t /= b.
func (t *Tensor) DivInPlace(b *Tensor) { t.BinaryInPlace(b, divFn) }

// Map returns a new tensor with fn applied to every element.
func (t *Tensor) Map(fn func(v float32) float32) *Tensor {
	out := FromShape(t.shape)
	for ii, v := range t.data {
		out.data[ii] = fn(v)
	}
	return out
}

// BroadcastTo returns a new tensor with t expanded to the given shape: missing leading axes are added
// and axes of dimension 1 are repeated. It panics if t is not broadcastable to shape.
func (t *Tensor) BroadcastTo(shape shapes.Shape) *Tensor {
	t.AssertValid()
	if !shapes.IsBroadcastable(t.shape, shape) {
		exceptions.Panicf("tensors.BroadcastTo: shape %s cannot be broadcast to %s", t.shape, shape)
	}
	out := FromShape(shape)
	if t.Size() == 1 {
		v := t.data[0]
		for ii := range out.data {
			out.data[ii] = v
		}
		return out
	}
	iterate(shape, broadcastStrides(t.shape, shape), shape.Strides(), func(pos, offset, _ int) {
		out.data[pos] = t.data[offset]
	})
	return out
}

// SumAxes returns the sum over the given axes. With keepDims the reduced axes are kept with dimension 1,
// otherwise they are removed. Values are accumulated in row-major order of t.
func (t *Tensor) SumAxes(keepDims bool, axes ...int) *Tensor {
	t.AssertValid()
	rank := t.Rank()
	reduced := make([]bool, rank)
	for _, axis := range axes {
		if axis < 0 {
			axis += rank
		}
		if axis < 0 || axis >= rank {
			exceptions.Panicf("tensors.SumAxes: axis %v out-of-bounds for shape %s", axes, t.shape)
		}
		reduced[axis] = true
	}
	keptDims := make([]int, rank)
	var outDims []int
	for axis, dim := range t.shape.Dimensions {
		if reduced[axis] {
			keptDims[axis] = 1
			if keepDims {
				outDims = append(outDims, 1)
			}
		} else {
			keptDims[axis] = dim
			outDims = append(outDims, dim)
		}
	}
	keptShape := shapes.Shape{Dimensions: keptDims}
	outStrides := keptShape.Strides()
	for axis := range rank {
		if reduced[axis] {
			outStrides[axis] = 0
		}
	}
	out := FromShape(shapes.Shape{Dimensions: outDims})
	iterate(t.shape, t.shape.Strides(), outStrides, func(_, offsetT, offsetOut int) {
		out.data[offsetOut] += t.data[offsetT]
	})
	return out
}

// SumAll returns the rank-0 sum of all elements.
func (t *Tensor) SumAll() *Tensor {
	var sum float32
	for _, v := range t.data {
		sum += v
	}
	return FromScalar(sum)
}

// ReduceToShape sums t over the axes that broadcasting `shape` to t's shape would have expanded,
// returning a tensor of exactly `shape`. It is the inverse of BroadcastTo for the gradients of
// broadcast operands. It panics if `shape` is not broadcastable to t's shape.
func (t *Tensor) ReduceToShape(shape shapes.Shape) *Tensor {
	axes, err := shapes.ReductionAxes(t.shape, shape)
	if err != nil {
		panic(err)
	}
	if shape.IsScalar() {
		return t.SumAll()
	}
	folded := t.SumAxes(true, axes...)
	if folded.Rank() != shape.Rank() {
		// Drop the leading axes that don't exist in shape: they are all of dimension 1 now.
		return folded.Reshape(slices.Clone(shape.Dimensions)...)
	}
	return folded
}
