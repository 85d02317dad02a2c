// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements `Tensor`, a dense row-major multi-dimensional float32 array.
//
// It is the numeric storage behind every value computed by the graph package: fed placeholders,
// variables, constants and the outputs of ops. Tensors can be created with:
//
//   - FromShape(shape) / Zeros(dims...) / Ones(dims...) / Full(value, dims...): filled with a constant.
//   - FromFlat(data, dims...): wraps the flat data, without copying it.
//   - FromValues[T](values, dims...): converts any Go integer or float slice.
//   - FromAnyValue(value): a scalar or a regular multi-dimensional slice, e.g. `[][]float32{{1, 2}, {3, 4}}`.
//   - FromFloat16(data, dims...): converts half-precision data.
//
// Views: Reshape and ExpandDims return new tensors sharing the same storage. Anything that changes values
// (elementwise ops, broadcasting, reductions) returns a new tensor, except the explicit in-place methods
// (AddInPlace, SubInPlace, MulInPlace, DivInPlace), which mutate the receiver's storage.
package tensors

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/autograd/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Tensor is a dense float32 array of a given shape.
//
// The storage may be shared with other tensors (see Reshape), so in-place methods affect all views.
type Tensor struct {
	shape shapes.Shape
	data  []float32
}

// MaxSizeToPrint is the maximum number of elements printed by String.
var MaxSizeToPrint = 32

// FromShape returns a zero-filled tensor with the given shape.
func FromShape(shape shapes.Shape) *Tensor {
	return &Tensor{shape: shape.Clone(), data: make([]float32, shape.Size())}
}

// Zeros returns a zero-filled tensor with the given dimensions.
func Zeros(dimensions ...int) *Tensor {
	return FromShape(shapes.Make(dimensions...))
}

// Ones returns a tensor with the given dimensions filled with 1.
func Ones(dimensions ...int) *Tensor {
	return Full(1, dimensions...)
}

// Full returns a tensor with the given dimensions filled with value.
func Full(value float32, dimensions ...int) *Tensor {
	t := Zeros(dimensions...)
	for ii := range t.data {
		t.data[ii] = value
	}
	return t
}

// FromScalar returns a rank-0 tensor holding value.
func FromScalar(value float32) *Tensor {
	return &Tensor{data: []float32{value}}
}

// FromFlat returns a tensor with the given dimensions that wraps data, without copying it.
//
// It panics if len(data) doesn't match the number of elements of the shape.
func FromFlat(data []float32, dimensions ...int) *Tensor {
	shape := shapes.Make(dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("tensors.FromFlat: data has %d elements, but shape %s requires %d", len(data), shape, shape.Size())
	}
	return &Tensor{shape: shape, data: data}
}

// TryFromFlat is like FromFlat, but returns an error instead of panicking.
func TryFromFlat(data []float32, dimensions ...int) (t *Tensor, err error) {
	err = exceptions.TryCatch[error](func() { t = FromFlat(data, dimensions...) })
	if err != nil {
		err = errors.WithMessagef(err, "failed to create tensor with dimensions %v", dimensions)
	}
	return
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// Rank of the tensor.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size is the number of elements.
func (t *Tensor) Size() int { return len(t.data) }

// IsScalar returns whether the tensor has rank 0.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// Memory used by the tensor storage, in bytes.
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// Data returns the flat storage, in row-major order. It is not a copy: changes are visible to all views.
func (t *Tensor) Data() []float32 { return t.data }

// ScalarValue returns the single value of a tensor of size 1 (rank-0 or not). It panics otherwise.
func (t *Tensor) ScalarValue() float32 {
	if len(t.data) != 1 {
		exceptions.Panicf("tensors.ScalarValue: tensor of shape %s has %d elements", t.shape, len(t.data))
	}
	return t.data[0]
}

// AssertValid panics if t is nil.
func (t *Tensor) AssertValid() {
	if t == nil {
		exceptions.Panicf("tensor is nil")
	}
}

// Clone returns a copy of the tensor with its own storage.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: t.shape.Clone(), data: data}
}

// Reshape returns a view of the tensor with the new dimensions, sharing the same storage.
// It panics if the number of elements differs.
func (t *Tensor) Reshape(dimensions ...int) *Tensor {
	shape := shapes.Make(dimensions...)
	if shape.Size() != t.Size() {
		exceptions.Panicf("tensors.Reshape: cannot reshape %s (%d elements) to %s (%d elements)", t.shape, t.Size(), shape, shape.Size())
	}
	return &Tensor{shape: shape, data: t.data}
}

// ExpandDims returns a view of the tensor with a new axis of dimension 1 inserted at position axis.
// Negative axis counts from the end (-1 appends a new last axis).
func (t *Tensor) ExpandDims(axis int) *Tensor {
	rank := t.Rank()
	if axis < 0 {
		axis += rank + 1
	}
	if axis < 0 || axis > rank {
		exceptions.Panicf("tensors.ExpandDims(%d): invalid axis for tensor of rank %d", axis, rank)
	}
	dims := make([]int, 0, rank+1)
	dims = append(dims, t.shape.Dimensions[:axis]...)
	dims = append(dims, 1)
	dims = append(dims, t.shape.Dimensions[axis:]...)
	return &Tensor{shape: shapes.Shape{Dimensions: dims}, data: t.data}
}

// Equal checks whether both tensors have the same shape and exactly the same values.
func (t *Tensor) Equal(other *Tensor) bool {
	t.AssertValid()
	other.AssertValid()
	if t == other {
		return true
	}
	if !t.shape.Equal(other.shape) {
		return false
	}
	for ii, v := range t.data {
		if v != other.data[ii] {
			return false
		}
	}
	return true
}

// InDelta checks whether both tensors have the same shape and |t - other| <= delta element-wise.
func (t *Tensor) InDelta(other *Tensor, delta float64) bool {
	t.AssertValid()
	other.AssertValid()
	if t == other {
		return true
	}
	if !t.shape.Equal(other.shape) {
		return false
	}
	for ii, v := range t.data {
		if math.Abs(float64(v)-float64(other.data[ii])) > delta {
			return false
		}
	}
	return true
}

// SharesStorage returns whether both tensors are views over the same storage.
func (t *Tensor) SharesStorage(other *Tensor) bool {
	if len(t.data) == 0 || len(other.data) == 0 {
		return t == other
	}
	return &t.data[0] == &other.data[0]
}

// String implements fmt.Stringer. Large tensors are summarized.
func (t *Tensor) String() string {
	if t == nil {
		return "Tensor(nil)"
	}
	if t.Size() > MaxSizeToPrint {
		return fmt.Sprintf("Tensor%s{%d elements, %s}", t.shape, t.Size(), humanize.Bytes(uint64(t.Memory())))
	}
	if t.IsScalar() {
		return fmt.Sprintf("Tensor[]{%g}", t.data[0])
	}
	return fmt.Sprintf("Tensor%s%v", t.shape, t.Value())
}
