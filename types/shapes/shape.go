// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape and the broadcasting rules shared by tensors and graph ops.
//
// All values handled by this module are float32, so a Shape is only its list of dimensions.
//
// ## Glossary
//
//   - Rank: number of axes of a tensor.
//   - Axis: the index of a dimension. Dimension: the size of an axis.
//   - Scalar: a shape of rank 0, holding exactly one value. A shape with a 0-sized axis is not a scalar,
//     it is an empty tensor.
//   - Broadcast: NumPy style expansion. Shapes are aligned on their trailing axes; missing leading axes
//     count as size 1; an axis of size 1 can be expanded to any size.
//
// Example: `[][]float32{{0, 1, 2}, {3, 4, 5}}` has shape `[2 3]`, created with `shapes.Make(2, 3)`.
package shapes

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Shape of a dense float32 tensor.
//
// Use Make to create a new shape. The zero value is a scalar.
type Shape struct {
	Dimensions []int
}

// Make returns a Shape with the given dimensions.
// It panics if any dimension is negative.
func Make(dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions)}
	for _, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("shapes.Make(%v): cannot create a shape with a negative dimension", dimensions)
		}
	}
	return s
}

// Scalar returns the rank-0 shape.
func Scalar() Shape { return Shape{} }

// Rank of the shape, that is, the number of axes.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape has rank 0.
func (s Shape) IsScalar() bool { return len(s.Dimensions) == 0 }

// Dim returns the dimension of the given axis. Negative axes count from the end.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// Shape returns a shallow copy of itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// String implements fmt.Stringer.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return "[]"
	}
	return fmt.Sprintf("%v", s.Dimensions)
}

// Size returns the number of elements, the product of all dimensions.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Memory in bytes used by a float32 tensor of this shape.
func (s Shape) Memory() uintptr {
	return 4 * uintptr(s.Size())
}

// Equal compares the dimensions of two shapes.
func (s Shape) Equal(s2 Shape) bool {
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{Dimensions: slices.Clone(s.Dimensions)}
}

// Strides returns the row-major strides of each axis, in number of elements.
func (s Shape) Strides() []int {
	strides := make([]int, s.Rank())
	stride := 1
	for axis := s.Rank() - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= s.Dimensions[axis]
	}
	return strides
}

// WithLeadingOnes returns the shape left-padded with axes of dimension 1 up to the given rank.
// If the shape already has that rank or more, it is returned unchanged.
func (s Shape) WithLeadingOnes(rank int) Shape {
	if s.Rank() >= rank {
		return s
	}
	dims := make([]int, rank)
	pad := rank - s.Rank()
	for ii := range pad {
		dims[ii] = 1
	}
	copy(dims[pad:], s.Dimensions)
	return Shape{Dimensions: dims}
}

// Broadcast returns the shape resulting from broadcasting s1 and s2 against each other, NumPy style.
func Broadcast(s1, s2 Shape) (Shape, error) {
	rank := max(s1.Rank(), s2.Rank())
	p1, p2 := s1.WithLeadingOnes(rank), s2.WithLeadingOnes(rank)
	dims := make([]int, rank)
	for axis := range rank {
		d1, d2 := p1.Dimensions[axis], p2.Dimensions[axis]
		switch {
		case d1 == d2:
			dims[axis] = d1
		case d1 == 1:
			dims[axis] = d2
		case d2 == 1:
			dims[axis] = d1
		default:
			return Shape{}, errors.Errorf("shapes %s and %s cannot be broadcast: axis %d (aligned to the right) has dimensions %d and %d",
				s1, s2, axis, d1, d2)
		}
	}
	return Shape{Dimensions: dims}, nil
}

// IsBroadcastable returns whether `from` can be broadcast (expanded) to exactly the shape `to`.
func IsBroadcastable(from, to Shape) bool {
	return checkBroadcastable(from, to) == nil
}

func checkBroadcastable(from, to Shape) error {
	if from.Rank() > to.Rank() {
		return errors.Errorf("shape %s has larger rank than %s, it cannot be broadcast to it", from, to)
	}
	padded := from.WithLeadingOnes(to.Rank())
	for axis, dim := range padded.Dimensions {
		if dim != 1 && dim != to.Dimensions[axis] {
			return errors.Errorf("shape %s cannot be broadcast to %s: axis %d (aligned to the right) has dimension %d, wanted 1 or %d",
				from, to, axis, dim, to.Dimensions[axis])
		}
	}
	return nil
}

// ReductionAxes returns the axes of `broadcast` that have to be summed over to fold a value of shape
// `broadcast` back to `reduced`. It is the inverse of broadcasting `reduced` to `broadcast`:
// leading axes missing in `reduced` and axes where `reduced` has dimension 1 but `broadcast` is larger.
//
// A scalar `reduced` yields all axes. It returns an error if `reduced` cannot be broadcast to `broadcast`.
func ReductionAxes(broadcast, reduced Shape) ([]int, error) {
	if err := checkBroadcastable(reduced, broadcast); err != nil {
		return nil, errors.WithMessagef(err, "cannot reduce shape %s to %s", broadcast, reduced)
	}
	padded := reduced.WithLeadingOnes(broadcast.Rank())
	numLeading := broadcast.Rank() - reduced.Rank()
	var axes []int
	for axis, dim := range broadcast.Dimensions {
		if axis < numLeading || (padded.Dimensions[axis] == 1 && dim != 1) {
			axes = append(axes, axis)
		}
	}
	return axes, nil
}

// FromFloat32s converts a 1-D float32 representation of dimensions (as returned by a shape node)
// back to a Shape. It panics on negative or non-integer values.
func FromFloat32s(values []float32) Shape {
	dims := make([]int, len(values))
	for ii, v := range values {
		dims[ii] = int(v)
		if float32(dims[ii]) != v || dims[ii] < 0 {
			exceptions.Panicf("shapes.FromFloat32s(%v): dimension #%d is not a non-negative integer", values, ii)
		}
	}
	return Shape{Dimensions: dims}
}

// Float32s returns the dimensions as float32 values, the representation used by shape nodes.
func (s Shape) Float32s() []float32 {
	values := make([]float32, s.Rank())
	for ii, dim := range s.Dimensions {
		values[ii] = float32(dim)
	}
	return values
}
