// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// UncheckedAxis can be used in CheckDims or AssertDims for an axis whose dimension doesn't matter.
const UncheckedAxis = int(-1)

// HasShape is implemented by objects that have an associated Shape, like `tensors.Tensor`.
type HasShape interface {
	Shape() Shape
}

// CheckDims checks that the shape has the given rank and dimensions. UncheckedAxis (-1) matches any dimension.
func (s Shape) CheckDims(dimensions ...int) error {
	if s.Rank() != len(dimensions) {
		return errors.Errorf("shape %s has incompatible rank %d (wanted %d)", s, s.Rank(), len(dimensions))
	}
	for ii, wantDim := range dimensions {
		if wantDim != UncheckedAxis && s.Dimensions[ii] != wantDim {
			return errors.Errorf("shape %s axis %d has dimension %d, wanted %d (shape wanted=%v)", s, ii, s.Dimensions[ii], wantDim, dimensions)
		}
	}
	return nil
}

// AssertDims panics if the shape doesn't have the given rank and dimensions.
func (s Shape) AssertDims(dimensions ...int) {
	if err := s.CheckDims(dimensions...); err != nil {
		exceptions.Panicf("shapes.AssertDims(%v): %+v", dimensions, err)
	}
}

// AssertRank panics if the shape of `shaped` doesn't have the given rank.
func AssertRank(shaped HasShape, rank int) {
	s := shaped.Shape()
	if s.Rank() != rank {
		exceptions.Panicf("shapes.AssertRank(%d): got shape %s with rank %d", rank, s, s.Rank())
	}
}

// AssertDims panics if the shape of `shaped` doesn't have the given dimensions.
func AssertDims(shaped HasShape, dimensions ...int) {
	shaped.Shape().AssertDims(dimensions...)
}
