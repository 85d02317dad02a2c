// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"fmt"
	"reflect"

	"github.com/gomlx/autograd/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

// Number is any Go type that can be converted to a tensor element.
type Number interface {
	constraints.Integer | constraints.Float
}

// FromValues converts the flat values to a float32 tensor with the given dimensions.
// If no dimensions are given, a 1-D tensor is created.
func FromValues[T Number](values []T, dimensions ...int) *Tensor {
	if len(dimensions) == 0 {
		dimensions = []int{len(values)}
	}
	data := make([]float32, len(values))
	for ii, v := range values {
		data[ii] = float32(v)
	}
	return FromFlat(data, dimensions...)
}

// FromFloat16 converts half-precision values to a float32 tensor with the given dimensions.
func FromFloat16(values []float16.Float16, dimensions ...int) *Tensor {
	if len(dimensions) == 0 {
		dimensions = []int{len(values)}
	}
	data := make([]float32, len(values))
	for ii, v := range values {
		data[ii] = v.Float32()
	}
	return FromFlat(data, dimensions...)
}

// Float16s returns a copy of the flat data converted to half-precision.
func (t *Tensor) Float16s() []float16.Float16 {
	values := make([]float16.Float16, len(t.data))
	for ii, v := range t.data {
		values[ii] = float16.Fromfloat32(v)
	}
	return values
}

var float16Type = reflect.TypeOf(float16.Float16(0))

// FromAnyValue converts a Go scalar or a regular multi-dimensional slice of any numeric type to a tensor.
// float16.Float16 values are converted by value, not as their uint16 bits.
// If value is already a *Tensor, it is returned as is.
//
// It panics if the value type is not supported or if the slices are irregular.
func FromAnyValue(value any) *Tensor {
	if t, ok := value.(*Tensor); ok {
		return t
	}
	v := reflect.ValueOf(value)
	shape, err := shapeForValue(v)
	if err != nil {
		panic(errors.WithMessagef(err, "tensors.FromAnyValue(%T)", value))
	}
	t := FromShape(shape)
	pos := 0
	copyValuesRecursively(v, t.data, &pos)
	return t
}

func shapeForValue(v reflect.Value) (shapes.Shape, error) {
	var dims []int
	for v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		if v.Len() == 0 {
			return shapes.Shape{}, errors.Errorf("empty slices can't be converted, use tensors.Zeros with a 0 dimension instead")
		}
		dims = append(dims, v.Len())
		v = v.Index(0)
	}
	if !isNumericKind(v.Kind()) {
		return shapes.Shape{}, errors.Errorf("unsupported element type %s", v.Type())
	}
	return shapes.Shape{Dimensions: dims}, nil
}

func isNumericKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// copyValuesRecursively flattens v into data, checking that all sub-slices have the same length.
func copyValuesRecursively(v reflect.Value, data []float32, pos *int) {
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		if *pos >= len(data) {
			exceptions.Panicf("tensors.FromAnyValue: irregular multi-dimensional slice")
		}
		switch {
		case v.Type() == float16Type:
			data[*pos] = float16.Float16(v.Uint()).Float32()
		case v.CanFloat():
			data[*pos] = float32(v.Float())
		case v.CanInt():
			data[*pos] = float32(v.Int())
		case v.CanUint():
			data[*pos] = float32(v.Uint())
		default:
			exceptions.Panicf("tensors.FromAnyValue: unsupported element type %s", v.Type())
		}
		*pos++
		return
	}
	var innerLen = -1
	for ii := range v.Len() {
		elem := v.Index(ii)
		if elem.Kind() == reflect.Slice || elem.Kind() == reflect.Array {
			if innerLen >= 0 && elem.Len() != innerLen {
				exceptions.Panicf("tensors.FromAnyValue: irregular multi-dimensional slice, sub-slices of lengths %d and %d", innerLen, elem.Len())
			}
			innerLen = elem.Len()
		}
		copyValuesRecursively(elem, data, pos)
	}
}

// Value returns a copy of the values as a Go float32 (rank 0) or a multi-dimensional []float32 slice.
// It is meant for tests and printing of small tensors.
func (t *Tensor) Value() any {
	if t.IsScalar() {
		return t.data[0]
	}
	flat := make([]float32, len(t.data))
	copy(flat, t.data)
	return buildSlicesRecursively(reflect.ValueOf(flat), t.shape.Dimensions).Interface()
}

func buildSlicesRecursively(flat reflect.Value, dims []int) reflect.Value {
	if len(dims) == 1 {
		return flat
	}
	sliceType := flat.Type()
	for range len(dims) - 1 {
		sliceType = reflect.SliceOf(sliceType)
	}
	result := reflect.MakeSlice(sliceType, dims[0], dims[0])
	if dims[0] == 0 {
		return result
	}
	stride := flat.Len() / dims[0]
	for ii := range dims[0] {
		sub := flat.Slice(ii*stride, (ii+1)*stride)
		result.Index(ii).Set(buildSlicesRecursively(sub, dims[1:]))
	}
	return result
}

// GoString implements fmt.GoStringer, it prints the Go value.
func (t *Tensor) GoString() string {
	return fmt.Sprintf("tensors.FromAnyValue(%#v)", t.Value())
}
