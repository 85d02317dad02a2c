// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/autograd/types/tensors"
	"github.com/gomlx/exceptions"
)

// Op is the contract every operation implements.
type Op interface {
	// Name of the op, used for printing. It may include the op parameters.
	Name() string

	// Compute the output of the node, given the values of its inputs in ctx.
	// It must return exactly one result.
	Compute(ctx *ComputeContext) []ComputeResult

	// Grad builds the gradient sub-graph: given gy, the gradient of the differentiated output with respect
	// to this node's output, it returns one node per input with the gradient with respect to that input.
	// A nil entry means no gradient flows into that input.
	Grad(gy *Node, inputs []*Node, output *Node) []*Node
}

// ComputeContext is passed to Op.Compute with the node being computed and the values of its inputs.
type ComputeContext struct {
	node   *Node
	inputs []*tensors.Tensor
}

// Node being computed.
func (c *ComputeContext) Node() *Node { return c.node }

// Inputs returns the values of all inputs, in order.
func (c *ComputeContext) Inputs() []*tensors.Tensor { return c.inputs }

// NumInputs returns the number of inputs.
func (c *ComputeContext) NumInputs() int { return len(c.inputs) }

// Input returns the value of the i-th input.
func (c *ComputeContext) Input(i int) *tensors.Tensor {
	if i < 0 || i >= len(c.inputs) {
		exceptions.Panicf("ComputeContext.Input(%d): node %s has %d inputs", i, c.node, len(c.inputs))
	}
	return c.inputs[i]
}

// InputNode returns the i-th input node.
func (c *ComputeContext) InputNode(i int) *Node { return c.node.Input(i) }

// ComputeResult is the output of Op.Compute: either a concrete value or a delegation to one of the inputs,
// meaning the output is exactly that input's value, with no copy.
type ComputeResult struct {
	value    *tensors.Tensor
	delegate int
}

// Value returns a ComputeResult holding a concrete value.
func Value(t *tensors.Tensor) ComputeResult {
	return ComputeResult{value: t, delegate: -1}
}

// Delegate returns a ComputeResult that resolves to the value of the input with the given index.
func Delegate(input int) ComputeResult {
	return ComputeResult{delegate: input}
}

// Results wraps a single value as the result slice of Op.Compute.
func Results(t *tensors.Tensor) []ComputeResult {
	return []ComputeResult{Value(t)}
}

// IsDelegate returns whether the result delegates to an input.
func (r ComputeResult) IsDelegate() bool { return r.value == nil && r.delegate >= 0 }

// DelegateIndex returns the input index of a delegate result, or -1.
func (r ComputeResult) DelegateIndex() int {
	if r.value != nil {
		return -1
	}
	return r.delegate
}

// Tensor returns the concrete value, or nil for a delegate result.
func (r ComputeResult) Tensor() *tensors.Tensor { return r.value }
