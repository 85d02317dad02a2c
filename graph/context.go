// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"slices"
	"sync"

	"github.com/gomlx/autograd/types/shapes"
	"github.com/gomlx/autograd/types/tensors"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Context holds the values used to evaluate the nodes of one Graph:
//
//   - Persisted values: variables and constants, created with Context.Variable and Context.Constant.
//     They live as long as the Context.
//   - Transient values: fed placeholders and computed outputs. They are dropped at the end of each
//     call to Evaluate, so placeholders must be fed again before the next evaluation.
//
// Access to a Context is serialized with a mutex. Independent Contexts may evaluate the same Graph concurrently,
// as long as no new nodes are being added to it.
type Context struct {
	mu    sync.Mutex
	graph *Graph

	// persisted holds the values of variables and constants.
	persisted map[NodeId]*tensors.Tensor

	// variables in order of creation.
	variables []*Node

	// transient holds fed placeholders and computed values of the current evaluation.
	transient map[NodeId]*tensors.Tensor
}

// NewContext creates a new Context to evaluate nodes of g.
func NewContext(g *Graph) *Context {
	g.AssertValid()
	return &Context{
		graph:     g,
		persisted: make(map[NodeId]*tensors.Tensor),
		transient: make(map[NodeId]*tensors.Tensor),
	}
}

// Graph associated with the context.
func (ctx *Context) Graph() *Graph {
	return ctx.graph
}

func (ctx *Context) checkGraph(node *Node) {
	node.AssertValid()
	if node.graph != ctx.graph {
		exceptions.Panicf("node %s belongs to graph %s, but the Context was created for graph %s",
			node, node.graph.id, ctx.graph.id)
	}
}

// Variable creates a new variable node holding value, persisted in the context.
//
// Variables are the usual targets of Gradient. The value is not copied: in-place ops applied to the
// variable node update it.
func (ctx *Context) Variable(value *tensors.Tensor) *Node {
	return ctx.newPersisted(value, true)
}

// Constant creates a new constant node holding value, persisted in the context.
// Gradients are not propagated into constants.
func (ctx *Context) Constant(value *tensors.Tensor) *Node {
	return ctx.newPersisted(value, false)
}

func (ctx *Context) newPersisted(value *tensors.Tensor, variable bool) *Node {
	value.AssertValid()
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	g := ctx.graph
	node := g.Builder().
		SetShape(constShape(g, value.Shape())).
		SetDifferentiable(variable).
		Build(&persistedOp{variable: variable})
	ctx.persisted[node.id] = value
	if variable {
		ctx.variables = append(ctx.variables, node)
	}
	return node
}

// ListVariables returns the variables created in this context, in order of creation.
func (ctx *Context) ListVariables() []*Node {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return slices.Clone(ctx.variables)
}

// GetVariable returns the persisted value of a variable or constant node, and whether it was found.
func (ctx *Context) GetVariable(node *Node) (*tensors.Tensor, bool) {
	ctx.checkGraph(node)
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	value, found := ctx.persisted[node.id]
	return value, found
}

// SetVariable replaces the persisted value of a variable node. The new value must have the same shape.
func (ctx *Context) SetVariable(node *Node, value *tensors.Tensor) {
	ctx.checkGraph(node)
	value.AssertValid()
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	old, found := ctx.persisted[node.id]
	if !found || !node.IsVariable() {
		exceptions.Panicf("Context.SetVariable(%s): node is not a variable of this context", node)
	}
	if !old.Shape().Equal(value.Shape()) {
		exceptions.Panicf("Context.SetVariable(%s): new value shape %s differs from the variable shape %s",
			node, value.Shape(), old.Shape())
	}
	ctx.persisted[node.id] = value
}

// Feed sets the value of a placeholder for the next evaluation.
//
// It panics if node is not a placeholder or if the value's shape doesn't match the placeholder's dimensions
// (dimensions declared as -1 match any size).
func (ctx *Context) Feed(node *Node, value *tensors.Tensor) {
	ctx.feed(node, value, true)
}

// FeedUnchecked is like Feed, but it doesn't check the value's shape.
func (ctx *Context) FeedUnchecked(node *Node, value *tensors.Tensor) {
	ctx.feed(node, value, false)
}

func (ctx *Context) feed(node *Node, value *tensors.Tensor, checkShape bool) {
	ctx.checkGraph(node)
	value.AssertValid()
	op, ok := node.op.(*placeholderOp)
	if !ok {
		exceptions.Panicf("Context.Feed(%s): only placeholders can be fed", node)
	}
	if checkShape {
		if err := value.Shape().CheckDims(op.dims...); err != nil {
			panic(errors.WithMessagef(err, "Context.Feed(%s): value of shape %s doesn't match placeholder dimensions %v",
				node, value.Shape(), op.dims))
		}
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.transient[node.id] = value
}

// constShape returns a constant node holding the dimensions of shape as a 1-D tensor.
func constShape(g *Graph, shape shapes.Shape) *Node {
	return g.Builder().SetDifferentiable(false).Build(&constOp{value: shapeTensor(shape)})
}

// shapeTensor converts a shape to its 1-D tensor representation.
func shapeTensor(shape shapes.Shape) *tensors.Tensor {
	return tensors.FromFlat(shape.Float32s(), shape.Rank())
}

// tensorShape converts the 1-D tensor representation of a shape back to a Shape.
func tensorShape(t *tensors.Tensor) shapes.Shape {
	if t.Rank() != 1 {
		exceptions.Panicf("a shape value must be a 1-D tensor with the dimensions, got %s", t.Shape())
	}
	return shapes.FromFloat32s(t.Data())
}
