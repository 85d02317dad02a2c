// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
)

// Node is an immutable vertex of the computation graph: the output of an Op applied to its inputs.
//
// Nodes don't hold values, those live in a Context. Two nodes with the same op and inputs are still
// different nodes: identity is given by the NodeId.
type Node struct {
	graph  *Graph
	id     NodeId
	op     Op
	inputs []*Node

	// shape is an optional sub-graph that evaluates to the shape of this node, as a 1-D tensor.
	shape *Node

	// differentiable is false for nodes the gradient should never be propagated through.
	differentiable bool
}

// Graph the node belongs to.
func (n *Node) Graph() *Graph {
	n.AssertValid()
	return n.graph
}

// Id of the node: its index in the Graph.
func (n *Node) Id() NodeId {
	n.AssertValid()
	return n.id
}

// Op that produces the node's output.
func (n *Node) Op() Op {
	n.AssertValid()
	return n.op
}

// Inputs of the node, as a copy.
func (n *Node) Inputs() []*Node {
	n.AssertValid()
	return slices.Clone(n.inputs)
}

// Input returns the i-th input.
func (n *Node) Input(i int) *Node {
	n.AssertValid()
	if i < 0 || i >= len(n.inputs) {
		exceptions.Panicf("Node.Input(%d): %s has %d inputs", i, n, len(n.inputs))
	}
	return n.inputs[i]
}

// NumInputs returns the number of inputs of the node.
func (n *Node) NumInputs() int {
	n.AssertValid()
	return len(n.inputs)
}

// IsDifferentiable returns whether gradients are propagated through this node.
func (n *Node) IsDifferentiable() bool {
	n.AssertValid()
	return n.differentiable
}

// HasDeclaredShape returns whether the node was built with a shape sub-graph.
func (n *Node) HasDeclaredShape() bool {
	n.AssertValid()
	return n.shape != nil
}

// Shape returns a node that evaluates to the shape of this node, as a 1-D tensor with the dimensions.
//
// If the node was built with a declared shape, that node is returned. Otherwise, a new ShapeOf(n) node is created,
// which requires n's value when evaluated.
func (n *Node) Shape() *Node {
	n.AssertValid()
	if n.shape != nil {
		return n.shape
	}
	return ShapeOf(n)
}

// IsPlaceholder returns whether the node is a placeholder, to be fed with Context.Feed.
func (n *Node) IsPlaceholder() bool {
	n.AssertValid()
	_, ok := n.op.(*placeholderOp)
	return ok
}

// IsVariable returns whether the node was created by Context.Variable.
func (n *Node) IsVariable() bool {
	n.AssertValid()
	op, ok := n.op.(*persistedOp)
	return ok && op.variable
}

// IsConstant returns whether the node was created by Context.Constant.
func (n *Node) IsConstant() bool {
	n.AssertValid()
	op, ok := n.op.(*persistedOp)
	return ok && !op.variable
}

// AssertValid panics if n is nil.
func (n *Node) AssertValid() {
	if n == nil {
		exceptions.Panicf("Node is nil")
	}
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "#%d %s(", n.id, n.op.Name())
	for ii, input := range n.inputs {
		if ii > 0 {
			sb.WriteString(", ")
		}
		_, _ = fmt.Fprintf(&sb, "#%d", input.id)
	}
	sb.WriteString(")")
	if n.shape != nil {
		_, _ = fmt.Fprintf(&sb, " shape=#%d", n.shape.id)
	}
	if !n.differentiable {
		sb.WriteString(" [no-grad]")
	}
	return sb.String()
}

// NodeBuilder configures and creates a new Node. Create it with Graph.Builder.
//
// Example:
//
//	node := g.Builder().SetInputs(x, shape).SetShape(shape).Build(&reduceToShapeOp{})
type NodeBuilder struct {
	graph          *Graph
	inputs         []*Node
	shape          *Node
	differentiable bool
}

// SetInputs sets the inputs of the new node. They must belong to the builder's graph.
// The slice is copied: changing it afterwards doesn't affect the node.
func (b *NodeBuilder) SetInputs(inputs ...*Node) *NodeBuilder {
	b.inputs = slices.Clone(inputs)
	return b
}

// SetShape declares the node that evaluates to the shape of the new node.
func (b *NodeBuilder) SetShape(shape *Node) *NodeBuilder {
	b.shape = shape
	return b
}

// SetDifferentiable sets whether gradients are propagated through the new node. Default is true.
func (b *NodeBuilder) SetDifferentiable(differentiable bool) *NodeBuilder {
	b.differentiable = differentiable
	return b
}

// Build appends the new node with the given op to the graph and returns it.
func (b *NodeBuilder) Build(op Op) *Node {
	if op == nil {
		exceptions.Panicf("NodeBuilder.Build: op is nil")
	}
	g := b.graph
	for ii, input := range b.inputs {
		if input == nil {
			exceptions.Panicf("NodeBuilder.Build(%s): input #%d is nil", op.Name(), ii)
		}
		if input.graph != g {
			exceptions.Panicf("NodeBuilder.Build(%s): input #%d (%s) is from a different graph", op.Name(), ii, input)
		}
	}
	if b.shape != nil && b.shape.graph != g {
		exceptions.Panicf("NodeBuilder.Build(%s): shape node %s is from a different graph", op.Name(), b.shape)
	}
	node := &Node{
		graph:          g,
		id:             NodeId(len(g.nodes)),
		op:             op,
		inputs:         b.inputs,
		shape:          b.shape,
		differentiable: b.differentiable,
	}
	g.nodes = append(g.nodes, node)
	return node
}
