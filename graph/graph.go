// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graph is the core package of autograd: it builds lazy computation graphs over float32 tensors,
// evaluates them, and computes gradients by reverse-mode automatic differentiation.
//
// The main elements in the package are:
//
//   - Graph: the arena holding all nodes. Nodes are only appended, and a node's inputs always have a
//     smaller id than the node itself, so the graph is acyclic by construction.
//
//   - Node: the immutable result of an operation ("op" for short). E.g: Add, Sub, Mul, Conv2D, ReduceAllSum.
//     Nodes don't hold values: nothing is computed while building the graph.
//
//   - Op: the interface every operation implements: how to compute its output from its inputs values and
//     how to build the gradient sub-graph with respect to its inputs. New ops are added by implementing it.
//
//   - Context: holds the values. Persisted ones (variables and constants) and transient ones (fed
//     placeholders and computed values, dropped at the end of each evaluation).
//
// ## Delayed Execution
//
// It is helpful to keep the two "times" in mind:
//
//   - **Graph building time**: calling ops (Add, Mul, Conv2D, Gradient, ...) only appends nodes to the Graph.
//     Gradient itself returns new nodes, which can be differentiated again for higher order derivatives.
//
//   - **Evaluation time**: Context.Evaluate computes only the sub-graph needed by the requested nodes,
//     each shared node once, reusing fed and persisted values.
//
// ## Error Handling
//
// Misuse (unfed placeholders, incompatible shapes, mixing graphs, etc.) panics with an error carrying a stack
// trace, using github.com/gomlx/exceptions. Use Context.TryEvaluate to get an error instead.
//
// Example:
//
//	g := graph.New()
//	ctx := graph.NewContext(g)
//	x := graph.Placeholder(g, 2)
//	w := ctx.Variable(tensors.FromAnyValue([]float32{3, 4}))
//	loss := graph.ReduceAllSum(graph.Mul(x, w))
//	grads := graph.Gradient(loss, w)
//	ctx.Feed(x, tensors.FromAnyValue([]float32{1, 2}))
//	values := ctx.Evaluate(loss, grads[0]) // 11, [1 2]
package graph

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/google/uuid"
)

// NodeId is the index of a node in its Graph.
type NodeId int

// Graph is the arena holding the nodes of one computation.
//
// Building a graph is not safe for concurrent use: there must be a single writer.
// Once built, several Context objects may evaluate the same Graph concurrently.
type Graph struct {
	id    uuid.UUID
	nodes []*Node
}

// New creates a new empty Graph.
func New() *Graph {
	return &Graph{id: uuid.New()}
}

// Id is the unique identity of the graph.
func (g *Graph) Id() uuid.UUID {
	return g.id
}

// AssertValid panics if graph is nil.
func (g *Graph) AssertValid() {
	if g == nil {
		exceptions.Panicf("the Graph is nil")
	}
}

// NumNodes returns the number of nodes created so far.
func (g *Graph) NumNodes() int {
	g.AssertValid()
	return len(g.nodes)
}

// Node returns the node with the given id. It panics if the id is out of range.
func (g *Graph) Node(id NodeId) *Node {
	g.AssertValid()
	if id < 0 || int(id) >= len(g.nodes) {
		exceptions.Panicf("Graph.Node(%d): invalid id, graph has %d nodes", id, len(g.nodes))
	}
	return g.nodes[id]
}

// Nodes returns all nodes of the graph, indexed by their NodeId. The slice must not be modified.
func (g *Graph) Nodes() []*Node {
	g.AssertValid()
	return g.nodes
}

// Builder returns a new NodeBuilder, the only way to create nodes in the graph.
func (g *Graph) Builder() *NodeBuilder {
	g.AssertValid()
	return &NodeBuilder{graph: g, differentiable: true}
}

// String lists all nodes of the graph, one per line.
func (g *Graph) String() string {
	if g == nil {
		return "Graph(nil)"
	}
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "Graph %s: %d nodes\n", g.id, len(g.nodes))
	for _, node := range g.nodes {
		_, _ = fmt.Fprintf(&sb, "\t%s\n", node)
	}
	return sb.String()
}

// validateGraphFromInputs checks that all the inputs are valid nodes from the same graph, and returns the graph.
func validateGraphFromInputs(inputs ...*Node) *Graph {
	if len(inputs) == 0 {
		exceptions.Panicf("no input nodes given: at least one node is needed to determine the graph")
	}
	var g *Graph
	for ii, input := range inputs {
		if input == nil {
			exceptions.Panicf("input #%d is nil", ii)
		}
		if g == nil {
			g = input.graph
		} else if input.graph != g {
			exceptions.Panicf("input #%d (%s) is from a different graph (%s) than input #0 (%s): nodes from different graphs cannot be combined",
				ii, input, input.graph.id, g.id)
		}
	}
	g.AssertValid()
	return g
}
