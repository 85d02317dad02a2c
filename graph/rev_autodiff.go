// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// Notation:
//
//   - output: the node being differentiated. It doesn't need to be a scalar: the seed gives the
//     gradient of some implicit final value with respect to output, by default all ones.
//   - targets: the nodes with respect to which we want the gradients.
//   - contributions: each consumer of a node back-propagates one gradient (one "contribution") into it. The
//     gradient of a node is the sum of all its contributions.

// reverseNode holds the information collected for one node while building the gradients.
type reverseNode struct {
	// included is true for nodes output depends on.
	included bool

	// useful is true for nodes in a path from a target to the output: only those need gradients.
	useful bool

	// contributions back-propagated by the node's consumers, summed before the node's own Grad runs.
	contributions []*Node
}

// Gradient builds the gradients of output with respect to each of the targets, seeded with OnesLike(output).
//
// It returns one node per target, or nil for targets output doesn't depend on (or if the dependency is
// only through StopGradient or other non-differentiable nodes).
// The returned nodes are regular nodes: they can be evaluated, or differentiated again for higher order derivatives.
func Gradient(output *Node, targets ...*Node) []*Node {
	return GradientWithSeed(output, OnesLike(output), targets...)
}

// GradientWithSeed is like Gradient, but uses the given seed as the gradient with respect to output.
// The seed must have the same shape as output.
func GradientWithSeed(output, seed *Node, targets ...*Node) []*Node {
	allNodes := make([]*Node, 0, len(targets)+2)
	allNodes = append(allNodes, output, seed)
	allNodes = append(allNodes, targets...)
	g := validateGraphFromInputs(allNodes...)
	if len(targets) == 0 {
		klog.Warningf("Gradient(%s) called with no targets", output)
		return nil
	}

	// Only nodes created so far take part in the gradient: the output can't depend on later ones.
	numNodes := int(output.id) + 1
	rNodes := make([]reverseNode, numNodes)
	markIncluded(rNodes, output)
	consumers := buildConsumers(g, rNodes, numNodes)
	for _, target := range targets {
		if int(target.id) < numNodes {
			markUseful(rNodes, consumers, target.id)
		}
	}
	rNodes[output.id].contributions = []*Node{seed}

	// needsGradient returns whether the gradient for the node must be built.
	needsGradient := func(node *Node) bool {
		rNode := &rNodes[node.id]
		return rNode.included && rNode.useful && node.differentiable
	}

	// Nodes are visited in descending id order: since inputs always have smaller ids than their consumers,
	// all contributions to a node are collected by the time it is reached.
	for id := numNodes - 1; id >= 0; id-- {
		node := g.nodes[id]
		rNode := &rNodes[id]
		if !needsGradient(node) || len(rNode.contributions) == 0 {
			continue
		}
		needInputs := false
		for _, input := range node.inputs {
			if needsGradient(input) {
				needInputs = true
				break
			}
		}
		if !needInputs {
			continue
		}

		gy := sumContributions(rNode)
		inputsGrads := node.op.Grad(gy, node.inputs, node)
		if len(inputsGrads) != len(node.inputs) {
			exceptions.Panicf("gradient of %s: op %q returned %d gradients, but node has %d inputs -- the op's Grad implementation is broken",
				node, node.op.Name(), len(inputsGrads), len(node.inputs))
		}
		for ii, input := range node.inputs {
			grad := inputsGrads[ii]
			if grad == nil || !needsGradient(input) {
				continue
			}
			if grad.graph != g {
				exceptions.Panicf("gradient of %s: op %q returned gradient for input #%d from a different graph", node, node.op.Name(), ii)
			}
			rInput := &rNodes[input.id]
			rInput.contributions = append(rInput.contributions, grad)
		}
	}

	gradients := make([]*Node, len(targets))
	for ii, target := range targets {
		if int(target.id) >= numNodes || !target.differentiable {
			continue
		}
		rTarget := &rNodes[target.id]
		if len(rTarget.contributions) > 0 {
			gradients[ii] = sumContributions(rTarget)
		}
	}
	return gradients
}

// sumContributions collapses the node's contributions into one node, summing them with Add.
func sumContributions(rNode *reverseNode) *Node {
	sum := rNode.contributions[0]
	for _, contribution := range rNode.contributions[1:] {
		sum = Add(sum, contribution)
	}
	rNode.contributions = []*Node{sum}
	return sum
}

// markIncluded marks output and all nodes it depends on as included.
func markIncluded(rNodes []reverseNode, output *Node) {
	stack := []*Node{output}
	rNodes[output.id].included = true
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, input := range node.inputs {
			if !rNodes[input.id].included {
				rNodes[input.id].included = true
				stack = append(stack, input)
			}
		}
	}
}

// buildConsumers returns, for each included node, the ids of the included nodes that consume it.
func buildConsumers(g *Graph, rNodes []reverseNode, numNodes int) [][]NodeId {
	consumers := make([][]NodeId, numNodes)
	for id := range numNodes {
		if !rNodes[id].included {
			continue
		}
		for _, input := range g.nodes[id].inputs {
			consumers[input.id] = append(consumers[input.id], NodeId(id))
		}
	}
	return consumers
}

// markUseful marks the target and all included nodes that consume it, directly or indirectly, as useful.
func markUseful(rNodes []reverseNode, consumers [][]NodeId, target NodeId) {
	if !rNodes[target].included || rNodes[target].useful {
		return
	}
	rNodes[target].useful = true
	stack := []NodeId{target}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, consumer := range consumers[id] {
			if !rNodes[consumer].useful {
				rNodes[consumer].useful = true
				stack = append(stack, consumer)
			}
		}
	}
}
