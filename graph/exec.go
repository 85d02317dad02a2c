// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/autograd/types"
	"github.com/gomlx/autograd/types/tensors"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Evaluate computes the values of the targets, in order.
//
// Only the sub-graph the targets depend on is computed, and shared nodes are computed once. Fed placeholders,
// variables and constants are used as is. After the evaluation all transient values are dropped, including
// the fed placeholders: they must be fed again for the next evaluation.
//
// It panics on errors (e.g.: a required placeholder was not fed), see TryEvaluate for a version returning an error.
func (ctx *Context) Evaluate(targets ...*Node) []*tensors.Tensor {
	for _, target := range targets {
		ctx.checkGraph(target)
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	defer ctx.lockedClearTransient()
	return ctx.lockedEvaluate(targets)
}

// Evaluate1 evaluates a single target. See Evaluate.
func (ctx *Context) Evaluate1(target *Node) *tensors.Tensor {
	return ctx.Evaluate(target)[0]
}

// TryEvaluate is like Evaluate, but returns an error instead of panicking.
func (ctx *Context) TryEvaluate(targets ...*Node) (values []*tensors.Tensor, err error) {
	err = exceptions.TryCatch[error](func() { values = ctx.Evaluate(targets...) })
	if err != nil {
		values = nil
		err = errors.WithMessagef(err, "failed to evaluate %d node(s)", len(targets))
	}
	return
}

// lockedValue returns the value of the node already available in the context, or nil.
func (ctx *Context) lockedValue(id NodeId) *tensors.Tensor {
	if value, found := ctx.transient[id]; found {
		return value
	}
	return ctx.persisted[id]
}

// lockedSchedule returns the nodes that need computing to evaluate targets, in an order where every node comes
// after its inputs: the reverse post-order of a depth-first traversal over the input edges.
// Nodes whose value is already available are not traversed.
func (ctx *Context) lockedSchedule(targets []*Node) []*Node {
	visited := types.MakeSet[NodeId]()
	var schedule []*Node
	type frame struct {
		node      *Node
		nextInput int
	}
	var stack []frame
	for _, target := range targets {
		if visited.Has(target.id) || ctx.lockedValue(target.id) != nil {
			continue
		}
		visited.Insert(target.id)
		stack = append(stack, frame{node: target})
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.nextInput < len(top.node.inputs) {
				input := top.node.inputs[top.nextInput]
				top.nextInput++
				if ctx.lockedValue(input.id) == nil && visited.Visit(input.id) {
					stack = append(stack, frame{node: input})
				}
				continue
			}
			schedule = append(schedule, top.node)
			stack = stack[:len(stack)-1]
		}
	}
	return schedule
}

func (ctx *Context) lockedEvaluate(targets []*Node) []*tensors.Tensor {
	start := time.Now()
	schedule := ctx.lockedSchedule(targets)
	for _, node := range schedule {
		ctx.transient[node.id] = ctx.lockedCompute(node)
	}
	values := make([]*tensors.Tensor, len(targets))
	for ii, target := range targets {
		values[ii] = ctx.lockedValue(target.id)
	}
	if klog.V(1).Enabled() {
		klog.Infof("evaluated %d target(s): computed %d node(s) in %s", len(targets), len(schedule), time.Since(start))
	}
	return values
}

// lockedCompute calls the node's op with the values of its inputs and resolves delegate results.
func (ctx *Context) lockedCompute(node *Node) *tensors.Tensor {
	inputs := make([]*tensors.Tensor, len(node.inputs))
	for ii, input := range node.inputs {
		inputs[ii] = ctx.lockedValue(input.id)
		if inputs[ii] == nil {
			exceptions.Panicf("evaluating %s: input #%d (%s) has no value", node, ii, input)
		}
	}
	results := node.op.Compute(&ComputeContext{node: node, inputs: inputs})
	if len(results) != 1 {
		exceptions.Panicf("evaluating %s: op %q returned %d results, wanted exactly 1", node, node.op.Name(), len(results))
	}
	result := results[0]
	if result.value != nil {
		if klog.V(2).Enabled() {
			klog.Infof("computed %s -> %s", node, result.value.Shape())
		}
		return result.value
	}
	switch {
	case result.delegate == -1:
		exceptions.Panicf("evaluating %s: op %q returned a nil value", node, node.op.Name())
	case result.delegate < 0 || result.delegate >= len(inputs):
		exceptions.Panicf("evaluating %s: op %q delegated to input #%d, but node has %d inputs",
			node, node.op.Name(), result.delegate, len(inputs))
	}
	if klog.V(2).Enabled() {
		klog.Infof("computed %s -> delegate to input #%d", node, result.delegate)
	}
	return inputs[result.delegate]
}

// lockedClearTransient drops all transient values, logging how much memory was released.
func (ctx *Context) lockedClearTransient() {
	if klog.V(1).Enabled() {
		seen := types.MakeSet[*tensors.Tensor](len(ctx.transient))
		var memory uintptr
		for _, value := range ctx.transient {
			if seen.Visit(value) {
				memory += value.Memory()
			}
		}
		klog.Infof("released %d transient value(s), %s", len(ctx.transient), humanize.Bytes(uint64(memory)))
	}
	clear(ctx.transient)
}
