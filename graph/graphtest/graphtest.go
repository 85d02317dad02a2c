// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graphtest holds test utilities for packages that depend on the graph package.
package graphtest

import (
	"fmt"
	"testing"

	"github.com/gomlx/autograd/graph"
	"github.com/gomlx/autograd/types/shapes"
	"github.com/gomlx/autograd/types/tensors"
	"github.com/stretchr/testify/require"
)

// Epsilon is the default margin used when comparing float32 results.
const Epsilon = 1e-4

// TestGraphFn should build its own inputs, and return both inputs and outputs.
// Values needed (placeholders, variables) should be fed/created in ctx.
type TestGraphFn func(g *graph.Graph, ctx *graph.Context) (inputs, outputs []*graph.Node)

// RunTestGraphFn tests a graph building function graphFn by evaluating it and comparing
// its output(s) to the values in want, reporting back any errors in t.
//
// Values in want can be anything accepted by tensors.FromAnyValue, or a shapes.Shape for a zero tensor.
// delta is the margin of value on the difference of output and want values that are acceptable.
// Values of delta <= 0 means only exact equality is accepted.
func RunTestGraphFn(t *testing.T, testName string, graphFn TestGraphFn, want []any, delta float64) {
	t.Run(testName, func(t *testing.T) {
		wantTensors := make([]*tensors.Tensor, len(want))
		for ii, value := range want {
			if s, ok := value.(shapes.Shape); ok {
				wantTensors[ii] = tensors.FromShape(s)
			} else {
				wantTensors[ii] = tensors.FromAnyValue(value)
			}
		}

		g := graph.New()
		ctx := graph.NewContext(g)
		inputs, outputs := graphFn(g, ctx)
		numInputs := len(inputs)
		all := append(append([]*graph.Node{}, inputs...), outputs...)
		var values []*tensors.Tensor
		require.NotPanicsf(t, func() { values = ctx.Evaluate(all...) }, "%s: failed to evaluate graph", testName)
		for ii, value := range values {
			require.NotNilf(t, value, "%s: value #%d is nil", testName, ii)
		}

		fmt.Printf("\n%s:\n", testName)
		for ii, input := range values[:numInputs] {
			fmt.Printf("\tInput %d: %s\n", ii, input)
		}
		if numInputs > 0 {
			fmt.Printf("\t======\n")
		}
		for ii, output := range values[numInputs:] {
			fmt.Printf("\tOutput %d: %s\n", ii, output)
		}
		require.Equalf(t, len(want), len(outputs), "%s: number of wanted results different from number of outputs", testName)
		for ii, output := range values[numInputs:] {
			require.Truef(t, wantTensors[ii].InDelta(output, max(delta, 0)), "%s: output #%d %s doesn't match wanted value %v",
				testName, ii, output, want[ii])
		}
	})
}
