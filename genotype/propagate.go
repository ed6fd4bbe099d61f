// treeGeno: genotype calling and mutation placement on cell lineage trees.
// Copyright (c) 2021 the treeGeno authors.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License along with this program. If not, see
// <https://github.com/treegeno/treegeno/blob/master/LICENSE.txt>.

package genotype

import (
	"log"

	"github.com/treegeno/treegeno/tree"
	"gonum.org/v1/gonum/mat"
)

// Propagate runs the pruning algorithm for one site: per-sample Phred
// likelihood vectors are aggregated from the leaves to the root under
// the given transition matrix. The result maps node id to the
// aggregate Phred vector at that node.
//
// A leaf's aggregate is its sample's input vector unchanged. An
// internal node's aggregate is the Phred-domain sum over its children
// of the child aggregate pushed through the transition matrix, which
// represents the product of the children's conditionally independent
// likelihoods.
//
// Propagating with the full matrix M yields the any-mutation-history
// aggregate; propagating with M0 yields the no-mutation aggregate.
func Propagate(t *tree.Tree, pls [][]float64, m *mat.Dense) [][]float64 {
	g, _ := m.Dims()
	tr := newTransition(g)
	out := make([][]float64, len(t.Nodes))
	tmp := make([]float64, g)
	// post-order: children are visited before their parents
	for _, node := range t.Nodes {
		if node.IsLeaf() {
			pl := pls[node.SampleID()]
			if len(pl) != g {
				log.Panicf("likelihood vector for sample %d has %d entries, expected %d", node.SampleID(), len(pl), g)
			}
			out[node.ID] = append([]float64(nil), pl...)
			continue
		}
		agg := make([]float64, g)
		for _, child := range node.Children {
			tr.apply(tmp, out[child.ID], m)
			addPL(agg, tmp)
		}
		out[node.ID] = agg
	}
	return out
}
