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
	"github.com/treegeno/treegeno/tree"
)

// EnumeratePlacements computes, for one site, the likelihood of the
// data under "exactly one mutation occurred, on the edge above node
// i" for every node i below the root, given the per-node no-mutation
// aggregates from Propagate with M0.
//
// The result is indexed by the id of the node below the mutant edge,
// covering ids 0 .. root-1; entry i is the root-level Phred vector
// over ancestral genotypes for that placement. The root itself is
// never a placement: a mutation above the root is indistinguishable
// from a different ancestral genotype.
//
// The recurrence works post-order. At an internal node, placements
// already enumerated inside a child's subtree are pushed up through
// M0 (the mutation happened deeper, so this edge is mutation-free)
// and combined with the sibling's no-mutation aggregate through M0;
// one new placement per child puts the mutation on the child's own
// edge by pushing the child's no-mutation aggregate through M1
// instead. Since node ids are post-order, a child's subtree
// placements are exactly the contiguous id range
// [child.FirstID, child.ID-1], and its own edge is child.ID.
func EnumeratePlacements(t *tree.Tree, pl0 [][]float64, model *Model) [][]float64 {
	g := len(model.Genotypes)
	tr := newTransition(g)
	plm := make([][]float64, t.Root.ID)
	sib := make([]float64, g)
	tmp := make([]float64, g)
	for _, node := range t.Nodes {
		if node.IsLeaf() {
			continue
		}
		for ci, child := range node.Children {
			// combined no-mutation contribution of all siblings
			for i := range sib {
				sib[i] = 0
			}
			for cj, other := range node.Children {
				if cj == ci {
					continue
				}
				tr.apply(tmp, pl0[other.ID], model.M0)
				addPL(sib, tmp)
			}
			for e := child.FirstID; e < child.ID; e++ {
				tr.apply(plm[e], plm[e], model.M0)
				addPL(plm[e], sib)
			}
			row := make([]float64, g)
			tr.apply(row, pl0[child.ID], model.M1)
			addPL(row, sib)
			plm[child.ID] = row
		}
	}
	return plm
}
