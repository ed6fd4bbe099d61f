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

import "testing"

func strongPL(slot int) []float64 {
	pl := make([]float64, NumGenotypes)
	for i := range pl {
		if i != slot {
			pl[i] = 200
		}
	}
	return pl
}

func TestEnumeratePlacementsCount(t *testing.T) {
	model := NewModel(80, Genotypes10)
	cases := []struct {
		newick string
		leaves int
	}{
		{"(0,1);", 2},
		{"((0,1),2);", 3},
		{"((0,1),(2,3));", 4},
		{"(((0,1),2),(3,4));", 5},
	}
	for _, c := range cases {
		lineage := mustTree(t, c.newick, c.leaves)
		pls := make([][]float64, c.leaves)
		for i := range pls {
			pls[i] = strongPL(0)
		}
		pl0 := Propagate(lineage, pls, model.M0)
		plm := EnumeratePlacements(lineage, pl0, model)
		if expected := 2*c.leaves - 2; len(plm) != expected {
			t.Errorf("%s: %d placements, expected %d", c.newick, len(plm), expected)
		}
		for loc, row := range plm {
			if len(row) != NumGenotypes {
				t.Errorf("%s: placement %d has %d genotype entries", c.newick, loc, len(row))
			}
		}
	}
}

func TestEnumeratePlacementsLocalizesMutation(t *testing.T) {
	// sample 3 carries CC while everyone else carries AA; the most
	// likely placement must be the edge isolating sample 3
	lineage := mustTree(t, "((0,1),(2,3));", 4)
	model := NewModel(80, Genotypes10)
	aa, cc := 0, 4
	pls := [][]float64{strongPL(aa), strongPL(aa), strongPL(aa), strongPL(cc)}
	pl0 := Propagate(lineage, pls, model.M0)
	plm := EnumeratePlacements(lineage, pl0, model)

	bestLoc, bestGeno := 0, 0
	best := plm[0][0]
	for loc, row := range plm {
		for j, v := range row {
			if v < best {
				best, bestLoc, bestGeno = v, loc, j
			}
		}
	}
	var sample3Leaf int
	for _, node := range lineage.Nodes {
		if node.IsLeaf() && node.SampleID() == 3 {
			sample3Leaf = node.ID
		}
	}
	if bestLoc != sample3Leaf {
		t.Errorf("best placement at node %d, expected leaf of sample 3 (node %d)", bestLoc, sample3Leaf)
	}
	if bestGeno != aa {
		t.Errorf("best ancestral genotype %s, expected AA", Genotypes10[bestGeno])
	}
}
