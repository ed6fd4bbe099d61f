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

func checkDecomposition(t *testing.T, model *Model) {
	t.Helper()
	n := len(model.Genotypes)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if model.M0.At(i, j)+model.M1.At(i, j) != model.M.At(i, j) {
				t.Errorf("M0+M1 != M at (%d,%d)", i, j)
			}
			if i == j && model.M1.At(i, j) != 0 {
				t.Errorf("M1 has diagonal mass at %d", i)
			}
			if i != j && model.M0.At(i, j) != 0 {
				t.Errorf("M0 has off-diagonal mass at (%d,%d)", i, j)
			}
		}
	}
}

func TestNewModel(t *testing.T) {
	for _, mu := range []float64{10, 30, 80} {
		model := NewModel(mu, Genotypes10)
		checkDecomposition(t, model)
		// columns carry a total mass of 2.0, one per parental copy
		for j := 0; j < NumGenotypes; j++ {
			var colSum float64
			for i := 0; i < NumGenotypes; i++ {
				colSum += model.M.At(i, j)
			}
			if !floatsClose(colSum, 2.0, 1e-9) {
				t.Errorf("mu %v: column %d sums to %v, expected 2.0", mu, j, colSum)
			}
		}
		// off-diagonal mass follows p^distance
		pmu := PhredToProb(mu)
		dist := GenotypeDistances(Genotypes10)
		for i := 0; i < NumGenotypes; i++ {
			for j := 0; j < NumGenotypes; j++ {
				if i == j {
					continue
				}
				expected := pmu
				if dist[i][j] == 2 {
					expected = pmu * pmu
				}
				if !floatsClose(model.M.At(i, j), expected, 1e-15) {
					t.Errorf("mu %v: M[%d][%d] = %v, expected %v", mu, i, j, model.M.At(i, j), expected)
				}
			}
		}
	}
}

func TestNewBiallelicModel(t *testing.T) {
	model := NewBiallelicModel(30)
	checkDecomposition(t, model)
	pmu := PhredToProb(30.0)
	if !floatsClose(model.M.At(0, 0), (1-pmu)*(1-pmu), 1e-15) {
		t.Errorf("biallelic M[0][0] = %v", model.M.At(0, 0))
	}
	if !floatsClose(model.M.At(0, 1), 2*pmu*(1-pmu), 1e-15) {
		t.Errorf("biallelic M[0][1] = %v", model.M.At(0, 1))
	}
	if !floatsClose(model.M.At(0, 2), pmu*pmu, 1e-15) {
		t.Errorf("biallelic M[0][2] = %v", model.M.At(0, 2))
	}
}

func TestNewPrior(t *testing.T) {
	prior := NewPrior(30, Genotypes10)
	for i, g := range Genotypes10 {
		if g[0] == g[1] {
			if !floatsClose(prior[i], 6.0271094, 1e-5) {
				t.Errorf("homozygous prior %s = %v", g, prior[i])
			}
		} else if !floatsClose(prior[i], 36.027109, 1e-5) {
			t.Errorf("heterozygous prior %s = %v", g, prior[i])
		}
	}

	prior3 := NewPrior(30, Genotypes3)
	expected3 := []float64{3.0124709, 33.012471, 3.0124709}
	for i, v := range expected3 {
		if !floatsClose(prior3[i], v, 1e-5) {
			t.Errorf("GTYPE3 prior[%d] = %v, expected %v", i, prior3[i], v)
		}
	}

	// het 0 disables the informative prior
	flat := NewPrior(0, Genotypes10)
	for i := 1; i < len(flat); i++ {
		if flat[i] != flat[0] {
			t.Errorf("prior with het 0 is not flat: %v", flat)
		}
	}
}
