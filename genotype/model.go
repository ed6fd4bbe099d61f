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
	"math"

	"gonum.org/v1/gonum/mat"
)

// Model holds the substitution-rate matrices for a run. M is the full
// transition-weight matrix over genotypes, M0 its diagonal component
// (no mutation across a branch), and M1 the off-diagonal component
// (all mass that changes genotype). M0 + M1 == M holds exactly.
type Model struct {
	Genotypes []string
	M, M0, M1 *mat.Dense
}

// NewModel builds the substitution model for a mutation rate in Phred
// scale. M[i][j] = p^distance(i,j) with p the per-unit-distance
// mutation probability; each diagonal entry is then replaced with
// 2.0 minus the column sum excluding the diagonal, so that every
// column carries a total mass of 2.0, one per transmitted parental
// copy.
func NewModel(mu float64, gtypes []string) *Model {
	if mu < 0 || math.IsNaN(mu) || math.IsInf(mu, 0) {
		log.Panicf("invalid mutation rate %v", mu)
	}
	pmu := PhredToProb(mu)
	dist := GenotypeDistances(gtypes)
	n := len(gtypes)
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m.Set(i, j, math.Pow(pmu, float64(dist[i][j])))
		}
	}
	for j := 0; j < n; j++ {
		var colSum float64
		for i := 0; i < n; i++ {
			if i != j {
				colSum += m.At(i, j)
			}
		}
		m.Set(j, j, 2.0-colSum)
	}
	return decompose(m, gtypes)
}

// NewBiallelicModel builds the closed-form substitution model over the
// reduced RR/RA/AA genotype set, accounting for the two-step path of a
// double mutation.
func NewBiallelicModel(mu float64) *Model {
	pmu := PhredToProb(mu)
	nmu := 1 - pmu
	m := mat.NewDense(3, 3, []float64{
		nmu * nmu, 2 * pmu * nmu, pmu * pmu,
		nmu * pmu, pmu*pmu + nmu*nmu, nmu * pmu,
		pmu * pmu, 2 * pmu * nmu, nmu * nmu,
	})
	return decompose(m, Genotypes3)
}

func decompose(m *mat.Dense, gtypes []string) *Model {
	n, _ := m.Dims()
	m0 := mat.NewDense(n, n, nil)
	m1 := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				m0.Set(i, j, m.At(i, j))
			} else {
				m1.Set(i, j, m.At(i, j))
			}
		}
	}
	return &Model{Genotypes: gtypes, M: m, M0: m0, M1: m1}
}

// NewPrior builds the per-genotype prior likelihood vector for a
// heterozygosity rate in Phred scale: heterozygous genotypes are
// penalized by het Phred units relative to homozygous ones, and the
// result is normalized to unit probability mass. A rate of 0 yields a
// flat prior.
func NewPrior(het float64, gtypes []string) []float64 {
	if het < 0 || math.IsNaN(het) || math.IsInf(het, 0) {
		log.Panicf("invalid heterozygosity rate %v", het)
	}
	raw := make([]float64, len(gtypes))
	for i, g := range gtypes {
		if g[0] != g[1] {
			raw[i] = het
		}
	}
	return NormalizePL(raw)
}

// transition holds per-genotype scratch space for applying a
// transition matrix to Phred vectors. It is not safe for concurrent
// use; every worker allocates its own.
type transition struct {
	prob, out *mat.VecDense
}

func newTransition(n int) *transition {
	return &transition{
		prob: mat.NewVecDense(n, nil),
		out:  mat.NewVecDense(n, nil),
	}
}

// apply computes dst = PhredOf(ProbOf(src) . m), the transition matrix
// acting as a linear map over genotype-probability space. dst and src
// may be the same slice.
func (tr *transition) apply(dst, src []float64, m *mat.Dense) {
	phredToProbInto(tr.prob.RawVector().Data, src)
	tr.out.MulVec(m.T(), tr.prob)
	raw := tr.out.RawVector().Data
	for i := range dst {
		dst[i] = ProbToPhred(raw[i])
	}
}
