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

	"github.com/exascience/pargo/parallel"
	"github.com/treegeno/treegeno/tree"
)

// Site is one genomic position with its per-sample Phred genotype
// likelihoods, shape samples x genotypes in the Genotypes10 order.
type Site struct {
	Chrom string
	Pos   int32
	Ref   byte
	PL    [][]float64
}

// Record is the per-site call emitted by the caller. All probabilities
// are normalized against the total mass of the any-mutation-history
// model, so they are comparable across hypotheses.
type Record struct {
	Chrom string
	Pos   int32
	Ref   byte

	// NullP is the normalized probability that no mutation occurred
	// anywhere in the tree, MutP that exactly one did.
	NullP float64
	MutP  float64

	// NullGenotype is the best ancestral genotype under the
	// no-mutation hypothesis, with its normalized probability.
	NullGenotype  string
	NullGenotypeP float64

	// MutAncestral and MutDerived are the genotypes before and after
	// the mutation for the best single-mutation scenario, whose
	// normalized probability is MutGenotypeP.
	MutAncestral string
	MutDerived   string
	MutGenotypeP float64

	// MutLocation is the id of the node below the mutant edge, and
	// MutSamples the sorted samples that inherit the mutant genotype.
	MutLocation int
	MutSamples  []int
}

// A Caller runs the per-site decision logic for a fixed tree, model,
// and prior. It is read-only after construction and safe for
// concurrent use.
type Caller struct {
	Tree  *tree.Tree
	Model *Model
	Prior []float64
}

// NewCaller validates the model/prior cardinalities and returns a
// caller.
func NewCaller(t *tree.Tree, model *Model, prior []float64) *Caller {
	if len(prior) != len(model.Genotypes) {
		log.Panicf("prior has %d entries for %d genotypes", len(prior), len(model.Genotypes))
	}
	return &Caller{Tree: t, Model: model, Prior: prior}
}

// CallBatch calls every site of a batch and returns the records in
// input order, together with the batch score, the sum over sites of
// PhredOf(MutP + NullP). Sites are independent, so they are processed
// in parallel; batch boundaries have no effect on per-site results.
func (c *Caller) CallBatch(sites []Site) ([]Record, float64) {
	records := make([]Record, len(sites))
	parallel.Range(0, len(sites), 0, func(low, high int) {
		for i := low; i < high; i++ {
			records[i] = c.CallSite(&sites[i])
		}
	})
	var score float64
	for i := range records {
		score += ProbToPhred(records[i].MutP + records[i].NullP)
	}
	return records, score
}

// CallSite runs the three aggregation passes for one site and turns
// them into a call.
func (c *Caller) CallSite(site *Site) Record {
	g := len(c.Model.Genotypes)
	if len(site.PL) < c.Tree.NumLeaves {
		log.Panicf("%s:%d: %d likelihood vectors for %d tree leaves", site.Chrom, site.Pos, len(site.PL), c.Tree.NumLeaves)
	}

	pl := Propagate(c.Tree, site.PL, c.Model.M)
	pl0 := Propagate(c.Tree, site.PL, c.Model.M0)
	plm := EnumeratePlacements(c.Tree, pl0, c.Model)

	rootID := c.Tree.Root.ID
	rootPL := append([]float64(nil), pl[rootID]...)
	rootPL0 := append([]float64(nil), pl0[rootID]...)
	addPL(rootPL, c.Prior)
	addPL(rootPL0, c.Prior)

	var totalMass float64
	for _, v := range rootPL {
		totalMass += PhredToProb(v)
	}
	if totalMass <= 0 {
		log.Panicf("%s:%d: zero total probability mass", site.Chrom, site.Pos)
	}

	// null hypothesis: best genotype assuming no mutation anywhere
	k0 := argminPL(rootPL0)
	var nullMass float64
	for _, v := range rootPL0 {
		nullMass += PhredToProb(v)
	}

	// mutation hypothesis: scan all (location, genotype) pairs; ties
	// break at the first index encountered
	bestLoc, bestGeno := 0, 0
	best := 0.0
	first := true
	var mutMass float64
	for loc, row := range plm {
		for j := 0; j < g; j++ {
			v := row[j] + c.Prior[j]
			mutMass += PhredToProb(v)
			if first || v < best {
				best, bestLoc, bestGeno, first = v, loc, j, false
			}
		}
	}

	// the post-mutation genotype at the chosen edge is read off the
	// location's own no-mutation aggregate, without the root prior
	k2 := argminPL(pl0[bestLoc])

	return Record{
		Chrom:         site.Chrom,
		Pos:           site.Pos,
		Ref:           site.Ref,
		NullP:         nullMass / totalMass,
		MutP:          mutMass / totalMass,
		NullGenotype:  c.Model.Genotypes[k0],
		NullGenotypeP: PhredToProb(rootPL0[k0]) / totalMass,
		MutAncestral:  c.Model.Genotypes[bestGeno],
		MutDerived:    c.Model.Genotypes[k2],
		MutGenotypeP:  PhredToProb(best) / totalMass,
		MutLocation:   bestLoc,
		MutSamples:    c.Tree.Nodes[bestLoc].Samples,
	}
}

func argminPL(x []float64) int {
	min := 0
	for i, v := range x {
		if v < x[min] {
			min = i
		}
	}
	return min
}
