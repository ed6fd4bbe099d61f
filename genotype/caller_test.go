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
	"reflect"
	"testing"
)

func testCaller(t *testing.T, newick string, numSamples int) *Caller {
	t.Helper()
	lineage := mustTree(t, newick, numSamples)
	model := NewModel(80, Genotypes10)
	prior := NewPrior(30, Genotypes10)
	return NewCaller(lineage, model, prior)
}

func TestCallSiteConcordant(t *testing.T) {
	// every sample strongly supports the same homozygous genotype:
	// no mutation must be the better explanation
	caller := testCaller(t, "((0,1),2);", 3)
	site := Site{Chrom: "1", Pos: 100, Ref: 'A',
		PL: [][]float64{strongPL(0), strongPL(0), strongPL(0)}}
	record := caller.CallSite(&site)
	if record.NullP <= record.MutP {
		t.Errorf("concordant site: null_P %v should exceed mut_P %v", record.NullP, record.MutP)
	}
	if record.NullGenotype != "AA" {
		t.Errorf("concordant site: best null genotype %s, expected AA", record.NullGenotype)
	}
}

func TestCallSiteEndToEnd(t *testing.T) {
	// samples 0 and 1 support AA, sample 2 supports CC: the best
	// explanation is a single mutation AA -> CC on the edge above
	// sample 2's leaf
	caller := testCaller(t, "((0,1),2);", 3)
	site := Site{Chrom: "1", Pos: 200, Ref: 'A',
		PL: [][]float64{strongPL(0), strongPL(0), strongPL(4)}}
	record := caller.CallSite(&site)

	if record.MutP <= record.NullP {
		t.Errorf("discordant site: mut_P %v should exceed null_P %v", record.MutP, record.NullP)
	}
	var sample2Leaf int
	for _, node := range caller.Tree.Nodes {
		if node.IsLeaf() && node.SampleID() == 2 {
			sample2Leaf = node.ID
		}
	}
	if record.MutLocation != sample2Leaf {
		t.Errorf("best location %d, expected sample 2's leaf (node %d)", record.MutLocation, sample2Leaf)
	}
	if record.MutAncestral != "AA" {
		t.Errorf("best ancestral genotype %s, expected AA", record.MutAncestral)
	}
	if record.MutDerived != "CC" {
		t.Errorf("best mutant genotype %s, expected CC", record.MutDerived)
	}
	if !reflect.DeepEqual(record.MutSamples, []int{2}) {
		t.Errorf("mutant samples %v, expected [2]", record.MutSamples)
	}
}

func TestCallBatchInvariance(t *testing.T) {
	// batch boundaries are a memory bound, not a semantic one:
	// per-site records and the total score must not depend on them
	caller := testCaller(t, "((0,1),(2,3));", 4)
	sites := []Site{
		{Chrom: "1", Pos: 1, Ref: 'A', PL: [][]float64{strongPL(0), strongPL(0), strongPL(0), strongPL(0)}},
		{Chrom: "1", Pos: 2, Ref: 'A', PL: [][]float64{strongPL(0), strongPL(0), strongPL(0), strongPL(4)}},
		{Chrom: "1", Pos: 3, Ref: 'C', PL: [][]float64{strongPL(4), strongPL(4), strongPL(0), strongPL(0)}},
		{Chrom: "2", Pos: 4, Ref: 'G', PL: [][]float64{strongPL(7), strongPL(7), strongPL(7), strongPL(7)}},
	}

	whole, wholeScore := caller.CallBatch(sites)
	if len(whole) != len(sites) {
		t.Fatalf("%d records for %d sites", len(whole), len(sites))
	}
	for i, record := range whole {
		if record.Chrom != sites[i].Chrom || record.Pos != sites[i].Pos {
			t.Errorf("record %d out of input order: %s:%d", i, record.Chrom, record.Pos)
		}
	}

	for split := 1; split < len(sites); split++ {
		first, firstScore := caller.CallBatch(sites[:split])
		second, secondScore := caller.CallBatch(sites[split:])
		records := append(append([]Record(nil), first...), second...)
		if !reflect.DeepEqual(records, whole) {
			t.Errorf("split at %d changed per-site records", split)
		}
		if !floatsClose(firstScore+secondScore, wholeScore, 1e-9) {
			t.Errorf("split at %d changed the score: %v vs %v", split, firstScore+secondScore, wholeScore)
		}
	}
}

func TestCallSiteZeroMass(t *testing.T) {
	// a site whose probabilities underflow to zero everywhere is a
	// modeling precondition violation and must not silently produce
	// NaN records
	caller := testCaller(t, "(0,1);", 2)
	impossible := make([]float64, NumGenotypes)
	for i := range impossible {
		impossible[i] = 5000
	}
	site := Site{Chrom: "1", Pos: 1, Ref: 'A', PL: [][]float64{impossible, impossible}}
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for zero total probability mass")
		}
	}()
	caller.CallSite(&site)
}
