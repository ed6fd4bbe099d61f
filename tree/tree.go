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

// Package tree represents the fixed cell lineage tree that genotype
// likelihoods are aggregated on. Trees are parsed from Newick files
// whose leaf labels are sample indices, and annotated with stable
// post-order node identifiers and subtended sample sets. The topology
// is read-only for the lifetime of a run.
package tree

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/evolbioinfo/gotree/io/newick"
	gotree "github.com/evolbioinfo/gotree/tree"
)

// Node is a node of the lineage tree. Leaves carry exactly one sample;
// an internal node subtends the union of its children's samples.
type Node struct {
	// ID is the stable node identifier, assigned in post-order:
	// children always have smaller ids than their parent, and the
	// root has the largest id.
	ID int

	// FirstID is the smallest id in this node's subtree. Because ids
	// are assigned post-order, the subtree occupies the contiguous id
	// range [FirstID, ID].
	FirstID int

	// Children is empty for leaves and has length two otherwise.
	Children []*Node

	// Samples is the sorted list of sample indices subtended by this
	// node.
	Samples []int

	leafSet *bitset.BitSet
}

// IsLeaf reports whether the node has no children.
func (node *Node) IsLeaf() bool {
	return len(node.Children) == 0
}

// SampleID returns the sample index of a leaf node.
func (node *Node) SampleID() int {
	return node.Samples[0]
}

// Tree is a rooted binary lineage tree.
type Tree struct {
	Root *Node

	// Nodes lists all nodes in post-order, so Nodes[i].ID == i.
	Nodes []*Node

	NumLeaves int
}

// NumEdges returns the number of edges, which is also the number of
// candidate mutation placements: every node except the root sits below
// exactly one edge.
func (t *Tree) NumEdges() int {
	return len(t.Nodes) - 1
}

// FromFile reads a single Newick tree from a file and annotates it.
// numSamples is the number of samples in the accompanying likelihood
// data; every leaf label must be an integer in [0, numSamples).
func FromFile(name string, numSamples int) (*Tree, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	t, err := FromNewick(file, numSamples)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

// FromNewick reads a single Newick tree from a reader and annotates it.
func FromNewick(r io.Reader, numSamples int) (*Tree, error) {
	gt, err := newick.NewParser(r).Parse()
	if err != nil {
		return nil, err
	}
	return fromGotree(gt, numSamples)
}

// FromNewickString parses a Newick string, mainly for tests.
func FromNewickString(s string, numSamples int) (*Tree, error) {
	return FromNewick(strings.NewReader(s), numSamples)
}

func fromGotree(gt *gotree.Tree, numSamples int) (*Tree, error) {
	root := gt.Root()
	if root == nil {
		return nil, fmt.Errorf("tree has no root")
	}
	if !gt.Rooted() {
		return nil, fmt.Errorf("tree is not rooted")
	}
	t := &Tree{}
	node, err := t.annotate(root, nil, numSamples)
	if err != nil {
		return nil, err
	}
	t.Root = node
	if got := t.Root.leafSet.Count(); int(got) != t.NumLeaves {
		return nil, fmt.Errorf("duplicate leaf labels: %d leaves cover only %d samples", t.NumLeaves, got)
	}
	return t, nil
}

// annotate recursively converts a gotree node into an owned Node,
// assigning ids post-order and collecting subtended sample sets.
func (t *Tree) annotate(cur, prev *gotree.Node, numSamples int) (*Node, error) {
	node := &Node{FirstID: len(t.Nodes)}
	if cur.Tip() {
		sample, err := strconv.Atoi(cur.Name())
		if err != nil {
			return nil, fmt.Errorf("leaf label %q is not a sample index", cur.Name())
		}
		if sample < 0 || sample >= numSamples {
			return nil, fmt.Errorf("leaf label %d out of range for %d samples", sample, numSamples)
		}
		node.Samples = []int{sample}
		node.leafSet = bitset.New(uint(numSamples))
		node.leafSet.Set(uint(sample))
		t.NumLeaves++
	} else {
		node.leafSet = bitset.New(uint(numSamples))
		for _, neigh := range cur.Neigh() {
			if neigh == prev {
				continue
			}
			child, err := t.annotate(neigh, cur, numSamples)
			if err != nil {
				return nil, err
			}
			if node.leafSet.IntersectionCardinality(child.leafSet) != 0 {
				return nil, fmt.Errorf("sibling subtrees share samples below node %d", child.ID)
			}
			node.leafSet.InPlaceUnion(child.leafSet)
			node.Children = append(node.Children, child)
		}
		if len(node.Children) != 2 {
			return nil, fmt.Errorf("tree is not binary: internal node with %d children", len(node.Children))
		}
		for _, child := range node.Children {
			node.Samples = append(node.Samples, child.Samples...)
		}
		sort.Ints(node.Samples)
	}
	node.ID = len(t.Nodes)
	t.Nodes = append(t.Nodes, node)
	return node, nil
}

// FormatSamples returns the comma-separated sample list of a node, as
// reported in output records.
func (node *Node) FormatSamples() string {
	var builder strings.Builder
	for i, sample := range node.Samples {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.Itoa(sample))
	}
	return builder.String()
}
