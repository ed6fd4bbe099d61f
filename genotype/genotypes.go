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

// Genotypes10 is the fixed set of unordered diploid genotypes over
// {A,C,G,T}, in alphabetical order. Every likelihood vector in this
// package indexes its entries by this order.
var Genotypes10 = []string{"AA", "AC", "AG", "AT", "CC", "CG", "CT", "GG", "GT", "TT"}

// Genotypes3 is the reduced genotype set for biallelic contexts, with
// R the reference and A the alternate allele.
var Genotypes3 = []string{"RR", "RA", "AA"}

// NumGenotypes is the size of Genotypes10.
const NumGenotypes = 10

var bases = []byte{'A', 'C', 'G', 'T'}

// BaseIndex returns the index of a base in the fixed A,C,G,T order,
// or -1 for any other byte.
func BaseIndex(base byte) int {
	switch base {
	case 'A':
		return 0
	case 'C':
		return 1
	case 'G':
		return 2
	case 'T':
		return 3
	default:
		return -1
	}
}

// PairIndex returns the slot in the Genotypes10 order for the
// unordered pair of bases b1,b2, or -1 if either byte is not a base.
func PairIndex(b1, b2 byte) int {
	i, j := BaseIndex(b1), BaseIndex(b2)
	if i < 0 || j < 0 {
		return -1
	}
	if i > j {
		i, j = j, i
	}
	// genotypes with first allele i start at 4i - i(i-1)/2
	return 4*i - i*(i-1)/2 + (j - i)
}

func reverseString(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			min := prev[j] + 1
			if cur[j-1]+1 < min {
				min = cur[j-1] + 1
			}
			if prev[j-1]+cost < min {
				min = prev[j-1] + cost
			}
			cur[j] = min
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// GenotypeDistances returns the symmetric matrix of mutational
// distances between genotype strings. Genotypes are unordered pairs
// of alleles, so both orientations of the second genotype are
// considered: distance("AC","CA") is 0.
func GenotypeDistances(gtypes []string) [][]int {
	n := len(gtypes)
	dist := make([][]int, n)
	for i, gi := range gtypes {
		dist[i] = make([]int, n)
		for j, gj := range gtypes {
			d := editDistance(gi, gj)
			if r := editDistance(gi, reverseString(gj)); r < d {
				d = r
			}
			dist[i][j] = d
		}
	}
	return dist
}
