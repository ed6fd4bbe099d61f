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
)

// PhredToProb converts a Phred-scaled likelihood to the probability
// domain: p = 10^(-x/10). Phred 0 is certainty.
func PhredToProb(x float64) float64 {
	return math.Pow(10, -x/10)
}

// ProbToPhred converts a probability to the Phred scale: x = -10*log10(p).
func ProbToPhred(p float64) float64 {
	return -10 * math.Log10(p)
}

func phredToProbInto(dst, src []float64) {
	for i, x := range src {
		dst[i] = PhredToProb(x)
	}
}

// SumPL returns the Phred value of the summed probability mass of a
// Phred vector.
func SumPL(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += PhredToProb(v)
	}
	return ProbToPhred(sum)
}

// NormalizePL rescales a Phred vector so that its probability-domain
// image sums to 1. The input is left unchanged.
func NormalizePL(x []float64) []float64 {
	var sum float64
	for _, v := range x {
		sum += PhredToProb(v)
	}
	if sum <= 0 {
		log.Panicf("cannot normalize Phred vector with zero total probability mass: %v", x)
	}
	offset := ProbToPhred(sum)
	result := make([]float64, len(x))
	for i, v := range x {
		result[i] = v - offset
	}
	return result
}

// Normalize2DPL applies NormalizePL to every row of a matrix of Phred
// vectors.
func Normalize2DPL(x [][]float64) [][]float64 {
	result := make([][]float64, len(x))
	for i, row := range x {
		result[i] = NormalizePL(row)
	}
	return result
}

// addPL adds a Phred vector to another one element-wise, which is
// multiplication in the probability domain.
func addPL(dst, src []float64) {
	for i, v := range src {
		dst[i] += v
	}
}
