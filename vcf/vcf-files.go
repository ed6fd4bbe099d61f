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

// Package vcf reads per-site, per-sample Phred genotype likelihoods
// from VCF files. Only the fields the caller needs are extracted:
// chromosome, position, reference base, and the PL entry of every
// sample, remapped from the site's allele list into the fixed
// 10-genotype order. Everything else in the file is ignored.
package vcf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/treegeno/treegeno/genotype"
)

// File name extensions that trigger bcftools decompression.
const (
	BcfExt = ".bcf"
	GzExt  = ".gz"
)

// MissingPL is the Phred likelihood assigned to genotypes that a
// site's allele list cannot produce, and to samples without PL data.
const MissingPL = 255

// InputFile represents a VCF or BCF file for input.
type InputFile struct {
	rc io.ReadCloser
	*bufio.Reader
	cmd *exec.Cmd
}

// Open a VCF file for input.
//
// If the filename extension is .bcf or .gz, use bcftools view for
// input. bcftools must be visible in the directories named by the
// PATH environment variable in that case.
//
// If the name is "-" or "/dev/stdin", the input is read from os.Stdin.
func Open(name string) (*InputFile, error) {
	switch filepath.Ext(name) {
	case BcfExt, GzExt:
		if _, err := os.Stat(name); err != nil {
			return nil, err
		}
		cmd := exec.Command("bcftools", "view", "--threads", strconv.Itoa(runtime.GOMAXPROCS(0)), name)
		outPipe, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return &InputFile{rc: outPipe, Reader: bufio.NewReader(outPipe), cmd: cmd}, nil
	default:
		if name == "-" || name == "/dev/stdin" {
			return &InputFile{rc: os.Stdin, Reader: bufio.NewReader(os.Stdin)}, nil
		}
		file, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		return &InputFile{rc: file, Reader: bufio.NewReader(file)}, nil
	}
}

// Close the VCF input file. If bcftools view is used for input, wait
// for its process to finish.
func (input *InputFile) Close() error {
	if input.rc != os.Stdin {
		if err := input.rc.Close(); err != nil {
			return err
		}
	}
	if input.cmd != nil {
		return input.cmd.Wait()
	}
	return nil
}

func getLine(reader *bufio.Reader) (line string, err error) {
	line, err = reader.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	line = strings.TrimRight(line, "\r\n")
	return line, err
}

// A Reader extracts likelihood sites from a VCF input file.
type Reader struct {
	input *InputFile

	// Samples lists the sample names from the header column line, in
	// column order. Sample indices in the lineage tree refer to this
	// order.
	Samples []string

	sc StringScanner
}

// NewReader parses the VCF header section and returns a site reader.
func NewReader(input *InputFile) (*Reader, error) {
	for {
		line, err := getLine(input.Reader)
		if err != nil {
			return nil, fmt.Errorf("missing #CHROM header line in VCF input: %w", err)
		}
		if strings.HasPrefix(line, "##") {
			continue
		}
		if !strings.HasPrefix(line, "#CHROM") {
			return nil, fmt.Errorf("unexpected line in VCF header section: %v", line)
		}
		columns := strings.Split(line, "\t")
		if len(columns) < 10 {
			return nil, fmt.Errorf("VCF input has no sample columns: %v", line)
		}
		return &Reader{input: input, Samples: columns[9:]}, nil
	}
}

// ReadBatch reads up to maxSites variant lines and returns the sites
// that pass the SNV restriction: reference and first alternate allele
// both single bases from {A,C,G,T}, at most four alleles in total.
// Other sites are skipped and never reach the inference engine.
//
// The error is io.EOF once the input is exhausted; the sites returned
// alongside it are still valid.
func (r *Reader) ReadBatch(maxSites int) ([]genotype.Site, error) {
	var sites []genotype.Site
	for n := 0; n < maxSites; n++ {
		line, err := getLine(r.input.Reader)
		if err != nil {
			return sites, err
		}
		if line == "" {
			continue
		}
		site, ok, err := r.parseVariant(line)
		if err != nil {
			return sites, err
		}
		if ok {
			sites = append(sites, site)
		}
	}
	return sites, nil
}

func (r *Reader) parseVariant(line string) (site genotype.Site, ok bool, err error) {
	sc := &r.sc
	sc.Reset(line)
	chrom, _ := sc.Field('\t')
	posString, _ := sc.Field('\t')
	_, _ = sc.Field('\t') // ID
	ref, _ := sc.Field('\t')
	alt, _ := sc.Field('\t')
	_, _ = sc.Field('\t') // QUAL
	_, _ = sc.Field('\t') // FILTER
	_, _ = sc.Field('\t') // INFO
	format, found := sc.Field('\t')
	if !found {
		return site, false, fmt.Errorf("truncated VCF line: %v", line)
	}

	if len(ref) != 1 || genotype.BaseIndex(ref[0]) < 0 {
		return site, false, nil
	}
	alts := strings.Split(alt, ",")
	if len(alts[0]) != 1 || genotype.BaseIndex(alts[0][0]) < 0 {
		return site, false, nil
	}
	alleles := []byte{ref[0]}
	for _, a := range alts {
		if len(a) == 1 && genotype.BaseIndex(a[0]) >= 0 {
			alleles = append(alleles, a[0])
		}
	}
	if len(alleles) > 4 {
		return site, false, nil
	}

	pos, err := strconv.ParseInt(posString, 10, 32)
	if err != nil {
		return site, false, fmt.Errorf("invalid POS in VCF line: %v", line)
	}

	plIndex := -1
	for i, key := range strings.Split(format, ":") {
		if key == "PL" {
			plIndex = i
			break
		}
	}
	if plIndex < 0 {
		return site, false, fmt.Errorf("missing PL in FORMAT of VCF line: %v", line)
	}

	pls := make([][]float64, len(r.Samples))
	for s := range r.Samples {
		data, found := sc.Field('\t')
		if !found && s < len(r.Samples)-1 {
			return site, false, fmt.Errorf("%d sample columns in VCF line, expected %d: %v", s+1, len(r.Samples), line)
		}
		pl, err := parseSamplePL(data, plIndex, alleles)
		if err != nil {
			return site, false, fmt.Errorf("%s: %v", err, line)
		}
		pls[s] = pl
	}
	site = genotype.Site{Chrom: chrom, Pos: int32(pos), Ref: ref[0], PL: pls}
	return site, true, nil
}

// parseSamplePL remaps one sample's PL values into the canonical
// 10-genotype order. VCF orders likelihoods by allele pair (i,j) with
// i <= j as j(j+1)/2 + i over the site's allele list; every genotype
// the allele list cannot form keeps MissingPL.
func parseSamplePL(data string, plIndex int, alleles []byte) ([]float64, error) {
	pl := make([]float64, genotype.NumGenotypes)
	for i := range pl {
		pl[i] = MissingPL
	}
	if data == "" || data == "." {
		return pl, nil
	}
	fields := strings.Split(data, ":")
	if plIndex >= len(fields) {
		return pl, fmt.Errorf("sample data has no PL entry")
	}
	entry := fields[plIndex]
	if entry == "" || entry == "." {
		return pl, nil
	}
	values := strings.Split(entry, ",")
	if expected := len(alleles) * (len(alleles) + 1) / 2; len(values) < expected {
		return pl, fmt.Errorf("%d PL values for %d alleles", len(values), len(alleles))
	}
	for j := 0; j < len(alleles); j++ {
		for i := 0; i <= j; i++ {
			value, err := strconv.ParseFloat(values[j*(j+1)/2+i], 64)
			if err != nil {
				return pl, fmt.Errorf("invalid PL value %q", values[j*(j+1)/2+i])
			}
			pl[genotype.PairIndex(alleles[i], alleles[j])] = value
		}
	}
	return pl, nil
}
