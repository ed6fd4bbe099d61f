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

package cmd

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/google/uuid"
	"github.com/treegeno/treegeno/genotype"
	"github.com/treegeno/treegeno/internal"
	"github.com/treegeno/treegeno/tree"
	"github.com/treegeno/treegeno/vcf"
)

// GenotypeHelp is the help string for the genotype command.
const GenotypeHelp = "\ngenotype parameters:\n" +
	"treegeno genotype vcf-file tree-file output-file\n" +
	"[--mu rate]\n" +
	"[--het rate]\n" +
	"[--nsite number]\n" +
	"[--nr-of-threads number]\n" +
	"[--timed]\n" +
	"[--profile filename]\n" +
	"[--log-path path]\n"

// Genotype implements the genotype command: it infers per-site
// ancestral genotypes and single-mutation placements on a lineage
// tree, given per-sample genotype likelihoods from a VCF file.
func Genotype() error {
	var (
		mu, het     float64
		nsite       int
		nrOfThreads int
		timed       bool
		profile     string
		logPath     string
	)

	var flags flag.FlagSet

	flags.Float64Var(&mu, "mu", 80, "mutation rate in Phred scale")
	flags.Float64Var(&het, "het", 30, "heterozygosity rate in Phred scale, 0 for an uninformative prior")
	flags.IntVar(&nsite, "nsite", 1000, "number of sites processed per batch")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 5, GenotypeHelp)

	vcfFile := getFilename(os.Args[2], GenotypeHelp)
	treeFile := getFilename(os.Args[3], GenotypeHelp)
	outputFile := getFilename(os.Args[4], GenotypeHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", vcfFile) {
		sanityChecksFailed = true
	}
	if !checkExist("", treeFile) {
		sanityChecksFailed = true
	}
	if !checkCreate("", outputFile) {
		sanityChecksFailed = true
	}

	if mu < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid mu: ", mu)
	}
	if het < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid het: ", het)
	}
	if nsite <= 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid nsite: ", nsite)
	}
	if nrOfThreads < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid nr-of-threads: ", nrOfThreads)
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, GenotypeHelp)
		os.Exit(1)
	}

	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
	}

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " genotype ", vcfFile, " ", treeFile, " ", outputFile,
		" --mu ", mu, " --het ", het, " --nsite ", nsite)
	if nrOfThreads > 0 {
		fmt.Fprint(&command, " --nr-of-threads ", nrOfThreads)
	}
	if timed {
		fmt.Fprint(&command, " --timed")
	}
	if profile != "" {
		fmt.Fprint(&command, " --profile ", profile)
	}
	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}
	log.Println("Executing command:\n", command.String())

	return runGenotype(vcfFile, treeFile, outputFile, mu, het, nsite, timed, profile)
}

func runGenotype(vcfFile, treeFile, outputFile string, mu, het float64, nsite int, timed bool, profile string) (err error) {
	input, err := vcf.Open(vcfFile)
	if err != nil {
		return err
	}
	defer func() {
		nerr := input.Close()
		if err == nil {
			err = nerr
		}
	}()
	reader, err := vcf.NewReader(input)
	if err != nil {
		return err
	}
	log.Println("Input has", len(reader.Samples), "samples.")

	t, err := tree.FromFile(treeFile, len(reader.Samples))
	if err != nil {
		return err
	}

	model := genotype.NewModel(mu, genotype.Genotypes10)
	prior := genotype.NewPrior(het, genotype.Genotypes10)
	caller := genotype.NewCaller(t, model, prior)

	// write through a uniquely named temporary file so a failed run
	// leaves no partial output behind
	pathname, err := internal.FullPathname(outputFile)
	if err != nil {
		return err
	}
	tempPathname := filepath.Join(filepath.Dir(pathname), uuid.New().String()+"-"+filepath.Base(pathname))
	output, err := os.Create(tempPathname)
	if err != nil {
		return err
	}
	defer func() {
		if output != nil {
			output.Close()
			os.Remove(tempPathname)
		}
	}()
	writer := bufio.NewWriter(output)

	var score float64
	var totalSites int
	var buf []byte
	for phase := int64(1); ; phase++ {
		sites, readErr := reader.ReadBatch(nsite)
		if readErr != nil && readErr != io.EOF {
			return readErr
		}
		err := timedRun(timed, profile, fmt.Sprint("Calling batch of ", len(sites), " sites."), phase, func() error {
			records, batchScore := caller.CallBatch(sites)
			for i := range records {
				buf = appendRecord(buf[:0], &records[i])
				if _, err := writer.Write(buf); err != nil {
					return err
				}
			}
			score += batchScore
			return nil
		})
		if err != nil {
			return err
		}
		totalSites += len(sites)
		if len(sites) > 0 {
			last := sites[len(sites)-1]
			log.Printf("Processed %d sites (last %s:%d).", totalSites, last.Chrom, last.Pos)
		}
		if readErr == io.EOF {
			break
		}
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	if err := output.Close(); err != nil {
		return err
	}
	output = nil
	if err := os.Rename(tempPathname, pathname); err != nil {
		return err
	}

	fmt.Printf("sum(PL) = %.2f\n", score)
	return nil
}

// appendRecord formats one output row: chrom, pos, ref, the normalized
// null and single-mutation probabilities, the best null genotype and
// its probability, the ancestral and derived genotypes of the best
// mutation scenario with its probability, the placement node id, and
// the samples below the placement.
func appendRecord(buf []byte, record *genotype.Record) []byte {
	buf = append(buf, record.Chrom...)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, int64(record.Pos), 10)
	buf = append(buf, '\t')
	buf = append(buf, record.Ref)
	buf = append(buf, '\t')
	buf = strconv.AppendFloat(buf, record.NullP, 'e', 2, 64)
	buf = append(buf, '\t')
	buf = strconv.AppendFloat(buf, record.MutP, 'e', 2, 64)
	buf = append(buf, '\t')
	buf = append(buf, record.NullGenotype...)
	buf = append(buf, '\t')
	buf = strconv.AppendFloat(buf, record.NullGenotypeP, 'e', 2, 64)
	buf = append(buf, '\t')
	buf = append(buf, record.MutAncestral...)
	buf = append(buf, '\t')
	buf = append(buf, record.MutDerived...)
	buf = append(buf, '\t')
	buf = strconv.AppendFloat(buf, record.MutGenotypeP, 'e', 2, 64)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, int64(record.MutLocation), 10)
	buf = append(buf, '\t')
	for i, sample := range record.MutSamples {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, int64(sample), 10)
	}
	buf = append(buf, '\n')
	return buf
}
