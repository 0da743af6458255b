// Copyright (c) 2024 the sdbf-go authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command sdhash computes and compares similarity digests for files.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/sdbf-go/sdbf"
	"github.com/sdbf-go/sdbf/registry"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("sdhash: ")

	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
	if len(opts.Files) == 0 {
		printUsage(nil)
		os.Exit(-1)
	}

	if opts.Compare {
		if err := runCompare(opts); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := runGenerate(opts); err != nil {
		log.Fatal(err)
	}
}

// runGenerate implements the default ('gen') and -g ('all-gen') modes: hash
// every input file, then either print each digest (plain mode) or compare
// all pairs of the resulting digests and print matches at or above the
// threshold (-g mode). It mirrors sdbf_hash_files' MODE_GEN dispatch and
// main()'s MODE_DIR loop.
func runGenerate(opts *Options) error {
	digests := sdbf.HashFiles(opts.Files, opts.Threads)

	var totalBytes uint64
	for _, d := range digests {
		totalBytes += uint64(d.FilterCount()) * uint64(d.FilterSize)
	}
	if opts.Warnings {
		fmt.Fprintf(os.Stderr, "hashed %d file(s), skipped %d, %s of filter data\n",
			len(digests), len(opts.Files)-len(digests), humanize.Bytes(totalBytes))
	}

	if !opts.Generate {
		for _, d := range digests {
			fmt.Println(sdbf.Encode(d))
		}
		return nil
	}

	reg := registry.New()
	for _, d := range digests {
		reg.Add(d)
	}
	comparePairs(reg, opts)
	return nil
}

// runCompare implements the -c mode: either loading one digest file and
// comparing all pairs within it, or loading two digest files and comparing
// every digest in the first against every digest in the second. It mirrors
// sdhash.c's MODE_COMP/MODE_DIR and MODE_FIRST branches.
func runCompare(opts *Options) error {
	switch len(opts.Files) {
	case 1:
		reg := registry.New()
		if err := loadDigestFile(reg, opts.Files[0]); err != nil {
			return err
		}
		comparePairs(reg, opts)
		return nil
	case 2:
		query := registry.New()
		if err := loadDigestFile(query, opts.Files[0]); err != nil {
			return err
		}
		target := registry.New()
		if err := loadDigestFile(target, opts.Files[1]); err != nil {
			return err
		}
		if opts.Sample > 0 {
			for i := 0; i < query.Size(); i++ {
				query.Get(i).Sample(opts.Sample)
			}
		}
		registry.CompareAcross(query, target, opts.Threshold, opts.Threads,
			func(qi, ti, score int, swapped bool) {
				printResult(query.Name(qi), target.Name(ti), score, swapped)
			})
		return nil
	default:
		return fmt.Errorf("-c requires one or two digest files, got %d", len(opts.Files))
	}
}

// comparePairs runs an all-pairs comparison over reg and prints every
// result meeting opts.Threshold, mirroring main()'s MODE_DIR loop.
func comparePairs(reg *registry.Registry, opts *Options) {
	for k := 0; k < reg.Size()-1; k++ {
		for j := k + 1; j < reg.Size(); j++ {
			if opts.Map && opts.Threads == 1 {
				score, swapped, marks := sdbf.CompareMap(reg.Get(k), reg.Get(j), opts.Threads)
				printMap(marks)
				if score >= opts.Threshold {
					printResult(reg.Name(k), reg.Name(j), score, swapped)
				}
				continue
			}
			score, swapped := reg.Compare(k, j, opts.Threads)
			if score >= opts.Threshold {
				printResult(reg.Name(k), reg.Name(j), score, swapped)
			}
		}
	}
}

func printResult(nameA, nameB string, score int, swapped bool) {
	if swapped {
		fmt.Printf("%s|%s|%03d\n", nameB, nameA, score)
	} else {
		fmt.Printf("%s|%s|%03d\n", nameA, nameB, score)
	}
}

func printMap(marks []bool) {
	for _, m := range marks {
		if m {
			fmt.Print("+")
		} else {
			fmt.Print(".")
		}
	}
	fmt.Println()
}

// loadDigestFile reads every encoded digest line from name and adds it to
// reg, mirroring sdbf_load's loop over sdbf_from_stream.
func loadDigestFile(reg *registry.Registry, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("could not open digest file %q: %w", name, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<28)
	count := 0
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		d, err := sdbf.Decode(line)
		if err != nil {
			return fmt.Errorf("%q: %w", name, err)
		}
		reg.Add(d)
		count++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("no digests loaded from %q", name)
	}
	return nil
}
