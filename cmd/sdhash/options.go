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

package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

const versionInfo = "sdhash-go, a Go similarity digest tool"

// maxThreads bounds the -p parallelization factor.
const maxThreads = 512

// Options holds the parsed command line, equivalent to sdhash.c's global
// sdbf_sys plus the OPT_MODE/OPT_MAP bits process_opts fills in.
type Options struct {
	Generate  bool // -g: hash inputs and compare all pairs
	Compare   bool // -c: load digests and compare
	Map       bool // -m: print a per-filter match heat map
	Warnings  bool // -w: report on stderr how many input files were skipped (not which ones)
	Threads   int  // -p
	Threshold int  // -t
	Sample    int  // -s
	Files     []string
}

// parseOptions parses args (excluding argv[0]) into Options, returning an
// error for any of the validation failures process_opts/sdhash.c reject:
// both -c and -g given, an out-of-range thread count, or an out-of-range
// sample size. An out-of-range threshold is not an error; a message is
// written to the flag set's output and the threshold is reset to 1, matching
// the original's behavior.
func parseOptions(args []string) (*Options, error) {
	fs := flag.NewFlagSet("sdhash", flag.ContinueOnError)
	o := &Options{}
	fs.BoolVar(&o.Generate, "g", false, "generate hashes for <files> and compare all pairs")
	fs.BoolVar(&o.Compare, "c", false, "load digests and compare (one file: all pairs; two files: query vs target)")
	fs.BoolVar(&o.Map, "m", false, "show a heat map of Bloom filter matches")
	fs.BoolVar(&o.Warnings, "w", false, "turn on warnings for skipped input")
	fs.IntVar(&o.Threads, "p", 1, "parallelization factor")
	fs.IntVar(&o.Threshold, "t", 1, "minimum score (0-100) to report")
	fs.IntVar(&o.Sample, "s", 0, "for -c <query> <target>: cap each query digest to N filters (1-16)")
	fs.Usage = func() { printUsage(fs) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.Files = fs.Args()

	if o.Generate && o.Compare {
		return nil, errors.New("incompatible options: -c and -g")
	}
	if o.Threads < 1 || o.Threads > maxThreads {
		return nil, errors.Errorf("parallelization parameter must be between 1 and %d", maxThreads)
	}
	if o.Threshold < 0 || o.Threshold > 100 {
		fmt.Fprintf(fs.Output(), "Error: invalid output threshold (%d); resetting to 1.\n", o.Threshold)
		o.Threshold = 1
	}
	if o.Sample < 0 || o.Sample > 16 {
		return nil, errors.New("sample size must be between 1 and 16")
	}
	return o, nil
}

func printUsage(fs *flag.FlagSet) {
	var out io.Writer = os.Stderr
	if fs != nil {
		out = fs.Output()
	}
	fmt.Fprintln(out, versionInfo)
	fmt.Fprintln(out, "  sdhash <files>         : 'gen' mode: generate base64-encoded digests for files to stdout.")
	fmt.Fprintln(out, "     -g <files>          : 'all-gen' mode: generate digests and compare all pairs.")
	fmt.Fprintln(out, "     -c <digest-file>    : 'all-comp' mode: load digests from file and compare all pairs.")
	fmt.Fprintln(out, "     -c <query> <target> : 'query': compares every digest in <query> against every digest in <target>.")
	fmt.Fprintln(out, "     -p <number>         : 'parallelization factor': run the computation at the given concurrency factor.")
	fmt.Fprintln(out, "     -t <0-100>          : 'threshold': only show results greater than or equal to parameter; default is 1.")
	fmt.Fprintln(out, "     -s <1-16>           : 'sample': for -c <query> <target>, use N or fewer filters of each query digest; default is off.")
	fmt.Fprintln(out, "     -m                  : 'map' comparisons: show a heat map of filter matches.")
	fmt.Fprintln(out, "     -w                  : 'warnings': turn on warnings (default is OFF).")
}
