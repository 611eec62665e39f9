// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"os"
	"time"

	"github.com/peterbourgon/ff/v3"
)

const (
	// Default values for CLI flags
	defaultIterations      = 5
	defaultSummaryInterval = 0 * time.Second
)

// Help strings for command line arguments
var (
	verboseModeHelp     = "Enable verbose logging and debugging capabilities."
	iterationsHelp      = "Number of times each demo workload is invoked."
	summaryIntervalHelp = "Interval for logging a statistics digest while tracing " +
		"is enabled. Zero disables the digest."
)

type arguments struct {
	Verbose         bool
	Iterations      int
	SummaryInterval time.Duration
}

func parseArgs() (*arguments, error) {
	var args arguments

	fs := flag.NewFlagSet("calltrace", flag.ExitOnError)

	// Please keep the parameters ordered alphabetically in the source-code.
	fs.IntVar(&args.Iterations, "iterations", defaultIterations, iterationsHelp)
	fs.DurationVar(&args.SummaryInterval, "summary-interval", defaultSummaryInterval,
		summaryIntervalHelp)
	fs.BoolVar(&args.Verbose, "v", false, "Shorthand for -verbose.")
	fs.BoolVar(&args.Verbose, "verbose", false, verboseModeHelp)

	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("CALLTRACE")); err != nil {
		return nil, err
	}
	return &args, nil
}
