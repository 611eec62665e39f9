// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

// calltrace demo agent: traces a handful of sample workloads, both
// hookable and opaque, and prints the aggregated timing report.
package main

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/calltrace/calltrace/binding"
	"github.com/calltrace/calltrace/hook"
	"github.com/calltrace/calltrace/registry"
	"github.com/calltrace/calltrace/reporter"
	"github.com/calltrace/calltrace/session"
)

//go:noinline
func slowWork() {
	defer hook.Leave(hook.Enter())
	time.Sleep(100 * time.Millisecond)
}

//go:noinline
func fastWork() int {
	defer hook.Leave(hook.Enter())
	total := 0
	for i := 0; i < 10_000; i++ {
		total += i * i
	}
	return total
}

//go:noinline
func fibWork(n int) int {
	defer hook.Leave(hook.Enter())
	if n < 2 {
		return n
	}
	return fibWork(n-1) + fibWork(n-2)
}

func mainWithExitCode() int {
	args, err := parseArgs()
	if err != nil {
		log.Errorf("Failure to parse arguments: %v", err)
		return 1
	}
	if args.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	// An opaque workload: callers reach it only through the binding table,
	// so it is instrumented by substitution rather than through the hook.
	mathlib := binding.NewTable("mathlib")
	squareSite, err := mathlib.Bind("square", func(x int) int {
		time.Sleep(time.Duration(x) * time.Millisecond)
		return x * x
	})
	if err != nil {
		log.Errorf("Binding demo workload: %v", err)
		return 1
	}

	s := session.New(session.WithSummaryInterval(args.SummaryInterval))

	slow, err := registry.FuncTarget(slowWork)
	if err != nil {
		log.Errorf("Resolving slowWork: %v", err)
		return 1
	}
	fast, err := registry.FuncTarget(fastWork)
	if err != nil {
		log.Errorf("Resolving fastWork: %v", err)
		return 1
	}
	fib, err := registry.FuncTarget(fibWork)
	if err != nil {
		log.Errorf("Resolving fibWork: %v", err)
		return 1
	}

	s.Enable(slow, fast, fib, registry.SiteTarget(squareSite))

	var g errgroup.Group
	g.Go(func() error {
		for n := 0; n < args.Iterations; n++ {
			slowWork()
		}
		return nil
	})
	g.Go(func() error {
		for n := 0; n < args.Iterations; n++ {
			fastWork()
		}
		return nil
	})
	g.Go(func() error {
		fibWork(12)
		return nil
	})
	g.Go(func() error {
		square := mathlib.Lookup("square").(func(int) int)
		for i := 0; i < args.Iterations; i++ {
			square(i + 1)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Errorf("Demo workload failed: %v", err)
		return 1
	}

	snapshot := s.Disable()
	fmt.Println(reporter.Render(snapshot))
	return 0
}

func main() {
	os.Exit(mainWithExitCode())
}
