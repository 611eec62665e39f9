// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package hook implements the process-wide call event stream. Instrumented
// functions report their entry and exit here; whatever listener is
// currently installed receives the events.
//
// The intended instrumentation preamble is a single line at the top of a
// function body:
//
//	defer hook.Leave(hook.Enter())
//
// When no listener is installed both helpers are cheap no-ops, so the
// preamble can be left in place permanently.
package hook // import "github.com/calltrace/calltrace/hook"

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Event distinguishes the two edges of a function activation.
type Event uint8

const (
	// EventEntry is emitted when an instrumented function begins executing.
	EventEntry Event = iota
	// EventExit is emitted when an instrumented function returns or unwinds.
	EventExit
)

// Site identifies a single in-flight activation. Recursive and concurrent
// calls of the same function each get a distinct Site, which is what allows
// exit events to be matched to the right entry. The zero Site means "entry
// was never observed" and is ignored by Leave.
type Site uint64

// Listener receives call events. The pc argument is the entry PC of the
// function that emitted the event; it is only meaningful for EventEntry.
// Listeners run on whatever goroutine executes the instrumented function
// and therefore must be safe for concurrent invocation.
type Listener func(site Site, pc uintptr, ev Event, ts time.Time)

var (
	listener atomic.Pointer[Listener]
	siteSeq  atomic.Uint64
)

// Swap installs l as the process-wide listener and returns the previously
// installed one, which may be nil. Passing nil uninstalls. Callers that
// want chain semantics are expected to save the returned listener and
// restore it with a second Swap.
func Swap(l Listener) Listener {
	var p *Listener
	if l != nil {
		p = &l
	}
	prev := listener.Swap(p)
	if prev == nil {
		return nil
	}
	return *prev
}

// Current returns the currently installed listener, or nil.
func Current() Listener {
	p := listener.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Enter reports entry into the calling function and returns the activation
// token that the matching Leave must be called with. Returns 0 when no
// listener is installed.
//
// Kept out of inlining so that the frame skip count in callerEntryPC stays
// correct.
//
//go:noinline
func Enter() Site {
	p := listener.Load()
	if p == nil {
		return 0
	}
	site := Site(siteSeq.Add(1))
	(*p)(site, callerEntryPC(), EventEntry, time.Now())
	return site
}

// Leave reports exit from the activation identified by site. A zero site,
// or an exit with no listener installed, is a no-op. An exit arriving after
// the listener changed is delivered to the new listener, which is expected
// to ignore activations it has no entry for.
func Leave(site Site) {
	if site == 0 {
		return
	}
	p := listener.Load()
	if p == nil {
		return
	}
	(*p)(site, 0, EventExit, time.Now())
}

// callerEntryPC resolves the entry PC of Enter's caller, i.e. the
// instrumented function itself.
//
//go:noinline
func callerEntryPC() uintptr {
	var pcs [1]uintptr
	// Skip runtime.Callers, callerEntryPC and Enter.
	if runtime.Callers(3, pcs[:]) == 0 {
		return 0
	}
	if rf := runtime.FuncForPC(pcs[0]); rf != nil {
		return rf.Entry()
	}
	return 0
}
