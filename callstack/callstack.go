// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package callstack correlates entry events with their matching exit
// events. Activations are keyed by the hook's per-activation site token
// rather than by function identity, so recursion and concurrent calls of
// the same function never collide.
package callstack // import "github.com/calltrace/calltrace/callstack"

import (
	"sync"
	"time"

	"github.com/calltrace/calltrace/hook"
	"github.com/calltrace/calltrace/libct"
	"github.com/calltrace/calltrace/metrics"
	"github.com/calltrace/calltrace/stats"
)

// Membership answers whether a function is currently selected for hook
// interception. Implemented by registry.Registry.
type Membership interface {
	IsHookable(id libct.FuncID) bool
}

type activation struct {
	id    libct.FuncID
	start time.Time
}

// Tracker holds the open activations between their entry and exit events
// and forwards completed measurements to the stats store.
type Tracker struct {
	members Membership
	store   *stats.Store

	mu   sync.Mutex
	open map[hook.Site]activation
}

// NewTracker returns a tracker feeding store, filtering entries through
// members.
func NewTracker(members Membership, store *stats.Store) *Tracker {
	return &Tracker{
		members: members,
		store:   store,
		open:    make(map[hook.Site]activation),
	}
}

// OnEntry opens an activation for site if id is currently selected for
// interception; otherwise the event is dropped.
func (t *Tracker) OnEntry(site hook.Site, id libct.FuncID, ts time.Time) {
	if !t.members.IsHookable(id) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open[site] = activation{id: id, start: ts}
}

// OnExit closes the activation for site and records its duration. Exits
// with no matching entry are silently ignored: they belong to activations
// that began before tracing was enabled, or to functions that are not
// traced at all. Both are expected, not errors.
func (t *Tracker) OnExit(site hook.Site, ts time.Time) {
	t.mu.Lock()
	act, ok := t.open[site]
	if ok {
		delete(t.open, site)
	}
	t.mu.Unlock()

	if !ok {
		return
	}
	t.store.Record(act.id, ts.Sub(act.start))
	metrics.AddSampleRecorded()
}

// Purge drops every open activation and returns how many were dropped.
// Called on session disable so that activations abandoned mid-call do not
// accumulate; they contribute no statistics.
func (t *Tracker) Purge() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.open)
	clear(t.open)
	metrics.AddOrphansPurged(n)
	return n
}

// OpenCount returns the number of activations awaiting their exit event.
func (t *Tracker) OpenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}
