// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry tracks which functions are currently selected for
// instrumentation and partitions them into the two interception
// categories: hookable functions, observed through the call hook, and
// opaque functions, instrumented by binding substitution.
package registry // import "github.com/calltrace/calltrace/registry"

import (
	"fmt"
	"sync"

	"github.com/calltrace/calltrace/binding"
	"github.com/calltrace/calltrace/libct"
)

// Target is one function selected for instrumentation, together with the
// handle needed to instrument it: the function value for hookable targets,
// the binding site for opaque ones.
type Target struct {
	id   libct.FuncID
	fn   any
	site binding.Site
}

// FuncTarget builds a target from a Go function value. It fails when the
// value has no inspectable frame, since such a function can neither be
// hooked nor located for substitution; register it through a binding site
// instead.
func FuncTarget(fn any) (Target, error) {
	if !libct.HasInspectableFrame(fn) {
		return Target{}, fmt.Errorf("%T has no inspectable frame; "+
			"use a binding site target", fn)
	}
	id, err := libct.FuncIDForFunc(fn)
	if err != nil {
		return Target{}, err
	}
	return Target{id: id, fn: fn}, nil
}

// SiteTarget builds an opaque target from a binding site.
func SiteTarget(site binding.Site) Target {
	return Target{
		id:   libct.OpaqueFuncID(site.Scope(), site.Name()),
		site: site,
	}
}

// ID returns the target's function identity.
func (t Target) ID() libct.FuncID { return t.id }

// Site returns the binding site for opaque targets, nil otherwise.
func (t Target) Site() binding.Site { return t.site }

// Hookable is the classification predicate: a target is hookable when it
// carries a function value whose frames the call hook can observe.
func (t Target) Hookable() bool { return t.fn != nil }

// Registry holds the active instrumentation selection. The session is the
// only writer; interceptor callbacks query it concurrently.
type Registry struct {
	mu sync.RWMutex

	// standing targets survive every SetActiveTargets and are always part
	// of the active selection.
	standing map[libct.FuncID]Target

	hookable map[libct.FuncID]Target
	opaque   map[libct.FuncID]Target

	// byPC indexes hookable identities by entry PC for O(1) event lookup.
	byPC map[uintptr]libct.FuncID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		standing: make(map[libct.FuncID]Target),
		hookable: make(map[libct.FuncID]Target),
		opaque:   make(map[libct.FuncID]Target),
		byPC:     make(map[uintptr]libct.FuncID),
	}
}

// RegisterStanding enrolls a target that is instrumented whenever a session
// is enabled, independent of the per-enable target list. It does not by
// itself activate anything.
func (r *Registry) RegisterStanding(t Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.standing[t.id] = t
}

// SetActiveTargets replaces the active selection with the union of the
// standing targets and the given ones, classifying each as hookable or
// opaque.
func (r *Registry) SetActiveTargets(targets []Target) {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.hookable)
	clear(r.opaque)
	clear(r.byPC)

	for _, t := range r.standing {
		r.classify(t)
	}
	for _, t := range targets {
		r.classify(t)
	}
}

func (r *Registry) classify(t Target) {
	if t.Hookable() {
		r.hookable[t.id] = t
		r.byPC[t.id.PC()] = t.id
		return
	}
	r.opaque[t.id] = t
}

// LookupPC resolves an entry PC observed in a hook event to the identity of
// an active hookable target.
func (r *Registry) LookupPC(pc uintptr) (libct.FuncID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPC[pc]
	return id, ok
}

// IsHookable reports whether id is in the active hookable set.
func (r *Registry) IsHookable(id libct.FuncID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.hookable[id]
	return ok
}

// OpaqueTargets returns the active opaque targets.
func (r *Registry) OpaqueTargets() []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Target, 0, len(r.opaque))
	for _, t := range r.opaque {
		out = append(out, t)
	}
	return out
}

// ActiveCounts returns the sizes of the hookable and opaque sets.
func (r *Registry) ActiveCounts() (hookable, opaque int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hookable), len(r.opaque)
}
