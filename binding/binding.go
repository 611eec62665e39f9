// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package binding models named, mutable locations that hold callables.
// Opaque functions cannot be observed through the call hook, so they are
// instrumented by reversibly substituting the callable stored at their
// binding site with a timing wrapper.
package binding // import "github.com/calltrace/calltrace/binding"

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Site is a single rebindable location. Get returns the callable currently
// bound there; Set rebinds it. Scope and Name together identify the site
// and double as the identity of the function instrumented through it.
type Site interface {
	Scope() string
	Name() string
	Get() any
	Set(fn any) error
}

// VarSite adapts a pointer to a function-typed variable into a Site. The
// typical use is a package-level function variable that callers invoke
// indirectly:
//
//	var Compress = compressImpl
//	site, _ := binding.NewVarSite("archive", "Compress", &Compress)
type VarSite struct {
	scope string
	name  string
	ptr   reflect.Value
}

var _ Site = (*VarSite)(nil)

// NewVarSite wraps fnPtr, which must be a non-nil pointer to a variable of
// function type.
func NewVarSite(scope, name string, fnPtr any) (*VarSite, error) {
	v := reflect.ValueOf(fnPtr)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() {
		return nil, fmt.Errorf("binding %s.%s: need a non-nil pointer, got %T",
			scope, name, fnPtr)
	}
	if v.Elem().Kind() != reflect.Func {
		return nil, fmt.Errorf("binding %s.%s: %s is not a function variable",
			scope, name, v.Elem().Type())
	}
	return &VarSite{scope: scope, name: name, ptr: v}, nil
}

func (s *VarSite) Scope() string { return s.scope }
func (s *VarSite) Name() string  { return s.name }

func (s *VarSite) Get() any {
	return s.ptr.Elem().Interface()
}

func (s *VarSite) Set(fn any) error {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || !v.Type().AssignableTo(s.ptr.Elem().Type()) {
		return fmt.Errorf("binding %s.%s: %T is not assignable to %s",
			s.scope, s.name, fn, s.ptr.Elem().Type())
	}
	s.ptr.Elem().Set(v)
	return nil
}

// Table is a scope of named callables, the in-process analog of a module
// namespace or plugin registry. Lookups and rebinds are safe for concurrent
// use.
type Table struct {
	scope string

	mu    sync.RWMutex
	funcs map[string]any
}

// NewTable returns an empty table for the given scope name.
func NewTable(scope string) *Table {
	return &Table{scope: scope, funcs: make(map[string]any)}
}

// Scope returns the table's scope name.
func (t *Table) Scope() string { return t.scope }

// Bind installs fn under name, replacing any previous binding, and returns
// the Site for it.
func (t *Table) Bind(name string, fn any) (Site, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("binding %s.%s: %T is not a function", t.scope, name, fn)
	}
	t.mu.Lock()
	t.funcs[name] = fn
	t.mu.Unlock()
	return &tableSite{table: t, name: name}, nil
}

// Site returns the Site for an existing binding.
func (t *Table) Site(name string) (Site, error) {
	t.mu.RLock()
	_, ok := t.funcs[name]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("binding %s.%s: not bound", t.scope, name)
	}
	return &tableSite{table: t, name: name}, nil
}

// Lookup returns the callable currently bound under name, or nil.
func (t *Table) Lookup(name string) any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.funcs[name]
}

// Names returns the bound names in sorted order.
func (t *Table) Names() []string {
	t.mu.RLock()
	names := make([]string, 0, len(t.funcs))
	for name := range t.funcs {
		names = append(names, name)
	}
	t.mu.RUnlock()
	sort.Strings(names)
	return names
}

type tableSite struct {
	table *Table
	name  string
}

var _ Site = (*tableSite)(nil)

func (s *tableSite) Scope() string { return s.table.scope }
func (s *tableSite) Name() string  { return s.name }

func (s *tableSite) Get() any {
	return s.table.Lookup(s.name)
}

func (s *tableSite) Set(fn any) error {
	s.table.mu.Lock()
	defer s.table.mu.Unlock()
	cur, ok := s.table.funcs[s.name]
	if !ok {
		return fmt.Errorf("binding %s.%s: no longer bound", s.table.scope, s.name)
	}
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Type() != reflect.TypeOf(cur) {
		return fmt.Errorf("binding %s.%s: %T does not match bound type %T",
			s.table.scope, s.name, fn, cur)
	}
	s.table.funcs[s.name] = fn
	return nil
}
