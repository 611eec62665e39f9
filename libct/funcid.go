// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package libct provides the foundational types shared by all calltrace
// components, most importantly FuncID, the stable identity under which
// per-function statistics are aggregated.
package libct // import "github.com/calltrace/calltrace/libct"

import (
	"fmt"
	"reflect"
	"runtime"

	lru "github.com/elastic/go-freelru"
	"github.com/zeebo/xxh3"
)

// pcNameCacheSize is the LRU size for caching entry-PC to function name
// resolutions. This should reflect the number of distinct functions that
// are targeted over the lifetime of the process.
const pcNameCacheSize = 1024

// pcNames caches runtime symbol lookups so that building the same FuncID
// repeatedly does not hit the runtime's function tables every time.
var pcNames *lru.SyncedLRU[uintptr, string]

func init() {
	var err error
	pcNames, err = lru.NewSynced[uintptr, string](pcNameCacheSize,
		func(pc uintptr) uint32 { return uint32(pc) })
	if err != nil {
		panic(fmt.Sprintf("creating PC name cache: %v", err))
	}
}

// FuncID is the unique identifier under which a function's statistics are
// aggregated. For hookable functions it is keyed by the function's entry PC,
// which the Go runtime guarantees to be stable and unique per function. For
// opaque functions, which have no observable code identity at call time, it
// is keyed by the (scope, name) pair of the binding they live in.
//
// FuncID is comparable and valid as a map key.
type FuncID struct {
	pc    uintptr
	scope string
	name  string
}

// FuncIDForFunc derives the identity of a Go function value. It fails if fn
// is not a function or if its code is not known to the runtime (for example
// a reflect.MakeFunc trampoline), since such a value has no inspectable
// frame to correlate hook events against.
func FuncIDForFunc(fn any) (FuncID, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return FuncID{}, fmt.Errorf("%T is not a function", fn)
	}
	if v.IsNil() {
		return FuncID{}, fmt.Errorf("nil function")
	}
	pc := v.Pointer()
	rf := runtime.FuncForPC(pc)
	if rf == nil {
		return FuncID{}, fmt.Errorf("function at %#x has no runtime info", pc)
	}
	return FuncID{pc: rf.Entry(), name: nameForPC(rf.Entry())}, nil
}

// OpaqueFuncID builds the identity for a function instrumented through a
// named binding rather than through the call hook.
func OpaqueFuncID(scope, name string) FuncID {
	return FuncID{scope: scope, name: name}
}

// FuncIDForPC resolves a program counter observed in a hook event to the
// identity of the function containing it. The second return value is false
// if the runtime has no information for the PC.
func FuncIDForPC(pc uintptr) (FuncID, bool) {
	rf := runtime.FuncForPC(pc)
	if rf == nil {
		return FuncID{}, false
	}
	entry := rf.Entry()
	return FuncID{pc: entry, name: nameForPC(entry)}, true
}

// HasInspectableFrame reports whether fn is a function value whose frames
// can be observed through the call hook. This is the predicate that decides
// whether a target is hookable or must fall back to binding substitution.
func HasInspectableFrame(fn any) bool {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return false
	}
	return runtime.FuncForPC(v.Pointer()) != nil
}

// IsOpaque reports whether the identity belongs to a binding-substituted
// function rather than a hookable one.
func (id FuncID) IsOpaque() bool {
	return id.pc == 0
}

// PC returns the function's entry program counter, or 0 for opaque
// identities.
func (id FuncID) PC() uintptr {
	return id.pc
}

// Name returns the function's symbolic name. For opaque identities this is
// the scope-qualified binding name.
func (id FuncID) Name() string {
	if id.IsOpaque() {
		if id.scope == "" {
			return id.name
		}
		return id.scope + "." + id.name
	}
	return id.name
}

func (id FuncID) String() string {
	return id.Name()
}

// Hash32 returns a 32 bit hash of the identity. Its main purpose is to be
// used as a key for LRU caching.
func (id FuncID) Hash32() uint32 {
	if id.pc != 0 {
		return uint32(id.pc) ^ uint32(id.pc>>32)
	}
	h := xxh3.HashString(id.scope + "\x00" + id.name)
	return uint32(h) ^ uint32(h>>32)
}

func nameForPC(entry uintptr) string {
	if name, ok := pcNames.Get(entry); ok {
		return name
	}
	name := "<unknown>"
	if rf := runtime.FuncForPC(entry); rf != nil {
		name = rf.Name()
	}
	pcNames.Add(entry, name)
	return name
}
