// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

package intercept

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/calltrace/calltrace/libct"
	"github.com/calltrace/calltrace/metrics"
	"github.com/calltrace/calltrace/registry"
	"github.com/calltrace/calltrace/stats"
)

// substRecord remembers everything needed to undo one substitution.
type substRecord struct {
	target   registry.Target
	original any
	// wrapperPC identifies the installed wrapper's code so a foreign
	// rebind can be detected on restore. All reflect.MakeFunc values share
	// one trampoline, so a third party installing its own MakeFunc wrapper
	// is indistinguishable from ours; rebinds to ordinary functions are
	// detected reliably.
	wrapperPC uintptr
}

// SubstInterceptor instruments opaque targets by replacing the callable at
// their binding site with a wrapper that times each call and feeds the
// stats store directly. No call-stack correlation is involved: the wrapper
// brackets exactly one call.
type SubstInterceptor struct {
	store *stats.Store

	mu      sync.Mutex
	records map[libct.FuncID]*substRecord
}

// NewSubstInterceptor returns an interceptor recording into store.
func NewSubstInterceptor(store *stats.Store) *SubstInterceptor {
	return &SubstInterceptor{
		store:   store,
		records: make(map[libct.FuncID]*substRecord),
	}
}

// InstallAll wraps every given opaque target. A target that is already
// wrapped is left alone. Failures to wrap a single target are warnings;
// processing continues with the rest.
func (si *SubstInterceptor) InstallAll(targets []registry.Target) {
	si.mu.Lock()
	defer si.mu.Unlock()

	installed := 0
	for _, t := range targets {
		ok, err := si.install(t)
		if err != nil {
			log.Warnf("Could not wrap %s: %v", t.ID().Name(), err)
			continue
		}
		if ok {
			installed++
		}
	}
	metrics.AddSubstitutions(installed)
}

func (si *SubstInterceptor) install(t registry.Target) (bool, error) {
	id := t.ID()
	if _, exists := si.records[id]; exists {
		return false, nil
	}
	site := t.Site()
	if site == nil {
		return false, fmt.Errorf("target has no binding site")
	}

	original := site.Get()
	origV := reflect.ValueOf(original)
	if !origV.IsValid() || origV.Kind() != reflect.Func || origV.IsNil() {
		return false, fmt.Errorf("binding holds no callable")
	}

	variadic := origV.Type().IsVariadic()
	wrapperV := reflect.MakeFunc(origV.Type(),
		func(args []reflect.Value) []reflect.Value {
			start := time.Now()
			// Recording happens in a defer so that a panicking callee is
			// still measured before the panic continues to the caller.
			defer func() {
				si.store.Record(id, time.Since(start))
				metrics.AddSampleRecorded()
			}()
			if variadic {
				return origV.CallSlice(args)
			}
			return origV.Call(args)
		})

	if err := site.Set(wrapperV.Interface()); err != nil {
		return false, err
	}
	si.records[id] = &substRecord{
		target:    t,
		original:  original,
		wrapperPC: wrapperV.Pointer(),
	}
	return true, nil
}

// RestoreAll puts the original callable back at every binding site that
// still holds our wrapper. Sites rebound by a third party are left
// untouched and reported as warnings; either way the record is discarded.
func (si *SubstInterceptor) RestoreAll() {
	si.mu.Lock()
	defer si.mu.Unlock()

	restored := 0
	for id, rec := range si.records {
		site := rec.target.Site()
		cur := reflect.ValueOf(site.Get())
		if !cur.IsValid() || cur.Kind() != reflect.Func ||
			cur.Pointer() != rec.wrapperPC {
			metrics.AddForeignRebind()
			log.Warnf("Binding %s was rebound externally, not restoring", id.Name())
			delete(si.records, id)
			continue
		}
		if err := site.Set(rec.original); err != nil {
			log.Warnf("Could not restore %s: %v", id.Name(), err)
		} else {
			restored++
		}
		delete(si.records, id)
	}
	metrics.AddSubstitutions(-restored)
}

// ActiveCount returns the number of substitutions currently installed.
func (si *SubstInterceptor) ActiveCount() int {
	si.mu.Lock()
	defer si.mu.Unlock()
	return len(si.records)
}
