// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package intercept implements the two interception strategies: the call
// hook listener for functions with inspectable frames, and binding
// substitution for everything else.
package intercept // import "github.com/calltrace/calltrace/intercept"

import (
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/calltrace/calltrace/callstack"
	"github.com/calltrace/calltrace/hook"
	"github.com/calltrace/calltrace/metrics"
	"github.com/calltrace/calltrace/registry"
)

// HookInterceptor owns the process-wide call event listener. It filters
// the event stream down to the active hookable targets and drives the
// call-stack tracker with what remains.
type HookInterceptor struct {
	reg     *registry.Registry
	tracker *callstack.Tracker

	mu        sync.Mutex
	installed bool

	// prev holds the listener that was installed before us, so Uninstall
	// can put it back and the listener can keep feeding it events while we
	// are active. Accessed from hook callbacks, hence atomic.
	prev atomic.Pointer[hook.Listener]
}

// NewHookInterceptor returns an interceptor over the given registry and
// tracker. It does not install anything yet.
func NewHookInterceptor(reg *registry.Registry, tracker *callstack.Tracker) *HookInterceptor {
	return &HookInterceptor{reg: reg, tracker: tracker}
}

// Install puts the interceptor's listener into the process-wide hook slot,
// saving whatever listener was there before. Installing twice is a no-op;
// the listener is never chained onto itself.
func (h *HookInterceptor) Install() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.installed {
		return
	}
	prev := hook.Swap(h.listen)
	if prev != nil {
		h.prev.Store(&prev)
	}
	h.installed = true
	log.Debugf("Call hook installed (chained: %v)", prev != nil)
}

// Uninstall restores the listener saved at Install time, regardless of
// what was installed in between. A no-op when not installed.
func (h *HookInterceptor) Uninstall() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.installed {
		return
	}
	var restore hook.Listener
	if p := h.prev.Swap(nil); p != nil {
		restore = *p
	}
	hook.Swap(restore)
	h.installed = false
	log.Debug("Call hook uninstalled")
}

// listen is invoked for every entry/exit event emitted anywhere in the
// process. It must never let an internal error escape into the traced
// program: any panic during bookkeeping degrades to a dropped measurement.
func (h *HookInterceptor) listen(site hook.Site, pc uintptr, ev hook.Event, ts time.Time) {
	defer func() {
		if r := recover(); r != nil {
			metrics.AddSampleDropped()
			log.Errorf("Call hook bookkeeping failed, sample dropped: %v", r)
		}
	}()

	// Keep the listener that was installed before us observing the full
	// event stream.
	if p := h.prev.Load(); p != nil {
		(*p)(site, pc, ev, ts)
	}

	switch ev {
	case hook.EventEntry:
		if id, ok := h.reg.LookupPC(pc); ok {
			h.tracker.OnEntry(site, id, ts)
		}
	case hook.EventExit:
		h.tracker.OnExit(site, ts)
	}
}
