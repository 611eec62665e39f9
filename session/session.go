// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package session provides the TraceSession façade that owns the engine's
// lifecycle: which functions are instrumented, when interception is
// installed and torn down, and how results are snapshotted.
package session // import "github.com/calltrace/calltrace/session"

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/calltrace/calltrace/binding"
	"github.com/calltrace/calltrace/callstack"
	"github.com/calltrace/calltrace/intercept"
	"github.com/calltrace/calltrace/registry"
	"github.com/calltrace/calltrace/stats"
)

// ErrNotEnabled is returned by Update when tracing is not active.
var ErrNotEnabled = errors.New("tracing is not enabled")

// Session coordinates one target registry, one stats store and the two
// interceptors. Sessions are constructed explicitly and passed to whoever
// needs tracing; Default exists purely as a convenience.
type Session struct {
	id uuid.UUID

	reg      *registry.Registry
	store    *stats.Store
	tracker  *callstack.Tracker
	hookInt  *intercept.HookInterceptor
	substInt *intercept.SubstInterceptor

	summaryInterval time.Duration

	mu          sync.Mutex
	enabled     bool
	stopSummary context.CancelFunc
	summaryDone chan struct{}
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithSummaryInterval makes the session log a one-line statistics digest
// at the given interval while enabled. Zero disables the digest.
func WithSummaryInterval(d time.Duration) Option {
	return func(s *Session) { s.summaryInterval = d }
}

// New constructs a disabled session.
func New(opts ...Option) *Session {
	s := &Session{
		id:    uuid.New(),
		reg:   registry.NewRegistry(),
		store: stats.NewStore(),
	}
	s.tracker = callstack.NewTracker(s.reg, s.store)
	s.hookInt = intercept.NewHookInterceptor(s.reg, s.tracker)
	s.substInt = intercept.NewSubstInterceptor(s.store)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Register enrolls a function for standing instrumentation: it is traced
// whenever the session is enabled, independent of the per-enable target
// list. Registration never toggles tracing by itself.
func (s *Session) Register(fn any) error {
	t, err := registry.FuncTarget(fn)
	if err != nil {
		return err
	}
	s.reg.RegisterStanding(t)
	return nil
}

// RegisterSite enrolls a binding site for standing instrumentation.
func (s *Session) RegisterSite(site binding.Site) {
	s.reg.RegisterStanding(registry.SiteTarget(site))
}

// Enable activates tracing for the union of the standing registrations and
// the given targets. Statistics start from a clean slate. Calling Enable on
// an already-enabled session updates the active target list instead, like
// Update.
func (s *Session) Enable(targets ...registry.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enabled {
		s.updateLocked(targets)
		return
	}

	s.store.Clear()
	s.reg.SetActiveTargets(targets)
	s.hookInt.Install()
	s.substInt.InstallAll(s.reg.OpaqueTargets())
	s.enabled = true
	s.startSummaryLocked()

	hookable, opaque := s.reg.ActiveCounts()
	log.Infof("Tracing enabled (session %s): %d hookable, %d opaque targets",
		s.id, hookable, opaque)
}

// Update replaces the active target list while tracing stays enabled.
// Opaque substitutions are fully restored and reinstalled for the new
// selection; the call hook stays in place since it re-evaluates registry
// membership per event. Returns ErrNotEnabled when the session is
// disabled, leaving all state unchanged.
func (s *Session) Update(targets ...registry.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return ErrNotEnabled
	}
	s.updateLocked(targets)
	return nil
}

func (s *Session) updateLocked(targets []registry.Target) {
	s.substInt.RestoreAll()
	s.reg.SetActiveTargets(targets)
	s.substInt.InstallAll(s.reg.OpaqueTargets())

	hookable, opaque := s.reg.ActiveCounts()
	log.Debugf("Tracing targets updated (session %s): %d hookable, %d opaque",
		s.id, hookable, opaque)
}

// Disable deactivates tracing and returns the collected statistics. In-flight
// activations that never saw their exit are discarded without contributing
// measurements. Disabling an already-disabled session just returns the last
// snapshot with no side effects.
func (s *Session) Disable() stats.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return s.store.Snapshot()
	}

	s.hookInt.Uninstall()
	s.substInt.RestoreAll()
	if purged := s.tracker.Purge(); purged > 0 {
		log.Debugf("Discarded %d unfinished activations (session %s)", purged, s.id)
	}
	s.stopSummaryLocked()
	s.enabled = false

	log.Infof("Tracing disabled (session %s)", s.id)
	return s.store.Snapshot()
}

// Results returns the current statistics snapshot, whether the session is
// enabled or not.
func (s *Session) Results() stats.Snapshot {
	return s.store.Snapshot()
}

// Enabled reports whether tracing is currently active.
func (s *Session) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Session) startSummaryLocked() {
	if s.summaryInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.stopSummary = cancel
	s.summaryDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.summaryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.logSummary()
			}
		}
	}()
}

func (s *Session) stopSummaryLocked() {
	if s.stopSummary == nil {
		return
	}
	s.stopSummary()
	<-s.summaryDone
	s.stopSummary = nil
	s.summaryDone = nil
}

func (s *Session) logSummary() {
	snap := s.store.Snapshot()
	var calls uint64
	var total time.Duration
	for _, fs := range snap {
		calls += fs.CallCount
		total += fs.TotalTime
	}
	log.Infof("Session %s: %d functions, %d calls, %v total",
		s.id, len(snap), calls, total)
}
