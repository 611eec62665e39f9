// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package stats implements the aggregation store that both interception
// strategies feed their measurements into.
package stats // import "github.com/calltrace/calltrace/stats"

import (
	"sync"
	"time"

	"github.com/calltrace/calltrace/libct"
)

// FunctionStats holds the running aggregate for one function. Min and max
// are only meaningful while CallCount > 0.
type FunctionStats struct {
	CallCount uint64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// AvgTime returns the mean duration per call, or 0 if nothing was recorded.
func (s FunctionStats) AvgTime() time.Duration {
	if s.CallCount == 0 {
		return 0
	}
	return s.TotalTime / time.Duration(s.CallCount)
}

// Snapshot is an immutable copy of the store contents at one point in time.
type Snapshot map[libct.FuncID]FunctionStats

// Store accumulates per-function statistics. It is safe for concurrent use:
// hook callbacks and substitution wrappers record from arbitrary goroutines.
type Store struct {
	mu    sync.RWMutex
	stats map[libct.FuncID]*FunctionStats
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{stats: make(map[libct.FuncID]*FunctionStats)}
}

// Record folds one observed call duration into the aggregate for id. The
// entry is created lazily on the first call. Count, total, min and max are
// updated as a unit.
func (st *Store) Record(id libct.FuncID, d time.Duration) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.stats[id]
	if s == nil {
		s = &FunctionStats{MinTime: d, MaxTime: d}
		st.stats[id] = s
	} else {
		if d < s.MinTime {
			s.MinTime = d
		}
		if d > s.MaxTime {
			s.MaxTime = d
		}
	}
	s.CallCount++
	s.TotalTime += d
}

// Snapshot returns a copy of all current aggregates. The returned map does
// not alias store internals and stays valid after further Record calls.
func (st *Store) Snapshot() Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()

	snap := make(Snapshot, len(st.stats))
	for id, s := range st.stats {
		snap[id] = *s
	}
	return snap
}

// Clear drops all aggregates. Only called between sessions, while no
// interceptor is installed.
func (st *Store) Clear() {
	st.mu.Lock()
	defer st.mu.Unlock()
	clear(st.stats)
}

// Len returns the number of functions with at least one recorded call.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.stats)
}
