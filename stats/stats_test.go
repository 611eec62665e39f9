// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

package stats_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calltrace/calltrace/libct"
	"github.com/calltrace/calltrace/stats"
)

func TestRecordAggregates(t *testing.T) {
	id := libct.OpaqueFuncID("pkg", "fn")
	st := stats.NewStore()

	durations := []time.Duration{
		5 * time.Millisecond,
		2 * time.Millisecond,
		9 * time.Millisecond,
	}
	var total time.Duration
	for _, d := range durations {
		st.Record(id, d)
		total += d
	}

	snap := st.Snapshot()
	require.Len(t, snap, 1)

	s := snap[id]
	require.Equal(t, uint64(3), s.CallCount)
	require.Equal(t, total, s.TotalTime)
	require.Equal(t, 2*time.Millisecond, s.MinTime)
	require.Equal(t, 9*time.Millisecond, s.MaxTime)
	require.LessOrEqual(t, s.MinTime, s.AvgTime())
	require.LessOrEqual(t, s.AvgTime(), s.MaxTime)
}

func TestAvgTimeZeroCount(t *testing.T) {
	var s stats.FunctionStats
	require.Equal(t, time.Duration(0), s.AvgTime())
}

func TestSnapshotIsDetached(t *testing.T) {
	id := libct.OpaqueFuncID("pkg", "fn")
	st := stats.NewStore()
	st.Record(id, time.Millisecond)

	snap := st.Snapshot()
	st.Record(id, time.Millisecond)

	require.Equal(t, uint64(1), snap[id].CallCount)
	require.Equal(t, uint64(2), st.Snapshot()[id].CallCount)
}

func TestClear(t *testing.T) {
	st := stats.NewStore()
	st.Record(libct.OpaqueFuncID("pkg", "fn"), time.Millisecond)
	require.Equal(t, 1, st.Len())

	st.Clear()
	require.Equal(t, 0, st.Len())
	require.Empty(t, st.Snapshot())
}

func TestConcurrentRecord(t *testing.T) {
	st := stats.NewStore()
	ids := []libct.FuncID{
		libct.OpaqueFuncID("pkg", "a"),
		libct.OpaqueFuncID("pkg", "b"),
		libct.OpaqueFuncID("pkg", "c"),
	}

	const goroutines = 8
	const perGoroutine = 200

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := ids[g%len(ids)]
			for i := 0; i < perGoroutine; i++ {
				st.Record(id, time.Microsecond)
			}
		}()
	}
	wg.Wait()

	var calls uint64
	for _, s := range st.Snapshot() {
		calls += s.CallCount
	}
	require.Equal(t, uint64(goroutines*perGoroutine), calls)
}
