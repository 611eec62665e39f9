// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

package reporter_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calltrace/calltrace/libct"
	"github.com/calltrace/calltrace/reporter"
	"github.com/calltrace/calltrace/stats"
)

func TestRenderEmptySnapshot(t *testing.T) {
	require.Equal(t, reporter.EmptyPlaceholder, reporter.Render(nil))
	require.Equal(t, reporter.EmptyPlaceholder, reporter.Render(stats.Snapshot{}))
}

func TestRenderTable(t *testing.T) {
	snap := stats.Snapshot{
		libct.OpaqueFuncID("pkg", "beta"): {
			CallCount: 2,
			TotalTime: 30 * time.Millisecond,
			MinTime:   10 * time.Millisecond,
			MaxTime:   20 * time.Millisecond,
		},
		libct.OpaqueFuncID("pkg", "alpha"): {
			CallCount: 1,
			TotalTime: 5 * time.Millisecond,
			MinTime:   5 * time.Millisecond,
			MaxTime:   5 * time.Millisecond,
		},
	}

	out := reporter.Render(snap)
	lines := strings.Split(out, "\n")
	require.Equal(t, "Function Tracing Results:", lines[0])
	require.Contains(t, lines[2], "Function Name")
	require.Contains(t, lines[2], "Calls")
	require.Contains(t, lines[2], "Max (ms)")

	// Rows sorted by name: alpha before beta.
	require.Contains(t, lines[4], "pkg.alpha")
	require.Contains(t, lines[5], "pkg.beta")

	// Calls, total seconds, then avg/min/max in milliseconds.
	require.Contains(t, lines[5], "2")
	require.Contains(t, lines[5], "0.030000")
	require.Contains(t, lines[5], "15.000000")
	require.Contains(t, lines[5], "10.000000")
	require.Contains(t, lines[5], "20.000000")
}

func TestRenderTruncatesLongNames(t *testing.T) {
	longName := strings.Repeat("x", 30) + "/deeply/nested.Function"
	snap := stats.Snapshot{
		libct.OpaqueFuncID("", longName): {CallCount: 1, TotalTime: time.Millisecond,
			MinTime: time.Millisecond, MaxTime: time.Millisecond},
	}

	out := reporter.Render(snap)
	require.Contains(t, out, "...")
	require.Contains(t, out, longName[len(longName)-35:])
	require.NotContains(t, out, longName)
}
