// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package reporter renders statistics snapshots as human-readable tables.
// It holds no engine state and performs no measurement.
package reporter // import "github.com/calltrace/calltrace/reporter"

import (
	"fmt"
	"sort"
	"strings"

	lru "github.com/elastic/go-freelru"

	"github.com/calltrace/calltrace/libct"
	"github.com/calltrace/calltrace/stats"
)

const (
	// EmptyPlaceholder is emitted when the snapshot holds no data.
	EmptyPlaceholder = "No tracing data collected."

	// nameWidth is the column width for function names; longer names are
	// truncated to fit.
	nameWidth    = 40
	maxNameLen   = 38
	truncTailLen = 35

	displayCacheSize = 512
)

// displayNames caches the truncated rendering of function names, which is
// recomputed on every report otherwise.
var displayNames *lru.SyncedLRU[libct.FuncID, string]

func init() {
	var err error
	displayNames, err = lru.NewSynced[libct.FuncID, string](displayCacheSize,
		libct.FuncID.Hash32)
	if err != nil {
		panic(fmt.Sprintf("creating display name cache: %v", err))
	}
}

// Render formats a snapshot into the tabular report. Rows are sorted by
// function name so output is stable across runs.
func Render(snap stats.Snapshot) string {
	if len(snap) == 0 {
		return EmptyPlaceholder
	}

	ids := make([]libct.FuncID, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Name() < ids[j].Name()
	})

	var b strings.Builder
	rule := strings.Repeat("-", 80)
	b.WriteString("Function Tracing Results:\n")
	b.WriteString(rule)
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%-*s %-10s %-12s %-12s %-12s %-12s\n", nameWidth,
		"Function Name", "Calls", "Total (s)", "Avg (ms)", "Min (ms)", "Max (ms)")
	b.WriteString(rule)
	b.WriteByte('\n')

	for _, id := range ids {
		s := snap[id]
		fmt.Fprintf(&b, "%-*s %-10d %-12.6f %-12.6f %-12.6f %-12.6f\n",
			nameWidth, displayName(id),
			s.CallCount,
			s.TotalTime.Seconds(),
			s.AvgTime().Seconds()*1e3,
			s.MinTime.Seconds()*1e3,
			s.MaxTime.Seconds()*1e3)
	}
	return strings.TrimRight(b.String(), "\n")
}

// displayName truncates overlong names, keeping the tail since the
// trailing segments of a qualified name carry the information.
func displayName(id libct.FuncID) string {
	if name, ok := displayNames.Get(id); ok {
		return name
	}
	name := id.Name()
	if len(name) > maxNameLen {
		name = "..." + name[len(name)-truncTailLen:]
	}
	displayNames.Add(id, name)
	return name
}
