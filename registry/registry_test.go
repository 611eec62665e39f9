// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

package registry_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calltrace/calltrace/binding"
	"github.com/calltrace/calltrace/registry"
)

func sampleFunc() {}

func TestFuncTargetClassification(t *testing.T) {
	ft, err := registry.FuncTarget(sampleFunc)
	require.NoError(t, err)
	require.True(t, ft.Hookable())
	require.False(t, ft.ID().IsOpaque())

	_, err = registry.FuncTarget(42)
	require.Error(t, err)
}

func TestSiteTargetClassification(t *testing.T) {
	tbl := binding.NewTable("mathlib")
	site, err := tbl.Bind("square", func(x int) int { return x * x })
	require.NoError(t, err)

	st := registry.SiteTarget(site)
	require.False(t, st.Hookable())
	require.True(t, st.ID().IsOpaque())
	require.Equal(t, "mathlib.square", st.ID().Name())
}

func TestSetActiveTargetsPartitions(t *testing.T) {
	r := registry.NewRegistry()

	ft, err := registry.FuncTarget(sampleFunc)
	require.NoError(t, err)

	tbl := binding.NewTable("mathlib")
	site, err := tbl.Bind("square", func(x int) int { return x * x })
	require.NoError(t, err)
	st := registry.SiteTarget(site)

	r.SetActiveTargets([]registry.Target{ft, st})

	hookable, opaque := r.ActiveCounts()
	require.Equal(t, 1, hookable)
	require.Equal(t, 1, opaque)

	require.True(t, r.IsHookable(ft.ID()))
	require.False(t, r.IsHookable(st.ID()))

	pc := reflect.ValueOf(sampleFunc).Pointer()
	id, ok := r.LookupPC(pc)
	require.True(t, ok)
	require.Equal(t, ft.ID(), id)

	_, ok = r.LookupPC(0xdead)
	require.False(t, ok)

	opaqueTargets := r.OpaqueTargets()
	require.Len(t, opaqueTargets, 1)
	require.Equal(t, st.ID(), opaqueTargets[0].ID())
}

func TestStandingTargetsSurviveUpdates(t *testing.T) {
	r := registry.NewRegistry()

	standing, err := registry.FuncTarget(sampleFunc)
	require.NoError(t, err)
	r.RegisterStanding(standing)

	// Standing registration alone activates nothing.
	hookable, opaque := r.ActiveCounts()
	require.Zero(t, hookable+opaque)

	r.SetActiveTargets(nil)
	require.True(t, r.IsHookable(standing.ID()))

	// An update with an unrelated list keeps the standing target active.
	tbl := binding.NewTable("mathlib")
	site, err := tbl.Bind("square", func(x int) int { return x * x })
	require.NoError(t, err)
	r.SetActiveTargets([]registry.Target{registry.SiteTarget(site)})

	require.True(t, r.IsHookable(standing.ID()))
	hookable, opaque = r.ActiveCounts()
	require.Equal(t, 1, hookable)
	require.Equal(t, 1, opaque)
}

func TestSetActiveTargetsOverwrites(t *testing.T) {
	r := registry.NewRegistry()

	ft, err := registry.FuncTarget(sampleFunc)
	require.NoError(t, err)

	r.SetActiveTargets([]registry.Target{ft})
	require.True(t, r.IsHookable(ft.ID()))

	r.SetActiveTargets(nil)
	require.False(t, r.IsHookable(ft.ID()))
	_, ok := r.LookupPC(ft.ID().PC())
	require.False(t, ok)
}
