// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

package binding_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calltrace/calltrace/binding"
)

func TestVarSite(t *testing.T) {
	double := func(x int) int { return 2 * x }
	triple := func(x int) int { return 3 * x }

	target := double
	site, err := binding.NewVarSite("mathlib", "scale", &target)
	require.NoError(t, err)
	require.Equal(t, "mathlib", site.Scope())
	require.Equal(t, "scale", site.Name())

	got := site.Get().(func(int) int)
	require.Equal(t, 4, got(2))

	require.NoError(t, site.Set(triple))
	require.Equal(t, 6, target(2))
}

func TestNewVarSiteValidation(t *testing.T) {
	tests := map[string]any{
		"not a pointer":       func() {},
		"pointer to non-func": new(int),
		"nil":                 nil,
		"nil pointer":         (*func())(nil),
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := binding.NewVarSite("s", "n", input)
			require.Error(t, err)
		})
	}
}

func TestVarSiteSetRejectsWrongType(t *testing.T) {
	target := func(x int) int { return x }
	site, err := binding.NewVarSite("mathlib", "id", &target)
	require.NoError(t, err)

	require.Error(t, site.Set(func(x string) string { return x }))
	require.Error(t, site.Set(42))
}

func TestTable(t *testing.T) {
	tbl := binding.NewTable("mathlib")
	square := func(x int) int { return x * x }

	site, err := tbl.Bind("square", square)
	require.NoError(t, err)
	require.Equal(t, "mathlib", site.Scope())

	fn := tbl.Lookup("square").(func(int) int)
	require.Equal(t, 9, fn(3))

	// Rebinding through the site changes what Lookup returns.
	require.NoError(t, site.Set(func(x int) int { return -x }))
	fn = tbl.Lookup("square").(func(int) int)
	require.Equal(t, -3, fn(3))

	require.Equal(t, []string{"square"}, tbl.Names())
	require.Nil(t, tbl.Lookup("missing"))

	_, err = tbl.Site("missing")
	require.Error(t, err)

	_, err = tbl.Bind("broken", 42)
	require.Error(t, err)
}

func TestTableSiteSetRejectsWrongType(t *testing.T) {
	tbl := binding.NewTable("mathlib")
	site, err := tbl.Bind("square", func(x int) int { return x * x })
	require.NoError(t, err)

	require.Error(t, site.Set(func() {}))
}
