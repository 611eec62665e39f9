// Copyright The calltrace Authors
// SPDX-License-Identifier: Apache-2.0

package libct

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func helperA() {}
func helperB() {}

func TestFuncIDForFunc(t *testing.T) {
	idA, err := FuncIDForFunc(helperA)
	require.NoError(t, err)
	idB, err := FuncIDForFunc(helperB)
	require.NoError(t, err)

	require.NotEqual(t, idA, idB)
	require.False(t, idA.IsOpaque())
	require.True(t, strings.HasSuffix(idA.Name(), "helperA"))

	// The same function observed twice must compare equal.
	idA2, err := FuncIDForFunc(helperA)
	require.NoError(t, err)
	require.Equal(t, idA, idA2)
}

func TestFuncIDForFuncRejectsNonFunctions(t *testing.T) {
	tests := map[string]any{
		"int":      42,
		"string":   "not a function",
		"nil":      nil,
		"nil func": (func())(nil),
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FuncIDForFunc(input)
			require.Error(t, err)
		})
	}
}

func TestFuncIDForPC(t *testing.T) {
	pc := reflect.ValueOf(helperA).Pointer()
	id, ok := FuncIDForPC(pc)
	require.True(t, ok)

	direct, err := FuncIDForFunc(helperA)
	require.NoError(t, err)
	require.Equal(t, direct, id)

	_, ok = FuncIDForPC(0)
	require.False(t, ok)
}

func TestOpaqueFuncID(t *testing.T) {
	id := OpaqueFuncID("mathlib", "square")
	require.True(t, id.IsOpaque())
	require.Equal(t, "mathlib.square", id.Name())
	require.Equal(t, id, OpaqueFuncID("mathlib", "square"))
	require.NotEqual(t, id, OpaqueFuncID("mathlib", "cube"))
	require.NotEqual(t, id.Hash32(), OpaqueFuncID("mathlib", "cube").Hash32())
}

func TestHasInspectableFrame(t *testing.T) {
	require.True(t, HasInspectableFrame(helperA))
	require.False(t, HasInspectableFrame(42))
	require.False(t, HasInspectableFrame((func())(nil)))
}
