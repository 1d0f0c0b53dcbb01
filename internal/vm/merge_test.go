// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brane-org/brane/internal/ir"
	"github.com/brane-org/brane/internal/value"
)

// eq compares via value.Equal rather than require.Equal: Value wraps a
// cty.Value, and two scalars built through separate calls to
// value.Int/value.Real aren't guaranteed to compare byte-identical
// under reflect.DeepEqual.
func eq(t *testing.T, want, got value.Value) {
	t.Helper()
	require.True(t, value.Equal(want, got), "want %s, got %s", want, got)
}

// ints builds the [1,2,3] branch-output fixture spec.md §8 property 8
// names, with arrival order equal to branch-index order.
func ints(t *testing.T) ([]value.Value, []int) {
	t.Helper()
	return []value.Value{value.Int(1), value.Int(2), value.Int(3)}, []int{0, 1, 2}
}

func TestCombineMergePurity(t *testing.T) {
	vs, arrival := ints(t)

	sum, err := combine(ir.MergeSum, vs, arrival)
	require.NoError(t, err)
	eq(t, value.Int(6), sum)

	product, err := combine(ir.MergeProduct, vs, arrival)
	require.NoError(t, err)
	eq(t, value.Int(6), product)

	max, err := combine(ir.MergeMax, vs, arrival)
	require.NoError(t, err)
	eq(t, value.Int(3), max)

	min, err := combine(ir.MergeMin, vs, arrival)
	require.NoError(t, err)
	eq(t, value.Int(1), min)

	all, err := combine(ir.MergeAll, vs, arrival)
	require.NoError(t, err)
	elems := all.Elems()
	require.Len(t, elems, len(vs))
	for i := range vs {
		eq(t, vs[i], elems[i])
	}

	first, err := combine(ir.MergeFirst, vs, arrival)
	require.NoError(t, err)
	eq(t, value.Int(1), first)

	last, err := combine(ir.MergeLast, vs, arrival)
	require.NoError(t, err)
	eq(t, value.Int(3), last)

	none, err := combine(ir.MergeNone, vs, arrival)
	require.NoError(t, err)
	require.Equal(t, value.Void, none.Kind())
}

func TestCombineFirstFollowsArrivalNotDeclarationOrder(t *testing.T) {
	vs := []value.Value{value.Int(1), value.Int(2), value.Int(3)}
	arrival := []int{2, 0, 1} // branch 2 ("3") finished first

	first, err := combine(ir.MergeFirst, vs, arrival)
	require.NoError(t, err)
	eq(t, value.Int(3), first)

	last, err := combine(ir.MergeLast, vs, arrival)
	require.NoError(t, err)
	eq(t, value.Int(2), last)
}

func TestCombineSumPromotesToReal(t *testing.T) {
	vs := []value.Value{value.Int(1), value.Real(2.5)}
	sum, err := combine(ir.MergeSum, vs, []int{0, 1})
	require.NoError(t, err)
	require.Equal(t, value.Real, sum.Kind())
	require.InDelta(t, 3.5, sum.AsReal(), 1e-9)
}
