// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package vm

import (
	"fmt"

	"github.com/brane-org/brane/internal/ir"
	"github.com/brane-org/brane/internal/value"
)

// combine implements a Join's reduction of a Parallel's branch results
// (spec.md §4.7, §8 property 8). byBranch is indexed by branch
// position (declaration order); arrival is the same branch indices
// reordered by the moment each one's Return fired, earliest first.
// Both slices always hold every branch: the VM's Parallel handler
// waits for all branches to finish before reaching the Join that
// consumes them (see vm.go), so "abandoning" branches under First
// never actually drops their work — only which value wins the merge.
func combine(strategy ir.MergeStrategy, byBranch []value.Value, arrival []int) (value.Value, error) {
	if len(byBranch) == 0 {
		return value.VoidVal(), nil
	}
	switch strategy {
	case ir.MergeNone:
		return value.VoidVal(), nil
	case ir.MergeAll:
		return value.Arr(byBranch), nil
	case ir.MergeFirst, ir.MergeFirstBlocking:
		return byBranch[arrival[0]], nil
	case ir.MergeLast:
		return byBranch[arrival[len(arrival)-1]], nil
	case ir.MergeSum:
		return foldNumeric(byBranch, func(acc, v numeric) numeric { return acc.add(v) })
	case ir.MergeProduct:
		return foldNumeric(byBranch, func(acc, v numeric) numeric { return acc.mul(v) })
	case ir.MergeMax:
		return foldNumeric(byBranch, func(acc, v numeric) numeric {
			if v.greater(acc) {
				return v
			}
			return acc
		})
	case ir.MergeMin:
		return foldNumeric(byBranch, func(acc, v numeric) numeric {
			if v.greater(acc) {
				return acc
			}
			return v
		})
	default:
		return value.Value{}, fmt.Errorf("vm: unhandled merge strategy %v", strategy)
	}
}

// numeric is the Integer/Real fold accumulator: it stays Integer as
// long as every value folded so far was Integer, and promotes to Real
// (and stays there) the moment a Real value is folded in, mirroring
// the VM's Linear arithmetic promotion rule.
type numeric struct {
	isReal bool
	i      int64
	r      float64
}

func numericOf(v value.Value) numeric {
	if v.Kind() == value.Real {
		return numeric{isReal: true, r: v.AsReal()}
	}
	return numeric{i: v.AsInt()}
}

func (n numeric) add(o numeric) numeric {
	if n.isReal || o.isReal {
		return numeric{isReal: true, r: n.asReal() + o.asReal()}
	}
	return numeric{i: n.i + o.i}
}

func (n numeric) mul(o numeric) numeric {
	if n.isReal || o.isReal {
		return numeric{isReal: true, r: n.asReal() * o.asReal()}
	}
	return numeric{i: n.i * o.i}
}

func (n numeric) greater(o numeric) bool {
	if n.isReal || o.isReal {
		return n.asReal() > o.asReal()
	}
	return n.i > o.i
}

func (n numeric) asReal() float64 {
	if n.isReal {
		return n.r
	}
	return float64(n.i)
}

func (n numeric) value() value.Value {
	if n.isReal {
		return value.Real(n.r)
	}
	return value.Int(n.i)
}

func foldNumeric(vs []value.Value, step func(acc, v numeric) numeric) (value.Value, error) {
	acc := numericOf(vs[0])
	for _, v := range vs[1:] {
		acc = step(acc, numericOf(v))
	}
	return acc.value(), nil
}
