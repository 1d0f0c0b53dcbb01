// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

// Package value implements the Workflow VM's runtime value representation
// (spec.md §4.7). Scalars and arrays are backed by cty, the same dynamic
// value system OpenTofu uses to represent configuration values, so that
// arithmetic, equality, and conversion all reuse a well-tested value
// system instead of a hand-rolled one.
package value

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Kind distinguishes the ten runtime value shapes named in spec.md §4.7.
// Instance, Function, Data, and IntermediateResult have no natural cty
// representation, so they carry their payload alongside an empty cty.Value.
type Kind int

const (
	Boolean Kind = iota
	Integer
	Real
	String
	Array
	Instance
	Function
	Data
	IntermediateResult
	Void
)

func (k Kind) String() string {
	switch k {
	case Boolean:
		return "Boolean"
	case Integer:
		return "Integer"
	case Real:
		return "Real"
	case String:
		return "String"
	case Array:
		return "Array"
	case Instance:
		return "Instance"
	case Function:
		return "Function"
	case Data:
		return "Data"
	case IntermediateResult:
		return "IntermediateResult"
	case Void:
		return "Void"
	default:
		return "Unknown"
	}
}

// InstanceValue is the payload of a Kind-Instance Value: a class tag plus
// its ordered, named properties (spec.md §3, ClassState).
type InstanceValue struct {
	Class int
	Props map[string]Value
}

// Value is a single VM operand-stack cell.
type Value struct {
	kind     Kind
	scalar   cty.Value // valid for Boolean, Integer, Real, String, Array
	instance *InstanceValue
	funcIdx  int
	name     string // Data / IntermediateResult identifier
}

func (v Value) Kind() Kind { return v.kind }

func Bool(b bool) Value { return Value{kind: Boolean, scalar: cty.BoolVal(b)} }

func Int(i int64) Value { return Value{kind: Integer, scalar: cty.NumberIntVal(i)} }

func Real(f float64) Value { return Value{kind: Real, scalar: cty.NumberFloatVal(f)} }

func Str(s string) Value { return Value{kind: String, scalar: cty.StringVal(s)} }

// Arr builds an Array value. Brane arrays are value-homogeneous only in
// the DSL's static type system; at runtime they are stored as a cty
// tuple so heterogeneous intermediate states (e.g. during flattening)
// never panic.
func Arr(elems []Value) Value {
	ctyElems := make([]cty.Value, len(elems))
	for i, e := range elems {
		ctyElems[i] = e.scalar
	}
	if len(ctyElems) == 0 {
		return Value{kind: Array, scalar: cty.EmptyTupleVal}
	}
	return Value{kind: Array, scalar: cty.TupleVal(ctyElems)}
}

func NewInstance(class int, props map[string]Value) Value {
	return Value{kind: Instance, instance: &InstanceValue{Class: class, Props: props}}
}

func Func(idx int) Value { return Value{kind: Function, funcIdx: idx} }

func DataRef(name string) Value { return Value{kind: Data, name: name} }

func IntermediateResultRef(name string) Value { return Value{kind: IntermediateResult, name: name} }

func VoidVal() Value { return Value{kind: Void} }

func (v Value) AsBool() bool {
	b, _ := convert.Convert(v.scalar, cty.Bool)
	return b.True()
}

func (v Value) AsInt() int64 {
	n, _ := convert.Convert(v.scalar, cty.Number)
	i, _ := n.AsBigFloat().Int64()
	return i
}

func (v Value) AsReal() float64 {
	n, _ := convert.Convert(v.scalar, cty.Number)
	f, _ := n.AsBigFloat().Float64()
	return f
}

func (v Value) AsString() string {
	switch v.kind {
	case String:
		return v.scalar.AsString()
	case Boolean:
		return fmt.Sprintf("%t", v.AsBool())
	case Integer:
		return fmt.Sprintf("%d", v.AsInt())
	case Real:
		return fmt.Sprintf("%g", v.AsReal())
	case Data:
		return v.name
	case IntermediateResult:
		return v.name
	default:
		return fmt.Sprintf("<%s>", v.kind)
	}
}

func (v Value) Elems() []Value {
	if v.kind != Array {
		return nil
	}
	out := make([]Value, 0, v.scalar.LengthInt())
	for it := v.scalar.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		out = append(out, valueFromCty(ev))
	}
	return out
}

func (v Value) Instance() *InstanceValue { return v.instance }

func (v Value) FuncIndex() int { return v.funcIdx }

func (v Value) Name() string { return v.name }

func valueFromCty(cv cty.Value) Value {
	t := cv.Type()
	switch {
	case t == cty.Bool:
		return Value{kind: Boolean, scalar: cv}
	case t == cty.String:
		return Value{kind: String, scalar: cv}
	case t == cty.Number:
		return Value{kind: Real, scalar: cv}
	default:
		return Value{kind: Array, scalar: cv}
	}
}

// ToReal promotes Integer or Boolean to Real, per the Integer→Real implicit
// coercion rule used throughout arithmetic and MergeStrategy folding
// (spec.md §4.7, §8 property 8).
func (v Value) ToReal() Value {
	if v.kind == Real {
		return v
	}
	return Real(v.AsReal())
}

// Equal implements the `==`/`!=` EdgeInstr semantics for scalar kinds.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		if isNumeric(a.kind) && isNumeric(b.kind) {
			return a.AsReal() == b.AsReal()
		}
		return false
	}
	switch a.kind {
	case Void:
		return true
	case Instance, Function, Data, IntermediateResult:
		return a.name == b.name && a.funcIdx == b.funcIdx
	default:
		return a.scalar.RawEquals(b.scalar)
	}
}

func isNumeric(k Kind) bool { return k == Integer || k == Real || k == Boolean }

func (v Value) String() string {
	switch v.kind {
	case Array:
		parts := v.Elems()
		s := "["
		for i, p := range parts {
			if i > 0 {
				s += ", "
			}
			s += p.String()
		}
		return s + "]"
	case Instance:
		return fmt.Sprintf("Instance(class=%d)", v.instance.Class)
	case Function:
		return fmt.Sprintf("Function(%d)", v.funcIdx)
	case Void:
		return "Void"
	default:
		return v.AsString()
	}
}
