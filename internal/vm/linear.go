// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package vm

import (
	"fmt"

	"github.com/brane-org/brane/internal/ir"
	"github.com/brane-org/brane/internal/value"
)

// execLinear runs one Linear edge's scalar instruction stream against
// stack (spec.md §4.7). ip moves forward one instruction at a time
// except for OpBranch/OpBranchNot, which add their signed Offset — the
// only within-edge control flow the instruction set has; every other
// jump is expressed as a separate CFG edge.
func (t *thread) execLinear(act *activation, stack *[]slot, instrs []ir.EdgeInstr) error {
	ip := 0
	for ip < len(instrs) {
		in := instrs[ip]
		switch in.Op {
		case ir.OpCast:
			v := pop(stack).val
			push(stack, value.Str(v.AsString()))

		case ir.OpPop:
			pop(stack)

		case ir.OpPopMarker:
			*stack = append(*stack, slot{marker: true})

		case ir.OpDynamicPop:
			for len(*stack) > 0 && !(*stack)[len(*stack)-1].marker {
				pop(stack)
			}
			if len(*stack) == 0 {
				return fmt.Errorf("vm: DynamicPop found no marker on the operand stack")
			}
			pop(stack) // discard the marker itself

		case ir.OpBranch:
			if pop(stack).val.AsBool() {
				ip += in.Offset
				continue
			}

		case ir.OpBranchNot:
			if !pop(stack).val.AsBool() {
				ip += in.Offset
				continue
			}

		case ir.OpNot:
			push(stack, value.Bool(!pop(stack).val.AsBool()))

		case ir.OpNeg:
			v := pop(stack).val
			if v.Kind() == value.Real {
				push(stack, value.Real(-v.AsReal()))
			} else {
				push(stack, value.Int(-v.AsInt()))
			}

		case ir.OpAnd:
			b, a := pop(stack).val, pop(stack).val
			push(stack, value.Bool(a.AsBool() && b.AsBool()))

		case ir.OpOr:
			b, a := pop(stack).val, pop(stack).val
			push(stack, value.Bool(a.AsBool() || b.AsBool()))

		case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod:
			b, a := pop(stack).val, pop(stack).val
			v, err := arith(in.Op, a, b)
			if err != nil {
				return err
			}
			push(stack, v)

		case ir.OpEq:
			b, a := pop(stack).val, pop(stack).val
			push(stack, value.Bool(value.Equal(a, b)))

		case ir.OpNe:
			b, a := pop(stack).val, pop(stack).val
			push(stack, value.Bool(!value.Equal(a, b)))

		case ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe:
			b, a := pop(stack).val, pop(stack).val
			v, err := compareOp(in.Op, a, b)
			if err != nil {
				return err
			}
			push(stack, v)

		case ir.OpArray:
			n := len(*stack)
			if n < in.Len {
				return fmt.Errorf("vm: array literal expected %d elements, stack held %d", in.Len, n)
			}
			elems := make([]value.Value, in.Len)
			for i, s := range (*stack)[n-in.Len:] {
				elems[i] = s.val
			}
			*stack = (*stack)[:n-in.Len]
			push(stack, value.Arr(elems))

		case ir.OpArrayIndex:
			index, arr := pop(stack).val, pop(stack).val
			elems := arr.Elems()
			i := index.AsInt()
			if i < 0 || i >= int64(len(elems)) {
				return fmt.Errorf("vm: array index %d out of range (len %d)", i, len(elems))
			}
			push(stack, elems[i])

		case ir.OpInstance:
			class := t.vm.wf.Table.Classes[in.Class]
			n := len(class.Props)
			if len(*stack) < n {
				return fmt.Errorf("vm: instance of %q expected %d field values, stack held %d", class.Name, n, len(*stack))
			}
			base := len(*stack) - n
			props := make(map[string]value.Value, n)
			for i, p := range class.Props {
				props[p.Name] = (*stack)[base+i].val
			}
			*stack = (*stack)[:base]
			push(stack, value.NewInstance(in.Class, props))

		case ir.OpProj:
			inst := pop(stack).val
			iv := inst.Instance()
			if iv == nil {
				return fmt.Errorf("vm: Proj on a non-Instance value")
			}
			push(stack, iv.Props[in.Field])

		case ir.OpVarDec, ir.OpVarSet:
			t.vm.setVar(act, in.VarIdx, pop(stack).val)

		case ir.OpVarGet:
			push(stack, t.vm.getVar(act, in.VarIdx))

		case ir.OpBoolean:
			push(stack, value.Bool(in.BoolVal))

		case ir.OpInteger:
			push(stack, value.Int(in.IntVal))

		case ir.OpReal:
			push(stack, value.Real(in.RealVal))

		case ir.OpString:
			push(stack, value.Str(in.StrVal))

		case ir.OpFunction:
			push(stack, value.Func(in.FuncIdx))

		default:
			return fmt.Errorf("vm: unhandled instruction op %v", in.Op)
		}
		ip++
	}
	return nil
}

func push(stack *[]slot, v value.Value) {
	*stack = append(*stack, slot{val: v})
}

// arith implements Add/Sub/Mul/Div/Mod with automatic Integer→Real
// promotion (spec.md §4.7): the result is Real unless both operands
// are Integer.
func arith(op ir.InstrOp, a, b value.Value) (value.Value, error) {
	if a.Kind() == value.Real || b.Kind() == value.Real {
		x, y := a.AsReal(), b.AsReal()
		switch op {
		case ir.OpAdd:
			return value.Real(x + y), nil
		case ir.OpSub:
			return value.Real(x - y), nil
		case ir.OpMul:
			return value.Real(x * y), nil
		case ir.OpDiv:
			return value.Real(x / y), nil
		case ir.OpMod:
			return value.Value{}, fmt.Errorf("vm: modulo requires Integer operands")
		}
	}
	x, y := a.AsInt(), b.AsInt()
	switch op {
	case ir.OpAdd:
		return value.Int(x + y), nil
	case ir.OpSub:
		return value.Int(x - y), nil
	case ir.OpMul:
		return value.Int(x * y), nil
	case ir.OpDiv:
		if y == 0 {
			return value.Value{}, fmt.Errorf("vm: integer division by zero")
		}
		return value.Int(x / y), nil
	case ir.OpMod:
		if y == 0 {
			return value.Value{}, fmt.Errorf("vm: modulo by zero")
		}
		return value.Int(x % y), nil
	}
	return value.Value{}, fmt.Errorf("vm: unhandled arithmetic op %v", op)
}

func compareOp(op ir.InstrOp, a, b value.Value) (value.Value, error) {
	if a.Kind() == value.String && b.Kind() == value.String {
		x, y := a.AsString(), b.AsString()
		switch op {
		case ir.OpLt:
			return value.Bool(x < y), nil
		case ir.OpLe:
			return value.Bool(x <= y), nil
		case ir.OpGt:
			return value.Bool(x > y), nil
		case ir.OpGe:
			return value.Bool(x >= y), nil
		}
	}
	x, y := a.AsReal(), b.AsReal()
	switch op {
	case ir.OpLt:
		return value.Bool(x < y), nil
	case ir.OpLe:
		return value.Bool(x <= y), nil
	case ir.OpGt:
		return value.Bool(x > y), nil
	case ir.OpGe:
		return value.Bool(x >= y), nil
	}
	return value.Value{}, fmt.Errorf("vm: unhandled comparison op %v", op)
}

// getVar and setVar address the flat VarIdx space spec.md §3 describes:
// indices below len(Table.Vars) are globals, live for the whole Run;
// indices at or above a function's LocalsOffset address that
// function's current activation (spec.md §4.4).
func (vm *VM) getVar(act *activation, idx int) value.Value {
	if idx < len(vm.wf.Table.Vars) {
		vm.globalsMu.Lock()
		defer vm.globalsMu.Unlock()
		return vm.globals[idx]
	}
	if act == nil {
		panic(fmt.Sprintf("vm: local variable %d referenced outside any function activation", idx))
	}
	act.mu.Lock()
	defer act.mu.Unlock()
	return act.locals[idx-act.offset]
}

func (vm *VM) setVar(act *activation, idx int, v value.Value) {
	if idx < len(vm.wf.Table.Vars) {
		vm.globalsMu.Lock()
		defer vm.globalsMu.Unlock()
		vm.globals[idx] = v
		return
	}
	if act == nil {
		panic(fmt.Sprintf("vm: local variable %d assigned outside any function activation", idx))
	}
	act.mu.Lock()
	defer act.mu.Unlock()
	act.locals[idx-act.offset] = v
}
