// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package vm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brane-org/brane/internal/ir"
	"github.com/brane-org/brane/internal/value"
	"github.com/brane-org/brane/internal/vm"
)

// mockPlugin is a stub Plugin (spec.md §4.8) whose hooks default to
// harmless no-ops; tests override only the Func fields they exercise,
// mirroring the Mock*-with-overridable-funcs pattern used elsewhere in
// this codebase for test doubles.
type mockPlugin struct {
	PreprocessFunc func(ctx context.Context, location string, name ir.DataName, pre ir.PreprocessKind) (ir.AccessKind, error)
	ExecuteFunc    func(ctx context.Context, info vm.TaskInfo) (*value.Value, error)
	PublicizeFunc  func(ctx context.Context, location, resultName, path string) error

	calls []string
}

func (m *mockPlugin) Preprocess(ctx context.Context, location string, name ir.DataName, pre ir.PreprocessKind) (ir.AccessKind, error) {
	m.calls = append(m.calls, "preprocess:"+name.Name)
	if m.PreprocessFunc != nil {
		return m.PreprocessFunc(ctx, location, name, pre)
	}
	return ir.AccessKind{}, nil
}

func (m *mockPlugin) Execute(ctx context.Context, info vm.TaskInfo) (*value.Value, error) {
	m.calls = append(m.calls, "execute:"+info.Name)
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, info)
	}
	return nil, nil
}

func (m *mockPlugin) Stdout(ctx context.Context, text string, newline bool) error { return nil }

func (m *mockPlugin) Publicize(ctx context.Context, location, resultName, path string) error {
	m.calls = append(m.calls, "publicize:"+resultName)
	if m.PublicizeFunc != nil {
		return m.PublicizeFunc(ctx, location, resultName, path)
	}
	return nil
}

func (m *mockPlugin) Commit(ctx context.Context, location, resultName, path, dataName string) error {
	m.calls = append(m.calls, "commit:"+resultName)
	return nil
}

// requireValueEqual compares via value.Equal rather than require.Equal:
// Value wraps a cty.Value, and two scalars built through separate calls
// to value.Int/value.Real aren't guaranteed to compare byte-identical
// under reflect.DeepEqual.
func requireValueEqual(t *testing.T, want, got value.Value) {
	t.Helper()
	require.True(t, value.Equal(want, got), "want %s, got %s", want, got)
}

func newWorkflow(vars []ir.VarDef, graph []ir.Edge) *ir.Workflow {
	table := ir.NewSymTable()
	table.Vars = vars
	return &ir.Workflow{Table: table, Graph: graph, Funcs: make(map[int][]ir.Edge)}
}

// TestVMArithmetic covers spec.md §8 scenario A:
// let x := 1 + 2 * 3; return x;
func TestVMArithmetic(t *testing.T) {
	wf := newWorkflow(
		[]ir.VarDef{{Name: "x", Type: "Integer"}},
		[]ir.Edge{
			{Kind: ir.EdgeLinear, Next: 1, Instrs: []ir.EdgeInstr{
				{Op: ir.OpInteger, IntVal: 1},
				{Op: ir.OpInteger, IntVal: 2},
				{Op: ir.OpInteger, IntVal: 3},
				{Op: ir.OpMul},
				{Op: ir.OpAdd},
				{Op: ir.OpVarDec, VarIdx: 0},
			}},
			{Kind: ir.EdgeLinear, Next: 2, Instrs: []ir.EdgeInstr{{Op: ir.OpVarGet, VarIdx: 0}}},
			{Kind: ir.EdgeReturn},
		},
	)
	got, err := vm.New(wf, &mockPlugin{}).Run(context.Background())
	require.NoError(t, err)
	requireValueEqual(t, value.Int(7), got)
}

// TestVMConditional covers scenario B:
// if (2 > 1) { return 10; } else { return 20; }
func TestVMConditional(t *testing.T) {
	wf := newWorkflow(nil, []ir.Edge{
		{Kind: ir.EdgeLinear, Next: 1, Instrs: []ir.EdgeInstr{
			{Op: ir.OpInteger, IntVal: 2},
			{Op: ir.OpInteger, IntVal: 1},
			{Op: ir.OpGt},
		}},
		{Kind: ir.EdgeBranch, TrueNext: 2, FalseNext: 3},
		{Kind: ir.EdgeLinear, Next: 4, Instrs: []ir.EdgeInstr{{Op: ir.OpInteger, IntVal: 10}}},
		{Kind: ir.EdgeLinear, Next: 4, Instrs: []ir.EdgeInstr{{Op: ir.OpInteger, IntVal: 20}}},
		{Kind: ir.EdgeReturn},
	})
	got, err := vm.New(wf, &mockPlugin{}).Run(context.Background())
	require.NoError(t, err)
	requireValueEqual(t, value.Int(10), got)
}

// TestVMLoop covers scenario C:
// let s := 0; for (let i := 0; i < 5; i := i + 1) { s := s + i; } return s;
func TestVMLoop(t *testing.T) {
	const s, i = 0, 1
	wf := newWorkflow(
		[]ir.VarDef{{Name: "s", Type: "Integer"}, {Name: "i", Type: "Integer"}},
		[]ir.Edge{
			/*0*/ {Kind: ir.EdgeLinear, Next: 1, Instrs: []ir.EdgeInstr{{Op: ir.OpInteger, IntVal: 0}, {Op: ir.OpVarDec, VarIdx: s}}},
			/*1*/ {Kind: ir.EdgeLinear, Next: 2, Instrs: []ir.EdgeInstr{{Op: ir.OpInteger, IntVal: 0}, {Op: ir.OpVarDec, VarIdx: i}}},
			/*2*/ {Kind: ir.EdgeLoop, Cond: 3, Body: 4, Next: 8},
			/*3*/ {Kind: ir.EdgeLinear, Next: 7, Instrs: []ir.EdgeInstr{
				{Op: ir.OpVarGet, VarIdx: i}, {Op: ir.OpInteger, IntVal: 5}, {Op: ir.OpLt},
			}},
			/*4*/ {Kind: ir.EdgeLinear, Next: 5, Instrs: []ir.EdgeInstr{
				{Op: ir.OpVarGet, VarIdx: s}, {Op: ir.OpVarGet, VarIdx: i}, {Op: ir.OpAdd}, {Op: ir.OpVarSet, VarIdx: s},
			}},
			/*5*/ {Kind: ir.EdgeLinear, Next: 2, Instrs: []ir.EdgeInstr{
				{Op: ir.OpVarGet, VarIdx: i}, {Op: ir.OpInteger, IntVal: 1}, {Op: ir.OpAdd}, {Op: ir.OpVarSet, VarIdx: i},
			}},
			/*6 unused*/ {},
			/*7*/ {Kind: ir.EdgeBranch, TrueNext: 4, FalseNext: 8},
			/*8*/ {Kind: ir.EdgeLinear, Next: 9, Instrs: []ir.EdgeInstr{{Op: ir.OpVarGet, VarIdx: s}}},
			/*9*/ {Kind: ir.EdgeReturn},
		},
	)
	got, err := vm.New(wf, &mockPlugin{}).Run(context.Background())
	require.NoError(t, err)
	requireValueEqual(t, value.Int(10), got)
}

// TestVMParallelSum covers scenario D:
// let r := parallel [sum] [{ return 1; }, { return 2; }, { return 3; }]; return r;
func TestVMParallelSum(t *testing.T) {
	const r = 0
	wf := newWorkflow(
		[]ir.VarDef{{Name: "r", Type: "Integer"}},
		[]ir.Edge{
			/*0*/ {Kind: ir.EdgeParallel, Branches: []int{2, 4, 6}, MergeStrategy: ir.MergeSum},
			/*1*/ {Kind: ir.EdgeJoin, Merge: int(ir.MergeSum), Next: 8},
			/*2*/ {Kind: ir.EdgeLinear, Next: 3, Instrs: []ir.EdgeInstr{{Op: ir.OpInteger, IntVal: 1}}},
			/*3*/ {Kind: ir.EdgeReturn},
			/*4*/ {Kind: ir.EdgeLinear, Next: 5, Instrs: []ir.EdgeInstr{{Op: ir.OpInteger, IntVal: 2}}},
			/*5*/ {Kind: ir.EdgeReturn},
			/*6*/ {Kind: ir.EdgeLinear, Next: 7, Instrs: []ir.EdgeInstr{{Op: ir.OpInteger, IntVal: 3}}},
			/*7*/ {Kind: ir.EdgeReturn},
			/*8*/ {Kind: ir.EdgeLinear, Next: 9, Instrs: []ir.EdgeInstr{{Op: ir.OpVarDec, VarIdx: r}}},
			/*9*/ {Kind: ir.EdgeLinear, Next: 10, Instrs: []ir.EdgeInstr{{Op: ir.OpVarGet, VarIdx: r}}},
			/*10*/ {Kind: ir.EdgeReturn},
		},
	)
	got, err := vm.New(wf, &mockPlugin{}).Run(context.Background())
	require.NoError(t, err)
	requireValueEqual(t, value.Int(6), got)
}

// TestVMStopLeavesStackEmpty covers spec.md §8 property 7: a program
// with no top-level Return, only a Stop, halts with no value.
func TestVMStopLeavesStackEmpty(t *testing.T) {
	wf := newWorkflow(nil, []ir.Edge{
		{Kind: ir.EdgeLinear, Next: 1, Instrs: []ir.EdgeInstr{{Op: ir.OpInteger, IntVal: 99}, {Op: ir.OpPop}}},
		{Kind: ir.EdgeStop},
	})
	got, err := vm.New(wf, &mockPlugin{}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, value.Void, got.Kind())
}

// TestVMFunctionCall exercises Call/Return frame handling: a local
// function double(n) called from main, via return double(21);
func TestVMFunctionCall(t *testing.T) {
	table := ir.NewSymTable()
	table.Funcs = []ir.FuncDef{{
		Name:         "double",
		Params:       []ir.Param{{Name: "n", Type: "Integer"}},
		ReturnType:   "Integer",
		Locals:       []ir.VarDef{{Name: "n", Type: "Integer"}},
		LocalsOffset: 0,
	}}
	wf := &ir.Workflow{
		Table: table,
		Graph: []ir.Edge{
			{Kind: ir.EdgeLinear, Next: 1, Instrs: []ir.EdgeInstr{
				{Op: ir.OpFunction, FuncIdx: 0},
				{Op: ir.OpInteger, IntVal: 21},
			}},
			{Kind: ir.EdgeCall, Next: 2},
			{Kind: ir.EdgeReturn},
		},
		Funcs: map[int][]ir.Edge{
			0: {
				{Kind: ir.EdgeLinear, Next: 1, Instrs: []ir.EdgeInstr{
					{Op: ir.OpVarGet, VarIdx: 0}, {Op: ir.OpInteger, IntVal: 2}, {Op: ir.OpMul},
				}},
				{Kind: ir.EdgeReturn},
			},
		},
	}
	got, err := vm.New(wf, &mockPlugin{}).Run(context.Background())
	require.NoError(t, err)
	requireValueEqual(t, value.Int(42), got)
}

// TestVMNodeDispatch exercises a Node edge's plugin upcalls: an
// unavailable IntermediateResult input triggers Preprocess, Execute
// receives the scalar argument pushed ahead of it, and a declared
// result triggers Publicize.
func TestVMNodeDispatch(t *testing.T) {
	table := ir.NewSymTable()
	table.Tasks = []ir.TaskDef{{
		Kind: ir.TaskCompute, Package: "demo", Version: "1.0.0", Name: "double",
		ArgNames: []string{"n"}, ArgTypes: []string{"Integer"}, ReturnType: "Integer",
	}}
	avail := ir.Unavailable(ir.PreprocessKind{Location: "siteB", Address: "http://siteB/reg/results/download/r1"})
	wf := &ir.Workflow{
		Table: table,
		Graph: []ir.Edge{
			{Kind: ir.EdgeLinear, Next: 1, Instrs: []ir.EdgeInstr{{Op: ir.OpInteger, IntVal: 21}}},
			{
				Kind: ir.EdgeNode, Task: 0, At: "localhost", Result: "out1",
				Input: map[ir.DataName]*ir.AvailabilityKind{ir.IntermediateResult("r1"): &avail},
				Next:  2,
			},
			{Kind: ir.EdgeReturn},
		},
		Funcs: make(map[int][]ir.Edge),
	}

	plugin := &mockPlugin{
		ExecuteFunc: func(ctx context.Context, info vm.TaskInfo) (*value.Value, error) {
			require.Len(t, info.Args, 1)
			requireValueEqual(t, value.Int(21), info.Args[0])
			require.Equal(t, "localhost", info.At)
			v := value.Int(42)
			return &v, nil
		},
	}
	got, err := vm.New(wf, plugin).Run(context.Background())
	require.NoError(t, err)
	requireValueEqual(t, value.Int(42), got)
	require.Contains(t, plugin.calls, "preprocess:r1")
	require.Contains(t, plugin.calls, "execute:double")
	require.Contains(t, plugin.calls, "publicize:out1")
}

// TestVMNodeDispatchFailsOnUnplannedInput guards spec.md §8 property 4:
// the VM refuses to run a Node whose input the planner never resolved.
func TestVMNodeDispatchFailsOnUnplannedInput(t *testing.T) {
	table := ir.NewSymTable()
	table.Tasks = []ir.TaskDef{{Kind: ir.TaskCompute, Name: "noop"}}
	wf := &ir.Workflow{
		Table: table,
		Graph: []ir.Edge{
			{Kind: ir.EdgeNode, Task: 0, At: "localhost", Input: map[ir.DataName]*ir.AvailabilityKind{ir.Data("d1"): nil}, Next: 1},
			{Kind: ir.EdgeReturn},
		},
		Funcs: make(map[int][]ir.Edge),
	}
	_, err := vm.New(wf, &mockPlugin{}).Run(context.Background())
	require.Error(t, err)
}
