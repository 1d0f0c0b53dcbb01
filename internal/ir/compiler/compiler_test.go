// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/brane-org/brane/internal/dsl/ast"
	"github.com/brane-org/brane/internal/ir"
	"github.com/brane-org/brane/internal/sema/flatten"
	"github.com/brane-org/brane/internal/sema/resolve"
	"github.com/brane-org/brane/internal/sema/typecheck"
)

func newTestInfo() *flatten.Info {
	return &flatten.Info{
		FuncIndex:          map[*ast.FuncDef]int{},
		ClassIndex:         map[*ast.ClassDef]int{},
		TaskIndex:          map[*resolve.ImportedTask]int{},
		ImportedClassIndex: map[*resolve.ImportedClass]int{},
		VarIndex:           map[ast.Node]int{},
	}
}

func TestCompileLetBindsArithmeticResult(t *testing.T) {
	letStmt := &ast.Let{
		Name: "x",
		Value: &ast.Binary{
			Op:    ast.BinAdd,
			Left:  &ast.IntegerLit{Value: 1},
			Right: &ast.IntegerLit{Value: 2},
		},
	}
	stmts := []ast.Statement{letStmt}

	table := ir.NewSymTable()
	table.Vars = append(table.Vars, ir.VarDef{Name: "x", Type: "Integer"})
	info := newTestInfo()
	info.VarIndex[letStmt] = 0

	prog := Compile(stmts, table, info, resolve.Bindings{}, nil)

	want := &Node{
		Kind: ir.EdgeLinear,
		Instrs: []ir.EdgeInstr{
			{Op: ir.OpInteger, IntVal: 1},
			{Op: ir.OpInteger, IntVal: 2},
			{Op: ir.OpAdd},
			{Op: ir.OpVarDec, VarIdx: 0},
		},
		Next: &Node{Kind: ir.EdgeStop},
	}
	if diff := cmp.Diff(want, prog.Main); diff != "" {
		t.Errorf("compiled graph mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileIfBranchesShareContinuation(t *testing.T) {
	ifStmt := &ast.If{
		Cond: &ast.BoolLit{Value: true},
		Then: &ast.Block{Stmts: []ast.Statement{}},
	}
	stmts := []ast.Statement{ifStmt}

	table := ir.NewSymTable()
	info := newTestInfo()

	prog := Compile(stmts, table, info, resolve.Bindings{}, nil)

	require.Equal(t, ir.EdgeLinear, prog.Main.Kind)
	branch := prog.Main.Next
	require.Equal(t, ir.EdgeBranch, branch.Kind)
	// No else: the false arm is the same stop node as the continuation.
	require.Same(t, branch.FalseNext, branch.TrueNext)
	require.Equal(t, ir.EdgeStop, branch.FalseNext.Kind)
}

func TestCompileParallelWiresJoinWithMergeStrategy(t *testing.T) {
	parallelStmt := &ast.Parallel{
		Strategy: "sum",
		Branches: []*ast.Block{
			{Stmts: []ast.Statement{}},
			{Stmts: []ast.Statement{}},
		},
	}
	stmts := []ast.Statement{parallelStmt}

	table := ir.NewSymTable()
	info := newTestInfo()

	prog := Compile(stmts, table, info, resolve.Bindings{}, nil)

	require.Equal(t, ir.EdgeParallel, prog.Main.Kind)
	require.Len(t, prog.Main.Branches, 2)
	require.Equal(t, ir.MergeSum, prog.Main.MergeStrategy)
	join := prog.Main.Next
	require.Equal(t, ir.EdgeJoin, join.Kind)
	require.Equal(t, ir.MergeSum, join.MergeStrategy)
	require.Equal(t, ir.EdgeStop, join.Next.Kind)
}

func TestCompileTaskCallRecordsDataInputByName(t *testing.T) {
	taskDecl := &resolve.ImportedTask{}
	arg := &ast.Ident{Name: "corpus"}
	call := &ast.Call{Callee: &ast.Ident{Name: "ingest"}, Args: []ast.Expression{arg}}
	exprStmt := &ast.ExprStmt{X: call}
	stmts := []ast.Statement{exprStmt}

	table := ir.NewSymTable()
	table.Tasks = append(table.Tasks, ir.TaskDef{Name: "ingest", ArgTypes: []string{"Data"}})
	info := newTestInfo()
	info.TaskIndex[taskDecl] = 0
	bindings := resolve.Bindings{call.Callee.(*ast.Ident): {Node: taskDecl}}

	prog := Compile(stmts, table, info, bindings, typecheck.Types{})

	require.Equal(t, ir.EdgeNode, prog.Main.Kind)
	require.Equal(t, 0, prog.Main.Task)
	_, ok := prog.Main.Input[ir.Data("corpus")]
	require.True(t, ok)
}
