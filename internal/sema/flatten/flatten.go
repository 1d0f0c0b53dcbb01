// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

// Package flatten implements the flattener (spec.md §4.3): it collapses
// nested block scopes into one SymTable per function plus one global
// table, assigning every declaration a stable dense index.
package flatten

import (
	"fmt"

	"github.com/brane-org/brane/internal/diagnostics"
	"github.com/brane-org/brane/internal/dsl/ast"
	"github.com/brane-org/brane/internal/ir"
	"github.com/brane-org/brane/internal/sema/resolve"
	"github.com/brane-org/brane/internal/sema/typecheck"
)

// Info records, for every declaring node, the table and index the
// flattener assigned it. The IR compiler (internal/ir/compiler)
// consults this to emit VarGet/VarSet/Call/Instance/Proj instructions
// against the right index.
type Info struct {
	FuncIndex  map[*ast.FuncDef]int
	ClassIndex map[*ast.ClassDef]int
	TaskIndex  map[*resolve.ImportedTask]int
	// ImportedClassIndex mirrors ClassIndex for classes that came from a
	// package import rather than a `class` declaration in source.
	ImportedClassIndex map[*resolve.ImportedClass]int
	// VarIndex covers *ast.Let, *ast.Param, and *ast.Parallel (when it
	// binds a result name) — every node that introduces a variable.
	VarIndex map[ast.Node]int
}

func newInfo() *Info {
	return &Info{
		FuncIndex:          make(map[*ast.FuncDef]int),
		ClassIndex:         make(map[*ast.ClassDef]int),
		TaskIndex:          make(map[*resolve.ImportedTask]int),
		ImportedClassIndex: make(map[*resolve.ImportedClass]int),
		VarIndex:           make(map[ast.Node]int),
	}
}

type flattener struct {
	global   *ir.SymTable
	bindings resolve.Bindings
	types    typecheck.Types
	info     *Info
	diags    diagnostics.Diagnostics

	// resultNames tracks intermediate-result names declared so far in
	// the whole program, for IntermediateResultConflict detection.
	resultNames map[string]bool
}

// Flatten walks stmts once and emits one SymTable entry per declaration
// it encounters, hoisting nested-block declarations into the enclosing
// function's table (or the global table for top-level declarations).
func Flatten(stmts []ast.Statement, bindings resolve.Bindings, types typecheck.Types) (*ir.SymTable, *Info, diagnostics.Diagnostics) {
	f := &flattener{
		global:      ir.NewSymTable(),
		bindings:    bindings,
		types:       types,
		info:        newInfo(),
		resultNames: make(map[string]bool),
	}
	// Pass 1: register every top-level func/class/import-derived task
	// and class so forward references are stable, mirroring the
	// resolver's own two-phase approach.
	for _, s := range stmts {
		f.predeclare(s)
	}
	// Pass 2: walk bodies, assigning top-level variable indices into
	// the global table and per-function locals into each function's
	// nested table.
	for _, s := range stmts {
		f.stmt(s, nil)
	}
	return f.global, f.info, f.diags
}

func (f *flattener) errorf(rng diagnostics.Range, kind diagnostics.Kind, format string, args ...interface{}) {
	f.diags = f.diags.Append(diagnostics.Diagnostic{
		Severity: diagnostics.Error,
		Kind:     kind,
		Summary:  fmt.Sprintf(format, args...),
		Subject:  rng,
	})
}

func (f *flattener) predeclare(s ast.Statement) {
	switch s := s.(type) {
	case *ast.FuncDef:
		idx := len(f.global.Funcs)
		f.info.FuncIndex[s] = idx
		s.ResolvedIndex = idx
		f.global.Funcs = append(f.global.Funcs, ir.FuncDef{
			Name:         s.Name,
			Params:       astParams(s.Params),
			ReturnType:   typeExprString(s.ReturnType),
			LocalsOffset: len(f.global.Vars),
		})
	case *ast.ClassDef:
		idx := len(f.global.Classes)
		f.info.ClassIndex[s] = idx
		s.ResolvedIndex = idx
		var methodIdxs []int
		f.global.Classes = append(f.global.Classes, ir.ClassDef{Name: s.Name, Props: astProps(s.Props)})
		for _, m := range s.Methods {
			f.predeclare(m)
			methodIdxs = append(methodIdxs, f.info.FuncIndex[m])
		}
		f.global.Classes[idx].Methods = methodIdxs
	}
	for _, decl := range importedDecls(f.bindings) {
		f.registerImported(decl)
	}
}

func importedDecls(bindings resolve.Bindings) []resolve.Decl {
	seen := make(map[ast.Node]bool)
	var out []resolve.Decl
	for _, d := range bindings {
		switch d.Node.(type) {
		case *resolve.ImportedTask, *resolve.ImportedClass:
			if !seen[d.Node] {
				seen[d.Node] = true
				out = append(out, d)
			}
		}
	}
	return out
}

func (f *flattener) registerImported(d resolve.Decl) {
	switch n := d.Node.(type) {
	case *resolve.ImportedTask:
		if _, ok := f.info.TaskIndex[n]; ok {
			return
		}
		idx := len(f.global.Tasks)
		f.info.TaskIndex[n] = idx
		argNames := make([]string, len(n.Sig.Params))
		argTypes := make([]string, len(n.Sig.Params))
		for i, p := range n.Sig.Params {
			argNames[i] = p.Name
			argTypes[i] = typeExprString(p.Type)
		}
		f.global.Tasks = append(f.global.Tasks, ir.TaskDef{
			Kind: ir.TaskCompute, Package: n.Package, Version: n.Version, Name: n.Name,
			ArgNames: argNames, ArgTypes: argTypes, ReturnType: typeExprString(n.Sig.ReturnType),
		})
	case *resolve.ImportedClass:
		if _, ok := f.info.ImportedClassIndex[n]; ok {
			return
		}
		idx := len(f.global.Classes)
		f.global.Classes = append(f.global.Classes, ir.ClassDef{Name: n.Name, Package: n.Package, Props: astProps(n.Props)})
		f.info.ImportedClassIndex[n] = idx
	}
}

func astParams(params []ast.Param) []ir.Param {
	out := make([]ir.Param, len(params))
	for i, p := range params {
		out[i] = ir.Param{Name: p.Name, Type: typeExprString(p.Type)}
	}
	return out
}

func astProps(props []ast.PropertyDef) []ir.PropertyDef {
	out := make([]ir.PropertyDef, len(props))
	for i, p := range props {
		out[i] = ir.PropertyDef{Name: p.Name, Type: typeExprString(p.Type)}
	}
	return out
}

func typeExprString(t ast.TypeExpr) string {
	if t.Elem != nil {
		return "Array(" + typeExprString(*t.Elem) + ")"
	}
	if t.Name == "" {
		return "Any"
	}
	return t.Name
}

// funcScope tracks which variable table (the global Vars, or the
// current function's Locals) new variables are appended to; the next
// dense index is derived from that table's length in declareVar.
type funcScope struct {
	fn *ast.FuncDef // nil means main / global
}

func (f *flattener) varTable(scope *funcScope) *[]ir.VarDef {
	if scope == nil || scope.fn == nil {
		return &f.global.Vars
	}
	return &f.global.Funcs[f.info.FuncIndex[scope.fn]].Locals
}

func (f *flattener) declareVar(scope *funcScope, node ast.Node, name, typ string) int {
	table := f.varTable(scope)
	offset := 0
	if scope != nil && scope.fn != nil {
		offset = f.global.Funcs[f.info.FuncIndex[scope.fn]].LocalsOffset
	}
	idx := offset + len(*table)
	*table = append(*table, ir.VarDef{Name: name, Type: typ})
	f.info.VarIndex[node] = idx
	return idx
}

func (f *flattener) stmt(s ast.Statement, scope *funcScope) {
	switch s := s.(type) {
	case *ast.Block:
		for _, inner := range s.Stmts {
			f.stmt(inner, scope)
		}
	case *ast.Import:
		// handled via registerImported during predeclare
	case *ast.FuncDef:
		inner := &funcScope{fn: s}
		for i := range s.Params {
			f.declareVar(inner, &s.Params[i], s.Params[i].Name, typeExprString(s.Params[i].Type))
		}
		for _, st := range s.Body.Stmts {
			f.stmt(st, inner)
		}
	case *ast.ClassDef:
		for _, m := range s.Methods {
			f.stmt(m, scope)
		}
	case *ast.Return:
	case *ast.If:
		f.stmt(s.Then, scope)
		if s.Else != nil {
			f.stmt(s.Else, scope)
		}
	case *ast.For:
		if s.Init != nil {
			f.stmt(s.Init, scope)
		}
		if s.Incr != nil {
			f.stmt(s.Incr, scope)
		}
		f.stmt(s.Body, scope)
	case *ast.While:
		f.stmt(s.Body, scope)
	case *ast.On:
		f.stmt(s.Body, scope)
	case *ast.Parallel:
		if s.ResultName != "" {
			if f.resultNames[s.ResultName] {
				f.errorf(s.Range(), "IntermediateResultConflict", "result name %q is already used elsewhere in this program", s.ResultName)
			} else {
				f.resultNames[s.ResultName] = true
			}
			f.declareVar(scope, s, s.ResultName, "Any")
		}
		for _, b := range s.Branches {
			f.stmt(b, scope)
		}
	case *ast.Let:
		typ := "Any"
		if f.types != nil {
			if t, ok := f.types[s.Value]; ok {
				typ = t
			}
		}
		idx := f.declareVar(scope, s, s.Name, typ)
		s.ResolvedIndex = idx
	case *ast.Assign:
	case *ast.ExprStmt:
	}
}
