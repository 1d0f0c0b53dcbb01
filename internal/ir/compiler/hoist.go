// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"fmt"

	"github.com/brane-org/brane/internal/dsl/ast"
	"github.com/brane-org/brane/internal/ir"
	"github.com/brane-org/brane/internal/sema/flatten"
	"github.com/brane-org/brane/internal/sema/resolve"
	"github.com/brane-org/brane/internal/sema/typecheck"
)

// hoister rewrites the AST so that every Call expression becomes either
// a statement-level binding (the direct value of a let/assign/return,
// or a bare expression statement) or the value of a synthesized `let`
// inserted just before the statement that used it. After this pass,
// compileExpr never has to deal with a Call buried inside an
// arithmetic expression, an array literal, or a function argument:
// every such occurrence has already been replaced with a reference to
// the temporary that holds its result.
type hoister struct {
	table    *ir.SymTable
	info     *flatten.Info
	bindings resolve.Bindings
	types    typecheck.Types
	n        int
}

func hoistProgram(stmts []ast.Statement, table *ir.SymTable, info *flatten.Info, bindings resolve.Bindings, types typecheck.Types) []ast.Statement {
	h := &hoister{table: table, info: info, bindings: bindings, types: types}
	return h.stmts(stmts, nil)
}

func (h *hoister) stmts(stmts []ast.Statement, scope *ast.FuncDef) []ast.Statement {
	out := make([]ast.Statement, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, h.stmt(s, scope)...)
	}
	return out
}

// stmt rewrites one statement, returning it (possibly mutated in
// place) preceded by any synthetic `let`s its expressions needed.
func (h *hoister) stmt(s ast.Statement, scope *ast.FuncDef) []ast.Statement {
	var pre []ast.Statement
	switch s := s.(type) {
	case *ast.Block:
		s.Stmts = h.stmts(s.Stmts, scope)
	case *ast.FuncDef:
		s.Body.Stmts = h.stmts(s.Body.Stmts, s)
	case *ast.ClassDef:
		for _, m := range s.Methods {
			m.Body.Stmts = h.stmts(m.Body.Stmts, m)
		}
	case *ast.Return:
		if s.Value != nil {
			s.Value = h.expr(s.Value, &pre, true, scope)
		}
	case *ast.If:
		s.Cond = h.expr(s.Cond, &pre, false, scope)
		s.Then.Stmts = h.stmts(s.Then.Stmts, scope)
		if s.Else != nil {
			s.Else.Stmts = h.stmts(s.Else.Stmts, scope)
		}
	case *ast.For:
		if s.Init != nil {
			s.Init = wrapBlock(h.stmt(s.Init, scope))
		}
		if s.Cond != nil {
			s.Cond = h.expr(s.Cond, &pre, false, scope)
		}
		if s.Incr != nil {
			s.Incr = wrapBlock(h.stmt(s.Incr, scope))
		}
		s.Body.Stmts = h.stmts(s.Body.Stmts, scope)
	case *ast.While:
		s.Cond = h.expr(s.Cond, &pre, false, scope)
		s.Body.Stmts = h.stmts(s.Body.Stmts, scope)
	case *ast.On:
		s.Body.Stmts = h.stmts(s.Body.Stmts, scope)
	case *ast.Parallel:
		for _, b := range s.Branches {
			b.Stmts = h.stmts(b.Stmts, scope)
		}
	case *ast.Let:
		s.Value = h.expr(s.Value, &pre, true, scope)
	case *ast.Assign:
		s.Target = h.expr(s.Target, &pre, false, scope)
		s.Value = h.expr(s.Value, &pre, true, scope)
	case *ast.ExprStmt:
		s.X = h.expr(s.X, &pre, true, scope)
	}
	return append(pre, s)
}

// expr rewrites e in place (for composite nodes) or returns a
// replacement (for a hoisted Call), recording any synthetic `let`s
// into pre. topLevelAllowed permits e itself to remain a bare Call
// (the statement calling this will bind it directly); nested calls
// inside e are never left in place.
func (h *hoister) expr(e ast.Expression, pre *[]ast.Statement, topLevelAllowed bool, scope *ast.FuncDef) ast.Expression {
	switch e := e.(type) {
	case *ast.Call:
		for i, a := range e.Args {
			e.Args[i] = h.expr(a, pre, false, scope)
		}
		if topLevelAllowed {
			return e
		}
		return h.extract(e, pre, scope)
	case *ast.ArrayLit:
		for i, el := range e.Elems {
			e.Elems[i] = h.expr(el, pre, false, scope)
		}
		return e
	case *ast.Index:
		e.X = h.expr(e.X, pre, false, scope)
		e.Index = h.expr(e.Index, pre, false, scope)
		return e
	case *ast.Proj:
		e.X = h.expr(e.X, pre, false, scope)
		return e
	case *ast.New:
		for i := range e.Fields {
			e.Fields[i].Value = h.expr(e.Fields[i].Value, pre, false, scope)
		}
		return e
	case *ast.Unary:
		e.X = h.expr(e.X, pre, false, scope)
		return e
	case *ast.Binary:
		e.Left = h.expr(e.Left, pre, false, scope)
		e.Right = h.expr(e.Right, pre, false, scope)
		return e
	default:
		return e
	}
}

// extract lifts call into a synthetic `let $tN := call;` appended to
// pre, and returns a reference identifier in its place.
func (h *hoister) extract(call *ast.Call, pre *[]ast.Statement, scope *ast.FuncDef) ast.Expression {
	h.n++
	name := fmt.Sprintf("$t%d", h.n)

	typ := "Any"
	if h.types != nil {
		if t, ok := h.types[call]; ok {
			typ = t
		}
	}

	let := &ast.Let{Base: ast.NewBase(call.Range()), Name: name, Value: call}
	idx := h.declareVar(scope, typ)
	h.info.VarIndex[let] = idx

	ident := &ast.Ident{Base: ast.NewBase(call.Range()), Name: name, ResolvedKind: ast.SymVar}
	h.bindings[ident] = resolve.Decl{Kind: ast.SymVar, Node: let}

	*pre = append(*pre, let)
	return ident
}

// wrapBlock collapses a possibly-multi-statement rewrite (a hoisted
// call's synthetic `let`s plus the original statement) back into a
// single ast.Statement slot by wrapping in a Block when necessary.
func wrapBlock(stmts []ast.Statement) ast.Statement {
	if len(stmts) == 1 {
		return stmts[0]
	}
	return &ast.Block{Base: ast.NewBase(stmts[0].Range()), Stmts: stmts}
}

func (h *hoister) declareVar(scope *ast.FuncDef, typ string) int {
	if scope == nil {
		idx := len(h.table.Vars)
		h.table.Vars = append(h.table.Vars, ir.VarDef{Type: typ})
		return idx
	}
	fi := h.info.FuncIndex[scope]
	fn := &h.table.Funcs[fi]
	idx := fn.LocalsOffset + len(fn.Locals)
	fn.Locals = append(fn.Locals, ir.VarDef{Type: typ})
	return idx
}
