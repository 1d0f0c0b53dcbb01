// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

// Package typecheck implements the type checker (spec.md §4.2): it
// propagates types bottom-up over the resolved AST, validates operator
// and call compatibility via the casts-to relation, and marks
// expression statements of static type Any for PopMarker/DynamicPop
// bracketing.
package typecheck

import (
	"fmt"

	"github.com/brane-org/brane/internal/diagnostics"
	"github.com/brane-org/brane/internal/dsl/ast"
	"github.com/brane-org/brane/internal/sema/resolve"
)

const (
	TInteger = "Integer"
	TReal    = "Real"
	TBoolean = "Boolean"
	TString  = "String"
	TAny     = "Any"
	TVoid    = "Void"
)

func arrayOf(elem string) string { return "Array(" + elem + ")" }

// CastsTo implements the casts-to relation from spec.md §4.2.
func CastsTo(from, to string) bool {
	if from == to {
		return true
	}
	switch {
	case to == TAny, from == TAny:
		return true
	case from == TInteger && to == TBoolean, from == TBoolean && to == TInteger:
		return true
	case (from == TInteger || from == TBoolean) && to == TReal:
		return true
	case to == TString:
		return true // universal stringification
	case to == arrayOf(from):
		return true
	}
	return false
}

// Types records the inferred static type of every expression node,
// mirroring how go/types.Info.Types tracks per-expression type
// information rather than mutating the AST in place.
type Types map[ast.Expression]string

type Checker struct {
	bindings resolve.Bindings
	types    Types
	diags    diagnostics.Diagnostics
	// funcReturn is a stack of the declared return types of the
	// functions being checked, innermost last, for validating `return`
	// statements.
	funcReturn []string
}

// Check type-checks stmts and returns the per-expression type table
// plus any TypeError diagnostics.
func Check(stmts []ast.Statement, bindings resolve.Bindings) (Types, diagnostics.Diagnostics) {
	c := &Checker{bindings: bindings, types: make(Types)}
	for _, s := range stmts {
		c.stmt(s)
	}
	return c.types, c.diags
}

func (c *Checker) errorf(rng diagnostics.Range, format string, args ...interface{}) {
	c.diags = c.diags.Append(diagnostics.Diagnostic{
		Severity: diagnostics.Error,
		Kind:     "TypeError",
		Summary:  fmt.Sprintf(format, args...),
		Subject:  rng,
	})
}

func (c *Checker) declType(d resolve.Decl) string {
	switch n := d.Node.(type) {
	case *ast.Let:
		if t, ok := c.types[n.Value]; ok {
			return t
		}
		return TAny
	case *ast.Param:
		return typeExprString(n.Type)
	case *ast.FuncDef:
		return typeExprString(n.ReturnType)
	case *ast.ClassDef:
		return n.Name
	case *ast.Parallel:
		return TAny
	case *resolve.ImportedTask:
		return typeExprString(n.Sig.ReturnType)
	case *resolve.ImportedClass:
		return n.Name
	default:
		return TAny
	}
}

func typeExprString(t ast.TypeExpr) string {
	if t.Elem != nil {
		return arrayOf(typeExprString(*t.Elem))
	}
	if t.Name == "" {
		return TAny
	}
	return t.Name
}

func (c *Checker) stmt(s ast.Statement) {
	switch s := s.(type) {
	case *ast.Block:
		for _, inner := range s.Stmts {
			c.stmt(inner)
		}
	case *ast.FuncDef:
		c.funcReturn = append(c.funcReturn, typeExprString(s.ReturnType))
		for _, inner := range s.Body.Stmts {
			c.stmt(inner)
		}
		c.funcReturn = c.funcReturn[:len(c.funcReturn)-1]
	case *ast.ClassDef:
		for _, m := range s.Methods {
			c.stmt(m)
		}
	case *ast.Return:
		if s.Value == nil {
			return
		}
		got := c.expr(s.Value)
		if len(c.funcReturn) > 0 {
			want := c.funcReturn[len(c.funcReturn)-1]
			if !CastsTo(got, want) {
				c.errorf(s.Range(), "return type %s does not match declared return type %s", got, want)
			}
		}
	case *ast.If:
		c.requireBoolean(s.Cond)
		c.stmt(s.Then)
		if s.Else != nil {
			c.stmt(s.Else)
		}
	case *ast.For:
		if s.Init != nil {
			c.stmt(s.Init)
		}
		if s.Cond != nil {
			c.requireBoolean(s.Cond)
		}
		if s.Incr != nil {
			c.stmt(s.Incr)
		}
		c.stmt(s.Body)
	case *ast.While:
		c.requireBoolean(s.Cond)
		c.stmt(s.Body)
	case *ast.On:
		c.stmt(s.Body)
	case *ast.Parallel:
		for _, b := range s.Branches {
			c.stmt(b)
		}
	case *ast.Let:
		c.expr(s.Value)
	case *ast.Assign:
		target := c.expr(s.Target)
		val := c.expr(s.Value)
		if !CastsTo(val, target) {
			c.errorf(s.Range(), "cannot assign value of type %s to target of type %s", val, target)
		}
	case *ast.ExprStmt:
		t := c.expr(s.X)
		s.IsDynamic = t == TAny
	}
}

func (c *Checker) requireBoolean(e ast.Expression) {
	t := c.expr(e)
	if !CastsTo(t, TBoolean) {
		c.errorf(e.Range(), "condition must be Boolean, got %s", t)
	}
}

func (c *Checker) expr(e ast.Expression) string {
	t := c.inferExpr(e)
	c.types[e] = t
	return t
}

func (c *Checker) inferExpr(e ast.Expression) string {
	switch e := e.(type) {
	case *ast.IntegerLit:
		return TInteger
	case *ast.RealLit:
		return TReal
	case *ast.StringLit:
		return TString
	case *ast.BoolLit:
		return TBoolean
	case *ast.NullLit:
		return TAny
	case *ast.SemverLit:
		return TString
	case *ast.Ident:
		if e.ResolvedKind == ast.SymUnresolved {
			return TAny
		}
		d, ok := c.bindings[e]
		if !ok {
			return TAny
		}
		return c.declType(d)
	case *ast.ArrayLit:
		elemType := TAny
		for i, el := range e.Elems {
			t := c.expr(el)
			if i == 0 {
				elemType = t
			}
		}
		return arrayOf(elemType)
	case *ast.Index:
		xt := c.expr(e.X)
		c.expr(e.Index)
		if len(xt) > len("Array(") && xt[:6] == "Array(" {
			return xt[6 : len(xt)-1]
		}
		return TAny
	case *ast.Proj:
		c.expr(e.X)
		return TAny // property types require a class table lookup; left dynamic here
	case *ast.Call:
		for _, a := range e.Args {
			c.expr(a)
		}
		if id, ok := e.Callee.(*ast.Ident); ok {
			if d, ok := c.bindings[id]; ok {
				return c.declType(d)
			}
		}
		return TAny
	case *ast.New:
		for _, f := range e.Fields {
			c.expr(f.Value)
		}
		return e.ClassName
	case *ast.Unary:
		xt := c.expr(e.X)
		if e.Op == ast.UnaryNot {
			if !CastsTo(xt, TBoolean) {
				c.errorf(e.Range(), "! requires a Boolean operand, got %s", xt)
			}
			return TBoolean
		}
		if !CastsTo(xt, TReal) {
			c.errorf(e.Range(), "unary - requires a numeric operand, got %s", xt)
		}
		return xt
	case *ast.Binary:
		return c.inferBinary(e)
	default:
		return TAny
	}
}

func (c *Checker) inferBinary(e *ast.Binary) string {
	lt := c.expr(e.Left)
	rt := c.expr(e.Right)
	switch e.Op {
	case ast.BinAnd, ast.BinOr:
		if !CastsTo(lt, TBoolean) || !CastsTo(rt, TBoolean) {
			c.errorf(e.Range(), "&&/|| require Boolean operands, got %s and %s", lt, rt)
		}
		return TBoolean
	case ast.BinEq, ast.BinNe, ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe:
		if !numeric(lt) || !numeric(rt) {
			if e.Op != ast.BinEq && e.Op != ast.BinNe {
				c.errorf(e.Range(), "comparison requires numeric operands, got %s and %s", lt, rt)
			}
		}
		return TBoolean
	case ast.BinMod:
		if !CastsTo(lt, TInteger) || !CastsTo(rt, TInteger) {
			c.errorf(e.Range(), "%% requires integral operands, got %s and %s", lt, rt)
		}
		return TInteger
	default: // + - * /
		if !numeric(lt) || !numeric(rt) {
			c.errorf(e.Range(), "arithmetic requires numeric operands, got %s and %s", lt, rt)
			return TAny
		}
		if lt == TReal || rt == TReal {
			return TReal
		}
		return TInteger
	}
}

func numeric(t string) bool { return t == TInteger || t == TReal || t == TBoolean || t == TAny }
