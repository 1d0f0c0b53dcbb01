// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package ast

import (
	"fmt"
	"io"
	"strings"
)

// Print renders stmts back to DSL-like source text. It is not guaranteed
// to round-trip byte-for-byte with the original source; it exists for
// debug logging and golden-file tests, the way the original brane-ast
// traversal under traversals/print rendered a compiled AST back to a
// readable script.
func Print(w io.Writer, stmts []Statement) {
	p := &printer{w: w}
	for _, s := range stmts {
		p.stmt(s)
	}
}

type printer struct {
	w     io.Writer
	depth int
}

func (p *printer) indent() string { return strings.Repeat("    ", p.depth) }

func (p *printer) writef(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) stmt(s Statement) {
	switch s := s.(type) {
	case *Block:
		p.writef("%s{\n", p.indent())
		p.depth++
		for _, inner := range s.Stmts {
			p.stmt(inner)
		}
		p.depth--
		p.writef("%s}\n", p.indent())
	case *Import:
		if s.Version != "" {
			p.writef("%simport %s %s;\n", p.indent(), s.Name, s.Version)
		} else {
			p.writef("%simport %s;\n", p.indent(), s.Name)
		}
	case *FuncDef:
		p.writef("%sfunc %s(%s) {\n", p.indent(), s.Name, p.params(s.Params))
		p.depth++
		for _, inner := range s.Body.Stmts {
			p.stmt(inner)
		}
		p.depth--
		p.writef("%s}\n", p.indent())
	case *ClassDef:
		p.writef("%sclass %s {\n", p.indent(), s.Name)
		p.depth++
		for _, prop := range s.Props {
			p.writef("%s%s: %s;\n", p.indent(), prop.Name, prop.Type.Name)
		}
		p.depth--
		p.writef("%s}\n", p.indent())
	case *Return:
		if s.Value != nil {
			p.writef("%sreturn %s;\n", p.indent(), p.expr(s.Value))
		} else {
			p.writef("%sreturn;\n", p.indent())
		}
	case *If:
		p.writef("%sif (%s) {\n", p.indent(), p.expr(s.Cond))
		p.depth++
		for _, inner := range s.Then.Stmts {
			p.stmt(inner)
		}
		p.depth--
		if s.Else != nil {
			p.writef("%s} else {\n", p.indent())
			p.depth++
			for _, inner := range s.Else.Stmts {
				p.stmt(inner)
			}
			p.depth--
		}
		p.writef("%s}\n", p.indent())
	case *For:
		p.writef("%sfor (...) {\n", p.indent())
		p.depth++
		for _, inner := range s.Body.Stmts {
			p.stmt(inner)
		}
		p.depth--
		p.writef("%s}\n", p.indent())
	case *While:
		p.writef("%swhile (%s) {\n", p.indent(), p.expr(s.Cond))
		p.depth++
		for _, inner := range s.Body.Stmts {
			p.stmt(inner)
		}
		p.depth--
		p.writef("%s}\n", p.indent())
	case *On:
		p.writef("%s// deprecated: on %s\n", p.indent(), s.Location)
		p.depth++
		for _, inner := range s.Body.Stmts {
			p.stmt(inner)
		}
		p.depth--
	case *Parallel:
		prefix := ""
		if s.ResultName != "" {
			prefix = "let " + s.ResultName + " := "
		}
		p.writef("%s%sparallel [%s] {\n", p.indent(), prefix, s.Strategy)
		p.depth++
		for _, branch := range s.Branches {
			p.writef("%s{\n", p.indent())
			p.depth++
			for _, inner := range branch.Stmts {
				p.stmt(inner)
			}
			p.depth--
			p.writef("%s}\n", p.indent())
		}
		p.depth--
		p.writef("%s}\n", p.indent())
	case *Let:
		p.writef("%slet %s := %s;\n", p.indent(), s.Name, p.expr(s.Value))
	case *Assign:
		p.writef("%s%s = %s;\n", p.indent(), p.expr(s.Target), p.expr(s.Value))
	case *ExprStmt:
		p.writef("%s%s;\n", p.indent(), p.expr(s.X))
	default:
		p.writef("%s<?unknown statement %T?>\n", p.indent(), s)
	}
}

func (p *printer) params(params []Param) string {
	parts := make([]string, len(params))
	for i, param := range params {
		parts[i] = param.Name + ": " + param.Type.Name
	}
	return strings.Join(parts, ", ")
}

func (p *printer) expr(e Expression) string {
	switch e := e.(type) {
	case *Ident:
		return e.Name
	case *IntegerLit:
		return fmt.Sprintf("%d", e.Value)
	case *RealLit:
		return fmt.Sprintf("%g", e.Value)
	case *StringLit:
		return fmt.Sprintf("%q", e.Value)
	case *BoolLit:
		return fmt.Sprintf("%t", e.Value)
	case *NullLit:
		return "null"
	case *SemverLit:
		return e.Value
	case *ArrayLit:
		parts := make([]string, len(e.Elems))
		for i, el := range e.Elems {
			parts[i] = p.expr(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Index:
		return fmt.Sprintf("%s[%s]", p.expr(e.X), p.expr(e.Index))
	case *Proj:
		return fmt.Sprintf("%s.%s", p.expr(e.X), e.Field)
	case *Call:
		parts := make([]string, len(e.Args))
		for i, a := range e.Args {
			parts[i] = p.expr(a)
		}
		return fmt.Sprintf("%s(%s)", p.expr(e.Callee), strings.Join(parts, ", "))
	case *New:
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = fmt.Sprintf("%s: %s", f.Name, p.expr(f.Value))
		}
		return fmt.Sprintf("new %s { %s }", e.ClassName, strings.Join(parts, ", "))
	case *Unary:
		op := "!"
		if e.Op == UnaryNeg {
			op = "-"
		}
		return op + p.expr(e.X)
	case *Binary:
		return fmt.Sprintf("(%s %s %s)", p.expr(e.Left), binaryOpString(e.Op), p.expr(e.Right))
	default:
		return fmt.Sprintf("<?unknown expr %T?>", e)
	}
}

func binaryOpString(op BinaryOp) string {
	switch op {
	case BinAdd:
		return "+"
	case BinSub:
		return "-"
	case BinMul:
		return "*"
	case BinDiv:
		return "/"
	case BinMod:
		return "%"
	case BinEq:
		return "=="
	case BinNe:
		return "!="
	case BinLt:
		return "<"
	case BinLe:
		return "<="
	case BinGt:
		return ">"
	case BinGe:
		return ">="
	case BinAnd:
		return "&&"
	case BinOr:
		return "||"
	default:
		return "?"
	}
}
