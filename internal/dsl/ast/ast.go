// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

// Package ast defines the untyped abstract syntax tree produced by the
// parser (spec.md §4.1) and later annotated in place by the symbol
// resolver and type checker (§4.2).
package ast

import "github.com/brane-org/brane/internal/diagnostics"

// Node is implemented by every AST statement and expression.
type Node interface {
	Range() diagnostics.Range
}

// Statement is any top-level or block-level statement form listed in
// spec.md §4.1.
type Statement interface {
	Node
	stmtNode()
}

// Expression is any expression form listed in spec.md §4.1. Fields set
// by later passes (Ident.ResolvedKind, ResolvedIndex) are attached
// directly to the node, per the "AST nodes carry indices rather than
// handles" decision in spec.md §9; static types are kept apart, in the
// type checker's typecheck.Types table.
type Expression interface {
	Node
	exprNode()
}

type Base struct {
	Rng diagnostics.Range
}

func (b Base) Range() diagnostics.Range { return b.Rng }

// NewBase constructs a Base node embedding the given source range.
func NewBase(r diagnostics.Range) Base { return Base{Rng: r} }

// ---- Statements ----

type Block struct {
	Base
	Stmts []Statement
}

func (*Block) stmtNode() {}

// Import corresponds to `import name [version]?;`.
type Import struct {
	Base
	Name    string
	Version string // empty means "latest"
}

func (*Import) stmtNode() {}

type Param struct {
	Name string
	Type TypeExpr
}

type FuncDef struct {
	Base
	Name       string
	Params     []Param
	ReturnType TypeExpr
	Body       *Block

	// ResolvedIndex is the function's index in the enclosing SymTable,
	// assigned by the flattener (spec.md §4.3).
	ResolvedIndex int
}

func (*FuncDef) stmtNode() {}

type PropertyDef struct {
	Name string
	Type TypeExpr
}

type ClassDef struct {
	Base
	Name    string
	Package string // empty for user-defined (non-package) classes
	Props   []PropertyDef
	Methods []*FuncDef

	ResolvedIndex int
}

func (*ClassDef) stmtNode() {}

type Return struct {
	Base
	Value Expression // nil for `return;`
}

func (*Return) stmtNode() {}

type If struct {
	Base
	Cond Expression
	Then *Block
	Else *Block // nil, or a single-statement Block wrapping an `else if`
}

func (*If) stmtNode() {}

type For struct {
	Base
	Init Statement // nil-able
	Cond Expression
	Incr Statement // nil-able
	Body *Block
}

func (*For) stmtNode() {}

type While struct {
	Base
	Cond Expression
	Body *Block
}

func (*While) stmtNode() {}

// On corresponds to the deprecated `on LOCATION { ... }` statement
// (spec.md §9 Open Question 1): the parser emits a Warning diagnostic
// for it, and the compiler lowers its body as ordinary statements while
// ignoring Location.
type On struct {
	Base
	Location string
	Body     *Block
}

func (*On) stmtNode() {}

// Parallel corresponds to `[let name :=]? parallel [strategy]? { b1, b2, ... }`.
type Parallel struct {
	Base
	ResultName string // empty if unbound
	Strategy   string // empty means the default merge strategy
	Branches   []*Block
}

func (*Parallel) stmtNode() {}

type Let struct {
	Base
	Name  string
	Value Expression

	ResolvedIndex int
}

func (*Let) stmtNode() {}

type Assign struct {
	Base
	Target Expression // Ident, Index, or Proj
	Value  Expression
}

func (*Assign) stmtNode() {}

type ExprStmt struct {
	Base
	X Expression

	// IsDynamic is set by the type checker when X's static type is Any,
	// meaning the compiler must bracket its discard with PopMarker /
	// DynamicPop instead of a single Pop (spec.md §4.2).
	IsDynamic bool
}

func (*ExprStmt) stmtNode() {}

// ---- Expressions ----

type Ident struct {
	Base
	Name string

	// Resolved* fields are populated by the symbol resolver (spec.md §4.2).
	ResolvedKind  SymbolKind
	ResolvedIndex int
}

func (*Ident) exprNode() {}

// SymbolKind distinguishes what an Ident resolved to.
type SymbolKind int

const (
	SymUnresolved SymbolKind = iota
	SymVar
	SymFunc
	SymTask
	SymClass
)

type IntegerLit struct {
	Base
	Value int64
}

func (*IntegerLit) exprNode() {}

type RealLit struct {
	Base
	Value float64
}

func (*RealLit) exprNode() {}

type StringLit struct {
	Base
	Value string
}

func (*StringLit) exprNode() {}

type BoolLit struct {
	Base
	Value bool
}

func (*BoolLit) exprNode() {}

type NullLit struct{ Base }

func (*NullLit) exprNode() {}

type SemverLit struct {
	Base
	Value string
}

func (*SemverLit) exprNode() {}

type ArrayLit struct {
	Base
	Elems []Expression
}

func (*ArrayLit) exprNode() {}

type Index struct {
	Base
	X     Expression
	Index Expression
}

func (*Index) exprNode() {}

type Proj struct {
	Base
	X     Expression
	Field string
}

func (*Proj) exprNode() {}

// Call is either a local function call or an external task call.
// Location restricts where a task call may run; empty means "any" per
// spec.md §4.4. The parser never sets it: the DSL has no per-call
// location annotation, and an enclosing `on` block does not fill it in.
type Call struct {
	Base
	Callee   Expression
	Args     []Expression
	Location []string // nil/empty means "any"
}

func (*Call) exprNode() {}

type FieldInit struct {
	Name  string
	Value Expression
}

type New struct {
	Base
	ClassName string
	Fields    []FieldInit
}

func (*New) exprNode() {}

type UnaryOp int

const (
	UnaryNot UnaryOp = iota
	UnaryNeg
)

type Unary struct {
	Base
	Op UnaryOp
	X  Expression
}

func (*Unary) exprNode() {}

type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	BinAnd
	BinOr
)

type Binary struct {
	Base
	Op    BinaryOp
	Left  Expression
	Right Expression
}

func (*Binary) exprNode() {}

// ---- Types ----

// TypeExpr is the surface syntax for a type annotation.
type TypeExpr struct {
	Name string // "Integer", "Boolean", "Real", "String", "Any", "Void", class name, or "" if elided
	Elem *TypeExpr // non-nil for Array(T)
}
