// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

// Package compiler implements the IR compiler (spec.md §4.4): it lowers
// the flattened AST into an EdgeBuffer, a graph of Node values linked by
// Go pointers rather than the absolute indices the resolver assigns
// later. Keeping successors as pointers during this pass means merge
// points (the tail of an if-statement, a loop's back-edge) are just
// shared pointer identity rather than anything the compiler has to
// track explicitly.
package compiler

import (
	"fmt"

	"github.com/brane-org/brane/internal/diagnostics"
	"github.com/brane-org/brane/internal/dsl/ast"
	"github.com/brane-org/brane/internal/ir"
	"github.com/brane-org/brane/internal/sema/flatten"
	"github.com/brane-org/brane/internal/sema/resolve"
	"github.com/brane-org/brane/internal/sema/typecheck"
)

// Node is one EdgeBuffer node. Only the fields relevant to Kind are
// populated, mirroring ir.Edge's own flat-struct tagged-union style.
// Successor fields are pointers; the resolver (internal/ir/resolver)
// turns them into absolute indices.
type Node struct {
	Kind ir.EdgeKind
	Rng  diagnostics.Range

	// Node (external task dispatch)
	Task   int
	Locs   []string
	Input  map[ir.DataName]*ir.AvailabilityKind
	Result string

	// Linear
	Instrs []ir.EdgeInstr

	// Shared successor for Linear/Node/Call/Join, and for Parallel
	// (whose Next always resolves to its corresponding Join, by
	// construction of the resolver).
	Next *Node

	// Branch
	TrueNext  *Node
	FalseNext *Node
	MergeHint *Node // advisory convergence point only, never read by the VM

	// Parallel and Join share MergeStrategy: Parallel uses it to know
	// how its Join should combine; Join uses it to actually combine.
	Branches      []*Node
	MergeStrategy ir.MergeStrategy

	// Loop
	Cond *Node
	Body *Node
}

// Program is the compiled output: one entry node for main, plus one per
// function index.
type Program struct {
	Main  *Node
	Funcs map[int]*Node
}

type compiler struct {
	table    *ir.SymTable
	info     *flatten.Info
	bindings resolve.Bindings
	types    typecheck.Types
}

// Compile lowers stmts (already resolved, type-checked, and flattened)
// into an EdgeBuffer. table is mutated in place: hoisted temporaries
// get fresh Vars/Locals entries appended to it.
func Compile(stmts []ast.Statement, table *ir.SymTable, info *flatten.Info, bindings resolve.Bindings, types typecheck.Types) *Program {
	stmts = hoistProgram(stmts, table, info, bindings, types)

	c := &compiler{table: table, info: info, bindings: bindings, types: types}
	prog := &Program{Funcs: make(map[int]*Node)}

	for _, s := range stmts {
		switch s := s.(type) {
		case *ast.FuncDef:
			prog.Funcs[info.FuncIndex[s]] = c.compileFunc(s)
		case *ast.ClassDef:
			for _, m := range s.Methods {
				prog.Funcs[info.FuncIndex[m]] = c.compileFunc(m)
			}
		}
	}

	stop := &Node{Kind: ir.EdgeStop}
	prog.Main = c.compileStmts(stmts, nil, stop)
	return prog
}

func (c *compiler) compileFunc(fn *ast.FuncDef) *Node {
	ret := &Node{Kind: ir.EdgeReturn}
	return c.compileStmts(fn.Body.Stmts, fn, ret)
}

// compileStmts lowers a statement sequence, returning the entry node.
// scope is the enclosing *ast.FuncDef, or nil for main. cont is where
// control flows once the sequence completes; it may be nil only when
// compiling the body of a Loop (the convention the resolver uses to
// recognize an implicit back-edge to the loop's condition).
func (c *compiler) compileStmts(stmts []ast.Statement, scope *ast.FuncDef, cont *Node) *Node {
	next := cont
	for i := len(stmts) - 1; i >= 0; i-- {
		next = c.compileStmt(stmts[i], scope, next)
	}
	return next
}

func (c *compiler) compileStmt(s ast.Statement, scope *ast.FuncDef, cont *Node) *Node {
	switch s := s.(type) {
	case *ast.Block:
		return c.compileStmts(s.Stmts, scope, cont)
	case *ast.Import, *ast.FuncDef, *ast.ClassDef:
		return cont
	case *ast.Return:
		return c.compileReturn(s, scope, cont)
	case *ast.If:
		return c.compileIf(s, scope, cont)
	case *ast.For:
		return c.compileFor(s, scope, cont)
	case *ast.While:
		return c.compileWhile(s, scope, cont)
	case *ast.On:
		// Deprecated (spec.md §9 Open Question 1); the parser already
		// recorded a warning. The location is ignored; the body still runs.
		return c.compileStmts(s.Body.Stmts, scope, cont)
	case *ast.Parallel:
		return c.compileParallel(s, scope, cont)
	case *ast.Let:
		return c.compileLet(s, scope, cont)
	case *ast.Assign:
		return c.compileAssign(s, scope, cont)
	case *ast.ExprStmt:
		return c.compileExprStmt(s, scope, cont)
	default:
		panic(fmt.Sprintf("compiler: unhandled statement %T", s))
	}
}

func (c *compiler) compileReturn(s *ast.Return, scope *ast.FuncDef, cont *Node) *Node {
	ret := &Node{Kind: ir.EdgeReturn, Rng: s.Range()}
	if s.Value == nil {
		return ret
	}
	if call, ok := s.Value.(*ast.Call); ok {
		return c.compileCallInto(call, scope, "", ret)
	}
	var instrs []ir.EdgeInstr
	c.compileExpr(s.Value, &instrs)
	lin := &Node{Kind: ir.EdgeLinear, Rng: s.Range(), Instrs: instrs, Next: ret}
	return lin
}

func (c *compiler) compileIf(s *ast.If, scope *ast.FuncDef, cont *Node) *Node {
	thenEntry := c.compileStmts(s.Then.Stmts, scope, cont)
	var elseEntry *Node
	if s.Else != nil {
		elseEntry = c.compileStmts(s.Else.Stmts, scope, cont)
	} else {
		elseEntry = cont
	}
	branch := &Node{Kind: ir.EdgeBranch, Rng: s.Range(), TrueNext: thenEntry, FalseNext: elseEntry, MergeHint: cont}
	var instrs []ir.EdgeInstr
	c.compileExpr(s.Cond, &instrs)
	return &Node{Kind: ir.EdgeLinear, Rng: s.Range(), Instrs: instrs, Next: branch}
}

func (c *compiler) compileWhile(s *ast.While, scope *ast.FuncDef, cont *Node) *Node {
	var condInstrs []ir.EdgeInstr
	c.compileExpr(s.Cond, &condInstrs)
	condEntry := &Node{Kind: ir.EdgeLinear, Rng: s.Cond.Range(), Instrs: condInstrs}

	loop := &Node{Kind: ir.EdgeLoop, Rng: s.Range(), Cond: condEntry, Next: cont}
	// Body's tail has no continuation of its own; the resolver patches
	// it back to Cond's resolved index (see internal/ir/resolver).
	loop.Body = c.compileStmts(s.Body.Stmts, scope, nil)
	return loop
}

func (c *compiler) compileFor(s *ast.For, scope *ast.FuncDef, cont *Node) *Node {
	bodyStmts := append([]ast.Statement{}, s.Body.Stmts...)
	if s.Incr != nil {
		bodyStmts = append(bodyStmts, s.Incr)
	}
	while := &ast.While{Base: s.Base, Cond: s.Cond, Body: &ast.Block{Base: s.Base, Stmts: bodyStmts}}
	entry := c.compileWhile(while, scope, cont)
	if s.Init != nil {
		return c.compileStmt(s.Init, scope, entry)
	}
	return entry
}

func (c *compiler) compileParallel(s *ast.Parallel, scope *ast.FuncDef, cont *Node) *Node {
	strategy, _ := ir.ParseMergeStrategy(s.Strategy)

	branches := make([]*Node, len(s.Branches))
	for i, b := range s.Branches {
		ret := &Node{Kind: ir.EdgeReturn}
		branches[i] = c.compileStmts(b.Stmts, scope, ret)
	}

	after := cont
	if s.ResultName != "" {
		idx := c.info.VarIndex[s]
		instrs := []ir.EdgeInstr{{Op: ir.OpVarDec, VarIdx: idx}}
		after = &Node{Kind: ir.EdgeLinear, Rng: s.Range(), Instrs: instrs, Next: cont}
	}
	join := &Node{Kind: ir.EdgeJoin, Rng: s.Range(), MergeStrategy: strategy, Next: after}
	return &Node{Kind: ir.EdgeParallel, Rng: s.Range(), Branches: branches, MergeStrategy: strategy, Next: join}
}

func (c *compiler) compileLet(s *ast.Let, scope *ast.FuncDef, cont *Node) *Node {
	idx := c.info.VarIndex[s]
	if call, ok := s.Value.(*ast.Call); ok {
		if c.isResultProducingTaskCall(call) {
			// The let binds an intermediate-result name rather than a
			// scalar; the planner records its location in
			// table.Results, there is nothing to push or VarDec.
			return c.compileCallInto(call, scope, s.Name, cont)
		}
		dec := &Node{Kind: ir.EdgeLinear, Instrs: []ir.EdgeInstr{{Op: ir.OpVarDec, VarIdx: idx}}, Next: cont}
		if c.isVoidCall(call) {
			dec = cont
		}
		return c.compileCallInto(call, scope, "", dec)
	}
	var instrs []ir.EdgeInstr
	c.compileExpr(s.Value, &instrs)
	instrs = append(instrs, ir.EdgeInstr{Op: ir.OpVarDec, VarIdx: idx})
	return &Node{Kind: ir.EdgeLinear, Rng: s.Range(), Instrs: instrs, Next: cont}
}

func (c *compiler) compileAssign(s *ast.Assign, scope *ast.FuncDef, cont *Node) *Node {
	id, ok := s.Target.(*ast.Ident)
	if !ok {
		panic("compiler: assignment target must be a plain identifier")
	}
	decl, ok := c.bindings[id]
	if !ok {
		panic("compiler: unresolved assignment target")
	}
	idx := c.info.VarIndex[decl.Node]

	if call, ok := s.Value.(*ast.Call); ok {
		set := &Node{Kind: ir.EdgeLinear, Instrs: []ir.EdgeInstr{{Op: ir.OpVarSet, VarIdx: idx}}, Next: cont}
		if c.isVoidCall(call) {
			set = cont
		}
		return c.compileCallInto(call, scope, "", set)
	}
	var instrs []ir.EdgeInstr
	c.compileExpr(s.Value, &instrs)
	instrs = append(instrs, ir.EdgeInstr{Op: ir.OpVarSet, VarIdx: idx})
	return &Node{Kind: ir.EdgeLinear, Rng: s.Range(), Instrs: instrs, Next: cont}
}

func (c *compiler) compileExprStmt(s *ast.ExprStmt, scope *ast.FuncDef, cont *Node) *Node {
	if call, ok := s.X.(*ast.Call); ok {
		discard := c.discardNode(s, cont)
		return c.compileCallInto(call, scope, "", discard)
	}
	var instrs []ir.EdgeInstr
	discard := c.discardInstrs(s)
	if len(discard) > 0 && discard[0].Op == ir.OpPopMarker {
		// The marker goes below the values it brackets.
		instrs = append(instrs, discard[0])
		discard = discard[1:]
	}
	c.compileExpr(s.X, &instrs)
	instrs = append(instrs, discard...)
	return &Node{Kind: ir.EdgeLinear, Rng: s.Range(), Instrs: instrs, Next: cont}
}

func (c *compiler) discardInstrs(s *ast.ExprStmt) []ir.EdgeInstr {
	t := typecheck.TVoid
	if c.types != nil {
		if got, ok := c.types[s.X]; ok {
			t = got
		}
	}
	if t == typecheck.TVoid {
		return nil
	}
	if s.IsDynamic {
		return []ir.EdgeInstr{{Op: ir.OpPopMarker}, {Op: ir.OpDynamicPop}}
	}
	return []ir.EdgeInstr{{Op: ir.OpPop}}
}

// discardNode wraps cont with the Pop/PopMarker+DynamicPop bracket a
// bare call-statement needs once its return value (if any) lands on
// the stack.
func (c *compiler) discardNode(s *ast.ExprStmt, cont *Node) *Node {
	instrs := c.discardInstrs(s)
	if len(instrs) == 0 {
		return cont
	}
	return &Node{Kind: ir.EdgeLinear, Instrs: instrs, Next: cont}
}

func (c *compiler) isVoidCall(call *ast.Call) bool {
	if c.types == nil {
		return false
	}
	t, ok := c.types[call]
	return ok && t == typecheck.TVoid
}

// isResultProducingTaskCall reports whether call targets an imported
// task declared to return IntermediateResult (the built-in Transfer
// task, and any compute task explicitly typed that way), meaning its
// `let` binding names a result rather than a scalar.
func (c *compiler) isResultProducingTaskCall(call *ast.Call) bool {
	id, ok := call.Callee.(*ast.Ident)
	if !ok {
		return false
	}
	decl, ok := c.bindings[id]
	if !ok {
		return false
	}
	task, ok := decl.Node.(*resolve.ImportedTask)
	if !ok {
		return false
	}
	return task.Sig.ReturnType.Name == "IntermediateResult"
}

// compileCallInto lowers call (either a local function call or an
// external task dispatch) and wires its continuation to after.
func (c *compiler) compileCallInto(call *ast.Call, scope *ast.FuncDef, resultName string, after *Node) *Node {
	id, ok := call.Callee.(*ast.Ident)
	if !ok {
		panic("compiler: call target must be a plain identifier")
	}
	decl, ok := c.bindings[id]
	if !ok {
		panic("compiler: unresolved call target")
	}

	switch n := decl.Node.(type) {
	case *resolve.ImportedTask:
		return c.compileTaskCall(call, c.info.TaskIndex[n], resultName, after)
	case *ast.FuncDef:
		return c.compileFuncCall(call, c.info.FuncIndex[n], after)
	default:
		panic(fmt.Sprintf("compiler: call target resolves to unexpected %T", n))
	}
}

func (c *compiler) compileFuncCall(call *ast.Call, funcIdx int, after *Node) *Node {
	var instrs []ir.EdgeInstr
	instrs = append(instrs, ir.EdgeInstr{Op: ir.OpFunction, FuncIdx: funcIdx})
	for _, a := range call.Args {
		c.compileExpr(a, &instrs)
	}
	cl := &Node{Kind: ir.EdgeCall, Rng: call.Range(), Next: after}
	return &Node{Kind: ir.EdgeLinear, Rng: call.Range(), Instrs: instrs, Next: cl}
}

// compileTaskCall lowers an external task call. Scalar-typed arguments
// are pushed on the operand stack in declaration order; arguments bound
// to a Data or IntermediateResult parameter are instead recorded
// directly in the Node edge's input map, keyed by the argument's plain
// identifier name (there is no dedicated data-literal expression form
// in the DSL, so an Ident standing in argument position for a
// Data/IntermediateResult parameter is read as naming that DataName
// directly rather than as a variable reference).
func (c *compiler) compileTaskCall(call *ast.Call, taskIdx int, resultName string, after *Node) *Node {
	task := c.table.Tasks[taskIdx]
	var instrs []ir.EdgeInstr
	input := make(map[ir.DataName]*ir.AvailabilityKind)

	for i, a := range call.Args {
		var argType string
		if i < len(task.ArgTypes) {
			argType = task.ArgTypes[i]
		}
		switch argType {
		case "Data", "IntermediateResult":
			id, ok := a.(*ast.Ident)
			if !ok {
				panic("compiler: Data/IntermediateResult argument must be a plain identifier naming it")
			}
			dn := ir.Data(id.Name)
			if argType == "IntermediateResult" {
				dn = ir.IntermediateResult(id.Name)
			}
			input[dn] = nil
		default:
			c.compileExpr(a, &instrs)
		}
	}

	node := &Node{
		Kind:   ir.EdgeNode,
		Rng:    call.Range(),
		Task:   taskIdx,
		Locs:   call.Location,
		Input:  input,
		Result: resultName,
		Next:   after,
	}
	if len(instrs) == 0 {
		return node
	}
	return &Node{Kind: ir.EdgeLinear, Rng: call.Range(), Instrs: instrs, Next: node}
}

// compileExpr lowers a call-free expression into scalar instructions
// appended to out. Nested task/function calls never reach here: the
// hoisting pass (hoist.go) extracts every Call that isn't already in
// statement-binding position into a preceding synthetic `let`.
func (c *compiler) compileExpr(e ast.Expression, out *[]ir.EdgeInstr) {
	switch e := e.(type) {
	case *ast.IntegerLit:
		*out = append(*out, ir.EdgeInstr{Op: ir.OpInteger, IntVal: e.Value})
	case *ast.RealLit:
		*out = append(*out, ir.EdgeInstr{Op: ir.OpReal, RealVal: e.Value})
	case *ast.StringLit:
		*out = append(*out, ir.EdgeInstr{Op: ir.OpString, StrVal: e.Value})
	case *ast.BoolLit:
		*out = append(*out, ir.EdgeInstr{Op: ir.OpBoolean, BoolVal: e.Value})
	case *ast.SemverLit:
		*out = append(*out, ir.EdgeInstr{Op: ir.OpString, StrVal: e.Value})
	case *ast.NullLit:
		// The instruction set has no dedicated null/void-push opcode;
		// an integer zero immediate stands in for it. See DESIGN.md.
		*out = append(*out, ir.EdgeInstr{Op: ir.OpInteger, IntVal: 0})
	case *ast.Ident:
		c.compileIdent(e, out)
	case *ast.ArrayLit:
		elemType := "Any"
		for i, el := range e.Elems {
			c.compileExpr(el, out)
			if i == 0 && c.types != nil {
				if t, ok := c.types[el]; ok {
					elemType = t
				}
			}
		}
		*out = append(*out, ir.EdgeInstr{Op: ir.OpArray, Len: len(e.Elems), Type: elemType})
	case *ast.Index:
		c.compileExpr(e.X, out)
		c.compileExpr(e.Index, out)
		typ := "Any"
		if c.types != nil {
			if t, ok := c.types[e]; ok {
				typ = t
			}
		}
		*out = append(*out, ir.EdgeInstr{Op: ir.OpArrayIndex, Type: typ})
	case *ast.Proj:
		c.compileExpr(e.X, out)
		*out = append(*out, ir.EdgeInstr{Op: ir.OpProj, Field: e.Field})
	case *ast.New:
		c.compileNew(e, out)
	case *ast.Unary:
		c.compileExpr(e.X, out)
		op := ir.OpNeg
		if e.Op == ast.UnaryNot {
			op = ir.OpNot
		}
		*out = append(*out, ir.EdgeInstr{Op: op})
	case *ast.Binary:
		c.compileExpr(e.Left, out)
		c.compileExpr(e.Right, out)
		*out = append(*out, ir.EdgeInstr{Op: binaryOp(e.Op)})
	case *ast.Call:
		panic("compiler: unhoisted call reached scalar expression compilation")
	default:
		panic(fmt.Sprintf("compiler: unhandled expression %T", e))
	}
}

func (c *compiler) compileIdent(e *ast.Ident, out *[]ir.EdgeInstr) {
	decl, ok := c.bindings[e]
	if !ok {
		panic("compiler: unresolved identifier reached compilation")
	}
	switch n := decl.Node.(type) {
	case *ast.FuncDef:
		*out = append(*out, ir.EdgeInstr{Op: ir.OpFunction, FuncIdx: c.info.FuncIndex[n]})
	default:
		*out = append(*out, ir.EdgeInstr{Op: ir.OpVarGet, VarIdx: c.info.VarIndex[decl.Node]})
	}
}

func (c *compiler) compileNew(e *ast.New, out *[]ir.EdgeInstr) {
	classIdx := -1
	for i, cl := range c.table.Classes {
		if cl.Name == e.ClassName {
			classIdx = i
			break
		}
	}
	if classIdx < 0 {
		panic(fmt.Sprintf("compiler: unresolved class %q", e.ClassName))
	}
	byName := make(map[string]ast.Expression, len(e.Fields))
	for _, f := range e.Fields {
		byName[f.Name] = f.Value
	}
	for _, prop := range c.table.Classes[classIdx].Props {
		v, ok := byName[prop.Name]
		if !ok {
			// Missing field initializer; push the same zero
			// placeholder NullLit uses rather than inventing another
			// opcode.
			*out = append(*out, ir.EdgeInstr{Op: ir.OpInteger, IntVal: 0})
			continue
		}
		c.compileExpr(v, out)
	}
	*out = append(*out, ir.EdgeInstr{Op: ir.OpInstance, Class: classIdx})
}

func binaryOp(op ast.BinaryOp) ir.InstrOp {
	switch op {
	case ast.BinAdd:
		return ir.OpAdd
	case ast.BinSub:
		return ir.OpSub
	case ast.BinMul:
		return ir.OpMul
	case ast.BinDiv:
		return ir.OpDiv
	case ast.BinMod:
		return ir.OpMod
	case ast.BinEq:
		return ir.OpEq
	case ast.BinNe:
		return ir.OpNe
	case ast.BinLt:
		return ir.OpLt
	case ast.BinLe:
		return ir.OpLe
	case ast.BinGt:
		return ir.OpGt
	case ast.BinGe:
		return ir.OpGe
	case ast.BinAnd:
		return ir.OpAnd
	case ast.BinOr:
		return ir.OpOr
	default:
		panic(fmt.Sprintf("compiler: unhandled binary operator %v", op))
	}
}
