// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

// Package resolver implements the IR resolver (spec.md §4.5): it turns
// an EdgeBuffer (a pointer-linked graph of compiler.Node values) into a
// flat, index-addressed ir.Workflow. It is a pure tree-to-graph
// transformation; the only failures it can hit are broken compiler
// invariants, which it reports via panic rather than a diagnostic (the
// same policy spec.md §7 assigns to this stage).
package resolver

import (
	"fmt"

	"github.com/brane-org/brane/internal/ir"
	"github.com/brane-org/brane/internal/ir/compiler"
)

// Resolve converts prog into a Workflow sharing table (table.Funcs etc
// are not touched here; only Graph/Funcs are populated).
func Resolve(prog *compiler.Program, table *ir.SymTable) *ir.Workflow {
	wf := &ir.Workflow{Table: table, Funcs: make(map[int][]ir.Edge)}

	r := &resolver{index: make(map[*compiler.Node]int)}
	wf.Graph = r.run(prog.Main)

	for idx, entry := range prog.Funcs {
		fr := &resolver{index: make(map[*compiler.Node]int)}
		wf.Funcs[idx] = fr.run(entry)
	}
	return wf
}

type resolver struct {
	out   []ir.Edge
	index map[*compiler.Node]int
}

// run resolves the graph reachable from entry into a fresh dense
// vector and returns it.
func (r *resolver) run(entry *compiler.Node) []ir.Edge {
	if entry == nil {
		return []ir.Edge{{Kind: ir.EdgeStop}}
	}
	r.resolve(entry)
	return r.out
}

// resolve returns the absolute index of n within r.out, compiling it
// (and everything forward-reachable from it) on first visit.
func (r *resolver) resolve(n *compiler.Node) int {
	if idx, ok := r.index[n]; ok {
		return idx
	}
	idx := len(r.out)
	r.index[n] = idx
	r.out = append(r.out, ir.Edge{}) // reserve the slot; cycles resolve against it

	switch n.Kind {
	case ir.EdgeLinear:
		r.out[idx] = ir.Edge{Kind: ir.EdgeLinear, Rng: n.Rng, Instrs: n.Instrs, Next: r.resolveNext(n.Next)}
	case ir.EdgeNode:
		r.out[idx] = ir.Edge{
			Kind: ir.EdgeNode, Rng: n.Rng,
			Task: n.Task, Locs: n.Locs, Input: n.Input, Result: n.Result,
			Next: r.resolveNext(n.Next),
		}
	case ir.EdgeCall:
		r.out[idx] = ir.Edge{Kind: ir.EdgeCall, Rng: n.Rng, Next: r.resolveNext(n.Next)}
	case ir.EdgeStop:
		r.out[idx] = ir.Edge{Kind: ir.EdgeStop, Rng: n.Rng}
	case ir.EdgeReturn:
		r.out[idx] = ir.Edge{Kind: ir.EdgeReturn, Rng: n.Rng}
	case ir.EdgeBranch:
		r.resolveBranch(idx, n)
	case ir.EdgeParallel:
		r.resolveParallel(idx, n)
	case ir.EdgeJoin:
		r.out[idx] = ir.Edge{Kind: ir.EdgeJoin, Rng: n.Rng, Merge: int(n.MergeStrategy), Next: r.resolveNext(n.Next)}
	case ir.EdgeLoop:
		r.resolveLoop(idx, n)
	default:
		panic(fmt.Sprintf("resolver: unhandled edge kind %v", n.Kind))
	}
	return idx
}

// resolveNext resolves a successor that must exist outside of a Loop
// body; a nil here is always a broken compiler invariant.
func (r *resolver) resolveNext(n *compiler.Node) int {
	if n == nil {
		panic("resolver: missing successor (only a Loop body may omit one)")
	}
	return r.resolve(n)
}

func (r *resolver) resolveBranch(idx int, n *compiler.Node) {
	trueIdx := r.resolveNext(n.TrueNext)
	falseIdx := r.resolveNext(n.FalseNext)
	mergeIdx := 0
	if n.MergeHint != nil {
		mergeIdx = r.resolve(n.MergeHint)
	}
	r.out[idx] = ir.Edge{Kind: ir.EdgeBranch, Rng: n.Rng, TrueNext: trueIdx, FalseNext: falseIdx, Merge: mergeIdx}
}

func (r *resolver) resolveParallel(idx int, n *compiler.Node) {
	// Parallel carries no explicit successor field in the data model;
	// by construction the resolver always places the corresponding
	// Join edge immediately after the Parallel edge itself, so the VM
	// advances with a plain pc+1. Reserving Join's slot before
	// resolving the branches is what makes that true: resolve()
	// reserves a node's index at first visit, before recursing, so
	// visiting Join first claims idx+1 ahead of anything the branches
	// append.
	joinIdx := r.resolve(n.Next)
	if joinIdx != idx+1 {
		panic("resolver: Join must immediately follow its Parallel edge")
	}
	branches := make([]int, len(n.Branches))
	for i, b := range n.Branches {
		branches[i] = r.resolve(b)
	}
	r.out[idx] = ir.Edge{Kind: ir.EdgeParallel, Rng: n.Rng, Branches: branches, MergeStrategy: n.MergeStrategy}
}

func (r *resolver) resolveLoop(idx int, n *compiler.Node) {
	// The condition subgraph is always a single Linear node (the
	// hoisting pass guarantees a loop condition is call-free, so
	// compiler.compileWhile never needs more than one) whose Next is
	// left nil deliberately; it's patched below once the synthesized
	// Branch's index is known.
	condIdx := r.resolveCond(n.Cond)

	nextIdx := 0
	if n.Next != nil {
		nextIdx = r.resolveNext(n.Next)
	}

	bodyIdx := r.resolveLoopBody(n.Body, condIdx)
	if n.Next == nil {
		nextIdx = bodyIdx // unreachable in a well-formed loop; kept for completeness
	}

	branchIdx := len(r.out)
	r.out = append(r.out, ir.Edge{Kind: ir.EdgeBranch, TrueNext: bodyIdx, FalseNext: nextIdx, Merge: nextIdx})
	r.out[condIdx].Next = branchIdx

	r.out[idx] = ir.Edge{Kind: ir.EdgeLoop, Rng: n.Rng, Cond: condIdx, Body: bodyIdx, Next: nextIdx}
}

// resolveCond resolves a loop condition's single Linear node without
// touching its Next field, which the caller patches once the
// synthesized Branch's index is known.
func (r *resolver) resolveCond(n *compiler.Node) int {
	if idx, ok := r.index[n]; ok {
		return idx
	}
	if n.Kind != ir.EdgeLinear {
		panic("resolver: loop condition subgraph must lower to a single Linear node")
	}
	idx := len(r.out)
	r.index[n] = idx
	r.out = append(r.out, ir.Edge{Kind: ir.EdgeLinear, Rng: n.Rng, Instrs: n.Instrs})
	return idx
}

// resolveLoopBody resolves n.Body, treating a nil Next anywhere along
// its natural tail as an implicit back-edge to the loop's condition
// (backTarget). This is the one place a nil successor is legal.
func (r *resolver) resolveLoopBody(body *compiler.Node, backTarget int) int {
	if body == nil {
		return backTarget
	}
	return r.resolveWithBackedge(body, backTarget)
}

func (r *resolver) resolveWithBackedge(n *compiler.Node, backTarget int) int {
	if idx, ok := r.index[n]; ok {
		return idx
	}
	idx := len(r.out)
	r.index[n] = idx
	r.out = append(r.out, ir.Edge{})

	next := func(succ *compiler.Node) int {
		if succ == nil {
			return backTarget
		}
		return r.resolveWithBackedge(succ, backTarget)
	}

	switch n.Kind {
	case ir.EdgeLinear:
		r.out[idx] = ir.Edge{Kind: ir.EdgeLinear, Rng: n.Rng, Instrs: n.Instrs, Next: next(n.Next)}
	case ir.EdgeNode:
		r.out[idx] = ir.Edge{Kind: ir.EdgeNode, Rng: n.Rng, Task: n.Task, Locs: n.Locs, Input: n.Input, Result: n.Result, Next: next(n.Next)}
	case ir.EdgeCall:
		r.out[idx] = ir.Edge{Kind: ir.EdgeCall, Rng: n.Rng, Next: next(n.Next)}
	case ir.EdgeJoin:
		r.out[idx] = ir.Edge{Kind: ir.EdgeJoin, Rng: n.Rng, Merge: int(n.MergeStrategy), Next: next(n.Next)}
	case ir.EdgeReturn:
		r.out[idx] = ir.Edge{Kind: ir.EdgeReturn, Rng: n.Rng}
	case ir.EdgeStop:
		r.out[idx] = ir.Edge{Kind: ir.EdgeStop, Rng: n.Rng}
	case ir.EdgeBranch:
		trueIdx := next(n.TrueNext)
		falseIdx := next(n.FalseNext)
		mergeIdx := 0
		if n.MergeHint != nil {
			mergeIdx = next(n.MergeHint)
		}
		r.out[idx] = ir.Edge{Kind: ir.EdgeBranch, Rng: n.Rng, TrueNext: trueIdx, FalseNext: falseIdx, Merge: mergeIdx}
	case ir.EdgeParallel:
		joinIdx := next(n.Next)
		if joinIdx != idx+1 {
			panic("resolver: Join must immediately follow its Parallel edge")
		}
		branches := make([]int, len(n.Branches))
		for i, b := range n.Branches {
			branches[i] = r.resolveWithBackedge(b, backTarget)
		}
		r.out[idx] = ir.Edge{Kind: ir.EdgeParallel, Rng: n.Rng, Branches: branches, MergeStrategy: n.MergeStrategy}
	case ir.EdgeLoop:
		// A nested loop inside an outer loop's body: resolve it through
		// the regular path (it manages its own back-edge), then wire
		// the outer back-edge via its own Next/Body conventions.
		r.out = r.out[:idx] // undo the reservation made above
		delete(r.index, n)
		// The nested loop's exit continues the outer body, whose own tail
		// back-edges to backTarget; stand in a successor pre-bound to it.
		exitIdx := backTarget
		if n.Next != nil {
			exitIdx = r.resolveWithBackedge(n.Next, backTarget)
		}
		exit := &compiler.Node{}
		r.index[exit] = exitIdx
		inner := *n
		inner.Next = exit
		idx = r.resolve(&inner)
		r.index[n] = idx
		return idx
	default:
		panic(fmt.Sprintf("resolver: unhandled edge kind %v in loop body", n.Kind))
	}
	return idx
}
