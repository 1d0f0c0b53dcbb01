// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/brane-org/brane/internal/ir"
	"github.com/brane-org/brane/internal/ir/compiler"
)

func TestResolveLinearChain(t *testing.T) {
	stop := &compiler.Node{Kind: ir.EdgeStop}
	lin := &compiler.Node{Kind: ir.EdgeLinear, Instrs: []ir.EdgeInstr{{Op: ir.OpInteger, IntVal: 1}}, Next: stop}
	prog := &compiler.Program{Main: lin, Funcs: map[int]*compiler.Node{}}

	wf := Resolve(prog, ir.NewSymTable())

	want := []ir.Edge{
		{Kind: ir.EdgeLinear, Instrs: []ir.EdgeInstr{{Op: ir.OpInteger, IntVal: 1}}, Next: 1},
		{Kind: ir.EdgeStop},
	}
	if diff := cmp.Diff(want, wf.Graph); diff != "" {
		t.Errorf("resolved graph mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveBranchSharesMergeNode(t *testing.T) {
	stop := &compiler.Node{Kind: ir.EdgeStop}
	thenNode := &compiler.Node{Kind: ir.EdgeLinear, Next: stop}
	elseNode := stop // if-with-no-else: else arm is the continuation itself
	branch := &compiler.Node{Kind: ir.EdgeBranch, TrueNext: thenNode, FalseNext: elseNode, MergeHint: stop}
	prog := &compiler.Program{Main: branch, Funcs: map[int]*compiler.Node{}}

	wf := Resolve(prog, ir.NewSymTable())

	// stop must resolve to the same index whether reached via the
	// false arm or via thenNode's Next: shared pointer identity
	// collapses to shared index identity.
	if wf.Graph[0].FalseNext != wf.Graph[1].Next {
		t.Errorf("expected the shared stop node to resolve to one index, got FalseNext=%d thenNext=%d",
			wf.Graph[0].FalseNext, wf.Graph[1].Next)
	}
	if wf.Graph[wf.Graph[0].FalseNext].Kind != ir.EdgeStop {
		t.Errorf("expected FalseNext to land on the stop edge, got %v", wf.Graph[wf.Graph[0].FalseNext].Kind)
	}
}

func TestResolveParallelRequiresJoinImmediatelyAfter(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic when Join does not immediately follow Parallel")
		}
	}()

	// A Join reached through another path before its Parallel is
	// resolved ends up at a different index than idx+1 once Parallel
	// is finally visited - a broken compiler invariant, not something
	// compileParallel itself can ever produce.
	stop := &compiler.Node{Kind: ir.EdgeStop}
	join := &compiler.Node{Kind: ir.EdgeJoin, MergeStrategy: ir.MergeSum, Next: stop}
	decoy := &compiler.Node{Kind: ir.EdgeLinear, Next: join}
	branch1 := &compiler.Node{Kind: ir.EdgeReturn}
	par := &compiler.Node{Kind: ir.EdgeParallel, Branches: []*compiler.Node{branch1}, MergeStrategy: ir.MergeSum, Next: join}
	root := &compiler.Node{Kind: ir.EdgeBranch, TrueNext: decoy, FalseNext: par}

	prog := &compiler.Program{Main: root, Funcs: map[int]*compiler.Node{}}
	Resolve(prog, ir.NewSymTable())
}

func TestResolveLoopBackEdge(t *testing.T) {
	after := &compiler.Node{Kind: ir.EdgeStop}
	cond := &compiler.Node{Kind: ir.EdgeLinear, Instrs: []ir.EdgeInstr{{Op: ir.OpBoolean, BoolVal: true}}}
	body := &compiler.Node{Kind: ir.EdgeLinear, Instrs: []ir.EdgeInstr{{Op: ir.OpInteger, IntVal: 1}}, Next: nil}
	loop := &compiler.Node{Kind: ir.EdgeLoop, Cond: cond, Body: body, Next: after}
	prog := &compiler.Program{Main: loop, Funcs: map[int]*compiler.Node{}}

	wf := Resolve(prog, ir.NewSymTable())

	loopEdge := wf.Graph[0]
	if loopEdge.Kind != ir.EdgeLoop {
		t.Fatalf("expected loop edge at index 0, got %v", loopEdge.Kind)
	}
	bodyEdge := wf.Graph[loopEdge.Body]
	if bodyEdge.Next != loopEdge.Cond {
		t.Errorf("expected loop body's implicit tail to back-edge to Cond (%d), got %d", loopEdge.Cond, bodyEdge.Next)
	}
	condEdge := wf.Graph[loopEdge.Cond]
	branchEdge := wf.Graph[condEdge.Next]
	if branchEdge.Kind != ir.EdgeBranch || branchEdge.TrueNext != loopEdge.Body || branchEdge.FalseNext != loopEdge.Next {
		t.Errorf("expected a synthesized branch wiring Cond to Body/Next, got %+v", branchEdge)
	}
}

func TestResolveFunctionsAreIndependentGraphs(t *testing.T) {
	mainStop := &compiler.Node{Kind: ir.EdgeStop}
	fnRet := &compiler.Node{Kind: ir.EdgeReturn}
	prog := &compiler.Program{Main: mainStop, Funcs: map[int]*compiler.Node{0: fnRet}}

	wf := Resolve(prog, ir.NewSymTable())

	if len(wf.Graph) != 1 || wf.Graph[0].Kind != ir.EdgeStop {
		t.Errorf("unexpected main graph: %+v", wf.Graph)
	}
	if len(wf.Funcs[0]) != 1 || wf.Funcs[0][0].Kind != ir.EdgeReturn {
		t.Errorf("unexpected func 0 graph: %+v", wf.Funcs[0])
	}
}
