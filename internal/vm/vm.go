// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

// Package vm implements the Workflow VM (spec.md §4.7): a tree-walking
// interpreter that drives a planned ir.Workflow to completion through a
// caller-supplied Plugin. The VM itself never performs an externally
// observable effect; every Node dispatch, data transfer, and line of
// task output is routed through the plugin, the same separation
// OpenTofu draws between its graph walker (execgraph) and the
// provider/provisioner plugins it calls out to.
package vm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/brane-org/brane/internal/ir"
	"github.com/brane-org/brane/internal/value"
)

// VM drives wf through plugin. A VM is reusable across Run calls as
// long as the same Workflow is used; it carries no per-run state of
// its own beyond the global variable table.
type VM struct {
	wf     *ir.Workflow
	plugin Plugin

	globalsMu sync.Mutex
	globals   []value.Value
}

// New constructs a VM over wf, driven by plugin.
func New(wf *ir.Workflow, plugin Plugin) *VM {
	return &VM{wf: wf, plugin: plugin, globals: make([]value.Value, len(wf.Table.Vars))}
}

// Run executes main to its Stop or top-level Return, returning the
// final value left on the operand stack (Void if none — see spec.md §8
// property 7).
func (vm *VM) Run(ctx context.Context) (value.Value, error) {
	t := &thread{vm: vm}
	return t.run(ctx, vm.wf.Graph, nil, 0)
}

// activation is one function call's local-variable storage. Locals are
// addressed by the global VarIdx space minus the function's
// LocalsOffset (spec.md §3, §4.4). Parallel branches spawned inside a
// function body share their enclosing call's activation directly
// rather than cloning it — spec.md §9's design note calls for a fresh
// stack per branch, but says nothing about locals, and the compiler
// does not introduce a separate call per branch (internal/ir/compiler
// compiles branch statements in the same scope as the surrounding
// code) — so concurrent branches reading or writing an enclosing
// variable are serialized by mu rather than isolated.
type activation struct {
	funcIdx int
	offset  int
	locals  []value.Value
	mu      sync.Mutex
}

// callFrame is a suspended caller context, restored when the callee's
// matching Return edge fires (spec.md §4.7 Call/Return).
type callFrame struct {
	graph     []ir.Edge
	act       *activation
	resumeIdx int
}

// slot is one operand-stack cell. A Value alone can't represent the
// PopMarker sentinel DynamicPop needs (value.Kind has no marker
// variant — see internal/value), so the VM's stack wraps Value in a
// cell that can also just be a marker.
type slot struct {
	marker bool
	val    value.Value
}

// thread is one independent execution context: a single operand stack
// plus call-frame stack, walking one function's edge list at a time.
// Run spawns a fresh thread for main; a Parallel edge spawns one more
// per branch (spec.md §4.7 "fork one execution context per branch").
type thread struct {
	vm *VM
}

// run walks graph starting at idx until it reaches a Return with no
// enclosing call frame in this thread, at which point it yields the
// top of its operand stack (or Void) to the caller. That single exit
// point serves both meanings spec.md §4.7 gives Return: "halt" when
// run is the outermost call for main, and "yield this branch's result"
// when it's a Parallel branch's call — the distinction is entirely in
// what the caller does with the returned value, not in how Return
// itself is interpreted here.
func (t *thread) run(ctx context.Context, graph []ir.Edge, act *activation, idx int) (value.Value, error) {
	var stack []slot
	var frames []callFrame
	var pendingJoin value.Value

	for {
		if err := ctx.Err(); err != nil {
			return value.Value{}, err
		}
		e := &graph[idx]
		switch e.Kind {
		case ir.EdgeLinear:
			if err := t.execLinear(act, &stack, e.Instrs); err != nil {
				return value.Value{}, err
			}
			idx = e.Next

		case ir.EdgeNode:
			result, err := t.execNode(ctx, &stack, e)
			if err != nil {
				return value.Value{}, err
			}
			if result != nil {
				stack = append(stack, slot{val: *result})
			}
			idx = e.Next

		case ir.EdgeStop:
			return value.VoidVal(), nil

		case ir.EdgeBranch:
			cond := pop(&stack).val.AsBool()
			if cond {
				idx = e.TrueNext
			} else {
				idx = e.FalseNext
			}

		case ir.EdgeParallel:
			merged, err := t.execParallel(ctx, graph, act, e)
			if err != nil {
				return value.Value{}, err
			}
			pendingJoin = merged
			idx++ // the resolver always places Join immediately after Parallel

		case ir.EdgeJoin:
			stack = append(stack, slot{val: pendingJoin})
			idx = e.Next

		case ir.EdgeLoop:
			idx = e.Cond

		case ir.EdgeCall:
			newGraph, newAct, newIdx, err := t.execCall(&stack, e)
			if err != nil {
				return value.Value{}, err
			}
			frames = append(frames, callFrame{graph: graph, act: act, resumeIdx: e.Next})
			graph, act, idx = newGraph, newAct, newIdx

		case ir.EdgeReturn:
			if len(frames) == 0 {
				if len(stack) > 0 {
					return stack[len(stack)-1].val, nil
				}
				return value.VoidVal(), nil
			}
			fr := frames[len(frames)-1]
			frames = frames[:len(frames)-1]
			var ret *value.Value
			if len(stack) > 0 {
				v := stack[len(stack)-1].val
				ret = &v
			}
			graph, act, idx = fr.graph, fr.act, fr.resumeIdx
			stack = stack[:0]
			if ret != nil {
				stack = append(stack, slot{val: *ret})
			}

		default:
			return value.Value{}, fmt.Errorf("vm: unhandled edge kind %v", e.Kind)
		}
	}
}

// execCall resolves the function and arguments a Call edge dispatches.
// The hoisting pass (internal/ir/compiler/hoist.go) guarantees every
// call is evaluated in a statement of its own, so by the time an
// EdgeCall edge is reached its Linear predecessor has left the operand
// stack holding exactly this call's pushes: the callee's Function value
// at the bottom (pushed first by compileFuncCall), followed by its
// arguments in declaration order (spec.md §4.7 "argument at
// top-of-stack becomes the last parameter").
func (t *thread) execCall(stack *[]slot, e *ir.Edge) ([]ir.Edge, *activation, int, error) {
	if len(*stack) == 0 {
		return nil, nil, 0, fmt.Errorf("vm: call edge with nothing on the operand stack")
	}
	fnVal := (*stack)[0].val
	args := (*stack)[1:]
	*stack = (*stack)[:0]

	funcIdx := fnVal.FuncIndex()
	if funcIdx < 0 || funcIdx >= len(t.vm.wf.Table.Funcs) {
		return nil, nil, 0, fmt.Errorf("vm: call to unknown function index %d", funcIdx)
	}
	fn := t.vm.wf.Table.Funcs[funcIdx]
	if len(args) != len(fn.Params) {
		return nil, nil, 0, fmt.Errorf("vm: call to %q expected %d arguments, stack held %d", fn.Name, len(fn.Params), len(args))
	}

	act := &activation{funcIdx: funcIdx, offset: fn.LocalsOffset, locals: make([]value.Value, len(fn.Locals))}
	for i, a := range args {
		act.locals[i] = a.val
	}
	return t.vm.wf.Funcs[funcIdx], act, 0, nil
}

// execParallel forks one thread per branch, waits for all of them
// (spec.md §9 Open Question 2: side effects of a branch the merge
// strategy would otherwise abandon are preserved by always waiting),
// and folds their results by e.MergeStrategy.
func (t *thread) execParallel(ctx context.Context, graph []ir.Edge, act *activation, e *ir.Edge) (value.Value, error) {
	n := len(e.Branches)
	results := make([]value.Value, n)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		arrival   []int
		firstErr  error
		errBranch int = -1
	)
	wg.Add(n)
	for bi, branchIdx := range e.Branches {
		go func(bi, branchIdx int) {
			defer wg.Done()
			bt := &thread{vm: t.vm}
			val, err := bt.run(ctx, graph, act, branchIdx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr, errBranch = err, bi
				}
				return
			}
			results[bi] = val
			arrival = append(arrival, bi)
		}(bi, branchIdx)
	}
	wg.Wait()
	if firstErr != nil {
		return value.Value{}, fmt.Errorf("vm: parallel branch %d failed: %w", errBranch, firstErr)
	}
	return combine(e.MergeStrategy, results, arrival)
}

// execNode dispatches one external task edge (spec.md §4.7 Node): it
// resolves preprocessing for every Unavailable input, invokes Execute,
// and publicizes any declared result.
func (t *thread) execNode(ctx context.Context, stack *[]slot, e *ir.Edge) (*value.Value, error) {
	task := t.vm.wf.Table.Tasks[e.Task]

	// Scalar args were pushed by the preceding Linear edge in the same
	// declared order task.ArgTypes lists them, skipping any
	// Data/IntermediateResult position (those live in e.Input instead —
	// see internal/ir/compiler.compileTaskCall). By the same
	// statement-isolation argument execCall relies on, the stack holds
	// exactly this node's scalar args, bottom-to-top in declared order,
	// and nothing else.
	args := make([]value.Value, len(*stack))
	for i, s := range *stack {
		args[i] = s.val
	}
	*stack = (*stack)[:0]

	names := make([]ir.DataName, 0, len(e.Input))
	for name := range e.Input {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i].Kind != names[j].Kind {
			return names[i].Kind < names[j].Kind
		}
		return names[i].Name < names[j].Name
	})

	input := make(map[ir.DataName]ir.AccessKind, len(e.Input))
	for _, name := range names {
		avail := e.Input[name]
		if avail == nil {
			return nil, fmt.Errorf("vm: node %q input %v was never planned", task.Name, name)
		}
		if avail.Available {
			input[name] = avail.Access
			continue
		}
		access, err := t.vm.plugin.Preprocess(ctx, e.At, name, avail.Preprocess)
		if err != nil {
			return nil, classifyErr(task.Name, e.At, err)
		}
		input[name] = access
	}

	info := TaskInfo{
		Name: task.Name, Package: task.Package, Version: task.Version, Kind: task.Kind,
		Args: args, Input: input, Result: e.Result, At: e.At, Requirements: task.Requirements,
	}
	result, err := t.vm.plugin.Execute(ctx, info)
	if err != nil {
		return nil, classifyErr(task.Name, e.At, err)
	}
	if e.Result != "" {
		if err := t.vm.plugin.Publicize(ctx, e.At, e.Result, e.Result); err != nil {
			return nil, classifyErr(task.Name, e.At, err)
		}
	}
	return result, nil
}

// classifyErr leaves an already-classified plugin error (Transient or
// Permanent) alone and wraps anything else as Permanent — the VM's
// default retry policy is zero retries either way (spec.md §4.7), so
// an unclassified error has no different effect than a Permanent one,
// but callers that inspect the error chain (a retrying plugin wrapper,
// a future policy) still see an honest classification.
func classifyErr(task, at string, err error) error {
	switch err.(type) {
	case *TransientError, *PermanentError:
		return err
	default:
		return &PermanentError{Task: task, At: at, Err: err}
	}
}

func pop(stack *[]slot) slot {
	n := len(*stack)
	v := (*stack)[n-1]
	*stack = (*stack)[:n-1]
	return v
}
