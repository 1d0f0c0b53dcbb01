// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

// Package plan implements the planner (spec.md §4.6): it assigns every
// Node edge a concrete location, resolves each of its inputs to either
// a local access method or a transfer method, and records the location
// of every intermediate result the workflow produces.
package plan

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/brane-org/brane/internal/collections"
	"github.com/brane-org/brane/internal/ir"
)

// DataInfo is what the DataIndex reports for one persistent dataset:
// the set of locations that advertise it, and how to read it locally
// at each.
type DataInfo struct {
	Access map[string]ir.AccessKind
}

// DataIndex is the external collaborator the planner consults to learn
// where each named Data value lives (spec.md §6).
type DataIndex interface {
	Lookup(name string) (DataInfo, bool)
}

// LocationInfo is one entry of the Infrastructure descriptor (spec.md
// §6): where to reach the delegate that runs tasks at a location, and
// the registry that serves data/results from it.
type LocationInfo struct {
	DelegateEndpoint string
	RegistryEndpoint string
}

// Infrastructure maps location name to its endpoints.
type Infrastructure map[string]LocationInfo

// Error is a planning failure. Kind is one of the failure modes named
// in spec.md §4.6.
type Error struct {
	Kind string
	Rng  ir.DataName // zero value unless the failure names a DataName
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

func fail(kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Planner assigns locations and input availability across a Workflow.
type Planner struct {
	Data  DataIndex
	Infra Infrastructure

	// offline, when set, fixes every `at` to "localhost" regardless of
	// a node's `locs` restriction (spec.md §4.6 "Offline variant").
	offline bool
}

// New constructs a Planner for distributed (non-offline) use.
func New(data DataIndex, infra Infrastructure) *Planner {
	return &Planner{Data: data, Infra: infra}
}

// Plan mutates wf in place, assigning `at`, resolving every input's
// availability, and populating wf.Table.Results. It returns a
// multierror aggregating every failure encountered (compilation-style
// error collection, per spec.md §7), or nil if planning succeeded.
func (p *Planner) Plan(wf *ir.Workflow) error {
	var errs *multierror.Error

	graphs := [][]ir.Edge{wf.Graph}
	order := make([]int, 0, len(wf.Funcs))
	for idx := range wf.Funcs {
		order = append(order, idx)
	}
	sort.Ints(order)
	for _, idx := range order {
		graphs = append(graphs, wf.Funcs[idx])
	}

	for _, g := range graphs {
		if err := p.planGraph(wf.Table, g, false); err != nil {
			errs = multierror.Append(errs, err)
		}
		if err := p.planGraph(wf.Table, g, true); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// planGraph performs one pass over g. deferredMode controls the
// two-pass loop-forward-reference algorithm (spec.md §4.6): the first
// pass leaves unresolved IntermediateResult inputs unplanned (nil)
// rather than failing, the second pass resolves what it can and fails
// on anything still missing.
func (p *Planner) planGraph(table *ir.SymTable, g []ir.Edge, deferredMode bool) error {
	var errs *multierror.Error
	for i := range g {
		e := &g[i]
		if e.Kind != ir.EdgeNode {
			continue
		}
		if !deferredMode && e.At != "" {
			continue // already planned in an earlier graph/pass
		}
		if err := p.planNode(table, e, deferredMode); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func (p *Planner) planNode(table *ir.SymTable, e *ir.Edge, deferredMode bool) error {
	if e.At == "" {
		at, err := p.chooseLocation(e)
		if err != nil {
			return err
		}
		e.At = at
	}

	var errs *multierror.Error
	for name, avail := range e.Input {
		if avail != nil && avail.Available {
			continue // already resolved in a prior pass
		}
		resolved, deferrable, err := p.resolveInput(table, e.At, name)
		if err != nil {
			if deferrable && deferredMode {
				// Still unresolved on the final pass: a true failure.
				errs = multierror.Append(errs, err)
				continue
			}
			if deferrable && !deferredMode {
				continue // leave unresolved for the second pass
			}
			errs = multierror.Append(errs, err)
			continue
		}
		e.Input[name] = resolved
	}

	if e.Result != "" {
		table.Results[e.Result] = e.At
	}
	return errs.ErrorOrNil()
}

// chooseLocation implements step 1 of spec.md §4.6: narrow `locs` from
// the set of locations advertising any input dataset, then require
// exactly one candidate.
func (p *Planner) chooseLocation(e *ir.Edge) (string, error) {
	if p.offline {
		return offlineLocation, nil
	}
	if len(e.Locs) == 1 {
		return e.Locs[0], nil
	}
	if len(e.Locs) > 1 {
		return "", fail("AmbiguousLocation", "node restricted to %v but that is not a single location", e.Locs)
	}

	candidates := collections.Set[string]{}
	for name := range e.Input {
		if name.Kind != ir.DataNameData || p.Data == nil {
			continue
		}
		info, ok := p.Data.Lookup(name.Name)
		if !ok {
			continue
		}
		for loc := range info.Access {
			candidates.Add(loc)
		}
	}
	if len(candidates) != 1 {
		return "", fail("AmbiguousLocation", "no single location advertises every input dataset (candidates: %s)", candidates)
	}
	for loc := range candidates {
		return loc, nil
	}
	panic("unreachable")
}

// resolveInput implements step 2 of spec.md §4.6. deferrable reports
// whether failure to resolve should be tolerated until the final pass
// (true only for an IntermediateResult not yet recorded in
// table.Results).
func (p *Planner) resolveInput(table *ir.SymTable, at string, name ir.DataName) (resolved *ir.AvailabilityKind, deferrable bool, err error) {
	switch name.Kind {
	case ir.DataNameData:
		return p.resolveData(at, name.Name)
	case ir.DataNameIntermediateResult:
		loc, ok := table.Results[name.Name]
		if !ok {
			return nil, true, fail("UnknownIntermediateResult", "intermediate result %q has no recorded producer", name.Name)
		}
		if loc == at {
			a := ir.Available(ir.AccessKind{Path: name.Name})
			return &a, false, nil
		}
		addr := fmt.Sprintf("%s/results/download/%s", p.registryURL(loc), name.Name)
		a := ir.Unavailable(ir.PreprocessKind{Location: loc, Address: addr})
		return &a, false, nil
	default:
		panic(fmt.Sprintf("plan: unhandled DataName kind %v", name.Kind))
	}
}

func (p *Planner) resolveData(at, name string) (*ir.AvailabilityKind, bool, error) {
	if p.Data == nil {
		return nil, false, fail("UnknownDataset", "no DataIndex configured, cannot resolve dataset %q", name)
	}
	info, ok := p.Data.Lookup(name)
	if !ok {
		return nil, false, fail("UnknownDataset", "dataset %q is not known to the data index", name)
	}
	if access, ok := info.Access[at]; ok {
		a := ir.Available(access)
		return &a, false, nil
	}
	var advertising []string
	for loc := range info.Access {
		advertising = append(advertising, loc)
	}
	sort.Strings(advertising)
	if len(advertising) == 0 {
		return nil, false, fail("DatasetUnavailable", "dataset %q has no advertising locations", name)
	}
	loc := advertising[0]
	addr := fmt.Sprintf("%s/data/download/%s", p.registryURL(loc), name)
	a := ir.Unavailable(ir.PreprocessKind{Location: loc, Address: addr})
	return &a, false, nil
}

func (p *Planner) registryURL(loc string) string {
	if p.Infra != nil {
		if info, ok := p.Infra[loc]; ok {
			return info.RegistryEndpoint
		}
	}
	return loc
}
