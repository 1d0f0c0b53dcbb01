// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brane-org/brane/internal/ir"
)

type fakeDataIndex map[string]DataInfo

func (f fakeDataIndex) Lookup(name string) (DataInfo, bool) {
	info, ok := f[name]
	return info, ok
}

func newTable() *ir.SymTable {
	return ir.NewSymTable()
}

func TestPlanChoosesSingleAdvertisingLocation(t *testing.T) {
	data := fakeDataIndex{
		"corpus": DataInfo{Access: map[string]ir.AccessKind{"site-a": {Path: "/data/corpus"}}},
	}
	wf := &ir.Workflow{
		Table: newTable(),
		Graph: []ir.Edge{
			{Kind: ir.EdgeNode, Input: map[ir.DataName]*ir.AvailabilityKind{ir.Data("corpus"): nil}, Next: 1},
			{Kind: ir.EdgeStop},
		},
	}

	p := New(data, Infrastructure{"site-a": {RegistryEndpoint: "https://site-a.example"}})
	err := p.Plan(wf)
	require.NoError(t, err)

	require.Equal(t, "site-a", wf.Graph[0].At)
	avail := wf.Graph[0].Input[ir.Data("corpus")]
	require.NotNil(t, avail)
	require.True(t, avail.Available)
	require.Equal(t, "/data/corpus", avail.Access.Path)
}

func TestPlanFailsOnAmbiguousLocation(t *testing.T) {
	data := fakeDataIndex{
		"corpus": DataInfo{Access: map[string]ir.AccessKind{
			"site-a": {Path: "/a"},
			"site-b": {Path: "/b"},
		}},
	}
	wf := &ir.Workflow{
		Table: newTable(),
		Graph: []ir.Edge{
			{Kind: ir.EdgeNode, Input: map[ir.DataName]*ir.AvailabilityKind{ir.Data("corpus"): nil}, Next: 1},
			{Kind: ir.EdgeStop},
		},
	}

	p := New(data, nil)
	err := p.Plan(wf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "AmbiguousLocation")
}

func TestPlanRestrictsToSingleLocsEntry(t *testing.T) {
	wf := &ir.Workflow{
		Table: newTable(),
		Graph: []ir.Edge{
			{Kind: ir.EdgeNode, Locs: []string{"site-a"}, Input: map[ir.DataName]*ir.AvailabilityKind{}, Next: 1},
			{Kind: ir.EdgeStop},
		},
	}
	p := New(nil, nil)
	require.NoError(t, p.Plan(wf))
	require.Equal(t, "site-a", wf.Graph[0].At)
}

func TestPlanLocsRestrictionAmbiguousWhenMultiple(t *testing.T) {
	wf := &ir.Workflow{
		Table: newTable(),
		Graph: []ir.Edge{
			{Kind: ir.EdgeNode, Locs: []string{"site-a", "site-b"}, Input: map[ir.DataName]*ir.AvailabilityKind{}, Next: 1},
			{Kind: ir.EdgeStop},
		},
	}
	p := New(nil, nil)
	err := p.Plan(wf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "AmbiguousLocation")
}

func TestPlanResolvesIntermediateResultSameLocation(t *testing.T) {
	wf := &ir.Workflow{
		Table: newTable(),
		Graph: []ir.Edge{
			{Kind: ir.EdgeNode, Locs: []string{"site-a"}, Result: "r1", Input: nil, Next: 1},
			{Kind: ir.EdgeNode, Locs: []string{"site-a"}, Input: map[ir.DataName]*ir.AvailabilityKind{ir.IntermediateResult("r1"): nil}, Next: 2},
			{Kind: ir.EdgeStop},
		},
	}
	p := New(nil, nil)
	require.NoError(t, p.Plan(wf))

	avail := wf.Graph[1].Input[ir.IntermediateResult("r1")]
	require.NotNil(t, avail)
	require.True(t, avail.Available)
	require.Equal(t, "r1", avail.Access.Path)
}

func TestPlanResolvesIntermediateResultCrossLocationAsTransfer(t *testing.T) {
	wf := &ir.Workflow{
		Table: newTable(),
		Graph: []ir.Edge{
			{Kind: ir.EdgeNode, Locs: []string{"site-a"}, Result: "r1", Input: nil, Next: 1},
			{Kind: ir.EdgeNode, Locs: []string{"site-b"}, Input: map[ir.DataName]*ir.AvailabilityKind{ir.IntermediateResult("r1"): nil}, Next: 2},
			{Kind: ir.EdgeStop},
		},
	}
	p := New(nil, Infrastructure{"site-a": {RegistryEndpoint: "https://site-a.example"}})
	require.NoError(t, p.Plan(wf))

	avail := wf.Graph[1].Input[ir.IntermediateResult("r1")]
	require.NotNil(t, avail)
	require.False(t, avail.Available)
	require.Equal(t, "site-a", avail.Preprocess.Location)
	require.Equal(t, "https://site-a.example/results/download/r1", avail.Preprocess.Address)
}

func TestPlanForwardReferenceResolvedOnSecondPass(t *testing.T) {
	// The producer appears after the consumer in graph order; the
	// first planGraph pass must leave it unresolved rather than
	// failing, and the second pass must pick it up.
	wf := &ir.Workflow{
		Table: newTable(),
		Graph: []ir.Edge{
			{Kind: ir.EdgeNode, Locs: []string{"site-a"}, Input: map[ir.DataName]*ir.AvailabilityKind{ir.IntermediateResult("r1"): nil}, Next: 1},
			{Kind: ir.EdgeNode, Locs: []string{"site-a"}, Result: "r1", Input: nil, Next: 2},
			{Kind: ir.EdgeStop},
		},
	}
	p := New(nil, nil)
	require.NoError(t, p.Plan(wf))

	avail := wf.Graph[0].Input[ir.IntermediateResult("r1")]
	require.NotNil(t, avail)
	require.True(t, avail.Available)
}

func TestPlanUnknownIntermediateResultFails(t *testing.T) {
	wf := &ir.Workflow{
		Table: newTable(),
		Graph: []ir.Edge{
			{Kind: ir.EdgeNode, Locs: []string{"site-a"}, Input: map[ir.DataName]*ir.AvailabilityKind{ir.IntermediateResult("ghost"): nil}, Next: 1},
			{Kind: ir.EdgeStop},
		},
	}
	p := New(nil, nil)
	err := p.Plan(wf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "UnknownIntermediateResult")
}

func TestOfflinePlannerFixesLocalhostAndTreatsEverythingAvailable(t *testing.T) {
	data := fakeDataIndex{
		"corpus": DataInfo{Access: map[string]ir.AccessKind{"site-a": {Path: "/remote/corpus"}}},
	}
	wf := &ir.Workflow{
		Table: newTable(),
		Graph: []ir.Edge{
			{Kind: ir.EdgeNode, Locs: []string{"site-a"}, Input: map[ir.DataName]*ir.AvailabilityKind{ir.Data("corpus"): nil}, Next: 1},
			{Kind: ir.EdgeStop},
		},
	}
	p := Offline(data)
	require.NoError(t, p.Plan(wf))

	require.Equal(t, offlineLocation, wf.Graph[0].At)
	avail := wf.Graph[0].Input[ir.Data("corpus")]
	require.NotNil(t, avail)
	require.True(t, avail.Available)
}
