// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

// Package wire implements the Workflow JSON encoding described in
// spec.md §6: a tagged-union encoding using short discriminator strings
// for edges and instructions, and single-letter keys to keep payloads
// compact. The traversal itself is grounded on graph_marshal.go's
// approach of walking a graph and recording elements through a stable
// index map, adapted here to a flat, already-indexed ir.Workflow rather
// than an unresolved graph of pointer-like refs — so no index-assignment
// pass is needed, only a field-by-field translation to JSON tags.
//
// Protobuf, the format graph_marshal.go targets, is deliberately not
// used here (see SPEC_FULL.md, "On protobuf"); spec.md §1 explicitly
// leaves the IR's serialization format unspecified beyond its logical
// shape, so a JSON codec satisfies the contract without generated code.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/brane-org/brane/internal/ir"
)

// edgeKindTag maps an ir.EdgeKind to its wire discriminator string.
var edgeKindTag = map[ir.EdgeKind]string{
	ir.EdgeNode:     "nod",
	ir.EdgeLinear:   "lin",
	ir.EdgeStop:     "stp",
	ir.EdgeBranch:   "brc",
	ir.EdgeParallel: "par",
	ir.EdgeJoin:     "join",
	ir.EdgeLoop:     "loop",
	ir.EdgeCall:     "cll",
	ir.EdgeReturn:   "ret",
}

var tagToEdgeKind = func() map[string]ir.EdgeKind {
	m := make(map[string]ir.EdgeKind, len(edgeKindTag))
	for k, v := range edgeKindTag {
		m[v] = k
	}
	return m
}()

var instrOpTag = map[ir.InstrOp]string{
	ir.OpCast:       "cast",
	ir.OpPop:        "pop",
	ir.OpPopMarker:  "popm",
	ir.OpDynamicPop: "dpop",
	ir.OpBranch:     "br",
	ir.OpBranchNot:  "brn",
	ir.OpNot:        "not",
	ir.OpNeg:        "neg",
	ir.OpAnd:        "and",
	ir.OpOr:         "or",
	ir.OpAdd:        "add",
	ir.OpSub:        "sub",
	ir.OpMul:        "mul",
	ir.OpDiv:        "div",
	ir.OpMod:        "mod",
	ir.OpEq:         "eq",
	ir.OpNe:         "ne",
	ir.OpLt:         "lt",
	ir.OpLe:         "le",
	ir.OpGt:         "gt",
	ir.OpGe:         "ge",
	ir.OpArray:      "arr",
	ir.OpArrayIndex: "idx",
	ir.OpInstance:   "inst",
	ir.OpProj:       "proj",
	ir.OpVarDec:     "vdec",
	ir.OpVarGet:     "vget",
	ir.OpVarSet:     "vset",
	ir.OpBoolean:    "b",
	ir.OpInteger:    "i",
	ir.OpReal:       "r",
	ir.OpString:     "s",
	ir.OpFunction:   "f",
}

var tagToInstrOp = func() map[string]ir.InstrOp {
	m := make(map[string]ir.InstrOp, len(instrOpTag))
	for k, v := range instrOpTag {
		m[v] = k
	}
	return m
}()

// jsonInstr is the single-letter-keyed wire form of an ir.EdgeInstr.
type jsonInstr struct {
	Op string `json:"o"`

	Offset  int     `json:"off,omitempty"`
	Len     int     `json:"n,omitempty"`
	Type    string  `json:"t,omitempty"`
	Class   int     `json:"c,omitempty"`
	Field   string  `json:"fl,omitempty"`
	VarIdx  int     `json:"v,omitempty"`
	BoolVal bool    `json:"bv,omitempty"`
	IntVal  int64   `json:"iv,omitempty"`
	RealVal float64 `json:"rv,omitempty"`
	StrVal  string  `json:"sv,omitempty"`
	FuncIdx int     `json:"fi,omitempty"`
}

func toJSONInstr(in ir.EdgeInstr) jsonInstr {
	tag, ok := instrOpTag[in.Op]
	if !ok {
		panic(fmt.Sprintf("wire: unknown instruction op %d", in.Op))
	}
	return jsonInstr{
		Op: tag, Offset: in.Offset, Len: in.Len, Type: in.Type, Class: in.Class,
		Field: in.Field, VarIdx: in.VarIdx, BoolVal: in.BoolVal, IntVal: in.IntVal,
		RealVal: in.RealVal, StrVal: in.StrVal, FuncIdx: in.FuncIdx,
	}
}

func (j jsonInstr) toIR() (ir.EdgeInstr, error) {
	op, ok := tagToInstrOp[j.Op]
	if !ok {
		return ir.EdgeInstr{}, fmt.Errorf("wire: unknown instruction tag %q", j.Op)
	}
	return ir.EdgeInstr{
		Op: op, Offset: j.Offset, Len: j.Len, Type: j.Type, Class: j.Class,
		Field: j.Field, VarIdx: j.VarIdx, BoolVal: j.BoolVal, IntVal: j.IntVal,
		RealVal: j.RealVal, StrVal: j.StrVal, FuncIdx: j.FuncIdx,
	}, nil
}

// jsonAvailability is the wire form of ir.AvailabilityKind.
type jsonAvailability struct {
	Available bool   `json:"a"`
	Path      string `json:"p,omitempty"`
	Location  string `json:"l,omitempty"`
	Address   string `json:"ad,omitempty"`
}

// jsonInput keys each input by its DataName as encodeDataName writes it,
// "d:name" or "ir:name".
type jsonInput map[string]jsonAvailability

func encodeDataName(d ir.DataName) string {
	if d.Kind == ir.DataNameIntermediateResult {
		return "ir:" + d.Name
	}
	return "d:" + d.Name
}

func decodeDataName(s string) (ir.DataName, error) {
	switch {
	case len(s) > 2 && s[:2] == "d:":
		return ir.Data(s[2:]), nil
	case len(s) > 3 && s[:3] == "ir:":
		return ir.IntermediateResult(s[3:]), nil
	default:
		return ir.DataName{}, fmt.Errorf("wire: malformed data name %q", s)
	}
}

// jsonEdge is the single-letter-keyed wire form of an ir.Edge.
type jsonEdge struct {
	Kind string `json:"k"`

	Task   int       `json:"ts,omitempty"`
	Locs   []string  `json:"l,omitempty"`
	At     string    `json:"at,omitempty"`
	Input  jsonInput `json:"i,omitempty"`
	Result string    `json:"r,omitempty"`
	Next   int       `json:"n,omitempty"`

	Instrs []jsonInstr `json:"is,omitempty"`

	TrueNext  int `json:"tn,omitempty"`
	FalseNext int `json:"fn,omitempty"`
	Merge     int `json:"m,omitempty"`

	Branches      []int  `json:"br,omitempty"`
	MergeStrategy string `json:"ms,omitempty"`

	Cond int `json:"cd,omitempty"`
	Body int `json:"bd,omitempty"`
}

func toJSONEdge(e ir.Edge) (jsonEdge, error) {
	tag, ok := edgeKindTag[e.Kind]
	if !ok {
		return jsonEdge{}, fmt.Errorf("wire: unknown edge kind %d", e.Kind)
	}
	je := jsonEdge{
		Kind: tag, Task: e.Task, Locs: e.Locs, At: e.At, Result: e.Result, Next: e.Next,
		TrueNext: e.TrueNext, FalseNext: e.FalseNext, Merge: e.Merge,
		Branches: e.Branches, Cond: e.Cond, Body: e.Body,
	}
	if e.Kind == ir.EdgeParallel {
		je.MergeStrategy = e.MergeStrategy.String()
	}
	if len(e.Instrs) > 0 {
		je.Instrs = make([]jsonInstr, len(e.Instrs))
		for i, in := range e.Instrs {
			je.Instrs[i] = toJSONInstr(in)
		}
	}
	if len(e.Input) > 0 {
		je.Input = make(jsonInput, len(e.Input))
		for dn, av := range e.Input {
			var ja jsonAvailability
			if av == nil {
				ja = jsonAvailability{}
			} else if av.Available {
				ja = jsonAvailability{Available: true, Path: av.Access.Path}
			} else {
				ja = jsonAvailability{Location: av.Preprocess.Location, Address: av.Preprocess.Address}
			}
			je.Input[encodeDataName(dn)] = ja
		}
	}
	return je, nil
}

func (je jsonEdge) toIR() (ir.Edge, error) {
	kind, ok := tagToEdgeKind[je.Kind]
	if !ok {
		return ir.Edge{}, fmt.Errorf("wire: unknown edge tag %q", je.Kind)
	}
	e := ir.Edge{
		Kind: kind, Task: je.Task, Locs: je.Locs, At: je.At, Result: je.Result, Next: je.Next,
		TrueNext: je.TrueNext, FalseNext: je.FalseNext, Merge: je.Merge,
		Branches: je.Branches, Cond: je.Cond, Body: je.Body,
	}
	if kind == ir.EdgeParallel {
		ms, ok := ir.ParseMergeStrategy(je.MergeStrategy)
		if !ok {
			return ir.Edge{}, fmt.Errorf("wire: unknown merge strategy %q", je.MergeStrategy)
		}
		e.MergeStrategy = ms
	}
	if len(je.Instrs) > 0 {
		e.Instrs = make([]ir.EdgeInstr, len(je.Instrs))
		for i, ji := range je.Instrs {
			in, err := ji.toIR()
			if err != nil {
				return ir.Edge{}, err
			}
			e.Instrs[i] = in
		}
	}
	if len(je.Input) > 0 {
		e.Input = make(map[ir.DataName]*ir.AvailabilityKind, len(je.Input))
		for k, ja := range je.Input {
			dn, err := decodeDataName(k)
			if err != nil {
				return ir.Edge{}, err
			}
			if ja.Available {
				av := ir.Available(ir.AccessKind{Path: ja.Path})
				e.Input[dn] = &av
			} else if ja.Location != "" {
				av := ir.Unavailable(ir.PreprocessKind{Location: ja.Location, Address: ja.Address})
				e.Input[dn] = &av
			} else {
				e.Input[dn] = nil
			}
		}
	}
	return e, nil
}

// jsonTask / jsonClass / jsonFunc / jsonVar mirror ir.SymTable's entry
// types with stable, lowercase field names (spec.md §6: "field names are
// stable across producer/consumer versions").
type jsonTask struct {
	Kind         string   `json:"kind"`
	Package      string   `json:"package,omitempty"`
	Version      string   `json:"version,omitempty"`
	Name         string   `json:"name"`
	ArgNames     []string `json:"arg_names,omitempty"`
	ArgTypes     []string `json:"arg_types,omitempty"`
	ReturnType   string   `json:"return_type,omitempty"`
	Requirements []string `json:"requirements,omitempty"`
}

type jsonParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type jsonFunc struct {
	Name       string      `json:"name"`
	Params     []jsonParam `json:"params,omitempty"`
	ReturnType string      `json:"return_type,omitempty"`
}

type jsonProp struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type jsonClass struct {
	Name    string     `json:"name"`
	Package string     `json:"package,omitempty"`
	Props   []jsonProp `json:"props,omitempty"`
	Methods []int      `json:"methods,omitempty"`
}

type jsonVar struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type jsonSymTable struct {
	Funcs   []jsonFunc         `json:"funcs,omitempty"`
	Tasks   []jsonTask         `json:"tasks,omitempty"`
	Classes []jsonClass        `json:"classes,omitempty"`
	Vars    []jsonVar          `json:"vars,omitempty"`
	Results map[string]string `json:"results,omitempty"`
}

type jsonWorkflow struct {
	Table *jsonSymTable       `json:"table"`
	Graph []jsonEdge          `json:"graph"`
	Funcs map[string][]jsonEdge `json:"funcs,omitempty"`
}

// Marshal encodes wf as the tagged-union Workflow JSON described in
// spec.md §6.
func Marshal(wf *ir.Workflow) ([]byte, error) {
	jt := &jsonSymTable{Results: wf.Table.Results}
	for _, f := range wf.Table.Funcs {
		jp := make([]jsonParam, len(f.Params))
		for i, p := range f.Params {
			jp[i] = jsonParam{Name: p.Name, Type: p.Type}
		}
		jt.Funcs = append(jt.Funcs, jsonFunc{Name: f.Name, Params: jp, ReturnType: f.ReturnType})
	}
	for _, tk := range wf.Table.Tasks {
		kind := "compute"
		if tk.Kind == ir.TaskTransfer {
			kind = "transfer"
		}
		jt.Tasks = append(jt.Tasks, jsonTask{
			Kind: kind, Package: tk.Package, Version: tk.Version, Name: tk.Name,
			ArgNames: tk.ArgNames, ArgTypes: tk.ArgTypes, ReturnType: tk.ReturnType,
			Requirements: tk.Requirements,
		})
	}
	for _, c := range wf.Table.Classes {
		jp := make([]jsonProp, len(c.Props))
		for i, p := range c.Props {
			jp[i] = jsonProp{Name: p.Name, Type: p.Type}
		}
		jt.Classes = append(jt.Classes, jsonClass{Name: c.Name, Package: c.Package, Props: jp, Methods: c.Methods})
	}
	for _, v := range wf.Table.Vars {
		jt.Vars = append(jt.Vars, jsonVar{Name: v.Name, Type: v.Type})
	}

	jw := jsonWorkflow{Table: jt}
	for _, e := range wf.Graph {
		je, err := toJSONEdge(e)
		if err != nil {
			return nil, err
		}
		jw.Graph = append(jw.Graph, je)
	}
	if len(wf.Funcs) > 0 {
		jw.Funcs = make(map[string][]jsonEdge, len(wf.Funcs))
		for idx, edges := range wf.Funcs {
			jes := make([]jsonEdge, len(edges))
			for i, e := range edges {
				je, err := toJSONEdge(e)
				if err != nil {
					return nil, err
				}
				jes[i] = je
			}
			jw.Funcs[fmt.Sprintf("%d", idx)] = jes
		}
	}
	return json.Marshal(jw)
}

// Unmarshal decodes Workflow JSON produced by Marshal.
func Unmarshal(data []byte) (*ir.Workflow, error) {
	var jw jsonWorkflow
	if err := json.Unmarshal(data, &jw); err != nil {
		return nil, err
	}
	wf := ir.NewWorkflow()
	if jw.Table != nil {
		for _, f := range jw.Table.Funcs {
			params := make([]ir.Param, len(f.Params))
			for i, p := range f.Params {
				params[i] = ir.Param{Name: p.Name, Type: p.Type}
			}
			wf.Table.Funcs = append(wf.Table.Funcs, ir.FuncDef{Name: f.Name, Params: params, ReturnType: f.ReturnType})
		}
		for _, tk := range jw.Table.Tasks {
			kind := ir.TaskCompute
			if tk.Kind == "transfer" {
				kind = ir.TaskTransfer
			}
			wf.Table.Tasks = append(wf.Table.Tasks, ir.TaskDef{
				Kind: kind, Package: tk.Package, Version: tk.Version, Name: tk.Name,
				ArgNames: tk.ArgNames, ArgTypes: tk.ArgTypes, ReturnType: tk.ReturnType,
				Requirements: tk.Requirements,
			})
		}
		for _, c := range jw.Table.Classes {
			props := make([]ir.PropertyDef, len(c.Props))
			for i, p := range c.Props {
				props[i] = ir.PropertyDef{Name: p.Name, Type: p.Type}
			}
			wf.Table.Classes = append(wf.Table.Classes, ir.ClassDef{Name: c.Name, Package: c.Package, Props: props, Methods: c.Methods})
		}
		for _, v := range jw.Table.Vars {
			wf.Table.Vars = append(wf.Table.Vars, ir.VarDef{Name: v.Name, Type: v.Type})
		}
		if jw.Table.Results != nil {
			wf.Table.Results = jw.Table.Results
		}
	}
	for _, je := range jw.Graph {
		e, err := je.toIR()
		if err != nil {
			return nil, err
		}
		wf.Graph = append(wf.Graph, e)
	}
	for idxStr, jes := range jw.Funcs {
		var idx int
		if _, err := fmt.Sscanf(idxStr, "%d", &idx); err != nil {
			return nil, fmt.Errorf("wire: malformed function index %q", idxStr)
		}
		edges := make([]ir.Edge, len(jes))
		for i, je := range jes {
			e, err := je.toIR()
			if err != nil {
				return nil, err
			}
			edges[i] = e
		}
		wf.Funcs[idx] = edges
	}
	return wf, nil
}
