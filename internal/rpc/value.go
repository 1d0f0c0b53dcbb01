// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

// Package rpc implements the Worker RPC the distributed VM Plugin Contract
// talks over (spec.md §4.8, §6): a gRPC transport carrying a hand-rolled
// JSON codec rather than generated protobuf stubs, grounded on the same
// grpc.ClientConn/grpc.Server plumbing the teacher's internal/plugin
// package drives, minus the HashiCorp go-plugin process supervision layer
// that package adds on top (this package only needs the wire protocol,
// not subprocess management).
package rpc

import (
	"fmt"

	"github.com/brane-org/brane/internal/value"
)

// wireValue is value.Value's JSON shape. Value has no public constructor
// that takes a Kind plus raw fields, so encoding/decoding goes through
// this intermediate struct and the package's own exported accessors
// rather than reflection.
type wireValue struct {
	Kind  string      `json:"k"`
	Bool  bool        `json:"b,omitempty"`
	Int   int64       `json:"i,omitempty"`
	Real  float64     `json:"r,omitempty"`
	Str   string      `json:"s,omitempty"`
	Elems []wireValue `json:"e,omitempty"`
	Class int         `json:"c,omitempty"`
	Props map[string]wireValue `json:"p,omitempty"`
	Func  int         `json:"f,omitempty"`
	Name  string      `json:"n,omitempty"`
}

func toWireValue(v value.Value) wireValue {
	switch v.Kind() {
	case value.Boolean:
		return wireValue{Kind: "bool", Bool: v.AsBool()}
	case value.Integer:
		return wireValue{Kind: "int", Int: v.AsInt()}
	case value.Real:
		return wireValue{Kind: "real", Real: v.AsReal()}
	case value.String:
		return wireValue{Kind: "string", Str: v.AsString()}
	case value.Array:
		elems := v.Elems()
		out := make([]wireValue, len(elems))
		for i, e := range elems {
			out[i] = toWireValue(e)
		}
		return wireValue{Kind: "array", Elems: out}
	case value.Instance:
		iv := v.Instance()
		props := make(map[string]wireValue, len(iv.Props))
		for k, p := range iv.Props {
			props[k] = toWireValue(p)
		}
		return wireValue{Kind: "instance", Class: iv.Class, Props: props}
	case value.Function:
		return wireValue{Kind: "function", Func: v.FuncIndex()}
	case value.Data:
		return wireValue{Kind: "data", Name: v.Name()}
	case value.IntermediateResult:
		return wireValue{Kind: "intermediate_result", Name: v.Name()}
	default:
		return wireValue{Kind: "void"}
	}
}

func fromWireValue(w wireValue) (value.Value, error) {
	switch w.Kind {
	case "bool":
		return value.Bool(w.Bool), nil
	case "int":
		return value.Int(w.Int), nil
	case "real":
		return value.Real(w.Real), nil
	case "string":
		return value.Str(w.Str), nil
	case "array":
		elems := make([]value.Value, len(w.Elems))
		for i, e := range w.Elems {
			ev, err := fromWireValue(e)
			if err != nil {
				return value.Value{}, err
			}
			elems[i] = ev
		}
		return value.Arr(elems), nil
	case "instance":
		props := make(map[string]value.Value, len(w.Props))
		for k, p := range w.Props {
			pv, err := fromWireValue(p)
			if err != nil {
				return value.Value{}, err
			}
			props[k] = pv
		}
		return value.NewInstance(w.Class, props), nil
	case "function":
		return value.Func(w.Func), nil
	case "data":
		return value.DataRef(w.Name), nil
	case "intermediate_result":
		return value.IntermediateResultRef(w.Name), nil
	case "void", "":
		return value.VoidVal(), nil
	default:
		return value.Value{}, fmt.Errorf("rpc: unknown wire value kind %q", w.Kind)
	}
}
