// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/brane-org/brane/internal/dsl/ast"
	"github.com/brane-org/brane/internal/ir"
	"github.com/brane-org/brane/internal/plan"
	"github.com/brane-org/brane/internal/sema/resolve"
)

// Descriptor is the CLI's on-disk configuration: the package index, data
// index, and infrastructure map spec.md §6 describes as externally
// supplied ("Loaded from YAML files or HTTPS endpoints; format is out of
// scope"). Since the concrete format is explicitly unspecified, the CLI
// reads its own plain JSON shape rather than reconstructing a YAML
// loader the teacher has no equivalent of.
type Descriptor struct {
	Packages map[string]descriptorPackage   `json:"packages"`
	Data     map[string]map[string]string   `json:"data"` // data name -> location -> local path
	Infra    map[string]descriptorLocation  `json:"infrastructure"`
}

type descriptorPackage struct {
	Versions []string                     `json:"versions"`
	Actions  map[string]descriptorAction  `json:"actions"`
	Types    map[string][]descriptorField `json:"types"`
}

type descriptorAction struct {
	Params []descriptorField `json:"params"`
	Return string             `json:"return"`
}

type descriptorField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type descriptorLocation struct {
	DelegateEndpoint string `json:"delegate_endpoint"`
	RegistryEndpoint string `json:"registry_endpoint"`
}

// LoadDescriptor reads and parses a Descriptor from path.
func LoadDescriptor(path string) (*Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor %q: %w", path, err)
	}
	var d Descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parsing descriptor %q: %w", path, err)
	}
	return &d, nil
}

// parseTypeExpr turns a descriptor type string ("Integer", "Array(Real)",
// a class name) into an ast.TypeExpr. Arrays are spelled "Array(T)" here,
// whereas the DSL parser spells an array type annotation "[T]".
func parseTypeExpr(s string) ast.TypeExpr {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "Array(") && strings.HasSuffix(s, ")") {
		elem := parseTypeExpr(s[len("Array(") : len(s)-1])
		return ast.TypeExpr{Name: "Array", Elem: &elem}
	}
	return ast.TypeExpr{Name: s}
}

func fields(fs []descriptorField) []ast.Param {
	out := make([]ast.Param, len(fs))
	for i, f := range fs {
		out[i] = ast.Param{Name: f.Name, Type: parseTypeExpr(f.Type)}
	}
	return out
}

func propFields(fs []descriptorField) []ast.PropertyDef {
	out := make([]ast.PropertyDef, len(fs))
	for i, f := range fs {
		out[i] = ast.PropertyDef{Name: f.Name, Type: parseTypeExpr(f.Type)}
	}
	return out
}

// packageIndex adapts Descriptor to resolve.PackageIndex.
type packageIndex struct{ d *Descriptor }

func (p packageIndex) Lookup(name string) (resolve.PackageInfo, bool) {
	pkg, ok := p.d.Packages[name]
	if !ok {
		return resolve.PackageInfo{}, false
	}
	actions := make(map[string]resolve.ActionSig, len(pkg.Actions))
	for name, a := range pkg.Actions {
		actions[name] = resolve.ActionSig{Params: fields(a.Params), ReturnType: parseTypeExpr(a.Return)}
	}
	types := make(map[string][]ast.PropertyDef, len(pkg.Types))
	for name, props := range pkg.Types {
		types[name] = propFields(props)
	}
	return resolve.PackageInfo{Name: name, Versions: pkg.Versions, Actions: actions, Types: types}, true
}

// dataIndex adapts Descriptor to plan.DataIndex.
type dataIndex struct{ d *Descriptor }

func (idx dataIndex) Lookup(name string) (plan.DataInfo, bool) {
	locs, ok := idx.d.Data[name]
	if !ok {
		return plan.DataInfo{}, false
	}
	access := make(map[string]ir.AccessKind, len(locs))
	for loc, path := range locs {
		access[loc] = ir.AccessKind{Path: path}
	}
	return plan.DataInfo{Access: access}, true
}

func (d *Descriptor) infrastructure() plan.Infrastructure {
	out := make(plan.Infrastructure, len(d.Infra))
	for loc, l := range d.Infra {
		out[loc] = plan.LocationInfo{DelegateEndpoint: l.DelegateEndpoint, RegistryEndpoint: l.RegistryEndpoint}
	}
	return out
}
