// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

// Package resolve implements the symbol resolver (spec.md §4.2): it
// walks the AST maintaining one scope per block, binds every
// identifier reference to the nearest enclosing declaration, and
// resolves imports against a supplied PackageIndex/DataIndex.
package resolve

import (
	"fmt"

	"github.com/hashicorp/go-version"

	"github.com/brane-org/brane/internal/diagnostics"
	"github.com/brane-org/brane/internal/dsl/ast"
)

// PackageInfo describes one resolved external package import.
type PackageInfo struct {
	Name     string
	Versions []string // known semver strings; "latest" resolves to the max
	// Actions maps an action (function) name to its signature.
	Actions map[string]ActionSig
	// Types maps a custom package type name to its properties.
	Types map[string][]ast.PropertyDef
}

type ActionSig struct {
	Params     []ast.Param
	ReturnType ast.TypeExpr
}

// PackageIndex is the external collaborator consulted for import
// resolution (spec.md §6).
type PackageIndex interface {
	Lookup(name string) (PackageInfo, bool)
}

// Bindings maps every resolved identifier reference to the AST node
// that declares it (a *ast.Let, *ast.Param, *ast.FuncDef, *ast.ClassDef,
// or a synthesized *ImportedTask/*ImportedClass for package symbols).
// The flattener consumes this to assign final dense indices.
type Bindings map[*ast.Ident]Decl

// Decl is the declaration a name resolves to.
type Decl struct {
	Kind ast.SymbolKind
	Node ast.Node // *ast.Let, *ast.Param, *ast.FuncDef, *ast.ClassDef, *ImportedTask, *ImportedClass
}

// ImportedTask stands in for a package action resolved through an
// import; the flattener turns one of these into an ir.TaskDef.
type ImportedTask struct {
	Package string
	Version string
	Name    string
	Sig     ActionSig
}

// Range satisfies ast.Node. An imported task has no position of its
// own in the importing file; callers needing a location use the
// import statement's range instead.
func (*ImportedTask) Range() diagnostics.Range { return diagnostics.Range{} }

// ImportedClass stands in for a package type resolved through an
// import; the flattener turns one of these into an ir.ClassDef.
type ImportedClass struct {
	Package string
	Name    string
	Props   []ast.PropertyDef
}

// Range satisfies ast.Node; see ImportedTask.Range.
func (*ImportedClass) Range() diagnostics.Range { return diagnostics.Range{} }

type scope struct {
	parent *scope
	names  map[string]Decl
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: make(map[string]Decl)}
}

func (s *scope) define(name string, d Decl) bool {
	if _, exists := s.names[name]; exists {
		return false
	}
	s.names[name] = d
	return true
}

func (s *scope) lookup(name string) (Decl, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if d, ok := cur.names[name]; ok {
			return d, true
		}
	}
	return Decl{}, false
}

type Resolver struct {
	packages PackageIndex
	diags    diagnostics.Diagnostics
	bindings Bindings
}

func New(packages PackageIndex) *Resolver {
	return &Resolver{packages: packages, bindings: make(Bindings)}
}

// Resolve walks stmts (a top-level program) and returns the identifier
// bindings it produced plus any diagnostics (duplicate/undefined
// symbols and unknown imports or versions are Errors; an `on` block's
// body is resolved like any other block, the parser having already
// emitted its deprecation Warning).
func Resolve(stmts []ast.Statement, packages PackageIndex) (Bindings, diagnostics.Diagnostics) {
	r := New(packages)
	top := newScope(nil)
	r.collectTopLevel(stmts, top)
	for _, s := range stmts {
		r.stmt(s, top)
	}
	return r.bindings, r.diags
}

// collectTopLevel pre-declares every top-level func/class/import so
// forward references (mutual recursion, use-before-def) resolve.
func (r *Resolver) collectTopLevel(stmts []ast.Statement, top *scope) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *ast.FuncDef:
			if !top.define(s.Name, Decl{Kind: ast.SymFunc, Node: s}) {
				r.errorf(s.Range(), "DuplicateFunction", "function %q is already defined in this scope", s.Name)
			}
		case *ast.ClassDef:
			if !top.define(s.Name, Decl{Kind: ast.SymClass, Node: s}) {
				r.errorf(s.Range(), "DuplicateClass", "class %q is already defined in this scope", s.Name)
			}
		case *ast.Import:
			r.resolveImport(s, top)
		}
	}
}

func (r *Resolver) resolveImport(im *ast.Import, top *scope) {
	if r.packages == nil {
		return
	}
	info, ok := r.packages.Lookup(im.Name)
	if !ok {
		r.errorf(im.Range(), "UnknownImport", "unknown package %q", im.Name)
		return
	}
	ver := im.Version
	if ver == "" || ver == "latest" {
		ver = latestVersion(info.Versions)
	} else if !containsVersion(info.Versions, ver) {
		r.errorf(im.Range(), "VersionMismatch", "package %q has no version %q", im.Name, ver)
		return
	}
	for name, sig := range info.Actions {
		task := &ImportedTask{Package: im.Name, Version: ver, Name: name, Sig: sig}
		if !top.define(name, Decl{Kind: ast.SymTask, Node: task}) {
			r.errorf(im.Range(), "DuplicateFunction", "name %q from package %q collides with an existing symbol", name, im.Name)
		}
	}
	for name, props := range info.Types {
		class := &ImportedClass{Package: im.Name, Name: name, Props: props}
		if !top.define(name, Decl{Kind: ast.SymClass, Node: class}) {
			r.errorf(im.Range(), "DuplicateClass", "type %q from package %q collides with an existing symbol", name, im.Name)
		}
	}
}

func latestVersion(versions []string) string {
	var best *version.Version
	bestStr := ""
	for _, v := range versions {
		parsed, err := version.NewVersion(v)
		if err != nil {
			continue
		}
		if best == nil || parsed.GreaterThan(best) {
			best = parsed
			bestStr = v
		}
	}
	return bestStr
}

func containsVersion(versions []string, want string) bool {
	for _, v := range versions {
		if v == want {
			return true
		}
	}
	return false
}

func (r *Resolver) errorf(rng diagnostics.Range, kind diagnostics.Kind, format string, args ...interface{}) {
	r.diags = r.diags.Append(diagnostics.Diagnostic{
		Severity: diagnostics.Error,
		Kind:     kind,
		Summary:  fmt.Sprintf(format, args...),
		Subject:  rng,
	})
}

func (r *Resolver) stmt(s ast.Statement, sc *scope) {
	switch s := s.(type) {
	case *ast.Block:
		inner := newScope(sc)
		for _, st := range s.Stmts {
			r.stmt(st, inner)
		}
	case *ast.Import:
		// handled in collectTopLevel
	case *ast.FuncDef:
		fnScope := newScope(sc)
		for i := range s.Params {
			p := &s.Params[i]
			if !fnScope.define(p.Name, Decl{Kind: ast.SymVar, Node: p}) {
				r.errorf(s.Range(), "DuplicateVariable", "parameter %q is already defined", p.Name)
			}
		}
		r.collectTopLevel(s.Body.Stmts, fnScope)
		for _, st := range s.Body.Stmts {
			r.stmt(st, fnScope)
		}
	case *ast.ClassDef:
		for _, m := range s.Methods {
			r.stmt(m, sc)
		}
	case *ast.Return:
		if s.Value != nil {
			r.expr(s.Value, sc)
		}
	case *ast.If:
		r.expr(s.Cond, sc)
		r.stmt(s.Then, sc)
		if s.Else != nil {
			r.stmt(s.Else, sc)
		}
	case *ast.For:
		inner := newScope(sc)
		if s.Init != nil {
			r.stmt(s.Init, inner)
		}
		if s.Cond != nil {
			r.expr(s.Cond, inner)
		}
		if s.Incr != nil {
			r.stmt(s.Incr, inner)
		}
		r.stmt(s.Body, inner)
	case *ast.While:
		r.expr(s.Cond, sc)
		r.stmt(s.Body, sc)
	case *ast.On:
		r.stmt(s.Body, sc)
	case *ast.Parallel:
		if s.ResultName != "" {
			sc.define(s.ResultName, Decl{Kind: ast.SymVar, Node: s})
		}
		for _, b := range s.Branches {
			r.stmt(b, newScope(sc))
		}
	case *ast.Let:
		r.expr(s.Value, sc)
		if !sc.define(s.Name, Decl{Kind: ast.SymVar, Node: s}) {
			r.errorf(s.Range(), "DuplicateVariable", "variable %q is already defined in this scope", s.Name)
		}
	case *ast.Assign:
		r.expr(s.Target, sc)
		r.expr(s.Value, sc)
	case *ast.ExprStmt:
		r.expr(s.X, sc)
	}
}

func (r *Resolver) expr(e ast.Expression, sc *scope) {
	switch e := e.(type) {
	case *ast.Ident:
		d, ok := sc.lookup(e.Name)
		if !ok {
			r.errorf(e.Range(), "UndefinedSymbol", "undefined symbol %q", e.Name)
			e.ResolvedKind = ast.SymUnresolved
			return
		}
		e.ResolvedKind = d.Kind
		r.bindings[e] = d
	case *ast.ArrayLit:
		for _, el := range e.Elems {
			r.expr(el, sc)
		}
	case *ast.Index:
		r.expr(e.X, sc)
		r.expr(e.Index, sc)
	case *ast.Proj:
		r.expr(e.X, sc)
	case *ast.Call:
		r.expr(e.Callee, sc)
		for _, a := range e.Args {
			r.expr(a, sc)
		}
	case *ast.New:
		if _, ok := sc.lookup(e.ClassName); !ok {
			r.errorf(e.Range(), "UndefinedSymbol", "undefined class %q", e.ClassName)
		}
		for _, f := range e.Fields {
			r.expr(f.Value, sc)
		}
	case *ast.Unary:
		r.expr(e.X, sc)
	case *ast.Binary:
		r.expr(e.Left, sc)
		r.expr(e.Right, sc)
	}
}
