// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/brane-org/brane/internal/diagnostics"
	"github.com/brane-org/brane/internal/dsl/parser"
	"github.com/brane-org/brane/internal/ir"
	"github.com/brane-org/brane/internal/ir/compiler"
	"github.com/brane-org/brane/internal/ir/resolver"
	"github.com/brane-org/brane/internal/sema/flatten"
	"github.com/brane-org/brane/internal/sema/resolve"
	"github.com/brane-org/brane/internal/sema/typecheck"
)

// compileFile drives the front end through to an unplanned ir.Workflow
// (spec.md §4.1-§4.5): parse, resolve, type-check, flatten, compile,
// resolve-to-flat-graph. Each stage's diagnostics are collected before
// the next stage runs, matching spec.md §7's "compilation errors are
// collected into a vector where possible."
func compileFile(log hclog.Logger, path string, packages resolve.PackageIndex) (*ir.Workflow, diagnostics.Diagnostics, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %q: %w", path, err)
	}

	log.Named("parser").Debug("parsing", "file", path)
	stmts, diags, err := parser.Parse(path, string(src))
	if err != nil {
		return nil, diags, err
	}

	log.Named("resolver").Debug("resolving symbols")
	bindings, resolveDiags := resolve.Resolve(stmts, packages)
	diags = diags.Append(resolveDiags)
	if diags.HasErrors() {
		return nil, diags, diags.Err()
	}

	log.Named("typecheck").Debug("type-checking")
	types, typeDiags := typecheck.Check(stmts, bindings)
	diags = diags.Append(typeDiags)
	if diags.HasErrors() {
		return nil, diags, diags.Err()
	}

	log.Named("flatten").Debug("flattening declarations")
	table, info, flattenDiags := flatten.Flatten(stmts, bindings, types)
	diags = diags.Append(flattenDiags)
	if diags.HasErrors() {
		return nil, diags, diags.Err()
	}

	log.Named("compiler").Debug("compiling to edge buffer")
	prog := compiler.Compile(stmts, table, info, bindings, types)

	log.Named("resolver").Debug("resolving edge buffer to workflow")
	wf := resolver.Resolve(prog, table)

	return wf, diags, nil
}
