// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/brane-org/brane/internal/diagnostics"
	"github.com/brane-org/brane/internal/ir"
	"github.com/brane-org/brane/internal/sema/resolve"
)

// CheckCommand runs the front end (lex, parse, resolve, type-check,
// flatten, compile) over a file and reports diagnostics without
// planning or executing it — the validate-only entry point spec.md §1
// leaves as an external CLI concern but still needs a home in cmd/brane.
type CheckCommand struct {
	UI  cli.Ui
	Log hclog.Logger
}

func (c *CheckCommand) Help() string {
	return "Usage: brane check <file.bn> [descriptor.json]\n\nParses and type-checks a workflow without planning or running it."
}

func (c *CheckCommand) Synopsis() string { return "Validate a workflow file" }

func (c *CheckCommand) Run(args []string) int {
	if len(args) < 1 {
		c.UI.Error(c.Help())
		return 1
	}
	packages, err := packagesFromArg(args)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	_, diags, err := compileFileRecover(c.Log, args[0], packages)
	reportDiags(c.UI, diags)
	if err != nil {
		c.UI.Error(fmt.Sprintf("check failed: %s", err))
		return 1
	}
	c.UI.Info(fmt.Sprintf("%s: ok", args[0]))
	return 0
}

// packagesFromArg loads the optional descriptor.json argument (args[1])
// into a resolve.PackageIndex, or an empty one if omitted.
func packagesFromArg(args []string) (resolve.PackageIndex, error) {
	d, err := descriptorFromArg(args)
	if err != nil {
		return nil, err
	}
	return packageIndex{d: d}, nil
}

// compileFileRecover wraps compileFile so an ir.resolver invariant
// panic (spec.md §7: "only panics for broken invariants — these are
// bugs, not runtime conditions") surfaces as an ordinary error to the
// CLI instead of crashing the process.
func compileFileRecover(log hclog.Logger, path string, packages resolve.PackageIndex) (wf *ir.Workflow, diags diagnostics.Diagnostics, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal compiler error: %v", r)
		}
	}()
	wf, diags, err = compileFile(log, path, packages)
	return wf, diags, err
}

func reportDiags(ui cli.Ui, diags diagnostics.Diagnostics) {
	for _, d := range diags {
		if d.Severity == diagnostics.Warning {
			ui.Warn(strings.TrimSpace(d.Error()))
		} else {
			ui.Error(strings.TrimSpace(d.Error()))
		}
	}
}
