// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/brane-org/brane/internal/ir/wire"
	"github.com/brane-org/brane/internal/plan"
)

// PlanCommand compiles a workflow and assigns every task a location and
// input-availability plan (spec.md §4.6), printing the planned Workflow
// as tagged-union JSON (spec.md §6).
type PlanCommand struct {
	UI  cli.Ui
	Log hclog.Logger
}

func (c *PlanCommand) Help() string {
	return "Usage: brane plan [-offline] <file.bn> [descriptor.json]\n\n" +
		"Compiles and plans a workflow, printing the planned Workflow as JSON.\n" +
		"-offline fixes every task to \"localhost\" and treats all known data as local."
}

func (c *PlanCommand) Synopsis() string { return "Compile and plan a workflow" }

func (c *PlanCommand) Run(args []string) int {
	offline, args := takeOfflineFlag(args)
	if len(args) < 1 {
		c.UI.Error(c.Help())
		return 1
	}

	descriptor, err := descriptorFromArg(args)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	wf, diags, err := compileFileRecover(c.Log, args[0], packageIndex{d: descriptor})
	reportDiags(c.UI, diags)
	if err != nil {
		c.UI.Error(fmt.Sprintf("compile failed: %s", err))
		return 1
	}

	planner := plan.New(dataIndex{d: descriptor}, descriptor.infrastructure())
	if offline {
		planner = plan.Offline(dataIndex{d: descriptor})
	}
	if err := planner.Plan(wf); err != nil {
		c.UI.Error(fmt.Sprintf("planning failed: %s", err))
		return 1
	}

	out, err := wire.Marshal(wf)
	if err != nil {
		c.UI.Error(fmt.Sprintf("encoding workflow: %s", err))
		return 1
	}
	c.UI.Output(string(out))
	return 0
}

func takeOfflineFlag(args []string) (bool, []string) {
	out := args[:0:0]
	offline := false
	for _, a := range args {
		if a == "-offline" {
			offline = true
			continue
		}
		out = append(out, a)
	}
	return offline, out
}

func descriptorFromArg(args []string) (*Descriptor, error) {
	if len(args) < 2 {
		return &Descriptor{}, nil
	}
	return LoadDescriptor(args[1])
}
