// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/mitchellh/colorstring"

	"github.com/brane-org/brane/internal/plan"
	"github.com/brane-org/brane/internal/rpc"
	"github.com/brane-org/brane/internal/vm"
)

// RunCommand compiles, plans, and executes a workflow against the
// delegates named in its descriptor's infrastructure map, driving the
// Workflow VM (spec.md §4.7) through an rpc.Client plugin.
type RunCommand struct {
	UI       cli.Ui
	Log      hclog.Logger
	Colorize *colorstring.Colorize
}

func (c *RunCommand) Help() string {
	return "Usage: brane run [-offline] <file.bn> <descriptor.json>\n\n" +
		"Compiles, plans, and executes a workflow. Task output (the VM plugin's\n" +
		"stdout upcall) is printed as it arrives; the workflow's final value is\n" +
		"printed last."
}

func (c *RunCommand) Synopsis() string { return "Compile, plan, and run a workflow" }

func (c *RunCommand) Run(args []string) int {
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

	stdout := &stdoutWriter{ui: c.UI, colorize: c.Colorize}
	client := rpc.NewClient(descriptor.infrastructure(), stdout)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		c.Log.Warn("interrupted, cancelling outstanding plugin calls")
		cancel()
	}()

	result, err := vm.New(wf, client).Run(ctx)
	if err != nil {
		c.UI.Error(fmt.Sprintf("run failed: %s", err))
		return 1
	}
	c.UI.Output(result.String())
	return 0
}

// stdoutWriter adapts a cli.Ui to io.Writer for rpc.Client's Stdout
// upcall, coloring task output the way ColorizeUi colors the teacher's
// other output categories.
type stdoutWriter struct {
	ui       cli.Ui
	colorize *colorstring.Colorize
}

func (w *stdoutWriter) Write(p []byte) (int, error) {
	w.ui.Output(w.colorize.Color("[cyan]" + string(p)))
	return len(p), nil
}
