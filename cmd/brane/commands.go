// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/mitchellh/colorstring"
)

// commands is the mapping of every brane subcommand, mirroring
// cmd/tofu/commands.go's commands map.
func commands(ui cli.Ui, log hclog.Logger, colorize *colorstring.Colorize) map[string]cli.CommandFactory {
	return map[string]cli.CommandFactory{
		"check": func() (cli.Command, error) {
			return &CheckCommand{UI: ui, Log: log}, nil
		},
		"plan": func() (cli.Command, error) {
			return &PlanCommand{UI: ui, Log: log}, nil
		},
		"run": func() (cli.Command, error) {
			return &RunCommand{UI: ui, Log: log, Colorize: colorize}, nil
		},
		"version": func() (cli.Command, error) {
			return &VersionCommand{UI: ui}, nil
		},
	}
}
