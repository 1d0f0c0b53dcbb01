// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/mitchellh/cli"

const braneVersion = "0.1.0-dev"

// VersionCommand prints the CLI's own version, mirroring cmd/tofu's
// version subcommand.
type VersionCommand struct {
	UI cli.Ui
}

func (c *VersionCommand) Help() string { return "Usage: brane version" }

func (c *VersionCommand) Synopsis() string { return "Print the CLI version" }

func (c *VersionCommand) Run([]string) int {
	c.UI.Output("brane " + braneVersion)
	return 0
}
