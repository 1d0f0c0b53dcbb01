// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
)

// EnvLog is the environment variable controlling log verbosity,
// analogous to cmd/tofu's TF_LOG.
const EnvLog = "BRANE_LOG"

func main() {
	os.Exit(realMain())
}

func realMain() int {
	log := hclog.New(&hclog.LoggerOptions{
		Name:   "brane",
		Level:  hclog.LevelFromString(os.Getenv(EnvLog)),
		Output: os.Stderr,
	})
	if log.IsTrace() && log.GetLevel() == hclog.NoLevel {
		log.SetLevel(hclog.Warn)
	}

	ui := newUI()
	cui, _ := ui.(*colorUI)
	colorize := cui.Colorize

	args := os.Args[1:]
	runner := &cli.CLI{
		Name:     "brane",
		Args:     args,
		Commands: commands(ui, log, colorize),
		HelpFunc: cli.BasicHelpFunc("brane"),
	}

	exitCode, err := runner.Run()
	if err != nil {
		ui.Error(err.Error())
		return 1
	}
	return exitCode
}
