// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"

	"github.com/mitchellh/cli"
	"github.com/mitchellh/colorstring"
)

// colorUI wraps a cli.Ui, coloring Error/Warn/stdout-hook output the
// way internal/command.ColorizeUi does in the teacher, minus the
// pluggable OutputColor/InfoColor fields that package exposes for
// views this CLI doesn't have.
type colorUI struct {
	cli.Ui
	Colorize *colorstring.Colorize
}

func newUI() cli.Ui {
	return &colorUI{
		Ui: &cli.BasicUi{Writer: os.Stdout, ErrorWriter: os.Stderr, Reader: os.Stdin},
		Colorize: &colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: os.Getenv("NO_COLOR") != "",
			Reset:   true,
		},
	}
}

func (u *colorUI) Error(message string) {
	u.Ui.Error(u.Colorize.Color("[red]" + message))
}

func (u *colorUI) Warn(message string) {
	u.Ui.Warn(u.Colorize.Color("[yellow]" + message))
}

func (u *colorUI) Info(message string) {
	u.Ui.Info(u.Colorize.Color("[green]" + message))
}
