// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package vm

import (
	"context"
	"fmt"

	"github.com/brane-org/brane/internal/ir"
	"github.com/brane-org/brane/internal/value"
)

// TaskInfo is the argument bundle passed to a plugin's Execute hook
// (spec.md §4.8): everything the plugin needs to run, or request the
// execution of, one Node edge.
type TaskInfo struct {
	Name         string
	Package      string
	Version      string
	Kind         ir.TaskKind
	Args         []value.Value
	Input        map[ir.DataName]ir.AccessKind
	Result       string
	At           string
	Requirements []string
}

// Plugin supplies every externally observable effect the VM performs.
// The VM itself never touches a filesystem, a network socket, or
// standard output; every such effect is routed through here, so the
// same VM core drives both a distributed deployment (Execute opening a
// streaming RPC to a delegate) and an offline one (Execute invoking a
// local container engine) without a line of difference in vm.go.
type Plugin interface {
	// Preprocess makes data named by name locally accessible at
	// location, per pre, and reports how to read it once done.
	Preprocess(ctx context.Context, location string, name ir.DataName, pre ir.PreprocessKind) (ir.AccessKind, error)

	// Execute runs one task to completion (or failure) and returns the
	// value it produced, if its return type is non-Void.
	Execute(ctx context.Context, info TaskInfo) (*value.Value, error)

	// Stdout relays a line of task output. newline reports whether the
	// line was terminated or is a partial write.
	Stdout(ctx context.Context, text string, newline bool) error

	// Publicize makes a just-produced result's file available to other
	// locations under resultName.
	Publicize(ctx context.Context, location, resultName, path string) error

	// Commit promotes a named result to a persistent dataset.
	Commit(ctx context.Context, location, resultName, path, dataName string) error
}

// TransientError marks a plugin failure the VM's retry policy may
// re-attempt (spec.md §4.7). The default policy retries zero times, so
// today this only affects how the failure is reported, not whether
// execution continues — a future retrying plugin can use the
// distinction without any VM change.
type TransientError struct {
	Task string
	At   string
	Err  error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure running %q at %q: %v", e.Task, e.At, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a plugin failure the VM always aborts on.
type PermanentError struct {
	Task string
	At   string
	Err  error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent failure running %q at %q: %v", e.Task, e.At, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }
