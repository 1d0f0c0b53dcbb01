// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package rpc

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/brane-org/brane/internal/ir"
	"github.com/brane-org/brane/internal/plan"
	"github.com/brane-org/brane/internal/value"
	"github.com/brane-org/brane/internal/vm"
)

// Client is the distributed vm.Plugin implementation: every call opens
// (or reuses) a connection to the delegate at the task's location and
// drives it over the Worker RPC (spec.md §4.8, §6). It never touches a
// container engine directly — that lives entirely on the delegate side
// of the wire, which is exactly the "external collaborator with a
// contract fixed in §6" the Docker daemon client is named as out of
// scope.
type Client struct {
	infra  plan.Infrastructure
	stdout io.Writer

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn

	dialOpts []grpc.DialOption
}

// NewClient builds a Client that reaches each location's delegate at
// the endpoint infra describes, writing Stdout upcalls to stdout (use
// os.Stdout for a CLI run). extraDialOpts is appended after the
// package's own codec/transport defaults, e.g. to add TLS credentials
// in a deployment that needs them in place of the insecure default.
func NewClient(infra plan.Infrastructure, stdout io.Writer, extraDialOpts ...grpc.DialOption) *Client {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, extraDialOpts...)
	return &Client{infra: infra, stdout: stdout, conns: make(map[string]*grpc.ClientConn), dialOpts: opts}
}

func (c *Client) connFor(location string) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[location]; ok {
		return conn, nil
	}
	info, ok := c.infra[location]
	if !ok {
		return nil, fmt.Errorf("rpc: no infrastructure entry for location %q", location)
	}
	conn, err := grpc.NewClient(info.DelegateEndpoint, c.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("rpc: dialing delegate for %q: %w", location, err)
	}
	c.conns[location] = conn
	return conn, nil
}

// Preprocess implements vm.Plugin.
func (c *Client) Preprocess(ctx context.Context, location string, name ir.DataName, pre ir.PreprocessKind) (ir.AccessKind, error) {
	conn, err := c.connFor(location)
	if err != nil {
		return ir.AccessKind{}, err
	}
	req := &PreprocessRequest{
		CorrelationID:  uuid.NewString(),
		DataName:       toWireDataName(name),
		SourceLocation: pre.Location,
		Address:        pre.Address,
	}
	reply := new(PreprocessReply)
	if err := conn.Invoke(ctx, methodPreprocess, req, reply); err != nil {
		return ir.AccessKind{}, fmt.Errorf("rpc: preprocess %v at %q: %w", name, location, err)
	}
	if !reply.OK {
		return ir.AccessKind{}, &vm.PermanentError{At: location, Err: fmt.Errorf("preprocess %v: %s", name, reply.Error)}
	}
	return ir.AccessKind{Path: reply.Path}, nil
}

// Execute implements vm.Plugin: it opens the Execute stream, sends one
// request, and consumes TaskStatus events until a terminal one arrives
// (spec.md §6).
func (c *Client) Execute(ctx context.Context, info vm.TaskInfo) (*value.Value, error) {
	conn, err := c.connFor(info.At)
	if err != nil {
		return nil, err
	}
	stream, err := conn.NewStream(ctx, executeStreamDesc, methodExecute)
	if err != nil {
		return nil, fmt.Errorf("rpc: opening execute stream for %q at %q: %w", info.Name, info.At, err)
	}

	args := make([]wireValue, len(info.Args))
	for i, a := range info.Args {
		args[i] = toWireValue(a)
	}
	input := make(map[string]wireAccess, len(info.Input))
	for name, access := range info.Input {
		input[name.Name] = wireAccess{DataName: toWireDataName(name), Path: access.Path}
	}
	kind := "compute"
	if info.Kind == ir.TaskTransfer {
		kind = "transfer"
	}
	req := &ExecuteRequest{
		CorrelationID: uuid.NewString(),
		APIEndpoint:   c.infra[info.At].RegistryEndpoint,
		Name:          info.Name, Package: info.Package, Version: info.Version, Kind: kind,
		Args: args, Input: input, ResultName: info.Result, Requirements: info.Requirements,
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, fmt.Errorf("rpc: sending execute request for %q: %w", info.Name, err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("rpc: closing execute request for %q: %w", info.Name, err)
	}

	for {
		ev := new(TaskStatusEvent)
		if err := stream.RecvMsg(ev); err != nil {
			if err == io.EOF {
				return nil, &vm.PermanentError{Task: info.Name, At: info.At, Err: fmt.Errorf("execute stream closed before a terminal status")}
			}
			return nil, fmt.Errorf("rpc: execute stream for %q: %w", info.Name, err)
		}
		if !ev.Status.terminal() {
			continue
		}
		return eventResult(info, ev)
	}
}

func eventResult(info vm.TaskInfo, ev *TaskStatusEvent) (*value.Value, error) {
	switch ev.Status {
	case StatusFinished:
		if ev.Value == nil {
			return nil, nil
		}
		v, err := fromWireValue(*ev.Value)
		if err != nil {
			return nil, fmt.Errorf("rpc: decoding result of %q: %w", info.Name, err)
		}
		return &v, nil
	case StatusStopped:
		return nil, &vm.TransientError{Task: info.Name, At: info.At, Err: fmt.Errorf("task stopped")}
	case StatusFailed:
		return nil, &vm.PermanentError{Task: info.Name, At: info.At, Err: fmt.Errorf(
			"task failed: exit_code=%d stderr=%s", ev.ExitCode, ev.Stderr)}
	default:
		return nil, &vm.PermanentError{Task: info.Name, At: info.At, Err: fmt.Errorf("%s: %s", ev.Status, ev.Message)}
	}
}

// Stdout implements vm.Plugin. The Worker RPC (spec.md §6) defines only
// Preprocess, Execute and Commit; task output text has no wire message
// of its own, so Stdout writes directly to the client's stdout writer rather than
// opening a fourth RPC the contract doesn't name.
func (c *Client) Stdout(_ context.Context, text string, newline bool) error {
	if newline {
		text += "\n"
	}
	_, err := c.stdout.Write([]byte(text))
	return err
}

// Publicize implements vm.Plugin. Promotion to a public path is local
// bookkeeping at the producing location ahead of a Commit call, not a
// wire operation the Worker RPC defines, so it is a local no-op here;
// a delegate that needs to act on it learns the promoted path from the
// subsequent Commit request's data_name.
func (c *Client) Publicize(context.Context, string, string, string) error { return nil }

// Commit implements vm.Plugin.
func (c *Client) Commit(ctx context.Context, location, resultName, _, dataName string) error {
	conn, err := c.connFor(location)
	if err != nil {
		return err
	}
	req := &CommitRequest{CorrelationID: uuid.NewString(), ResultName: resultName, DataName: dataName}
	reply := new(CommitReply)
	if err := conn.Invoke(ctx, methodCommit, req, reply); err != nil {
		return fmt.Errorf("rpc: commit %q at %q: %w", resultName, location, err)
	}
	if !reply.OK {
		return &vm.PermanentError{At: location, Err: fmt.Errorf("commit %q: %s", resultName, reply.Error)}
	}
	return nil
}

// Close releases every cached connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for loc, conn := range c.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("rpc: closing connection to %q: %w", loc, err)
		}
	}
	c.conns = make(map[string]*grpc.ClientConn)
	return firstErr
}
