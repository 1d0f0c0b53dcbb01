// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package rpc

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/brane-org/brane/internal/ir"
	"github.com/brane-org/brane/internal/plan"
	"github.com/brane-org/brane/internal/value"
	"github.com/brane-org/brane/internal/vm"
)

var errBoom = errors.New("boom")

func vmTaskInfo(at string) vm.TaskInfo {
	return vm.TaskInfo{
		Name: "forecast", Package: "weather", Version: "1.0.0", Kind: ir.TaskCompute,
		Args: []value.Value{value.Str("site-a")}, At: at,
	}
}

// fakeDelegate is a hand-built double in the style of this module's
// other mock-with-overridable-func-fields test doubles: each method
// defaults to a safe behavior and can be overridden per test.
type fakeDelegate struct {
	PreprocessFunc func(ctx context.Context, name ir.DataName, sourceLocation, address string) (ir.AccessKind, error)
	ExecuteFunc    func(ctx context.Context, req *ExecuteRequest, report func(TaskStatusEvent)) (*value.Value, error)
	CommitFunc     func(ctx context.Context, resultName, dataName string) error
}

func (f *fakeDelegate) Preprocess(ctx context.Context, name ir.DataName, sourceLocation, address string) (ir.AccessKind, error) {
	if f.PreprocessFunc != nil {
		return f.PreprocessFunc(ctx, name, sourceLocation, address)
	}
	return ir.AccessKind{Path: "/data/" + name.Name}, nil
}

func (f *fakeDelegate) Execute(ctx context.Context, req *ExecuteRequest, report func(TaskStatusEvent)) (*value.Value, error) {
	if f.ExecuteFunc != nil {
		return f.ExecuteFunc(ctx, req, report)
	}
	v := value.Int(42)
	return &v, nil
}

func (f *fakeDelegate) Commit(ctx context.Context, resultName, dataName string) error {
	if f.CommitFunc != nil {
		return f.CommitFunc(ctx, resultName, dataName)
	}
	return nil
}

// startServer spins up a real loopback listener serving delegate and
// returns the address to dial plus a teardown func.
func startServer(t *testing.T, delegate Delegate) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	srv.RegisterService(&ServiceDesc, &Server{Delegate: delegate})

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func testInfra(addr string) plan.Infrastructure {
	return plan.Infrastructure{
		"site-a": plan.LocationInfo{DelegateEndpoint: addr, RegistryEndpoint: "https://registry.example/site-a"},
	}
}

func TestClientExecuteRoundTrip(t *testing.T) {
	addr := startServer(t, &fakeDelegate{})
	client := NewClient(testInfra(addr), &bytes.Buffer{})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := client.Execute(ctx, vmTaskInfo("site-a"))
	require.NoError(t, err)
	require.NotNil(t, result)
	require.True(t, value.Equal(value.Int(42), *result))
}

func TestClientExecutePropagatesFailure(t *testing.T) {
	delegate := &fakeDelegate{
		ExecuteFunc: func(context.Context, *ExecuteRequest, func(TaskStatusEvent)) (*value.Value, error) {
			return nil, errBoom
		},
	}
	addr := startServer(t, delegate)
	client := NewClient(testInfra(addr), &bytes.Buffer{})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Execute(ctx, vmTaskInfo("site-a"))
	require.Error(t, err)
}

func TestClientPreprocessRoundTrip(t *testing.T) {
	addr := startServer(t, &fakeDelegate{})
	client := NewClient(testInfra(addr), &bytes.Buffer{})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	access, err := client.Preprocess(ctx, "site-a", ir.Data("weather"), ir.PreprocessKind{Location: "site-b", Address: "https://site-b/registry"})
	require.NoError(t, err)
	require.Equal(t, "/data/weather", access.Path)
}

func TestClientCommitRoundTrip(t *testing.T) {
	var gotResult, gotData string
	delegate := &fakeDelegate{
		CommitFunc: func(_ context.Context, resultName, dataName string) error {
			gotResult, gotData = resultName, dataName
			return nil
		},
	}
	addr := startServer(t, delegate)
	client := NewClient(testInfra(addr), &bytes.Buffer{})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.Commit(ctx, "site-a", "forecast", "/tmp/forecast.tar", "forecast_data")
	require.NoError(t, err)
	require.Equal(t, "forecast", gotResult)
	require.Equal(t, "forecast_data", gotData)
}

func TestWireValueRoundTrip(t *testing.T) {
	in := value.Arr([]value.Value{value.Int(1), value.Str("x"), value.Bool(true)})
	w := toWireValue(in)
	out, err := fromWireValue(w)
	require.NoError(t, err)
	require.True(t, value.Equal(in, out))
}
