// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	serviceName      = "brane.Worker"
	methodPreprocess = "/" + serviceName + "/Preprocess"
	methodExecute    = "/" + serviceName + "/Execute"
	methodCommit     = "/" + serviceName + "/Commit"
)

// WorkerServer is what a location's delegate implements to serve the
// Worker RPC (spec.md §6). It is the server-side mirror of the three
// calls Client issues.
type WorkerServer interface {
	Preprocess(context.Context, *PreprocessRequest) (*PreprocessReply, error)
	Execute(*ExecuteRequest, ExecuteStream) error
	Commit(context.Context, *CommitRequest) (*CommitReply, error)
}

// ExecuteStream is the narrow send-side of grpc.ServerStream Execute
// needs; implementing it directly (instead of depending on a generated
// xxxServer type) keeps WorkerServer implementable without codegen.
type ExecuteStream interface {
	Send(*TaskStatusEvent) error
	Context() context.Context
}

type executeServerStream struct {
	grpc.ServerStream
}

func (s *executeServerStream) Send(ev *TaskStatusEvent) error { return s.ServerStream.SendMsg(ev) }

func preprocessHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(PreprocessRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerServer).Preprocess(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodPreprocess}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(WorkerServer).Preprocess(ctx, req.(*PreprocessRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func commitHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(CommitRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerServer).Commit(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodCommit}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(WorkerServer).Commit(ctx, req.(*CommitRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func executeHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(ExecuteRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(WorkerServer).Execute(req, &executeServerStream{ServerStream: stream})
}

// ServiceDesc is registered on a *grpc.Server to serve WorkerServer.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*WorkerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Preprocess", Handler: preprocessHandler},
		{MethodName: "Commit", Handler: commitHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Execute", Handler: executeHandler, ServerStreams: true},
	},
	Metadata: "brane/worker.proto",
}

var executeStreamDesc = &grpc.StreamDesc{
	StreamName:    "Execute",
	ServerStreams: true,
}
