// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package rpc

import (
	"context"

	"github.com/brane-org/brane/internal/ir"
	"github.com/brane-org/brane/internal/value"
)

// Delegate is what a location's worker process implements to actually
// run tasks; Server adapts it to the WorkerServer wire contract. It is
// the in-process counterpart of vm.Plugin, minus the location argument
// (a Server instance already serves exactly one location) and with
// Execute expressed as a status callback instead of a single return,
// so a real implementation can report every intermediate status the
// wire protocol names instead of only success/failure.
type Delegate interface {
	Preprocess(ctx context.Context, name ir.DataName, sourceLocation, address string) (ir.AccessKind, error)
	Execute(ctx context.Context, req *ExecuteRequest, report func(TaskStatusEvent)) (*value.Value, error)
	Commit(ctx context.Context, resultName, dataName string) error
}

// Server adapts a Delegate to WorkerServer, and so to a *grpc.Server
// via ServiceDesc.
type Server struct {
	Delegate Delegate
}

func (s *Server) Preprocess(ctx context.Context, req *PreprocessRequest) (*PreprocessReply, error) {
	access, err := s.Delegate.Preprocess(ctx, req.DataName.dataName(), req.SourceLocation, req.Address)
	if err != nil {
		return &PreprocessReply{OK: false, Error: err.Error()}, nil
	}
	return &PreprocessReply{OK: true, Path: access.Path}, nil
}

func (s *Server) Execute(req *ExecuteRequest, stream ExecuteStream) error {
	report := func(ev TaskStatusEvent) {
		_ = stream.Send(&ev)
	}
	report(TaskStatusEvent{Status: StatusReceived})

	result, err := s.Delegate.Execute(stream.Context(), req, report)
	if err != nil {
		return stream.Send(&TaskStatusEvent{Status: StatusFailed, Message: err.Error()})
	}
	if result == nil {
		return stream.Send(&TaskStatusEvent{Status: StatusFinished})
	}
	wv := toWireValue(*result)
	return stream.Send(&TaskStatusEvent{Status: StatusFinished, Value: &wv})
}

func (s *Server) Commit(ctx context.Context, req *CommitRequest) (*CommitReply, error) {
	if err := s.Delegate.Commit(ctx, req.ResultName, req.DataName); err != nil {
		return &CommitReply{OK: false, Error: err.Error()}, nil
	}
	return &CommitReply{OK: true}, nil
}

var _ WorkerServer = (*Server)(nil)
