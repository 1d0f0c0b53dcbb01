// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package rpc

import "github.com/brane-org/brane/internal/ir"

// Status is one TaskStatus event kind the Execute stream can emit
// (spec.md §6 Worker RPC). The set and ordering mirror the table there
// exactly; this package treats it as an opaque string rather than a
// generated enum so the JSON codec needs no registry of its own.
type Status string

const (
	StatusUnknown              Status = "Unknown"
	StatusReceived             Status = "Received"
	StatusAuthorized           Status = "Authorized"
	StatusDenied               Status = "Denied"
	StatusAuthorizationFailed  Status = "AuthorizationFailed"
	StatusCreated              Status = "Created"
	StatusCreationFailed       Status = "CreationFailed"
	StatusReady                Status = "Ready"
	StatusInitialized          Status = "Initialized"
	StatusInitializationFailed Status = "InitializationFailed"
	StatusStarted              Status = "Started"
	StatusStartingFailed       Status = "StartingFailed"
	StatusHeartbeat            Status = "Heartbeat"
	StatusCompleted            Status = "Completed"
	StatusCompletionFailed     Status = "CompletionFailed"
	StatusFinished             Status = "Finished"
	StatusStopped              Status = "Stopped"
	StatusDecodingFailed       Status = "DecodingFailed"
	StatusFailed               Status = "Failed"
)

// terminal reports whether status ends the Execute stream (spec.md §6:
// "the stream terminates at the first terminal status"). Received,
// Authorized, Created, Ready, Initialized, Started and Heartbeat are
// progress markers only; Completed likewise just announces that the
// task process exited before its result has been decoded, so it is not
// terminal either — Finished or DecodingFailed always follows it.
func (s Status) terminal() bool {
	switch s {
	case StatusDenied, StatusAuthorizationFailed, StatusCreationFailed,
		StatusInitializationFailed, StatusStartingFailed, StatusCompletionFailed,
		StatusFinished, StatusStopped, StatusDecodingFailed, StatusFailed:
		return true
	default:
		return false
	}
}

// wireDataName is the JSON shape of an ir.DataName: Data or
// IntermediateResult tagged by Kind, per spec.md GLOSSARY.
type wireDataName struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

func toWireDataName(n ir.DataName) wireDataName {
	if n.Kind == ir.DataNameIntermediateResult {
		return wireDataName{Kind: "intermediate_result", Name: n.Name}
	}
	return wireDataName{Kind: "data", Name: n.Name}
}

func (w wireDataName) dataName() ir.DataName {
	if w.Kind == "intermediate_result" {
		return ir.IntermediateResult(w.Name)
	}
	return ir.Data(w.Name)
}

// PreprocessRequest carries a TransferRegistryTar preprocessing
// instruction: fetch data_name from source location/address so it
// becomes locally readable (spec.md §6).
type PreprocessRequest struct {
	CorrelationID  string       `json:"correlation_id"`
	DataName       wireDataName `json:"data_name"`
	SourceLocation string       `json:"location"`
	Address        string       `json:"address"`
}

type PreprocessReply struct {
	OK     bool   `json:"ok"`
	Path   string `json:"access"`
	Error  string `json:"error,omitempty"`
}

// ExecuteRequest carries everything the delegate at a location needs
// to run one task (spec.md §6 Worker RPC "Execute").
type ExecuteRequest struct {
	CorrelationID string                  `json:"correlation_id"`
	APIEndpoint   string                  `json:"api_endpoint"`
	TaskIndex     int                     `json:"task_index"`
	Name          string                  `json:"name"`
	Package       string                  `json:"package"`
	Version       string                  `json:"version"`
	Kind          string                  `json:"kind"` // "compute" | "transfer"
	Args          []wireValue             `json:"args"`
	Input         map[string]wireAccess   `json:"input"`
	ResultName    string                  `json:"result_name,omitempty"`
	Requirements  []string                `json:"requirements,omitempty"`
}

// wireAccess is one Input map entry. The map is keyed by the plain
// data name, since JSON object keys must be strings and DataName is a
// struct; the entry carries the full DataName alongside the path.
type wireAccess struct {
	DataName wireDataName `json:"data_name"`
	Path     string       `json:"path"`
}

// TaskStatusEvent is one item of the Execute response stream.
type TaskStatusEvent struct {
	Status  Status     `json:"status"`
	Value   *wireValue `json:"value,omitempty"`
	Message string     `json:"message,omitempty"`

	// Set only for a Failed event (spec.md §6: "JSON of {exit_code,
	// stdout, stderr}").
	ExitCode int    `json:"exit_code,omitempty"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

type CommitRequest struct {
	CorrelationID string `json:"correlation_id"`
	ResultName    string `json:"result_name"`
	DataName      string `json:"data_name"`
}

type CommitReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
