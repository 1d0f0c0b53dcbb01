// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype this package's messages are
// sent under ("application/grpc+brane-json"). grpc-go picks a codec by
// looking this name up in the encoding package's registry, the same
// mechanism the ecosystem's non-protobuf gRPC services (e.g. grpc+json
// examples in grpc-go itself) use instead of a .proto-generated codec.
const codecName = "brane-json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
