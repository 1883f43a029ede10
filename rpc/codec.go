package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codec carries the service's plain Go messages as JSON over gRPC.
type codec struct{}

var _ encoding.Codec = codec{}

func (codec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (codec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (codec) Name() string {
	return "json"
}
