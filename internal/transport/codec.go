// Package transport carries the middleware's wire protocols over gRPC: the
// peer mapping entry point, the data plane, remote commands and the RDC
// protocol. Messages are plain Go structs encoded with a registered JSON codec.
package transport

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// Codec is the content-subtype every middleware call is encoded with.
const Codec = "json"

type jsonCodec struct{}

func (jsonCodec) Name() string { return Codec }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// CallOption selects the JSON codec for a single call.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(Codec)
}
