package grpc_handler

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype of the kvs wire codec.
const codecName = "kvs"

type wireMessage interface {
	appendWire(b []byte) []byte
	unmarshalWire(b []byte) error
}

type wireCodec struct{}

func init() {
	encoding.RegisterCodec(wireCodec{})
}

func (wireCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("kvs codec: cannot marshal %T", v)
	}
	return m.appendWire(nil), nil
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("kvs codec: cannot unmarshal into %T", v)
	}
	if err := m.unmarshalWire(data); err != nil {
		return fmt.Errorf("kvs codec: %w", err)
	}
	return nil
}

func (wireCodec) Name() string {
	return codecName
}
