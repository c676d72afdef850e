package grpc_handler

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Messages of kvs.v1.KvService, encoded in protobuf wire format:
//
//	message GetRequest     { string key = 1; }
//	message GetResponse    { bool found = 1; string value = 2; ErrorCode code = 3; string message = 4; }
//	message SetRequest     { string key = 1; string value = 2; }
//	message SetResponse    { ErrorCode code = 1; string message = 2; }
//	message RemoveRequest  { string key = 1; }
//	message RemoveResponse { ErrorCode code = 1; string message = 2; }

// ErrorCode classifies a failed request. CodeNone means success.
type ErrorCode int32

const (
	CodeNone ErrorCode = iota
	CodeNotFound
	CodeIO
	CodeCorruption
	CodeUnavailable
	CodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeNotFound:
		return "not_found"
	case CodeIO:
		return "io"
	case CodeCorruption:
		return "corruption"
	case CodeUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

type GetRequest struct {
	Key string
}

type GetResponse struct {
	Found   bool
	Value   string
	Code    ErrorCode
	Message string
}

type SetRequest struct {
	Key   string
	Value string
}

type SetResponse struct {
	Code    ErrorCode
	Message string
}

type RemoveRequest struct {
	Key string
}

type RemoveResponse struct {
	Code    ErrorCode
	Message string
}

func (m *GetRequest) appendWire(b []byte) []byte {
	return appendString(b, 1, m.Key)
}

func (m *GetRequest) unmarshalWire(b []byte) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 && typ == protowire.BytesType {
			return consumeString(b, &m.Key)
		}
		return protowire.ConsumeFieldValue(num, typ, b)
	})
}

func (m *GetResponse) appendWire(b []byte) []byte {
	b = appendBool(b, 1, m.Found)
	b = appendString(b, 2, m.Value)
	b = appendCode(b, 3, m.Code)
	return appendString(b, 4, m.Message)
}

func (m *GetResponse) unmarshalWire(b []byte) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == 1 && typ == protowire.VarintType:
			return consumeBool(b, &m.Found)
		case num == 2 && typ == protowire.BytesType:
			return consumeString(b, &m.Value)
		case num == 3 && typ == protowire.VarintType:
			return consumeCode(b, &m.Code)
		case num == 4 && typ == protowire.BytesType:
			return consumeString(b, &m.Message)
		}
		return protowire.ConsumeFieldValue(num, typ, b)
	})
}

func (m *SetRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Key)
	return appendString(b, 2, m.Value)
}

func (m *SetRequest) unmarshalWire(b []byte) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(b, &m.Key)
		case num == 2 && typ == protowire.BytesType:
			return consumeString(b, &m.Value)
		}
		return protowire.ConsumeFieldValue(num, typ, b)
	})
}

func (m *SetResponse) appendWire(b []byte) []byte {
	b = appendCode(b, 1, m.Code)
	return appendString(b, 2, m.Message)
}

func (m *SetResponse) unmarshalWire(b []byte) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == 1 && typ == protowire.VarintType:
			return consumeCode(b, &m.Code)
		case num == 2 && typ == protowire.BytesType:
			return consumeString(b, &m.Message)
		}
		return protowire.ConsumeFieldValue(num, typ, b)
	})
}

func (m *RemoveRequest) appendWire(b []byte) []byte {
	return appendString(b, 1, m.Key)
}

func (m *RemoveRequest) unmarshalWire(b []byte) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 && typ == protowire.BytesType {
			return consumeString(b, &m.Key)
		}
		return protowire.ConsumeFieldValue(num, typ, b)
	})
}

func (m *RemoveResponse) appendWire(b []byte) []byte {
	b = appendCode(b, 1, m.Code)
	return appendString(b, 2, m.Message)
}

func (m *RemoveResponse) unmarshalWire(b []byte) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == 1 && typ == protowire.VarintType:
			return consumeCode(b, &m.Code)
		case num == 2 && typ == protowire.BytesType:
			return consumeString(b, &m.Message)
		}
		return protowire.ConsumeFieldValue(num, typ, b)
	})
}

// Zero values are omitted, as proto3 does for scalar fields.

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendCode(b []byte, num protowire.Number, v ErrorCode) []byte {
	if v == CodeNone {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v)) // #nosec G115
}

// consumeMessage walks every field in b. field consumes one value and returns
// the bytes used, or a negative protowire error code.
func consumeMessage(b []byte, field func(num protowire.Number, typ protowire.Type, b []byte) int) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n = field(num, typ, b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

func consumeString(b []byte, dst *string) int {
	v, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = v
	}
	return n
}

func consumeBool(b []byte, dst *bool) int {
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = protowire.DecodeBool(v)
	}
	return n
}

func consumeCode(b []byte, dst *ErrorCode) int {
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = ErrorCode(int32(v)) // #nosec G115
	}
	return n
}
