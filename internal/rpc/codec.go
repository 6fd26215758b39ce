// Package rpc exposes the reservation core over gRPC.  Messages are plain
// Go structs encoded field by field in the protobuf wire format, so peers
// built from auth.proto, user.proto and reservation.proto interoperate
// over the default application/grpc content type.
package rpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
)

// CodecName is the content subtype of the wire codec.  It replaces the
// default codec so no call option is needed.
const CodecName = "proto"

// Message is a message that encodes itself in the protobuf wire format.
type Message interface {
	MarshalWire() []byte
	UnmarshalWire(b []byte) error
}

// wireCodec encodes Message values with protowire and hands generated
// protobuf messages, such as the trace exporter's, to proto.
type wireCodec struct{}

func (wireCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case Message:
		return m.MarshalWire(), nil
	case proto.Message:
		return proto.Marshal(m)
	}
	return nil, fmt.Errorf("rpc: cannot marshal %T", v)
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case Message:
		return m.UnmarshalWire(data)
	case proto.Message:
		return proto.Unmarshal(data, m)
	}
	return fmt.Errorf("rpc: cannot unmarshal into %T", v)
}

func (wireCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(wireCodec{})
}

// FieldFunc decodes one field.  It returns the number of bytes of b it
// consumed, 0 to skip the field or a negative protowire error code.
type FieldFunc func(num protowire.Number, typ protowire.Type, b []byte) int

// DecodeFields walks the fields of an encoded message.  Unknown fields
// and fields of an unexpected wire type are skipped.
func DecodeFields(b []byte, fn FieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		m := fn(num, typ, b)
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

// ConsumeString reads a string field into dst.
func ConsumeString(typ protowire.Type, b []byte, dst *string) int {
	if typ != protowire.BytesType {
		return 0
	}
	v, n := protowire.ConsumeString(b)
	if n > 0 {
		*dst = v
	}
	return n
}

// ConsumeUint64 reads a uint64 field into dst.
func ConsumeUint64(typ protowire.Type, b []byte, dst *uint64) int {
	if typ != protowire.VarintType {
		return 0
	}
	v, n := protowire.ConsumeVarint(b)
	if n > 0 {
		*dst = v
	}
	return n
}

// ConsumeInt32 reads an int32 field into dst.  Negative values arrive
// sign-extended to ten bytes and truncate back.
func ConsumeInt32(typ protowire.Type, b []byte, dst *int32) int {
	var v uint64
	n := ConsumeUint64(typ, b, &v)
	if n > 0 {
		*dst = int32(v)
	}
	return n
}

// ConsumeBool reads a bool field into dst.
func ConsumeBool(typ protowire.Type, b []byte, dst *bool) int {
	var v uint64
	n := ConsumeUint64(typ, b, &v)
	if n > 0 {
		*dst = protowire.DecodeBool(v)
	}
	return n
}

// AppendString appends a string field, omitting the proto3 default.
func AppendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// AppendUint64 appends a uint64 field, omitting zero.
func AppendUint64(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendInt32 appends an int32 field, omitting zero.
func AppendInt32(b []byte, num protowire.Number, v int32) []byte {
	return AppendUint64(b, num, uint64(int64(v)))
}

// AppendBool appends a bool field, omitting false.
func AppendBool(b []byte, num protowire.Number, v bool) []byte {
	return AppendUint64(b, num, protowire.EncodeBool(v))
}
