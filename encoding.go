package rowdb

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/proto"
)

// Codec converts records to and from the bytes stored in a substrate.
// Both methods receive a pointer to the record.
type Codec interface {
	Name() string
	// Encode appends the encoding of v to buf.
	Encode(buf []byte, v any) ([]byte, error)
	// Decode fills v from data. Decoding failure is a hard error.
	Decode(data []byte, v any) error
}

var (
	// MsgPack is the default codec. Struct fields can be renamed with
	// `msgpack:"..."` tags to keep stored rows compact.
	MsgPack Codec = msgpackCodec{}

	// JSON stores records as encoding/json documents.
	JSON Codec = jsonCodec{}

	// Proto stores records that implement proto.Message (i.e. tables of
	// generated protobuf structs).
	Proto Codec = protoCodec{}

	defaultCodec = MsgPack
)

// CodecNamed looks up one of the built-in codecs by name.
func CodecNamed(name string) (Codec, error) {
	for _, c := range []Codec{MsgPack, JSON, Proto} {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) Encode(buf []byte, v any) ([]byte, error) {
	bb := bytesBuilder{buf}
	enc := msgpack.GetEncoder()
	enc.Reset(&bb)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return buf, fmt.Errorf("failed to encode %T using MsgPack: %w", v, err)
	}
	return bb.Buf, nil
}

func (msgpackCodec) Decode(data []byte, v any) error {
	var r bytes.Reader
	r.Reset(data)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	err := dec.Decode(v)
	msgpack.PutDecoder(dec)
	if err != nil {
		return fmt.Errorf("failed to decode msgpack into %T: %w", v, err)
	}
	return nil
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Encode(buf []byte, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return buf, fmt.Errorf("failed to encode %T to JSON: %w", v, err)
	}
	return appendRaw(buf, raw), nil
}

func (jsonCodec) Decode(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err != nil {
		return fmt.Errorf("failed to decode JSON into %T: %w", v, err)
	}
	return nil
}

type protoCodec struct{}

func (protoCodec) Name() string { return "proto" }

func (protoCodec) Encode(buf []byte, v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return buf, fmt.Errorf("%T does not implement proto.Message", v)
	}
	out, err := proto.MarshalOptions{Deterministic: true}.MarshalAppend(buf, msg)
	if err != nil {
		return buf, fmt.Errorf("failed to encode %T using protobuf: %w", v, err)
	}
	return out, nil
}

func (protoCodec) Decode(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("%T does not implement proto.Message", v)
	}
	err := proto.Unmarshal(data, msg)
	if err != nil {
		return fmt.Errorf("failed to decode protobuf into %T: %w", v, err)
	}
	return nil
}
