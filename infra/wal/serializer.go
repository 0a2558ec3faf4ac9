// Package wal holds what the journals share: the payload serializers.
// Framing, segments and replay live in the entry subpackage; the fill-event
// outbox lives in exit.
package wal

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Payload is the field map carried by one journal record. Values must be
// JSON-compatible; numbers come back as float64, so exact integers are
// carried as strings.
type Payload map[string]any

// Serializer encodes record payloads.
type Serializer interface {
	Encode(Payload) ([]byte, error)
	Decode([]byte) (Payload, error)
}

// SerializerByName returns "proto" (the default) or "json".
func SerializerByName(name string) (Serializer, error) {
	switch name {
	case "", "proto", "protobuf":
		return ProtoSerializer{}, nil
	case "json":
		return JSONSerializer{}, nil
	default:
		return nil, fmt.Errorf("unknown serializer %q", name)
	}
}

// ---------- JSON ----------

type JSONSerializer struct{}

func (JSONSerializer) Encode(p Payload) ([]byte, error) {
	return json.Marshal(p)
}

func (JSONSerializer) Decode(b []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// ---------- Protobuf ----------

// ProtoSerializer stores payloads as google.protobuf.Struct.
type ProtoSerializer struct{}

func (ProtoSerializer) Encode(p Payload) ([]byte, error) {
	s, err := structpb.NewStruct(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return proto.Marshal(s)
}

func (ProtoSerializer) Decode(b []byte) (Payload, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return s.AsMap(), nil
}
