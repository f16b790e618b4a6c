package codec

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
)

// Proto serializes payloads that implement proto.Message. Target types passed
// to Deserialize must be pointers to generated message structs.
type Proto struct {
	// DiscardUnknown drops unknown fields while decoding.
	DiscardUnknown bool
}

var _ Serializer = Proto{}

var protoMessageType = reflect.TypeFor[proto.Message]()

// Serialize implements Serializer.
func (p Proto) Serialize(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a proto.Message", ErrUnsupportedType, v)
	}

	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("proto serialize %T: %w", v, err)
	}

	return data, nil
}

// Deserialize implements Serializer.
func (p Proto) Deserialize(data []byte, typ reflect.Type) (any, error) {
	if typ == nil || typ.Kind() != reflect.Pointer || !typ.Implements(protoMessageType) {
		return nil, fmt.Errorf("%w: %v is not a proto.Message pointer", ErrUnsupportedType, typ)
	}

	msg, _ := reflect.New(typ.Elem()).Interface().(proto.Message)

	opts := proto.UnmarshalOptions{DiscardUnknown: p.DiscardUnknown}
	if err := opts.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("proto deserialize %s: %w", typ, err)
	}

	return msg, nil
}
