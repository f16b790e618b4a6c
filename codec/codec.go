// Package codec turns typed message payloads into bytes and back.
//
// A Serializer never frames anything; the wire package adds framing around
// whatever bytes a Serializer produces. Decoders always know the concrete
// reflect.Type to build because the message registry resolves it from the
// numeric message id.
package codec

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrUnsupportedType is returned when a serializer is handed a value or a
	// target type it cannot handle.
	ErrUnsupportedType = errors.New("unsupported payload type")

	// ErrUnknownCompression is returned for a compression name with no compressor.
	ErrUnknownCompression = errors.New("unknown compression")
)

// Serializer converts payloads to bytes and back.
//
// Deserialize returns a value of exactly typ. When typ is a pointer type a new
// element is allocated and the pointer is returned.
type Serializer interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, typ reflect.Type) (any, error)
}

// allocate returns a pointer suitable for unmarshalling into, plus a function
// that converts that pointer back into a value of typ.
func allocate(typ reflect.Type) (any, func() any, error) {
	if typ == nil {
		return nil, nil, fmt.Errorf("%w: nil type", ErrUnsupportedType)
	}

	if typ.Kind() == reflect.Pointer {
		ptr := reflect.New(typ.Elem())

		return ptr.Interface(), ptr.Interface, nil
	}

	ptr := reflect.New(typ)

	return ptr.Interface(), func() any { return ptr.Elem().Interface() }, nil
}
