package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// JSON serializes payloads with encoding/json.
type JSON struct{}

var _ Serializer = JSON{}

// Serialize implements Serializer.
func (JSON) Serialize(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json serialize %T: %w", v, err)
	}

	return data, nil
}

// Deserialize implements Serializer.
func (JSON) Deserialize(data []byte, typ reflect.Type) (any, error) {
	target, value, err := allocate(typ)
	if err != nil {
		return nil, err
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, target); err != nil {
			return nil, fmt.Errorf("json deserialize %s: %w", typ, err)
		}
	}

	return value(), nil
}
