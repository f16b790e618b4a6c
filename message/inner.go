package message

import (
	"maps"
	"reflect"
	"slices"
	"sync"

	"facette.io/natsort"
	"github.com/amp-labs/amp-gamecore/codec"
)

// UniqueIDKey is the bag key under which an Inner envelope records the unique
// id of the message it was built from.
const UniqueIDKey = "UniqueId"

// Inner is the envelope exchanged between servers. Besides the header it has a
// key/value bag for side data that only lives for one hop.
type Inner struct {
	header

	bagMu sync.Mutex
	bag   map[string]any
}

// NewInner serializes msg into a new Inner envelope. The envelope copies the
// message's unique id and message id, stamps op, and records the unique id in
// the bag under UniqueIDKey.
func NewInner(msg Message, op OperationType, ser codec.Serializer) (*Inner, error) {
	in := &Inner{}

	if err := in.fromMessage(msg, op, ser); err != nil {
		return nil, err
	}

	in.SetData(UniqueIDKey, in.uniqueID)

	return in, nil
}

// InnerFromOuter re-wraps a client envelope for forwarding to another server.
// The message id and payload bytes are kept. The outer unique id is recorded in
// the bag under UniqueIDKey; the inner header's own unique id starts at zero.
func InnerFromOuter(outer *Outer, op OperationType) *Inner {
	in := &Inner{
		header: header{
			messageID:  outer.messageID,
			op:         op,
			payload:    outer.payload,
			serializer: outer.serializer,
			resolve: func(ID) (reflect.Type, error) {
				return outer.PayloadType()
			},
		},
	}

	in.SetData(UniqueIDKey, outer.uniqueID)

	return in
}

// InnerFromWire builds an Inner envelope around an already-serialized payload.
// The payload is deserialized lazily, as with OuterFromWire.
func InnerFromWire(uniqueID int64, id ID, payload []byte, resolve TypeResolver, ser codec.Serializer) *Inner {
	return &Inner{
		header: header{
			messageID:  id,
			uniqueID:   uniqueID,
			payload:    payload,
			serializer: ser,
			resolve:    resolve,
		},
	}
}

// PayloadLength returns the size of the serialized payload in bytes.
func (in *Inner) PayloadLength() int {
	return len(in.payload)
}

// SetData stores value under key, replacing any previous value.
func (in *Inner) SetData(key string, value any) {
	in.bagMu.Lock()
	defer in.bagMu.Unlock()

	if in.bag == nil {
		in.bag = make(map[string]any)
	}

	in.bag[key] = value
}

// GetData returns the value stored under key.
func (in *Inner) GetData(key string) (any, bool) {
	in.bagMu.Lock()
	defer in.bagMu.Unlock()

	value, ok := in.bag[key]

	return value, ok
}

// RemoveData deletes key and reports whether it was present.
func (in *Inner) RemoveData(key string) bool {
	in.bagMu.Lock()
	defer in.bagMu.Unlock()

	_, ok := in.bag[key]
	delete(in.bag, key)

	return ok
}

// ClearData empties the bag.
func (in *Inner) ClearData() {
	in.bagMu.Lock()
	defer in.bagMu.Unlock()

	clear(in.bag)
}

// DataKeys returns the bag keys in natural order.
func (in *Inner) DataKeys() []string {
	in.bagMu.Lock()
	keys := slices.Collect(maps.Keys(in.bag))
	in.bagMu.Unlock()

	natsort.Sort(keys)

	return keys
}

// TaggedUniqueID returns the unique id recorded under UniqueIDKey.
func (in *Inner) TaggedUniqueID() (int64, bool) {
	value, ok := in.GetData(UniqueIDKey)
	if !ok {
		return 0, false
	}

	id, ok := value.(int64)

	return id, ok
}
