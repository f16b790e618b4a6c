package message

import (
	"github.com/amp-labs/amp-gamecore/codec"
)

// Outer is the envelope exchanged with game clients.
type Outer struct {
	header
}

// NewOuter serializes msg into a new Outer envelope. The envelope takes the
// message's unique id and message id; op is stamped on both.
func NewOuter(msg Message, op OperationType, ser codec.Serializer) (*Outer, error) {
	out := &Outer{}

	if err := out.fromMessage(msg, op, ser); err != nil {
		return nil, err
	}

	return out, nil
}

// OuterFromWire builds an Outer envelope around an already-serialized payload.
// The payload type is resolved through resolve, and the payload deserialized
// with ser, only when Message is first called.
func OuterFromWire(uniqueID int64, id ID, payload []byte, resolve TypeResolver, ser codec.Serializer) *Outer {
	return &Outer{
		header: header{
			messageID:  id,
			uniqueID:   uniqueID,
			payload:    payload,
			serializer: ser,
			resolve:    resolve,
		},
	}
}
