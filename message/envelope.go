package message

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/amp-labs/amp-gamecore/codec"
	coreErrors "github.com/amp-labs/amp-gamecore/errors"
)

// TypeResolver maps a message id to the payload type it carries. Decoders hand
// one of Registry.RequestTypeFor or Registry.ResponseTypeFor to envelopes.
type TypeResolver func(id ID) (reflect.Type, error)

// header is shared by Inner and Outer. The payload is deserialized at most
// once, on the first call to Message.
type header struct {
	messageID ID
	uniqueID  int64
	op        OperationType
	payload   []byte

	serializer codec.Serializer
	resolve    TypeResolver

	typeOnce    sync.Once
	payloadType reflect.Type
	typeErr     error

	msgOnce sync.Once
	msg     any
	msgErr  error
}

func (h *header) fromMessage(msg Message, op OperationType, ser codec.Serializer) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message", coreErrors.ErrMessageTypeNotRegistered)
	}

	payload, err := ser.Serialize(msg)
	if err != nil {
		return err
	}

	msg.SetOperationType(op)

	h.messageID = msg.MessageID()
	h.uniqueID = msg.UniqueID()
	h.op = op
	h.payload = payload
	h.serializer = ser

	typ := reflect.TypeOf(msg)
	h.typeOnce.Do(func() { h.payloadType = typ })
	h.msgOnce.Do(func() { h.msg = msg })

	return nil
}

// MessageID returns the numeric schema id.
func (h *header) MessageID() ID { return h.messageID }

// SetMessageID replaces the numeric schema id.
func (h *header) SetMessageID(id ID) { h.messageID = id }

// UniqueID returns the correlation id.
func (h *header) UniqueID() int64 { return h.uniqueID }

// SetUniqueID replaces the correlation id.
func (h *header) SetUniqueID(id int64) { h.uniqueID = id }

// UpdateUniqueID replaces the correlation id with a fresh generator value.
func (h *header) UpdateUniqueID() { h.uniqueID = NextUniqueID() }

// OperationType returns the business classification of the envelope.
func (h *header) OperationType() OperationType { return h.op }

// SetOperationType replaces the business classification of the envelope.
func (h *header) SetOperationType(op OperationType) { h.op = op }

// Payload returns the serialized payload. Callers must not modify it.
func (h *header) Payload() []byte { return h.payload }

// PayloadType returns the concrete payload type, resolving it from the message
// id on first use.
func (h *header) PayloadType() (reflect.Type, error) {
	h.typeOnce.Do(func() {
		if h.resolve == nil {
			h.typeErr = fmt.Errorf("%w: no resolver for id %s",
				coreErrors.ErrMessageTypeNotRegistered, h.messageID)

			return
		}

		h.payloadType, h.typeErr = h.resolve(h.messageID)
	})

	return h.payloadType, h.typeErr
}

// Message returns the deserialized payload. The first call deserializes and
// caches the result, including a failure. If the payload implements Message
// its header fields are copied from the envelope.
func (h *header) Message() (any, error) {
	h.msgOnce.Do(func() {
		typ, err := h.PayloadType()
		if err != nil {
			h.msgErr = err

			return
		}

		if h.serializer == nil {
			h.msgErr = fmt.Errorf("%w: no serializer for %s", codec.ErrUnsupportedType, TypeName(typ))

			return
		}

		value, err := h.serializer.Deserialize(h.payload, typ)
		if err != nil {
			h.msgErr = err

			return
		}

		if msg, ok := value.(Message); ok {
			msg.SetUniqueID(h.uniqueID)
			msg.SetMessageID(h.messageID)
			msg.SetOperationType(h.op)
		}

		h.msg = value
	})

	return h.msg, h.msgErr
}

func (h *header) typeName() string {
	typ, err := h.PayloadType()
	if err != nil {
		return "<unresolved>"
	}

	return TypeName(typ)
}

// Envelope is what Inner and Outer have in common.
type Envelope interface {
	MessageID() ID
	UniqueID() int64
	OperationType() OperationType
	Payload() []byte
	PayloadType() (reflect.Type, error)
	Message() (any, error)
}

var (
	_ Envelope = (*Inner)(nil)
	_ Envelope = (*Outer)(nil)
)

// Payload returns the deserialized payload of env as a T.
func Payload[T any](env Envelope) (T, error) { //nolint:ireturn
	var zero T

	value, err := env.Message()
	if err != nil {
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: payload is %T, not %s",
			codec.ErrUnsupportedType, value, reflect.TypeFor[T]())
	}

	return typed, nil
}
