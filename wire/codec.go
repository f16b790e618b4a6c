package wire

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/amp-labs/amp-gamecore/codec"
	"github.com/amp-labs/amp-gamecore/config"
	"github.com/amp-labs/amp-gamecore/message"
)

type options struct {
	maxFrameSize int
	clientTypes  func(*message.Registry) message.TypeResolver
	rpcTypes     func(*message.Registry) message.TypeResolver
}

// Option configures an Encoder or a Decoder.
type Option func(*options)

// MaxFrameSize bounds encoded and decoded frames. Values <= 0 mean
// DefaultMaxFrameSize.
func MaxFrameSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.maxFrameSize = size
		}
	}
}

// ClientRequests makes DecodeClient resolve payload types through the request
// table. Use it on servers, which receive requests on client channels; the
// default resolves through the response table, mirroring EncodeClient.
func ClientRequests() Option {
	return func(o *options) {
		o.clientTypes = func(reg *message.Registry) message.TypeResolver { return reg.RequestTypeFor }
	}
}

// RPCResponses makes DecodeRPC resolve payload types through the response
// table. The default resolves through the request table, mirroring EncodeRPC.
func RPCResponses() Option {
	return func(o *options) {
		o.rpcTypes = func(reg *message.Registry) message.TypeResolver { return reg.ResponseTypeFor }
	}
}

func newOptions(opts []Option) options {
	o := options{
		maxFrameSize: DefaultMaxFrameSize,
		clientTypes:  func(reg *message.Registry) message.TypeResolver { return reg.ResponseTypeFor },
		rpcTypes:     func(reg *message.Registry) message.TypeResolver { return reg.RequestTypeFor },
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// FromConfig returns the options matching cfg, and the payload serializer
// wrapped with the configured compression.
func FromConfig(cfg config.WireConfig, base codec.Serializer) (codec.Serializer, []Option, error) { //nolint:ireturn
	ser, err := codec.WithCompression(base, cfg.Compression)
	if err != nil {
		return nil, nil, err
	}

	return ser, []Option{MaxFrameSize(cfg.MaxFrameSize)}, nil
}

// Encoder turns messages and envelopes into frames.
type Encoder struct {
	registry   *message.Registry
	serializer codec.Serializer
	opts       options
}

// NewEncoder creates an encoder that looks message ids up in reg and
// serializes payloads with ser.
func NewEncoder(reg *message.Registry, ser codec.Serializer, opts ...Option) *Encoder {
	return &Encoder{registry: reg, serializer: ser, opts: newOptions(opts)}
}

// EncodeClient frames msg for a client channel. The message id comes from the
// response table and is also stored on msg.
func (e *Encoder) EncodeClient(msg message.Message) ([]byte, error) {
	id, err := e.registry.ResponseIDFor(reflect.TypeOf(msg))
	if err != nil {
		return nil, err
	}

	msg.SetMessageID(id)

	payload, err := e.serializer.Serialize(msg)
	if err != nil {
		return nil, fmt.Errorf("encode client frame: %w", err)
	}

	return e.client(msg.UniqueID(), id, payload)
}

// EncodeRPC frames body for an RPC channel under uniqueID. The message id comes
// from the request table; if body is a message.Message the id is also stored
// on it.
func (e *Encoder) EncodeRPC(uniqueID int64, body any) ([]byte, error) {
	id, err := e.registry.RequestIDFor(reflect.TypeOf(body))
	if err != nil {
		return nil, err
	}

	if msg, ok := body.(message.Message); ok {
		msg.SetMessageID(id)
	}

	payload, err := e.serializer.Serialize(body)
	if err != nil {
		return nil, fmt.Errorf("encode rpc frame: %w", err)
	}

	return e.rpc(uniqueID, id, payload)
}

// EncodeOuter frames an Outer envelope for a client channel as it is, without
// re-serializing its payload.
func (e *Encoder) EncodeOuter(out *message.Outer) ([]byte, error) {
	return e.client(out.UniqueID(), out.MessageID(), out.Payload())
}

// EncodeInner frames an Inner envelope for an RPC channel as it is, without
// re-serializing its payload. The bag is not transmitted.
func (e *Encoder) EncodeInner(in *message.Inner) ([]byte, error) {
	return e.rpc(in.UniqueID(), in.MessageID(), in.Payload())
}

func (e *Encoder) client(uniqueID int64, id message.ID, payload []byte) ([]byte, error) {
	total := ClientHeaderSize + len(payload)
	if total > e.opts.maxFrameSize {
		return nil, frameError(ChannelClient, ReasonPayloadTooLong,
			fmt.Sprintf("%d > %d", total, e.opts.maxFrameSize), nil)
	}

	buf := make([]byte, 0, total)
	buf = order.AppendUint32(buf, uint32(total))
	buf = order.AppendUint64(buf, uint64(uniqueID))
	buf = order.AppendUint32(buf, uint32(id))
	buf = append(buf, payload...)

	framesEncoded.WithLabelValues(string(ChannelClient)).Inc()
	frameBytes.WithLabelValues(string(ChannelClient), "out").Observe(float64(total))

	return buf, nil
}

func (e *Encoder) rpc(uniqueID int64, id message.ID, payload []byte) ([]byte, error) {
	total := RPCHeaderSize + len(payload)
	if total > e.opts.maxFrameSize {
		return nil, frameError(ChannelRPC, ReasonPayloadTooLong,
			fmt.Sprintf("%d > %d", total, e.opts.maxFrameSize), nil)
	}

	buf := make([]byte, 0, total)
	buf = order.AppendUint32(buf, uint32(total))
	buf = order.AppendUint64(buf, uint64(uniqueID))
	buf = order.AppendUint32(buf, uint32(id))
	buf = order.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)

	framesEncoded.WithLabelValues(string(ChannelRPC)).Inc()
	frameBytes.WithLabelValues(string(ChannelRPC), "out").Observe(float64(total))

	return buf, nil
}

// Decoder turns frames back into envelopes.
type Decoder struct {
	registry   *message.Registry
	serializer codec.Serializer
	opts       options
}

// NewDecoder creates a decoder whose envelopes resolve payload types through
// reg and deserialize them with ser.
func NewDecoder(reg *message.Registry, ser codec.Serializer, opts ...Option) *Decoder {
	return &Decoder{registry: reg, serializer: ser, opts: newOptions(opts)}
}

// DecodeClient parses one client frame. buf must hold exactly one frame; the
// payload is copied so buf may be reused.
func (d *Decoder) DecodeClient(buf []byte) (*message.Outer, error) {
	if err := d.checkTotal(ChannelClient, buf, ClientHeaderSize); err != nil {
		return nil, err
	}

	uniqueID := int64(order.Uint64(buf[lengthSize:]))
	id := message.ID(order.Uint32(buf[lengthSize+uniqueIDSize:]))
	payload := bytes.Clone(buf[ClientHeaderSize:])

	framesDecoded.WithLabelValues(string(ChannelClient)).Inc()
	frameBytes.WithLabelValues(string(ChannelClient), "in").Observe(float64(len(buf)))

	return message.OuterFromWire(uniqueID, id, payload, d.opts.clientTypes(d.registry), d.serializer), nil
}

// DecodeRPC parses one RPC frame. buf must hold exactly one frame; the payload
// is copied so buf may be reused.
func (d *Decoder) DecodeRPC(buf []byte) (*message.Inner, error) {
	if err := d.checkTotal(ChannelRPC, buf, RPCHeaderSize); err != nil {
		return nil, err
	}

	uniqueID := int64(order.Uint64(buf[lengthSize:]))
	id := message.ID(order.Uint32(buf[lengthSize+uniqueIDSize:]))
	payloadLen := int(order.Uint32(buf[ClientHeaderSize:]))

	if payloadLen != len(buf)-RPCHeaderSize {
		return nil, frameError(ChannelRPC, ReasonPayloadLength,
			fmt.Sprintf("declared %d, have %d", payloadLen, len(buf)-RPCHeaderSize), nil)
	}

	payload := bytes.Clone(buf[RPCHeaderSize:])

	framesDecoded.WithLabelValues(string(ChannelRPC)).Inc()
	frameBytes.WithLabelValues(string(ChannelRPC), "in").Observe(float64(len(buf)))

	return message.InnerFromWire(uniqueID, id, payload, d.opts.rpcTypes(d.registry), d.serializer), nil
}

func (d *Decoder) checkTotal(channel Channel, buf []byte, header int) error {
	if len(buf) < header {
		return frameError(channel, ReasonShort, fmt.Sprintf("%d < %d", len(buf), header), nil)
	}

	if len(buf) > d.opts.maxFrameSize {
		return frameError(channel, ReasonOversize, fmt.Sprintf("%d > %d", len(buf), d.opts.maxFrameSize), nil)
	}

	total := int(order.Uint32(buf))
	if total != len(buf) {
		return frameError(channel, ReasonLength, fmt.Sprintf("declared %d, have %d", total, len(buf)), nil)
	}

	return nil
}
