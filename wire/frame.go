// Package wire frames envelopes for the two channel kinds.
//
// Client frames (client <-> server):
//
//	totalLength:4 | uniqueId:8 | messageId:4 | payload
//
// RPC frames (server <-> server):
//
//	totalLength:4 | uniqueId:8 | messageId:4 | payloadLength:4 | payload
//
// All integers are big-endian and totalLength includes its own four bytes.
// Payloads are never deserialized while decoding; the returned envelopes do
// that on first access.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	coreErrors "github.com/amp-labs/amp-gamecore/errors"
)

// Channel identifies a frame layout.
type Channel string

const (
	ChannelClient Channel = "client"
	ChannelRPC    Channel = "rpc"
)

const (
	lengthSize   = 4
	uniqueIDSize = 8
	msgIDSize    = 4

	// ClientHeaderSize is the fixed part of a client frame.
	ClientHeaderSize = lengthSize + uniqueIDSize + msgIDSize

	// RPCHeaderSize is the fixed part of an RPC frame.
	RPCHeaderSize = ClientHeaderSize + lengthSize

	// DefaultMaxFrameSize bounds frames when no limit is configured.
	DefaultMaxFrameSize = 1 << 20
)

// Reasons reported by FrameError.
const (
	ReasonShort          = "short buffer"
	ReasonLength         = "length mismatch"
	ReasonPayloadLength  = "payload length mismatch"
	ReasonOversize       = "frame too large"
	ReasonTruncated      = "truncated stream"
	ReasonPayloadTooLong = "payload too large"
)

//nolint:gochecknoglobals
var order = binary.BigEndian

// FrameError reports bytes that do not match the expected frame layout. It
// always matches coreErrors.ErrFraming; the session that produced it should be
// dropped.
type FrameError struct {
	Channel Channel
	Reason  string
	Detail  string
	Err     error
}

func (e *FrameError) Error() string {
	msg := fmt.Sprintf("%s: %s frame: %s", coreErrors.ErrFraming, e.Channel, e.Reason)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *FrameError) Unwrap() []error {
	if e.Err == nil {
		return []error{coreErrors.ErrFraming}
	}

	return []error{coreErrors.ErrFraming, e.Err}
}

func frameError(channel Channel, reason, detail string, cause error) error {
	frameErrors.WithLabelValues(string(channel), reason).Inc()

	return &FrameError{Channel: channel, Reason: reason, Detail: detail, Err: cause}
}

// ReadFrame reads one length-prefixed frame from r and returns it whole,
// length prefix included, ready for DecodeClient or DecodeRPC. A clean end of
// stream before the first byte returns io.EOF. maxSize <= 0 means
// DefaultMaxFrameSize.
func ReadFrame(r io.Reader, channel Channel, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}

	var prefix [lengthSize]byte

	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}

		return nil, frameError(channel, ReasonTruncated, "length prefix", err)
	}

	total := int(order.Uint32(prefix[:]))

	if total < minSize(channel) {
		return nil, frameError(channel, ReasonShort, fmt.Sprintf("declared %d bytes", total), nil)
	}

	if total > maxSize {
		return nil, frameError(channel, ReasonOversize, fmt.Sprintf("%d > %d", total, maxSize), nil)
	}

	frame := make([]byte, total)
	copy(frame, prefix[:])

	if _, err := io.ReadFull(r, frame[lengthSize:]); err != nil {
		return nil, frameError(channel, ReasonTruncated, fmt.Sprintf("want %d bytes", total), err)
	}

	return frame, nil
}

func minSize(channel Channel) int {
	if channel == ChannelRPC {
		return RPCHeaderSize
	}

	return ClientHeaderSize
}
