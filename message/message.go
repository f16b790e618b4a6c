// Package message defines the typed message contract, the numeric id registry
// and the Inner/Outer envelopes that carry payloads between hops.
//
// An Outer envelope travels between a client and a server. An Inner envelope
// travels between servers and also carries a small key/value bag that only
// lives for one hop.
package message

// OperationType classifies what a message is for. It is stamped on envelopes
// and used for routing and diagnostics, never written to the wire.
type OperationType uint8

const (
	OperationNone OperationType = iota
	OperationHeartbeat
	OperationRequest
	OperationResponse
	OperationNotify
	OperationCache
	OperationDatabase
	OperationDiscovery
	OperationGame
	OperationGameManager
)

//nolint:gochecknoglobals
var operationNames = [...]string{
	OperationNone:        "none",
	OperationHeartbeat:   "heartbeat",
	OperationRequest:     "request",
	OperationResponse:    "response",
	OperationNotify:      "notify",
	OperationCache:       "cache",
	OperationDatabase:    "database",
	OperationDiscovery:   "discovery",
	OperationGame:        "game",
	OperationGameManager: "game_manager",
}

func (o OperationType) String() string {
	if int(o) < len(operationNames) {
		return operationNames[o]
	}

	return "unknown"
}

// Message is implemented by every typed in-process message. Embed Base to get
// an implementation.
type Message interface {
	UniqueID() int64
	SetUniqueID(id int64)
	// UpdateUniqueID replaces the unique id with a fresh generator value.
	UpdateUniqueID()
	MessageID() ID
	SetMessageID(id ID)
	OperationType() OperationType
	SetOperationType(op OperationType)
}

// Base carries the header fields of a Message. Its fields are unexported so
// serializers only ever see the payload fields of the embedding struct.
type Base struct {
	uniqueID  int64
	messageID ID
	op        OperationType
}

func (b *Base) UniqueID() int64 { return b.uniqueID }

func (b *Base) SetUniqueID(id int64) { b.uniqueID = id }

func (b *Base) UpdateUniqueID() { b.uniqueID = NextUniqueID() }

func (b *Base) MessageID() ID { return b.messageID }

func (b *Base) SetMessageID(id ID) { b.messageID = id }

func (b *Base) OperationType() OperationType { return b.op }

func (b *Base) SetOperationType(op OperationType) { b.op = op }

// New allocates a message and stamps it with a fresh unique id.
func New[T any, PT interface {
	*T
	Message
}]() PT {
	msg := PT(new(T))
	msg.UpdateUniqueID()

	return msg
}
