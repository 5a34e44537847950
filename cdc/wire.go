package cdc

import "github.com/arloliu/graphdb-edge/wireint"

// Message type discriminants (§4.8). Every wire message carries one of
// these as its "type" field so a single decode-by-type-then-dispatch loop
// can handle the whole protocol.
const (
	MessageRegister   = "register"
	MessageRegistered = "registered"
	MessageCDC        = "cdc"
	MessageAck        = "ack"
	MessageDeregister = "deregister"
	MessageError      = "error"
)

// RegisterMessage declares a shard's resume point to the coordinator, sent
// on initial connect and on every reconnect.
type RegisterMessage struct {
	Type         string         `json:"type" cbor:"type"`
	ShardID      string         `json:"shardId" cbor:"shardId"`
	Namespace    string         `json:"namespace" cbor:"namespace"`
	LastSequence wireint.Uint64 `json:"lastSequence" cbor:"lastSequence"`
}

// NewRegisterMessage builds a register frame for shardID resuming from
// lastSequence within namespace.
func NewRegisterMessage(shardID, namespace string, lastSequence uint64) RegisterMessage {
	return RegisterMessage{
		Type:         MessageRegister,
		ShardID:      shardID,
		Namespace:    namespace,
		LastSequence: wireint.Uint64(lastSequence),
	}
}

// RegisteredMessage is the coordinator's reply to a RegisterMessage, carrying
// the watermark the shard resumes from: its declared lastSequence, or the
// coordinator's recorded sequence for that shard when the record is higher.
type RegisteredMessage struct {
	Type         string         `json:"type" cbor:"type"`
	ShardID      string         `json:"shardId" cbor:"shardId"`
	LastSequence wireint.Uint64 `json:"lastSequence" cbor:"lastSequence"`
}

// NewRegisteredMessage builds a registered frame for shardID, echoing
// watermark as the sequence it should resume from.
func NewRegisteredMessage(shardID string, watermark uint64) RegisteredMessage {
	return RegisteredMessage{
		Type:         MessageRegistered,
		ShardID:      shardID,
		LastSequence: wireint.Uint64(watermark),
	}
}

// CDCMessage carries a batch of events up to and including Sequence, which
// is always the sequence of the last event in Events (§4.7).
type CDCMessage struct {
	Type     string         `json:"type" cbor:"type"`
	ShardID  string         `json:"shardId" cbor:"shardId"`
	Events   []Event        `json:"events" cbor:"events"`
	Sequence wireint.Uint64 `json:"sequence" cbor:"sequence"`
}

// NewCDCMessage builds a cdc frame for shardID carrying events through
// sequence.
func NewCDCMessage(shardID string, events []Event, sequence uint64) CDCMessage {
	return CDCMessage{
		Type:     MessageCDC,
		ShardID:  shardID,
		Events:   events,
		Sequence: wireint.Uint64(sequence),
	}
}

// AckMessage confirms a durable write up through Sequence, acknowledging
// EventsAcked events.
type AckMessage struct {
	Type        string         `json:"type" cbor:"type"`
	ShardID     string         `json:"shardId" cbor:"shardId"`
	Sequence    wireint.Uint64 `json:"sequence" cbor:"sequence"`
	EventsAcked wireint.Uint64 `json:"eventsAcked" cbor:"eventsAcked"`
}

// NewAckMessage builds an ack frame for shardID through sequence,
// acknowledging eventsAcked events.
func NewAckMessage(shardID string, sequence uint64, eventsAcked uint64) AckMessage {
	return AckMessage{
		Type:        MessageAck,
		ShardID:     shardID,
		Sequence:    wireint.Uint64(sequence),
		EventsAcked: wireint.Uint64(eventsAcked),
	}
}

// DeregisterMessage explicitly unregisters a shard.
type DeregisterMessage struct {
	Type    string `json:"type" cbor:"type"`
	ShardID string `json:"shardId" cbor:"shardId"`
}

// NewDeregisterMessage builds a deregister frame for shardID.
func NewDeregisterMessage(shardID string) DeregisterMessage {
	return DeregisterMessage{Type: MessageDeregister, ShardID: shardID}
}

// ErrorMessage reports a protocol or validation failure.
type ErrorMessage struct {
	Type    string `json:"type" cbor:"type"`
	Message string `json:"message" cbor:"message"`
}

// NewErrorMessage builds an error frame carrying message.
func NewErrorMessage(message string) ErrorMessage {
	return ErrorMessage{Type: MessageError, Message: message}
}
