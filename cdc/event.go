// Package cdc implements the change-data-capture event model, the bounded
// per-shard buffer, and the JSON/CBOR wire messages that carry batches from
// a shard to its coordinator (§4.7, §4.8).
package cdc

import (
	"github.com/arloliu/graphdb-edge/triple"
)

// EventType discriminates the three mutation kinds a triple write can
// produce. Deletes are represented as a tombstone triple (object type
// NULL) rather than a separate payload shape, matching §3's history model.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one immutable CDC record: a mutation to a single triple, tagged
// with the transaction that produced it.
type Event struct {
	Type   EventType     `json:"type"`
	Triple triple.Triple `json:"triple"`
	TxID   string        `json:"txId"`
}

// NewInsert, NewUpdate and NewDelete build one Event of the corresponding
// type from a triple already assigned its transaction id.
func NewInsert(t triple.Triple) Event { return Event{Type: EventInsert, Triple: t, TxID: t.TxID} }
func NewUpdate(t triple.Triple) Event { return Event{Type: EventUpdate, Triple: t, TxID: t.TxID} }
func NewDelete(t triple.Triple) Event { return Event{Type: EventDelete, Triple: t, TxID: t.TxID} }
