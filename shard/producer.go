// Package shard implements the shard-side CDC producer (§4.7, §4.8): a
// bounded buffer fed by every triple mutation, and a reconnecting stream
// runner that drains it to the coordinator in sequence order.
package shard

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/arloliu/graphdb-edge/cdc"
	"github.com/arloliu/graphdb-edge/triple"
)

// Producer accumulates CDC events for one shard and assigns them a
// monotonic sequence, resuming from whatever the coordinator last
// acknowledged (§4.7: "starting at the last acknowledged value, persisted").
// It also owns this shard's txId generator, since §3 requires txIds to be
// monotonic within a shard.
type Producer struct {
	ShardID   string
	Namespace string

	mu       sync.Mutex
	buffer   *cdc.Buffer
	sequence uint64
	entropy  *ulid.MonotonicEntropy
}

// NewProducer creates a Producer whose sequence counter resumes from
// resumeFrom (the shard's last persisted watermark; 0 for a brand-new
// shard).
func NewProducer(shardID, namespace string, bufferCapacity int, resumeFrom uint64) *Producer {
	return &Producer{
		ShardID:   shardID,
		Namespace: namespace,
		buffer:    cdc.NewBuffer(bufferCapacity),
		sequence:  resumeFrom,
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
}

// NewTxID generates this shard's next transaction id: a 26-character
// Crockford base32 ULID, monotonically increasing for calls within the same
// millisecond (§3). Callers mint one per triple mutation before calling
// RecordInsert/RecordUpdate/RecordDelete.
func (p *Producer) NewTxID() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), p.entropy)

	return id.String()
}

func (p *Producer) record(ev cdc.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sequence++
	p.buffer.Push(ev)
}

// RecordInsert, RecordUpdate, and RecordDelete append one CDC event for a
// triple mutation of the corresponding kind. Call these from the same
// write path that applies the mutation to storage, so every accepted
// mutation has a corresponding CDC record.
func (p *Producer) RecordInsert(t triple.Triple) { p.record(cdc.NewInsert(t)) }
func (p *Producer) RecordUpdate(t triple.Triple) { p.record(cdc.NewUpdate(t)) }
func (p *Producer) RecordDelete(t triple.Triple) { p.record(cdc.NewDelete(t)) }

// PeekBatch returns every currently buffered event without removing them,
// along with the sequence of the last event produced so far — the value
// the accompanying cdc message must carry per §4.7. Events stay buffered
// until ConfirmBatch reports them durably sent, so a failed send can be
// retried against the same (plus any newly arrived) content.
func (p *Producer) PeekBatch() ([]cdc.Event, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.buffer.PeekAll(), p.sequence
}

// ConfirmBatch removes the first n events once the coordinator has
// acknowledged them.
func (p *Producer) ConfirmBatch(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buffer.DiscardFront(n)
}

// Pending reports how many events are currently buffered, used to decide
// whether a flush tick has anything to send.
func (p *Producer) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.buffer.Len()
}

// Dropped reports how many events have been discarded by buffer overflow
// since creation.
func (p *Producer) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.buffer.Dropped()
}
