package coordinator

import (
	"context"
	"time"

	"github.com/arloliu/graphdb-edge/cdc"
	"github.com/arloliu/graphdb-edge/errs"
)

// Flusher durably persists a namespace's buffered events, returning the
// number of bytes written on success. It is the seam between the
// coordinator's buffering policy and durablewriter's retry/backoff
// machinery — the coordinator never talks to blob storage directly.
type Flusher interface {
	Flush(ctx context.Context, namespace string, events []cdc.Event) (int, error)
}

// AckSink receives the per-shard acknowledgement for a flush that made it
// to durable storage (§4.8 step 3).
type AckSink interface {
	Ack(shardID string, sequence uint64, eventsAcked int)
}

// DefaultSizeTrigger is the per-namespace buffered-event count that forces
// an immediate flush (§4.8).
const DefaultSizeTrigger = 1000

// DefaultFlushInterval is the periodic alarm period that flushes any
// namespace with pending events (§4.8: "every few hundred ms").
const DefaultFlushInterval = 250 * time.Millisecond

// inbound is the actor's single message queue. Exactly one of the fields is
// set per message; register/cdc/deregister/tick/drain model the single
// active goroutine draining one channel per §5's concurrency model.
type inbound struct {
	register   *registerMsg
	cdc        *cdcMsg
	deregister *deregisterMsg
	tick       bool
	drain      chan struct{} // closed once the actor has processed everything queued before it
}

type registerMsg struct {
	shardID      string
	lastSequence uint64
	now          time.Time
	reply        chan registerReply
}

type registerReply struct {
	watermark uint64
	clamped   bool
}

type cdcMsg struct {
	shardID  string
	events   []cdc.Event
	sequence uint64
	reply    chan error
}

type deregisterMsg struct {
	shardID string
}

// pendingBatch is one shard's contribution to the current unflushed buffer:
// the events themselves and the sequence they carry, so a successful flush
// knows exactly which shards to ack and to what watermark.
type pendingBatch struct {
	shardID  string
	sequence uint64
	count    int
}

// namespaceActor owns one namespace's buffer, in-flight sequence tracking,
// and registry slice. It processes messages to completion one at a time on
// its own goroutine, so no internal field needs its own lock (§5).
type namespaceActor struct {
	namespace   string
	registry    *Registry
	stats       *Stats
	flusher     Flusher
	ackSink     AckSink
	sizeTrigger int

	buffer  []cdc.Event
	pending []pendingBatch          // per-shard contributions to buffer, in arrival order
	accepted map[string]uint64      // highest sequence accepted per shard since its latest register

	inbox chan inbound
	done  chan struct{}
}

func newNamespaceActor(namespace string, registry *Registry, stats *Stats, flusher Flusher, ackSink AckSink, sizeTrigger int) *namespaceActor {
	return &namespaceActor{
		namespace:   namespace,
		registry:    registry,
		stats:       stats,
		flusher:     flusher,
		ackSink:     ackSink,
		sizeTrigger: sizeTrigger,
		accepted:    make(map[string]uint64),
		inbox:       make(chan inbound, 256),
		done:        make(chan struct{}),
	}
}

func (a *namespaceActor) run(ctx context.Context) {
	defer close(a.done)

	for {
		select {
		case <-ctx.Done():
			a.flush(ctx)

			return
		case msg := <-a.inbox:
			a.handle(ctx, msg)
		}
	}
}

func (a *namespaceActor) handle(ctx context.Context, msg inbound) {
	switch {
	case msg.register != nil:
		a.handleRegister(msg.register)
	case msg.cdc != nil:
		a.handleCDC(ctx, msg.cdc)
	case msg.deregister != nil:
		a.handleDeregister(msg.deregister)
	case msg.tick:
		a.handleTick(ctx)
	case msg.drain != nil:
		close(msg.drain)
	}
}

// handleRegister implements the reject-and-clamp rollback policy: a shard
// re-registering with a lastSequence behind the coordinator's persisted
// watermark is not allowed to rewind it. Its declared value is clamped up
// to the coordinator's record and the clamp is reported back so the
// caller can tell the shard to fast-forward instead of replaying
// already-durable events.
func (a *namespaceActor) handleRegister(msg *registerMsg) {
	watermark := msg.lastSequence
	clamped := false

	existing := a.registry.Get(msg.shardID)
	if existing != nil && existing.LastSequence > msg.lastSequence {
		watermark = existing.LastSequence
		clamped = true
	}

	alreadyRegistered := existing != nil
	a.registry.Register(msg.shardID, a.namespace, watermark, msg.now)
	a.accepted[msg.shardID] = watermark

	if !alreadyRegistered {
		a.stats.IncRegisteredShards()
	}

	if msg.reply != nil {
		msg.reply <- registerReply{watermark: watermark, clamped: clamped}
	}
}

// handleCDC enforces the sequence contract: a batch whose sequence does not
// strictly advance the shard's accepted watermark is rejected outright.
func (a *namespaceActor) handleCDC(ctx context.Context, msg *cdcMsg) {
	if msg.sequence <= a.accepted[msg.shardID] {
		if msg.reply != nil {
			msg.reply <- errs.ErrOutOfOrderSequence
		}

		return
	}

	a.buffer = append(a.buffer, msg.events...)
	a.pending = append(a.pending, pendingBatch{shardID: msg.shardID, sequence: msg.sequence, count: len(msg.events)})
	a.accepted[msg.shardID] = msg.sequence
	a.stats.AddEventsBuffered(uint64(len(msg.events)))

	if msg.reply != nil {
		msg.reply <- nil
	}

	if len(a.buffer) >= a.sizeTrigger {
		a.flush(ctx)
	}
}

func (a *namespaceActor) handleDeregister(msg *deregisterMsg) {
	a.registry.Deregister(msg.shardID)
	a.stats.DecRegisteredShards()
}

func (a *namespaceActor) handleTick(ctx context.Context) {
	if len(a.buffer) > 0 {
		a.flush(ctx)
	}
}

// flush hands the buffered events to the Flusher. Per §4.9 the buffer is
// never cleared on failure, so a subsequent flush retries the same
// content; on success it persists the new per-shard watermarks and acks
// every contributing shard.
func (a *namespaceActor) flush(ctx context.Context) {
	if len(a.buffer) == 0 {
		return
	}

	n, err := a.flusher.Flush(ctx, a.namespace, a.buffer)
	if err != nil {
		return
	}

	a.stats.AddEventsFlushed(uint64(len(a.buffer)))
	a.stats.AddFlush()
	a.stats.AddBytesWritten(uint64(n))

	highest := make(map[string]uint64, len(a.pending))
	acked := make(map[string]int, len(a.pending))
	for _, p := range a.pending {
		if p.sequence > highest[p.shardID] {
			highest[p.shardID] = p.sequence
		}
		acked[p.shardID] += p.count
	}

	for shardID, seq := range highest {
		_ = a.registry.UpdateSequence(shardID, seq)
		if a.ackSink != nil {
			a.ackSink.Ack(shardID, seq, acked[shardID])
		}
	}

	a.buffer = nil
	a.pending = nil
}
