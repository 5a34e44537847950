package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/graphdb-edge/cdc"
	"github.com/arloliu/graphdb-edge/internal/options"
)

// Option configures a Coordinator at construction time.
type Option = options.Option[*Coordinator]

// WithSizeTrigger overrides DefaultSizeTrigger, the number of buffered
// events per namespace that forces an immediate flush.
func WithSizeTrigger(n int) Option {
	return options.NoError(func(c *Coordinator) {
		c.sizeTrigger = n
	})
}

// WithFlushInterval overrides DefaultFlushInterval, the periodic alarm that
// flushes a namespace even below its size trigger.
func WithFlushInterval(d time.Duration) Option {
	return options.New(func(c *Coordinator) error {
		if d <= 0 {
			return fmt.Errorf("coordinator: flush interval must be positive")
		}
		c.flushInterval = d

		return nil
	})
}

// Coordinator fans incoming register/cdc/deregister traffic out to one
// actor goroutine per namespace, and drives the periodic flush alarm.
// Methods are safe to call from any number of connection-handling
// goroutines; each namespace's own state is only ever touched by its actor.
type Coordinator struct {
	registry *Registry
	stats    *Stats
	flusher  Flusher
	ackSink  AckSink

	sizeTrigger   int
	flushInterval time.Duration

	mu     sync.Mutex
	actors map[string]*namespaceActor

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Coordinator. flusher performs the actual durable write
// (typically backed by durablewriter.Writer); ackSink receives per-shard
// acks after a successful flush and may be nil if the caller doesn't need
// them (e.g. in tests). opts override the size/interval flush triggers; an
// invalid option (e.g. WithFlushInterval(0)) falls back to the default
// rather than failing construction, since a malformed static config
// shouldn't take the whole coordinator process down.
func New(flusher Flusher, ackSink AckSink, startedAt time.Time, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Coordinator{
		registry:      NewRegistry(),
		stats:         NewStats(startedAt),
		flusher:       flusher,
		ackSink:       ackSink,
		sizeTrigger:   DefaultSizeTrigger,
		flushInterval: DefaultFlushInterval,
		actors:        make(map[string]*namespaceActor),
		ctx:           ctx,
		cancel:        cancel,
	}

	if err := options.Apply(c, opts...); err != nil {
		c.flushInterval = DefaultFlushInterval
	}

	c.wg.Add(1)
	go c.tickLoop()

	return c
}

func (c *Coordinator) tickLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			actors := make([]*namespaceActor, 0, len(c.actors))
			for _, a := range c.actors {
				actors = append(actors, a)
			}
			c.mu.Unlock()

			for _, a := range actors {
				select {
				case a.inbox <- inbound{tick: true}:
				default:
				}
			}
		}
	}
}

func (c *Coordinator) actorFor(namespace string) *namespaceActor {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.actors[namespace]
	if !ok {
		a = newNamespaceActor(namespace, c.registry, c.stats, c.flusher, c.ackSink, c.sizeTrigger)
		c.actors[namespace] = a

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			a.run(c.ctx)
		}()
	}

	return a
}

// Register handles a register message, returning the watermark the shard
// should resume from and whether it was clamped against an earlier
// (behind-the-coordinator) declared value.
func (c *Coordinator) Register(shardID, namespace string, lastSequence uint64, now time.Time) (watermark uint64, clamped bool) {
	reply := make(chan registerReply, 1)
	c.actorFor(namespace).inbox <- inbound{register: &registerMsg{
		shardID:      shardID,
		lastSequence: lastSequence,
		now:          now,
		reply:        reply,
	}}

	r := <-reply

	return r.watermark, r.clamped
}

// CDC handles a cdc batch, returning an error (ErrOutOfOrderSequence) if
// the batch's sequence does not strictly advance the shard's watermark.
func (c *Coordinator) CDC(shardID, namespace string, events []cdc.Event, sequence uint64) error {
	reply := make(chan error, 1)
	c.actorFor(namespace).inbox <- inbound{cdc: &cdcMsg{
		shardID:  shardID,
		events:   events,
		sequence: sequence,
		reply:    reply,
	}}

	return <-reply
}

// Deregister handles a channel close or explicit deregister message.
func (c *Coordinator) Deregister(shardID, namespace string) {
	c.actorFor(namespace).inbox <- inbound{deregister: &deregisterMsg{shardID: shardID}}
}

// Stats returns a point-in-time snapshot of coordinator-wide counters.
func (c *Coordinator) Stats(now time.Time) Snapshot {
	return c.stats.Snapshot(now)
}

// Shutdown flushes every namespace and stops the tick loop, per §4.8's
// "on channel close the coordinator flushes all namespaces" contract
// applied coordinator-wide.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	actors := make([]*namespaceActor, 0, len(c.actors))
	for _, a := range c.actors {
		actors = append(actors, a)
	}
	c.mu.Unlock()

	c.cancel()
	for _, a := range actors {
		<-a.done
	}
	c.wg.Wait()
}
