package cdc

import "sync"

// DefaultBufferCapacity is the default bounded FIFO size for a shard's CDC
// buffer (§4.7).
const DefaultBufferCapacity = 1000

// Buffer is a bounded FIFO of CDC events. Pushing past capacity discards the
// oldest entries; the discarded prefix is the event-loss boundary a
// coordinator detects via a sequence gap on the next flush (§4.7).
type Buffer struct {
	mu       sync.Mutex
	capacity int
	events   []Event
	dropped  uint64
}

// NewBuffer creates a Buffer holding at most capacity events.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{capacity: capacity}
}

// Push appends e, evicting the oldest buffered event if the buffer is at
// capacity. It reports whether an eviction occurred.
func (b *Buffer) Push(e Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	evicted := false
	if len(b.events) >= b.capacity {
		b.events = b.events[1:]
		b.dropped++
		evicted = true
	}
	b.events = append(b.events, e)

	return evicted
}

// Drain returns every currently buffered event and empties the buffer. The
// returned slice is safe for the caller to retain.
func (b *Buffer) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Event, len(b.events))
	copy(out, b.events)
	b.events = nil

	return out
}

// Len returns the number of currently buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.events)
}

// Dropped returns the cumulative number of events evicted by overflow since
// the buffer was created.
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.dropped
}

// PeekAll returns a copy of every currently buffered event without
// removing them, so a failed send downstream can be retried against the
// same (plus any newly arrived) content.
func (b *Buffer) PeekAll() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Event, len(b.events))
	copy(out, b.events)

	return out
}

// DiscardFront removes the first n events, used once a batch of n events
// has been durably acknowledged downstream. n is clamped to the current
// length.
func (b *Buffer) DiscardFront(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > len(b.events) {
		n = len(b.events)
	}
	b.events = b.events[n:]
}
