package coordinator

import (
	"sync/atomic"
	"time"
)

// Stats tracks the coordinator-wide counters from §4.8. Every field is
// updated with atomic operations so handlers never need a lock just to
// bump a counter.
type Stats struct {
	eventsBuffered   uint64
	eventsFlushed    uint64
	flushCount       uint64
	bytesWritten     uint64
	registeredShards int64
	startupTimestamp time.Time
}

// NewStats creates a Stats with startupTimestamp set to now.
func NewStats(now time.Time) *Stats {
	return &Stats{startupTimestamp: now}
}

func (s *Stats) AddEventsBuffered(n uint64) { atomic.AddUint64(&s.eventsBuffered, n) }
func (s *Stats) AddEventsFlushed(n uint64)  { atomic.AddUint64(&s.eventsFlushed, n) }
func (s *Stats) AddFlush()                  { atomic.AddUint64(&s.flushCount, 1) }
func (s *Stats) AddBytesWritten(n uint64)   { atomic.AddUint64(&s.bytesWritten, n) }
func (s *Stats) IncRegisteredShards()       { atomic.AddInt64(&s.registeredShards, 1) }
func (s *Stats) DecRegisteredShards()       { atomic.AddInt64(&s.registeredShards, -1) }

// Snapshot is an immutable point-in-time copy of Stats, safe to marshal or
// log without racing further updates.
type Snapshot struct {
	EventsBuffered   uint64
	EventsFlushed    uint64
	FlushCount       uint64
	BytesWritten     uint64
	RegisteredShards int64
	StartupTimestamp time.Time
	UptimeMs         int64
}

// Snapshot reads all counters atomically and computes uptime as of now.
func (s *Stats) Snapshot(now time.Time) Snapshot {
	return Snapshot{
		EventsBuffered:   atomic.LoadUint64(&s.eventsBuffered),
		EventsFlushed:    atomic.LoadUint64(&s.eventsFlushed),
		FlushCount:       atomic.LoadUint64(&s.flushCount),
		BytesWritten:     atomic.LoadUint64(&s.bytesWritten),
		RegisteredShards: atomic.LoadInt64(&s.registeredShards),
		StartupTimestamp: s.startupTimestamp,
		UptimeMs:         now.Sub(s.startupTimestamp).Milliseconds(),
	}
}
