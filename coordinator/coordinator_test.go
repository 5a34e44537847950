package coordinator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/graphdb-edge/cdc"
	"github.com/arloliu/graphdb-edge/errs"
	"github.com/arloliu/graphdb-edge/format"
	"github.com/arloliu/graphdb-edge/triple"
)

func sampleEvent(i int) cdc.Event {
	return cdc.NewInsert(triple.Triple{
		Subject:   fmt.Sprintf("https://graph.example/e%d", i),
		Predicate: "p",
		Object:    triple.ObjectValue{Type: format.ObjectTypeInt32, Int32: int32(i)},
		Timestamp: uint64(i),
		TxID:      "01ARZ3NDEKTSV4RRFFQ69G5FAV",
	})
}

type fakeFlusher struct {
	mu     sync.Mutex
	calls  int
	lastN  int
	failOn int // fail the call numbered failOn (1-indexed); 0 means never fail
}

func (f *fakeFlusher) Flush(ctx context.Context, namespace string, events []cdc.Event) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.lastN = len(events)
	if f.failOn != 0 && f.calls == f.failOn {
		return 0, fmt.Errorf("simulated flush failure")
	}

	return len(events) * 64, nil
}

type fakeAckSink struct {
	mu   sync.Mutex
	acks []ackRecord
}

type ackRecord struct {
	shardID  string
	sequence uint64
	count    int
}

func (a *fakeAckSink) Ack(shardID string, sequence uint64, eventsAcked int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, ackRecord{shardID, sequence, eventsAcked})
}

func newTestCoordinator(flusher Flusher, ackSink AckSink) *Coordinator {
	c := New(flusher, ackSink, time.Unix(0, 0), WithFlushInterval(time.Hour)) // disable the tick loop racing with manual assertions
	return c
}

func TestRegisterFirstTimeReturnsDeclaredWatermark(t *testing.T) {
	c := newTestCoordinator(&fakeFlusher{}, nil)
	defer c.Shutdown()

	watermark, clamped := c.Register("shard-1", "ns1", 5, time.Unix(100, 0))
	require.EqualValues(t, 5, watermark)
	require.False(t, clamped)
}

func TestRegisterClampsOutOfOrderRewind(t *testing.T) {
	c := newTestCoordinator(&fakeFlusher{}, nil)
	defer c.Shutdown()

	c.Register("shard-1", "ns1", 10, time.Unix(100, 0))

	watermark, clamped := c.Register("shard-1", "ns1", 3, time.Unix(200, 0))
	require.EqualValues(t, 10, watermark, "watermark must not rewind below the coordinator's record")
	require.True(t, clamped)
}

func TestCDCRejectsOutOfOrderSequence(t *testing.T) {
	c := newTestCoordinator(&fakeFlusher{}, nil)
	defer c.Shutdown()

	require.NoError(t, c.CDC("shard-1", "ns1", []cdc.Event{sampleEvent(0)}, 1))
	err := c.CDC("shard-1", "ns1", []cdc.Event{sampleEvent(1)}, 1)
	require.ErrorIs(t, err, errs.ErrOutOfOrderSequence)
}

func TestCDCAcceptsStrictlyIncreasingSequence(t *testing.T) {
	c := newTestCoordinator(&fakeFlusher{}, nil)
	defer c.Shutdown()

	require.NoError(t, c.CDC("shard-1", "ns1", []cdc.Event{sampleEvent(0)}, 1))
	require.NoError(t, c.CDC("shard-1", "ns1", []cdc.Event{sampleEvent(1)}, 2))
}

func TestCDCSizeTriggerFlushesAndAcks(t *testing.T) {
	flusher := &fakeFlusher{}
	ackSink := &fakeAckSink{}
	c := newTestCoordinator(flusher, ackSink)
	c.sizeTrigger = 3
	defer c.Shutdown()

	require.NoError(t, c.CDC("shard-1", "ns1", []cdc.Event{sampleEvent(0), sampleEvent(1)}, 2))
	require.NoError(t, c.CDC("shard-1", "ns1", []cdc.Event{sampleEvent(2)}, 3))

	require.Eventually(t, func() bool {
		ackSink.mu.Lock()
		defer ackSink.mu.Unlock()
		return len(ackSink.acks) == 1
	}, time.Second, time.Millisecond)

	ackSink.mu.Lock()
	require.Equal(t, "shard-1", ackSink.acks[0].shardID)
	require.EqualValues(t, 3, ackSink.acks[0].sequence)
	require.Equal(t, 3, ackSink.acks[0].count)
	ackSink.mu.Unlock()

	snap := c.Stats(time.Unix(10, 0))
	require.EqualValues(t, 3, snap.EventsFlushed)
	require.EqualValues(t, 1, snap.FlushCount)
}

func TestFlushFailureLeavesBufferForRetry(t *testing.T) {
	flusher := &fakeFlusher{failOn: 1}
	ackSink := &fakeAckSink{}
	c := newTestCoordinator(flusher, ackSink)
	c.sizeTrigger = 1
	defer c.Shutdown()

	require.NoError(t, c.CDC("shard-1", "ns1", []cdc.Event{sampleEvent(0)}, 1))

	// First attempt fails; the buffer must still hold the event, so the next
	// accepted batch re-triggers a flush of the combined (still unflushed
	// plus new) content, and this second attempt succeeds.
	require.NoError(t, c.CDC("shard-1", "ns1", []cdc.Event{sampleEvent(1)}, 2))

	require.Eventually(t, func() bool {
		ackSink.mu.Lock()
		defer ackSink.mu.Unlock()
		return len(ackSink.acks) == 1
	}, time.Second, time.Millisecond)

	flusher.mu.Lock()
	defer flusher.mu.Unlock()
	require.Equal(t, 2, flusher.calls)
	require.Equal(t, 2, flusher.lastN, "the retried flush must include the event from the failed attempt")
}

func TestDeregisterRemovesShard(t *testing.T) {
	c := newTestCoordinator(&fakeFlusher{}, nil)
	defer c.Shutdown()

	c.Register("shard-1", "ns1", 1, time.Unix(0, 0))
	require.NotNil(t, c.registry.Get("shard-1"))

	c.Deregister("shard-1", "ns1")
	require.Eventually(t, func() bool {
		return c.registry.Get("shard-1") == nil
	}, time.Second, time.Millisecond)
}

func TestNewAppliesSizeTriggerAndFlushIntervalOptions(t *testing.T) {
	c := New(&fakeFlusher{}, nil, time.Unix(0, 0), WithSizeTrigger(7), WithFlushInterval(time.Minute))
	defer c.Shutdown()

	require.Equal(t, 7, c.sizeTrigger)
	require.Equal(t, time.Minute, c.flushInterval)
}

func TestNewFallsBackToDefaultFlushIntervalOnInvalidOption(t *testing.T) {
	c := New(&fakeFlusher{}, nil, time.Unix(0, 0), WithFlushInterval(0))
	defer c.Shutdown()

	require.Equal(t, DefaultFlushInterval, c.flushInterval)
}
