package cdc

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/graphdb-edge/format"
	"github.com/arloliu/graphdb-edge/triple"
)

func sampleEvent(i int) Event {
	return NewInsert(triple.Triple{
		Subject:   fmt.Sprintf("https://graph.example/e%d", i),
		Predicate: "p",
		Object:    triple.ObjectValue{Type: format.ObjectTypeInt32, Int32: int32(i)},
		Timestamp: uint64(i),
		TxID:      "01ARZ3NDEKTSV4RRFFQ69G5FAV",
	})
}

func TestBufferPushAndDrain(t *testing.T) {
	b := NewBuffer(10)
	for i := 0; i < 5; i++ {
		evicted := b.Push(sampleEvent(i))
		require.False(t, evicted)
	}
	require.Equal(t, 5, b.Len())

	events := b.Drain()
	require.Len(t, events, 5)
	require.Equal(t, 0, b.Len())
}

func TestBufferOverflowDropsOldest(t *testing.T) {
	b := NewBuffer(3)
	for i := 0; i < 5; i++ {
		b.Push(sampleEvent(i))
	}
	require.Equal(t, uint64(2), b.Dropped())

	events := b.Drain()
	require.Len(t, events, 3)
	require.Equal(t, "https://graph.example/e2", events[0].Triple.Subject, "oldest two must have been evicted")
}

func TestBufferPeekAllDoesNotRemove(t *testing.T) {
	b := NewBuffer(10)
	b.Push(sampleEvent(0))
	b.Push(sampleEvent(1))

	peeked := b.PeekAll()
	require.Len(t, peeked, 2)
	require.Equal(t, 2, b.Len(), "peek must not remove events")
}

func TestBufferDiscardFrontRemovesOldest(t *testing.T) {
	b := NewBuffer(10)
	for i := 0; i < 4; i++ {
		b.Push(sampleEvent(i))
	}

	b.DiscardFront(2)
	remaining := b.PeekAll()
	require.Len(t, remaining, 2)
	require.Equal(t, "https://graph.example/e2", remaining[0].Triple.Subject)
}

func TestBufferDiscardFrontClampsToLength(t *testing.T) {
	b := NewBuffer(10)
	b.Push(sampleEvent(0))

	b.DiscardFront(5)
	require.Equal(t, 0, b.Len())
}

func TestBufferDrainIsIndependentCopy(t *testing.T) {
	b := NewBuffer(10)
	b.Push(sampleEvent(0))
	events := b.Drain()
	events[0].Triple.Subject = "mutated"

	b.Push(sampleEvent(1))
	got := b.Drain()
	require.Equal(t, "https://graph.example/e1", got[0].Triple.Subject)
}
