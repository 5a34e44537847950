package shard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/graphdb-edge/cdc"
)

type fakeSender struct {
	mu             sync.Mutex
	registerCalls  int
	sentBatches    [][]cdc.Event
	failRegisterN  int // fail the Nth register call (1-indexed), 0 = never
	failSendOnce   bool
	ackSequence    func(sequence uint64) uint64
	closeCalls     int
}

func (f *fakeSender) Register(ctx context.Context, shardID, namespace string, lastSequence uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.registerCalls++
	if f.failRegisterN != 0 && f.registerCalls == f.failRegisterN {
		return 0, errors.New("connection reset")
	}

	return lastSequence, nil
}

func (f *fakeSender) SendCDC(ctx context.Context, shardID string, events []cdc.Event, sequence uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSendOnce {
		f.failSendOnce = false

		return 0, errors.New("connection closed")
	}

	f.sentBatches = append(f.sentBatches, events)
	if f.ackSequence != nil {
		return f.ackSequence(sequence), nil
	}

	return sequence, nil
}

func (f *fakeSender) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++

	return nil
}

func fastRunnerOptions() RunnerOptions {
	return RunnerOptions{
		FlushInterval: 5 * time.Millisecond,
		BaseDelay:     time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		JitterFactor:  0,
	}
}

func TestRunnerSendsBufferedBatchOnTick(t *testing.T) {
	p := NewProducer("shard-1", "ns1", 10, 0)
	p.RecordInsert(sampleTriple(0))

	sender := &fakeSender{}
	dial := func(ctx context.Context) (Sender, error) { return sender, nil }

	var persisted uint64
	var mu sync.Mutex
	r := NewRunner(p, dial, func(seq uint64) {
		mu.Lock()
		persisted = seq
		mu.Unlock()
	}, fastRunnerOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	require.NoError(t, r.Run(ctx))

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.GreaterOrEqual(t, len(sender.sentBatches), 1)
	require.Len(t, sender.sentBatches[0], 1)

	mu.Lock()
	defer mu.Unlock()
	require.EqualValues(t, 1, persisted)
}

func TestRunnerReconnectsAfterTransientSendFailure(t *testing.T) {
	p := NewProducer("shard-1", "ns1", 10, 0)
	p.RecordInsert(sampleTriple(0))

	sender := &fakeSender{failSendOnce: true}
	dialCount := 0
	dial := func(ctx context.Context) (Sender, error) {
		dialCount++

		return sender, nil
	}

	r := NewRunner(p, dial, nil, fastRunnerOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	require.NoError(t, r.Run(ctx))
	require.GreaterOrEqual(t, dialCount, 2, "a transient send failure must trigger a reconnect")
}

func TestRunnerStopsOnPermanentRegisterError(t *testing.T) {
	p := NewProducer("shard-1", "ns1", 10, 0)

	dial := func(ctx context.Context) (Sender, error) {
		return &permanentFailSender{}, nil
	}

	r := NewRunner(p, dial, nil, fastRunnerOptions())

	err := r.Run(context.Background())
	require.Error(t, err)
}

type permanentFailSender struct{}

func (p *permanentFailSender) Register(ctx context.Context, shardID, namespace string, lastSequence uint64) (uint64, error) {
	return 0, errors.New("invalid credentials")
}
func (p *permanentFailSender) SendCDC(ctx context.Context, shardID string, events []cdc.Event, sequence uint64) (uint64, error) {
	return 0, nil
}
func (p *permanentFailSender) Close() error { return nil }

func TestRunnerExitsCleanlyOnContextCancel(t *testing.T) {
	p := NewProducer("shard-1", "ns1", 10, 0)
	sender := &fakeSender{}
	dial := func(ctx context.Context) (Sender, error) { return sender, nil }

	r := NewRunner(p, dial, nil, fastRunnerOptions())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not exit after context cancel")
	}
}
