package durablewriter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubPutter struct {
	mu       sync.Mutex
	calls    int32
	failN    int32 // number of leading calls to fail
	failErr  error
	delay    time.Duration
	received [][]byte
}

func (s *stubPutter) Put(ctx context.Context, key string, data []byte) error {
	n := atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	s.received = append(s.received, data)
	s.mu.Unlock()

	if n <= s.failN {
		return s.failErr
	}

	return nil
}

func fastOptions() Options {
	return Options{
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		MaxRetries:   3,
		JitterFactor: 0,
	}
}

func TestWriteSucceedsFirstTry(t *testing.T) {
	p := &stubPutter{}
	w := New(p, fastOptions(), nil)

	n, err := w.Write(context.Background(), "ns1", "k1", []byte("hello"), 1)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.EqualValues(t, 1, p.calls)
}

func TestWriteRetriesTransientThenSucceeds(t *testing.T) {
	p := &stubPutter{failN: 2, failErr: errors.New("connection reset by peer")}
	w := New(p, fastOptions(), nil)

	n, err := w.Write(context.Background(), "ns1", "k1", []byte("data"), 1)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.EqualValues(t, 3, p.calls)
}

func TestWritePermanentErrorDoesNotRetry(t *testing.T) {
	p := &stubPutter{failN: 99, failErr: errors.New("invalid credentials")}
	w := New(p, fastOptions(), nil)

	_, err := w.Write(context.Background(), "ns1", "k1", []byte("data"), 1)
	require.Error(t, err)
	require.EqualValues(t, 1, p.calls, "a non-transient error must not be retried")
}

func TestWriteExhaustsRetriesAndReportsFailure(t *testing.T) {
	p := &stubPutter{failN: 99, failErr: errors.New("service unavailable")}
	opts := fastOptions()

	var reported *FailureEvent
	w := New(p, opts, func(ev FailureEvent) {
		reported = &ev
	})

	_, err := w.Write(context.Background(), "ns1", "k1", []byte("data"), 7)
	require.Error(t, err)
	require.EqualValues(t, opts.MaxRetries+1, p.calls)
	require.NotNil(t, reported)
	require.Equal(t, "ns1", reported.Namespace)
	require.Equal(t, 7, reported.EventCount)
	require.Equal(t, opts.MaxRetries+1, reported.Attempts)
}

func TestWriteCoalescesConcurrentFlushesOfSameNamespace(t *testing.T) {
	p := &stubPutter{delay: 20 * time.Millisecond}
	w := New(p, fastOptions(), nil)

	var wg sync.WaitGroup
	results := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := w.Write(context.Background(), "shared-ns", "k", []byte("x"), 1)
			results[i] = err
		}(i)
	}
	wg.Wait()

	for _, err := range results {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, p.calls, "concurrent writes to the same namespace must coalesce into one Put")
}

func TestWriteDoesNotCoalesceDifferentNamespaces(t *testing.T) {
	p := &stubPutter{delay: 10 * time.Millisecond}
	w := New(p, fastOptions(), nil)

	var wg sync.WaitGroup
	for _, ns := range []string{"ns-a", "ns-b"} {
		wg.Add(1)
		go func(ns string) {
			defer wg.Done()
			_, err := w.Write(context.Background(), ns, "k", []byte("x"), 1)
			require.NoError(t, err)
		}(ns)
	}
	wg.Wait()

	require.EqualValues(t, 2, p.calls)
}

func TestWriteRespectsContextCancellationDuringBackoff(t *testing.T) {
	p := &stubPutter{failN: 99, failErr: errors.New("connection reset")}
	opts := fastOptions()
	opts.BaseDelay = 50 * time.Millisecond
	w := New(p, opts, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := w.Write(ctx, "ns1", "k1", []byte("data"), 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
