package shard

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/arloliu/graphdb-edge/cdc"
	"github.com/arloliu/graphdb-edge/durablewriter"
)

// Sender is the shard's view of the coordinator connection: register once
// per connection, then stream batches. A real implementation frames these
// calls over a transport.Conn (§11); tests substitute a fake.
type Sender interface {
	Register(ctx context.Context, shardID, namespace string, lastSequence uint64) (watermark uint64, err error)
	SendCDC(ctx context.Context, shardID string, events []cdc.Event, sequence uint64) (ackedSequence uint64, err error)
	Close() error
}

// Dialer opens a fresh Sender, called once per connection attempt so the
// Runner can transparently reconnect after a transient failure.
type Dialer func(ctx context.Context) (Sender, error)

// RunnerOptions configures the reconnect/flush loop.
type RunnerOptions struct {
	FlushInterval time.Duration
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	JitterFactor  float64
}

// DefaultRunnerOptions matches the flush cadence and backoff shape used
// elsewhere in the pipeline (durablewriter.DefaultOptions).
func DefaultRunnerOptions() RunnerOptions {
	return RunnerOptions{
		FlushInterval: 250 * time.Millisecond,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		JitterFactor:  0.2,
	}
}

// PersistWatermark is called whenever the coordinator acknowledges a new
// sequence, so the shard can durably record its resume point before the
// next reconnect.
type PersistWatermark func(sequence uint64)

// Runner drives one shard's connection lifecycle: connect, register with
// the locally persisted lastSequence, then loop draining the producer's
// buffer on a timer. A transient connection failure reconnects with
// exponential backoff and re-registers from the last acknowledged
// watermark; a permanent failure stops the runner.
type Runner struct {
	producer *Producer
	dial     Dialer
	persist  PersistWatermark
	opts     RunnerOptions
}

// NewRunner creates a Runner for producer, dialing new connections via
// dial and persisting acknowledged watermarks via persist (may be nil).
func NewRunner(producer *Producer, dial Dialer, persist PersistWatermark, opts RunnerOptions) *Runner {
	return &Runner{producer: producer, dial: dial, persist: persist, opts: opts}
}

// Run blocks until ctx is canceled or a permanent error occurs, streaming
// batches to the coordinator and reconnecting across transient failures.
func (r *Runner) Run(ctx context.Context) error {
	lastAcked := uint64(0)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		sender, err := r.connect(ctx, lastAcked)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}

		acked, err := r.drainLoop(ctx, sender, lastAcked)
		sender.Close()
		lastAcked = acked

		if err == nil {
			return nil
		}
		if !durablewriter.IsTransient(err) {
			return err
		}
		// transient: fall through and reconnect
	}
}

// connect dials and registers, retrying transient dial/register failures
// with exponential backoff.
func (r *Runner) connect(ctx context.Context, lastAcked uint64) (Sender, error) {
	delay := r.opts.BaseDelay

	for {
		sender, err := r.dial(ctx)
		if err == nil {
			watermark, regErr := sender.Register(ctx, r.producer.ShardID, r.producer.Namespace, lastAcked)
			if regErr == nil {
				if watermark != lastAcked && r.persist != nil {
					r.persist(watermark)
				}

				return sender, nil
			}
			sender.Close()
			err = regErr
		}

		if !durablewriter.IsTransient(err) {
			return nil, err
		}

		if sleepErr := sleepBackoff(ctx, &delay, r.opts.MaxDelay, r.opts.JitterFactor); sleepErr != nil {
			return nil, sleepErr
		}
	}
}

// drainLoop sends buffered batches on a timer until ctx is canceled or a
// send fails. It returns the highest acknowledged sequence so the caller
// can resume from there on reconnect.
func (r *Runner) drainLoop(ctx context.Context, sender Sender, lastAcked uint64) (uint64, error) {
	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return lastAcked, nil
		case <-ticker.C:
			if r.producer.Pending() == 0 {
				continue
			}

			events, sequence := r.producer.PeekBatch()
			acked, err := sender.SendCDC(ctx, r.producer.ShardID, events, sequence)
			if err != nil {
				return lastAcked, err
			}

			r.producer.ConfirmBatch(len(events))
			lastAcked = acked
			if r.persist != nil {
				r.persist(acked)
			}
		}
	}
}

var errBackoffCanceled = errors.New("shard: backoff canceled")

func sleepBackoff(ctx context.Context, delay *time.Duration, maxDelay time.Duration, jitterFactor float64) error {
	sleep := *delay
	if jitterFactor > 0 {
		sleep = time.Duration(float64(sleep) * (1 + rand.Float64()*jitterFactor))
	}

	timer := time.NewTimer(sleep)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return errBackoffCanceled
	}

	*delay *= 2
	if *delay > maxDelay {
		*delay = maxDelay
	}

	return nil
}
