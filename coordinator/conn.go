package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/arloliu/graphdb-edge/cdc"
	"github.com/arloliu/graphdb-edge/transport"
)

// AckRouter fans a successful flush's per-shard ack out to whichever
// connection currently holds that shard, since one Coordinator serves many
// concurrent connections but AckSink.Ack only knows the shard id.
type AckRouter struct {
	mu    sync.Mutex
	sinks map[string]func(sequence uint64, eventsAcked int)
}

// NewAckRouter creates an empty AckRouter.
func NewAckRouter() *AckRouter {
	return &AckRouter{sinks: make(map[string]func(sequence uint64, eventsAcked int))}
}

// Bind registers sink as the ack destination for shardID, replacing any
// previous binding (e.g. from a stale connection that hasn't deregistered
// yet).
func (r *AckRouter) Bind(shardID string, sink func(sequence uint64, eventsAcked int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[shardID] = sink
}

// Unbind removes shardID's ack destination if it is still sink's (a newer
// connection's Bind for the same shard must not be clobbered by an older
// connection's deferred Unbind).
func (r *AckRouter) Unbind(shardID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, shardID)
}

// Ack implements coordinator.AckSink.
func (r *AckRouter) Ack(shardID string, sequence uint64, eventsAcked int) {
	r.mu.Lock()
	sink := r.sinks[shardID]
	r.mu.Unlock()

	if sink != nil {
		sink(sequence, eventsAcked)
	}
}

// ServeConn drives one shard connection until it closes or ctx is
// canceled: it decodes register/cdc/deregister frames, dispatches them to
// coord, and writes back registered/ack/error frames. Acks arrive
// asynchronously (a namespace flush can batch several shards' events), so
// ServeConn binds an ack sink for every shard it sees registered and
// serializes writes against the read loop with writeMu.
func ServeConn(ctx context.Context, conn io.ReadWriteCloser, coord *Coordinator, router *AckRouter, framing transport.Framing) error {
	reader := transport.NewFrameReader(conn, framing)

	var writeMu sync.Mutex
	writer := transport.NewFrameWriter(conn, framing)
	writeMessage := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()

		return writer.WriteMessage(v)
	}

	registeredShards := make(map[string]string) // shardID -> namespace, for cleanup on exit
	defer func() {
		for shardID, namespace := range registeredShards {
			router.Unbind(shardID)
			coord.Deregister(shardID, namespace)
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		raw, err := reader.ReadRawMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}

		var envelope struct {
			Type string `json:"type" cbor:"type"`
		}
		if err := reader.Unmarshal(raw, &envelope); err != nil {
			_ = writeMessage(cdc.NewErrorMessage(err.Error()))
			continue
		}

		switch envelope.Type {
		case cdc.MessageRegister:
			var msg cdc.RegisterMessage
			if err := reader.Unmarshal(raw, &msg); err != nil {
				_ = writeMessage(cdc.NewErrorMessage(err.Error()))
				continue
			}

			watermark, _ := coord.Register(msg.ShardID, msg.Namespace, uint64(msg.LastSequence), time.Now())
			registeredShards[msg.ShardID] = msg.Namespace
			router.Bind(msg.ShardID, func(sequence uint64, eventsAcked int) {
				_ = writeMessage(cdc.NewAckMessage(msg.ShardID, sequence, uint64(eventsAcked)))
			})

			if err := writeMessage(cdc.NewRegisteredMessage(msg.ShardID, watermark)); err != nil {
				return err
			}

		case cdc.MessageCDC:
			var msg cdc.CDCMessage
			if err := reader.Unmarshal(raw, &msg); err != nil {
				_ = writeMessage(cdc.NewErrorMessage(err.Error()))
				continue
			}

			namespace := registeredShards[msg.ShardID]
			if namespace == "" {
				_ = writeMessage(cdc.NewErrorMessage(fmt.Sprintf("shard %s is not registered", msg.ShardID)))
				continue
			}

			if err := coord.CDC(msg.ShardID, namespace, msg.Events, uint64(msg.Sequence)); err != nil {
				if werr := writeMessage(cdc.NewErrorMessage(err.Error())); werr != nil {
					return werr
				}
			}

		case cdc.MessageDeregister:
			var msg cdc.DeregisterMessage
			if err := reader.Unmarshal(raw, &msg); err != nil {
				_ = writeMessage(cdc.NewErrorMessage(err.Error()))
				continue
			}

			if namespace, ok := registeredShards[msg.ShardID]; ok {
				router.Unbind(msg.ShardID)
				coord.Deregister(msg.ShardID, namespace)
				delete(registeredShards, msg.ShardID)
			}

		default:
			_ = writeMessage(cdc.NewErrorMessage(fmt.Sprintf("unknown message type %q", envelope.Type)))
		}
	}
}
