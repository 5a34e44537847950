package shard

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"

	"github.com/arloliu/graphdb-edge/cdc"
	"github.com/arloliu/graphdb-edge/transport"
)

// connSender implements Sender over a transport.Conn, framing messages with
// the configured wire encoding and waiting for the coordinator's matching
// reply before returning.
type connSender struct {
	conn   *transport.Conn
	reader *transport.FrameReader
	writer *transport.FrameWriter
}

// DialQUIC opens a shard.Dialer that connects to the coordinator at addr
// over QUIC, authenticated for namespace via ALPN (§4.8, §11).
func DialQUIC(addr, namespace string, tlsConfig *tls.Config, framing transport.Framing) Dialer {
	return func(ctx context.Context) (Sender, error) {
		conn, err := transport.Dial(ctx, addr, namespace, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("shard: dial coordinator: %w", err)
		}

		return &connSender{
			conn:   conn,
			reader: transport.NewFrameReader(conn, framing),
			writer: transport.NewFrameWriter(conn, framing),
		}, nil
	}
}

func (s *connSender) Register(ctx context.Context, shardID, namespace string, lastSequence uint64) (uint64, error) {
	if err := s.writer.WriteMessage(cdc.NewRegisterMessage(shardID, namespace, lastSequence)); err != nil {
		return 0, fmt.Errorf("shard: send register: %w", err)
	}

	for {
		raw, err := s.reader.ReadRawMessage()
		if err != nil {
			return 0, fmt.Errorf("shard: read registered reply: %w", err)
		}

		var envelope struct {
			Type string `json:"type" cbor:"type"`
		}
		if err := s.reader.Unmarshal(raw, &envelope); err != nil {
			return 0, fmt.Errorf("shard: decode reply envelope: %w", err)
		}

		switch envelope.Type {
		case cdc.MessageRegistered:
			var msg cdc.RegisteredMessage
			if err := s.reader.Unmarshal(raw, &msg); err != nil {
				return 0, fmt.Errorf("shard: decode registered: %w", err)
			}

			return uint64(msg.LastSequence), nil
		case cdc.MessageError:
			var msg cdc.ErrorMessage
			if err := s.reader.Unmarshal(raw, &msg); err != nil {
				return 0, fmt.Errorf("shard: decode error reply: %w", err)
			}

			return 0, fmt.Errorf("shard: coordinator rejected register: %s", msg.Message)
		}
		// any other frame type arriving before the reply (e.g. a stale ack) is ignored
	}
}

// SendCDC blocks until the coordinator's namespace actor actually flushes
// this batch (immediately on a size trigger, otherwise on its next periodic
// tick) and acks it, rather than only acking receipt of the frame — so a
// successful return really does mean the batch is durable.
func (s *connSender) SendCDC(ctx context.Context, shardID string, events []cdc.Event, sequence uint64) (uint64, error) {
	if err := s.writer.WriteMessage(cdc.NewCDCMessage(shardID, events, sequence)); err != nil {
		return 0, fmt.Errorf("shard: send cdc batch: %w", err)
	}

	for {
		raw, err := s.reader.ReadRawMessage()
		if err != nil {
			return 0, fmt.Errorf("shard: read ack: %w", err)
		}

		var envelope struct {
			Type string `json:"type" cbor:"type"`
		}
		if err := s.reader.Unmarshal(raw, &envelope); err != nil {
			return 0, fmt.Errorf("shard: decode ack envelope: %w", err)
		}

		switch envelope.Type {
		case cdc.MessageAck:
			var msg cdc.AckMessage
			if err := s.reader.Unmarshal(raw, &msg); err != nil {
				return 0, fmt.Errorf("shard: decode ack: %w", err)
			}

			return uint64(msg.Sequence), nil
		case cdc.MessageError:
			var msg cdc.ErrorMessage
			if err := s.reader.Unmarshal(raw, &msg); err != nil {
				return 0, fmt.Errorf("shard: decode error reply: %w", err)
			}

			return 0, fmt.Errorf("shard: coordinator rejected cdc batch: %s", msg.Message)
		}
	}
}

func (s *connSender) Close() error {
	return s.conn.Close()
}

var _ io.Closer = (*connSender)(nil)
