// Package transport implements the persistent bidirectional QUIC stream
// that carries CDC frames between a shard and its coordinator (§4.8, §11),
// following the teacher pack's beenet QUIC transport shape.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

// quicConfig matches beenet's idle-timeout/keep-alive tuning; CDC streams
// are long-lived and otherwise-idle between flush intervals, so a generous
// idle timeout avoids spurious reconnects.
var quicConfig = &quic.Config{
	MaxIdleTimeout:  5 * time.Minute,
	KeepAlivePeriod: 30 * time.Second,
}

// ALPNForNamespace returns the ALPN protocol id a shard advertises when
// dialing the coordinator for namespace, addressing the stream by
// namespace at the TLS layer per §4.8.
func ALPNForNamespace(namespace string) string {
	return "graphdb-edge/cdc/" + namespace
}

// Listener accepts incoming shard connections for one coordinator address.
type Listener struct {
	listener *quic.Listener
}

// Listen starts a QUIC listener on addr. tlsConfig's NextProtos should list
// every namespace ALPN the coordinator is willing to accept; callers
// typically build it from ALPNForNamespace over their known namespaces.
func Listen(ctx context.Context, addr string, tlsConfig *tls.Config) (*Listener, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve udp address: %w", err)
	}

	cfg := tlsConfig.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}

	l, err := quic.ListenAddr(udpAddr.String(), cfg, quicConfig)
	if err != nil {
		return nil, fmt.Errorf("transport: listen: %w", err)
	}

	return &Listener{listener: l}, nil
}

// Accept waits for and returns the next shard connection. The namespace
// ALPN the peer negotiated is available from the Conn's ConnectionState.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	connection, err := l.listener.Accept(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: accept connection: %w", err)
	}

	stream, err := connection.AcceptStream(ctx)
	if err != nil {
		connection.CloseWithError(0, "accept stream failed")

		return nil, fmt.Errorf("transport: accept stream: %w", err)
	}

	return &Conn{connection: connection, stream: stream}, nil
}

// Close closes the listener.
func (l *Listener) Close() error {
	return l.listener.Close()
}

// Addr returns the listener's local network address.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Dial opens a persistent CDC connection to addr for namespace.
func Dial(ctx context.Context, addr, namespace string, tlsConfig *tls.Config) (*Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := tlsConfig.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	cfg.NextProtos = []string{ALPNForNamespace(namespace)}

	connection, err := quic.DialAddr(ctx, addr, cfg, quicConfig)
	if err != nil {
		return nil, fmt.Errorf("transport: dial: %w", err)
	}

	stream, err := connection.OpenStreamSync(ctx)
	if err != nil {
		connection.CloseWithError(0, "open stream failed")

		return nil, fmt.Errorf("transport: open stream: %w", err)
	}

	return &Conn{connection: connection, stream: stream}, nil
}

// Conn wraps one QUIC connection and its bidirectional CDC stream.
type Conn struct {
	connection *quic.Conn
	stream     *quic.Stream
}

func (c *Conn) Read(b []byte) (int, error)  { return c.stream.Read(b) }
func (c *Conn) Write(b []byte) (int, error) { return c.stream.Write(b) }

// Close closes the stream, then the underlying connection.
func (c *Conn) Close() error {
	if err := c.stream.Close(); err != nil {
		c.connection.CloseWithError(0, "stream close error")

		return fmt.Errorf("transport: close stream: %w", err)
	}

	return c.connection.CloseWithError(0, "normal close")
}

func (c *Conn) RemoteAddr() net.Addr { return c.connection.RemoteAddr() }

func (c *Conn) SetDeadline(t time.Time) error      { return c.stream.SetDeadline(t) }
func (c *Conn) SetReadDeadline(t time.Time) error  { return c.stream.SetReadDeadline(t) }
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.stream.SetWriteDeadline(t) }

// ConnectionState exposes the TLS handshake result, including the
// negotiated namespace ALPN.
func (c *Conn) ConnectionState() tls.ConnectionState {
	return c.connection.ConnectionState().TLS
}
