package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/lineflux/qdbsender/internal/config"
	qerr "github.com/lineflux/qdbsender/errors"
)

// TCP implements the TCP(S) ILP transport (spec.md §4.5): a single
// long-lived connection, optionally TLS-wrapped, with an ECDSA
// challenge-response handshake performed once at connect time. There is
// no request/response cycle after that — rows are streamed and the
// server is trusted to apply them, so flush failures only ever surface on
// the next write.
type TCP struct {
	opts *config.Options
	conn net.Conn
}

// NewTCP dials the configured address, performs the TLS handshake for
// tcps, and runs the auth challenge if username/token were supplied. The
// connection is held open until Close.
func NewTCP(ctx context.Context, o *config.Options) (*TCP, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", o.Addr())
	if err != nil {
		return nil, classifyDialErr(err)
	}

	if o.Scheme.IsTLS() {
		tlsConf, err := buildTLSConfig(o)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		tlsConn := tls.Client(conn, tlsConf)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, qerr.Wrap(qerr.TlsError, "tls handshake failed", err)
		}
		conn = tlsConn
	}

	t := &TCP{opts: o, conn: conn}

	if o.Username != "" && o.Token != "" {
		deadline := time.Now().Add(time.Duration(o.AuthTimeoutMS) * time.Millisecond)
		_ = conn.SetDeadline(deadline)
		if err := authenticateTCP(conn, o.Username, o.Token); err != nil {
			_ = conn.Close()
			return nil, err
		}
		_ = conn.SetDeadline(time.Time{})
	}

	return t, nil
}

// Flush streams the buffer's committed bytes directly onto the
// connection. There is no server acknowledgement to wait for and
// therefore nothing to retry here: a write error means the connection is
// broken and the caller should reconnect. The returned time.Time is
// always zero — raw TCP has no response to carry a Date header, so the
// caller falls back to its own wall clock for last_flush.
func (t *TCP) Flush(ctx context.Context, buf Flushable) (time.Time, error) {
	if !t.healthy() {
		return time.Time{}, qerr.New(qerr.SocketError, "tcp connection closed by peer")
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
		defer t.conn.SetWriteDeadline(time.Time{}) //nolint:errcheck
	}
	if _, err := buf.WriteTo(t.conn); err != nil {
		return time.Time{}, qerr.Wrap(qerr.SocketError, "failed to write to tcp connection", err)
	}
	return time.Time{}, nil
}

// healthy peeks at the socket to catch a peer-closed connection before a
// write wastes a round trip discovering it. It never blocks and defaults
// to true when the connection's raw descriptor isn't reachable (a
// net.Pipe in tests, for instance).
func (t *TCP) healthy() bool {
	conn := t.conn
	if tlsConn, ok := conn.(*tls.Conn); ok {
		conn = tlsConn.NetConn()
	}
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return true
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return true
	}
	alive := true
	_ = raw.Control(func(fd uintptr) {
		alive = isConnAlive(fd)
	})
	return alive
}

// Close closes the underlying connection.
func (t *TCP) Close() error {
	if t.conn == nil {
		return nil
	}
	if err := t.conn.Close(); err != nil {
		return qerr.Wrap(qerr.SocketError, "failed to close tcp connection", err)
	}
	return nil
}

func classifyDialErr(err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return qerr.Wrap(qerr.SocketError, "connection refused", err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return qerr.Wrap(qerr.CouldNotResolveAddr, fmt.Sprintf("failed to resolve %s", dnsErr.Name), err)
	}
	return qerr.Wrap(qerr.SocketError, "failed to connect", err)
}
