// Package transport implements connection bringup between the immortal and
// its local reliability coordinator: dial the outbound (up) socket, then
// listen/accept exactly one inbound (down) connection. spec.md §4.4 (C4)
// describes this as two platform-specific copies in the source; this
// collapses them to one portable implementation over net.Dial/net.Listen,
// per §9's re-architecture guidance.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
)

// Family selects the coordinator's loopback address family. spec.md §6
// fixes this at build time via IPV4/IPV6 preprocessor macros; §9 turns it
// into a runtime configuration value.
type Family int

const (
	IPv4 Family = iota
	IPv6
)

// CoordinatorHost returns the loopback address for f, matching the source's
// coordinator_host selection (127.0.0.1 / ::1).
func (f Family) CoordinatorHost() string {
	if f == IPv6 {
		return "::1"
	}
	return "127.0.0.1"
}

func (f Family) network() string {
	if f == IPv6 {
		return "tcp6"
	}
	return "tcp4"
}

// ErrConnectFailed, ErrBindFailed, ErrAcceptFailed wrap the corresponding
// fatal bringup failures from spec.md §4.4/§7.
var (
	ErrConnectFailed = errors.New("transport: connect to coordinator failed")
	ErrBindFailed    = errors.New("transport: bind for inbound socket failed")
	ErrAcceptFailed  = errors.New("transport: accept of inbound connection failed")
)

// Conns holds the two established sockets: Up (outbound, to the
// coordinator) and Down (inbound, accepted from the coordinator).
type Conns struct {
	Up   net.Conn
	Down net.Conn
}

// Close closes both sockets, returning the first error encountered.
func (c Conns) Close() error {
	err1 := c.Up.Close()
	err2 := c.Down.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Bringup performs spec.md §4.4 steps 1-4: dial upPort, then bind+listen+
// accept exactly one connection on downPort, enabling the fastest available
// loopback hint on both sockets.
func Bringup(ctx context.Context, family Family, upPort, downPort uint16) (Conns, error) {
	host := family.CoordinatorHost()
	network := family.network()

	var d net.Dialer
	up, err := d.DialContext(ctx, network, fmt.Sprintf("%s:%d", host, upPort))
	if err != nil {
		return Conns{}, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	enableFastLoopback(up)

	ln, err := net.Listen(network, fmt.Sprintf(":%d", downPort))
	if err != nil {
		up.Close()
		return Conns{}, fmt.Errorf("%w: %v", ErrBindFailed, err)
	}
	// Exactly one connection is expected; the listener is discarded once it
	// has been accepted (spec.md §4.4 step 2).
	defer ln.Close()

	type acceptResult struct {
		conn net.Conn
		err  error
	}
	acceptCh := make(chan acceptResult, 1)
	go func() {
		conn, err := ln.Accept()
		acceptCh <- acceptResult{conn, err}
	}()

	select {
	case <-ctx.Done():
		up.Close()
		return Conns{}, fmt.Errorf("%w: %v", ErrAcceptFailed, ctx.Err())
	case res := <-acceptCh:
		if res.err != nil {
			up.Close()
			return Conns{}, fmt.Errorf("%w: %v", ErrAcceptFailed, res.err)
		}
		enableFastLoopback(res.conn)
		return Conns{Up: up, Down: res.conn}, nil
	}
}

// enableFastLoopback enables TCP_NODELAY as the portable analogue of the
// source's SIO_LOOPBACK_FAST_PATH hint. Absence of the capability is a
// warning, not an error (spec.md §4.4 step 3).
func enableFastLoopback(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tc.SetNoDelay(true); err != nil {
		slog.Warn("transport: could not enable fast-loopback hint", "error", err)
	}
}
