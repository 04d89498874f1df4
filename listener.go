package qsock

import (
	"context"
	"net"
	"os"
	"syscall"
	"time"
)

// Listener accepts connections on either a UNIX domain or a TCP socket.
//
// A Listener never changes kind; a UNIX listener only yields UNIX connections
// and a TCP listener only yields TCP connections. It implements net.Listener so
// it can be handed to http.Server, grpc.Server and the like.
type Listener struct {
	kind Kind
	unix *net.UnixListener
	tcp  *net.TCPListener
}

var _ net.Listener = (*Listener)(nil)

// NewUnixListener takes ownership of a bound UNIX listener
func NewUnixListener(l *net.UnixListener) *Listener {
	return &Listener{kind: KindUnix, unix: l}
}

// NewTCPListener takes ownership of a bound TCP listener
func NewTCPListener(l *net.TCPListener) *Listener {
	return &Listener{kind: KindTCP, tcp: l}
}

// Kind returns the transport of l
func (l *Listener) Kind() Kind {
	return l.kind
}

// LocalAddress asks the OS for the address l is bound to.
// The result is returned as reported, an unnamed UNIX socket is not normalized.
func (l *Listener) LocalAddress() (Addr, error) {
	switch l.kind {
	case KindUnix:
		return sockname(l.unix)
	case KindTCP:
		return sockname(l.tcp)
	default:
		return Addr{}, errInvalid("getsockname")
	}
}

// AcceptConn waits for the next connection.
//
// The peer address learned by accept is dropped, use Conn.PeerAddress to ask
// the OS again. An error leaves the listener usable: transient failures such
// as EMFILE are for the caller to retry.
func (l *Listener) AcceptConn() (*Conn, error) {
	switch l.kind {
	case KindUnix:
		c, err := l.unix.AcceptUnix()
		if err != nil {
			return nil, err
		}
		return NewUnixConn(c), nil
	case KindTCP:
		c, err := l.tcp.AcceptTCP()
		if err != nil {
			return nil, err
		}
		return NewTCPConn(c), nil
	default:
		return nil, errInvalid("accept")
	}
}

var aLongTimeAgo = time.Unix(1, 0)

// AcceptContext is like AcceptConn but gives up when ctx is done.
//
// Cancellation is implemented with the listener deadline, so any deadline set
// with SetDeadline is cleared once ctx fires. The deadline is shared: other
// goroutines blocked in Accept or AcceptConn on l at that moment fail with a
// timeout error as well, and may simply retry.
func (l *Listener) AcceptContext(ctx context.Context) (*Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		l.SetDeadline(aLongTimeAgo)
		close(interrupted)
	})

	c, err := l.AcceptConn()
	if stop() {
		return c, err
	}

	<-interrupted
	l.SetDeadline(time.Time{})
	if err != nil {
		return nil, ctx.Err()
	}
	return c, nil
}

// Accept implements net.Listener, the returned net.Conn is a *Conn.
func (l *Listener) Accept() (net.Conn, error) {
	c, err := l.AcceptConn()
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Close stops listening. Whether a UNIX socket file is removed follows
// SetUnlinkOnClose.
func (l *Listener) Close() error {
	switch l.kind {
	case KindUnix:
		return l.unix.Close()
	case KindTCP:
		return l.tcp.Close()
	default:
		return errInvalid("close")
	}
}

// Addr implements net.Listener with the address recorded at bind time.
// Use LocalAddress to query the OS.
func (l *Listener) Addr() net.Addr {
	switch l.kind {
	case KindUnix:
		return l.unix.Addr()
	case KindTCP:
		return l.tcp.Addr()
	default:
		return nil
	}
}

// SetDeadline sets the deadline for pending and future accepts
func (l *Listener) SetDeadline(t time.Time) error {
	switch l.kind {
	case KindUnix:
		return l.unix.SetDeadline(t)
	case KindTCP:
		return l.tcp.SetDeadline(t)
	default:
		return errInvalid("set")
	}
}

// SetUnlinkOnClose controls whether Close removes the socket file.
// Listeners bound by path unlink by default, listeners adopted from a file
// don't. It's a no-op for TCP.
func (l *Listener) SetUnlinkOnClose(unlink bool) {
	if l.kind == KindUnix {
		l.unix.SetUnlinkOnClose(unlink)
	}
}

// File returns a dup of the underlying socket, e.g. to hand it to a child process.
func (l *Listener) File() (*os.File, error) {
	switch l.kind {
	case KindUnix:
		return l.unix.File()
	case KindTCP:
		return l.tcp.File()
	default:
		return nil, errInvalid("file")
	}
}

func errInvalid(op string) error {
	return &net.OpError{Op: op, Err: syscall.EINVAL}
}
