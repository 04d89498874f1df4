package qsock

import (
	"net"
	"syscall"
	"time"
)

// Conn is an accepted UNIX domain or TCP stream.
//
// Reads and writes go straight to the socket, Conn keeps no state of its own:
// after Close or a fatal error every call fails the way the socket does. One
// goroutine may read while another writes; two concurrent writers (or readers)
// get whatever interleaving the OS gives them.
type Conn struct {
	kind Kind
	unix *net.UnixConn
	tcp  *net.TCPConn
}

var (
	_ net.Conn     = (*Conn)(nil)
	_ syscall.Conn = (*Conn)(nil)
)

// NewUnixConn takes ownership of a UNIX stream
func NewUnixConn(c *net.UnixConn) *Conn {
	return &Conn{kind: KindUnix, unix: c}
}

// NewTCPConn takes ownership of a TCP stream
func NewTCPConn(c *net.TCPConn) *Conn {
	return &Conn{kind: KindTCP, tcp: c}
}

// Kind returns the transport of c
func (c *Conn) Kind() Kind {
	return c.kind
}

// LocalAddress asks the OS for the local end of c
func (c *Conn) LocalAddress() (Addr, error) {
	switch c.kind {
	case KindUnix:
		return sockname(c.unix)
	case KindTCP:
		return sockname(c.tcp)
	default:
		return Addr{}, errInvalid("getsockname")
	}
}

// PeerAddress asks the OS for the remote end of c.
// It is never answered from a cache, so a late call reflects the socket as it is now.
func (c *Conn) PeerAddress() (Addr, error) {
	switch c.kind {
	case KindUnix:
		return peername(c.unix)
	case KindTCP:
		return peername(c.tcp)
	default:
		return Addr{}, errInvalid("getpeername")
	}
}

// Read returns as soon as at least one byte is available.
// A peer that closed its write side yields 0, io.EOF.
func (c *Conn) Read(b []byte) (int, error) {
	switch c.kind {
	case KindUnix:
		return c.unix.Read(b)
	case KindTCP:
		return c.tcp.Read(b)
	default:
		return 0, errInvalid("read")
	}
}

// Write writes b to the socket
func (c *Conn) Write(b []byte) (int, error) {
	switch c.kind {
	case KindUnix:
		return c.unix.Write(b)
	case KindTCP:
		return c.tcp.Write(b)
	default:
		return 0, errInvalid("write")
	}
}

// WriteBuffers writes bufs with a single writev where the platform has one.
// bufs itself is left untouched.
func (c *Conn) WriteBuffers(bufs [][]byte) (int64, error) {
	b := make(net.Buffers, len(bufs))
	copy(b, bufs)

	switch c.kind {
	case KindUnix:
		return b.WriteTo(c.unix)
	case KindTCP:
		return b.WriteTo(c.tcp)
	default:
		return 0, errInvalid("writev")
	}
}

// IsWriteVectored reports whether WriteBuffers maps to one writev call
func (c *Conn) IsWriteVectored() bool {
	switch c.kind {
	case KindUnix, KindTCP:
		return writevSupported
	default:
		return false
	}
}

// Flush exists for callers that flush unconditionally. Nothing is buffered
// in user space, so it only reports an error when c is already closed.
func (c *Conn) Flush() error {
	switch c.kind {
	case KindUnix:
		return ensureOpen(c.unix)
	case KindTCP:
		return ensureOpen(c.tcp)
	default:
		return errInvalid("flush")
	}
}

func ensureOpen(s syscall.Conn) error {
	rc, err := s.SyscallConn()
	if err != nil {
		return err
	}
	return rc.Control(func(uintptr) {})
}

// Shutdown shuts down the write side; the peer reads EOF.
// Reading from c keeps working until the peer closes too.
func (c *Conn) Shutdown() error {
	switch c.kind {
	case KindUnix:
		return c.unix.CloseWrite()
	case KindTCP:
		return c.tcp.CloseWrite()
	default:
		return errInvalid("shutdown")
	}
}

// Close releases the socket
func (c *Conn) Close() error {
	switch c.kind {
	case KindUnix:
		return c.unix.Close()
	case KindTCP:
		return c.tcp.Close()
	default:
		return errInvalid("close")
	}
}

// LocalAddr implements net.Conn with the address recorded by the net package
func (c *Conn) LocalAddr() net.Addr {
	switch c.kind {
	case KindUnix:
		return c.unix.LocalAddr()
	case KindTCP:
		return c.tcp.LocalAddr()
	default:
		return nil
	}
}

// RemoteAddr implements net.Conn with the address recorded by the net package
func (c *Conn) RemoteAddr() net.Addr {
	switch c.kind {
	case KindUnix:
		return c.unix.RemoteAddr()
	case KindTCP:
		return c.tcp.RemoteAddr()
	default:
		return nil
	}
}

// SetDeadline sets both the read and write deadlines
func (c *Conn) SetDeadline(t time.Time) error {
	switch c.kind {
	case KindUnix:
		return c.unix.SetDeadline(t)
	case KindTCP:
		return c.tcp.SetDeadline(t)
	default:
		return errInvalid("set")
	}
}

// SetReadDeadline sets the deadline for pending and future reads
func (c *Conn) SetReadDeadline(t time.Time) error {
	switch c.kind {
	case KindUnix:
		return c.unix.SetReadDeadline(t)
	case KindTCP:
		return c.tcp.SetReadDeadline(t)
	default:
		return errInvalid("set")
	}
}

// SetWriteDeadline sets the deadline for pending and future writes
func (c *Conn) SetWriteDeadline(t time.Time) error {
	switch c.kind {
	case KindUnix:
		return c.unix.SetWriteDeadline(t)
	case KindTCP:
		return c.tcp.SetWriteDeadline(t)
	default:
		return errInvalid("set")
	}
}

// SyscallConn exposes the raw socket
func (c *Conn) SyscallConn() (syscall.RawConn, error) {
	switch c.kind {
	case KindUnix:
		return c.unix.SyscallConn()
	case KindTCP:
		return c.tcp.SyscallConn()
	default:
		return nil, errInvalid("raw-control")
	}
}
