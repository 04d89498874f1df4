package qsock

import (
	"net"
)

// Addr is the endpoint identity of a Listener or Conn, either a UNIX socket
// address or an IP and port. It is meant for reporting only.
//
// Addr implements net.Addr. String renders the wrapped address exactly as the
// net package does. Abstract UNIX names start with "@". On Linux an unnamed
// UNIX socket, such as a client that never bound, renders as a bare "@" since
// its empty sun_path gets the same NUL rewrite; other platforms may give "".
type Addr struct {
	kind Kind
	unix *net.UnixAddr
	tcp  *net.TCPAddr
}

func unixAddr(a *net.UnixAddr) Addr {
	return Addr{kind: KindUnix, unix: a}
}

func tcpAddr(a *net.TCPAddr) Addr {
	return Addr{kind: KindTCP, tcp: a}
}

// Kind of the transport the address was taken from
func (a Addr) Kind() Kind {
	return a.kind
}

// Network implements net.Addr
func (a Addr) Network() string {
	switch a.kind {
	case KindUnix:
		return a.unix.Network()
	case KindTCP:
		return a.tcp.Network()
	default:
		return ""
	}
}

// String implements net.Addr
func (a Addr) String() string {
	switch a.kind {
	case KindUnix:
		return a.unix.String()
	case KindTCP:
		return a.tcp.String()
	default:
		return "<nil>"
	}
}

// Unix returns the UNIX socket address, ok is false for other kinds.
func (a Addr) Unix() (addr *net.UnixAddr, ok bool) {
	return a.unix, a.kind == KindUnix
}

// TCP returns the IP address and port, ok is false for other kinds.
func (a Addr) TCP() (addr *net.TCPAddr, ok bool) {
	return a.tcp, a.kind == KindTCP
}
