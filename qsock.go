// Package qsock lets a server accept and talk over UNIX domain sockets or TCP
// sockets through one listener type and one connection type.
//
// Listener, Conn and Addr are closed unions over exactly two transports. Every
// method switches on the kind the value was built with, so callers never need
// to branch on the transport themselves.
package qsock

// Kind is the transport a Listener, Conn or Addr was built from.
type Kind uint8

const (
	// KindUnix is a UNIX domain stream socket
	KindUnix Kind = iota + 1
	// KindTCP is a TCP socket
	KindTCP
)

// Network returns the name used by the net package for k.
func (k Kind) Network() string {
	switch k {
	case KindUnix:
		return "unix"
	case KindTCP:
		return "tcp"
	default:
		return ""
	}
}

func (k Kind) String() string {
	if n := k.Network(); n != "" {
		return n
	}
	return "invalid"
}
