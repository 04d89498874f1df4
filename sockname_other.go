//go:build !unix

package qsock

import (
	"net"
	"syscall"
)

const writevSupported = false

// Without getsockname we fall back to what the net package recorded.
func sockname(s syscall.Conn) (Addr, error) {
	switch s := s.(type) {
	case net.Listener:
		return fromNetAddr(s.Addr())
	case net.Conn:
		return fromNetAddr(s.LocalAddr())
	}
	return Addr{}, syscall.EINVAL
}

func peername(s syscall.Conn) (Addr, error) {
	if c, ok := s.(net.Conn); ok {
		return fromNetAddr(c.RemoteAddr())
	}
	return Addr{}, syscall.EINVAL
}

func fromNetAddr(a net.Addr) (Addr, error) {
	switch a := a.(type) {
	case *net.UnixAddr:
		return unixAddr(a), nil
	case *net.TCPAddr:
		return tcpAddr(a), nil
	}
	return Addr{}, syscall.ENOTCONN
}
