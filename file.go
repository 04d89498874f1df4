package qsock

import (
	"net"
	"os"
	"syscall"
)

// The FromFile constructors adopt sockets created elsewhere (inherited from a
// parent, passed over SCM_RIGHTS, socket activation). They always consume f:
// it is closed whether or not the conversion succeeds.

// UnixListenerFromFile adopts a bound, listening UNIX socket
func UnixListenerFromFile(f *os.File) (*Listener, error) {
	return listenerFromFile(f, KindUnix)
}

// TCPListenerFromFile adopts a bound, listening TCP socket
func TCPListenerFromFile(f *os.File) (*Listener, error) {
	return listenerFromFile(f, KindTCP)
}

// ListenerFromFile adopts a listening socket of either kind
func ListenerFromFile(f *os.File) (*Listener, error) {
	return listenerFromFile(f, 0)
}

// UnixConnFromFile adopts a connected UNIX stream
func UnixConnFromFile(f *os.File) (*Conn, error) {
	return connFromFile(f, KindUnix)
}

// TCPConnFromFile adopts a connected TCP stream
func TCPConnFromFile(f *os.File) (*Conn, error) {
	return connFromFile(f, KindTCP)
}

// want == 0 accepts both kinds
func listenerFromFile(f *os.File, want Kind) (*Listener, error) {
	if f == nil {
		return nil, &net.OpError{Op: "file", Net: want.Network(), Err: os.ErrInvalid}
	}
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, err
	}

	switch ln := ln.(type) {
	case *net.UnixListener:
		if want == 0 || want == KindUnix {
			return NewUnixListener(ln), nil
		}
	case *net.TCPListener:
		if want == 0 || want == KindTCP {
			return NewTCPListener(ln), nil
		}
	}

	err = &net.OpError{Op: "file", Net: want.Network(), Addr: ln.Addr(), Err: syscall.EPROTOTYPE}
	ln.Close()
	return nil, err
}

func connFromFile(f *os.File, want Kind) (*Conn, error) {
	if f == nil {
		return nil, &net.OpError{Op: "file", Net: want.Network(), Err: os.ErrInvalid}
	}
	defer f.Close()

	c, err := net.FileConn(f)
	if err != nil {
		return nil, err
	}

	switch c := c.(type) {
	case *net.UnixConn:
		if want == KindUnix {
			return NewUnixConn(c), nil
		}
	case *net.TCPConn:
		if want == KindTCP {
			return NewTCPConn(c), nil
		}
	}

	err = &net.OpError{Op: "file", Net: want.Network(), Source: c.LocalAddr(), Addr: c.RemoteAddr(), Err: syscall.EPROTOTYPE}
	c.Close()
	return nil, err
}
