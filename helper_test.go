package qsock

import (
	"net"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"
)

var kinds = []Kind{KindUnix, KindTCP}

// socketPath returns a path short enough for sun_path
func socketPath(t *testing.T) string {
	t.Helper()
	dir := fs.NewDir(t, "qsock")
	t.Cleanup(dir.Remove)
	return filepath.Join(dir.Path(), "test.sock")
}

func newTestListener(t *testing.T, kind Kind) *Listener {
	t.Helper()

	var ln *Listener
	switch kind {
	case KindUnix:
		ul, err := net.ListenUnix("unix", &net.UnixAddr{Name: socketPath(t), Net: "unix"})
		assert.NilError(t, err)
		ln = NewUnixListener(ul)
	case KindTCP:
		tl, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
		assert.NilError(t, err)
		ln = NewTCPListener(tl)
	default:
		t.Fatalf("unknown kind %v", kind)
	}

	t.Cleanup(func() { ln.Close() })
	return ln
}

func dial(t *testing.T, ln *Listener) net.Conn {
	t.Helper()
	addr := ln.Addr()
	c, err := net.Dial(addr.Network(), addr.String())
	assert.NilError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// connPair returns the accepted side and the dialing side
func connPair(t *testing.T, kind Kind) (*Conn, net.Conn) {
	t.Helper()
	ln := newTestListener(t, kind)
	client := dial(t, ln)
	server, err := ln.AcceptConn()
	assert.NilError(t, err)
	t.Cleanup(func() { server.Close() })
	return server, client
}

type closeWriter interface {
	CloseWrite() error
}
