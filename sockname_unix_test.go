//go:build unix

package qsock

import (
	"runtime"
	"testing"

	"golang.org/x/sys/unix"
	"gotest.tools/v3/assert"
)

func TestSockaddrToAddr(t *testing.T) {
	a, err := sockaddrToAddr(&unix.SockaddrInet4{Port: 80, Addr: [4]byte{127, 0, 0, 1}})
	assert.NilError(t, err)
	assert.Equal(t, a.Kind(), KindTCP)
	assert.Equal(t, a.String(), "127.0.0.1:80")

	a, err = sockaddrToAddr(&unix.SockaddrInet6{Port: 443, Addr: [16]byte{15: 1}})
	assert.NilError(t, err)
	assert.Equal(t, a.String(), "[::1]:443")

	a, err = sockaddrToAddr(&unix.SockaddrUnix{Name: "@abstract"})
	assert.NilError(t, err)
	assert.Equal(t, a.Kind(), KindUnix)
	assert.Equal(t, a.String(), "@abstract")

	_, err = sockaddrToAddr(nil)
	assert.ErrorContains(t, err, "sockaddr")
}

func TestSockaddrCopiesIP(t *testing.T) {
	sa := &unix.SockaddrInet4{Port: 1, Addr: [4]byte{10, 0, 0, 1}}
	a, err := sockaddrToAddr(sa)
	assert.NilError(t, err)

	sa.Addr[0] = 192
	assert.Equal(t, a.String(), "10.0.0.1:1")
}

func TestPeerAddressUnnamed(t *testing.T) {
	server, _ := connPair(t, KindUnix)

	peer, err := server.PeerAddress()
	assert.NilError(t, err)
	assert.Equal(t, peer.Kind(), KindUnix)
	u, ok := peer.Unix()
	assert.Assert(t, ok)
	assert.Assert(t, u.Name == "@" || u.Name == "", "unnamed peer rendered as %q", u.Name)

	if runtime.GOOS == "linux" {
		assert.Equal(t, peer.String(), "@")
		assert.Equal(t, server.RemoteAddr().String(), "@")
	}
}
