//go:build unix

package qsock

import (
	"net"
	"os"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// writev is available for both UNIX and TCP stream sockets.
const writevSupported = true

func sockname(s syscall.Conn) (Addr, error) {
	return querySockaddr(s, "getsockname", unix.Getsockname)
}

func peername(s syscall.Conn) (Addr, error) {
	return querySockaddr(s, "getpeername", unix.Getpeername)
}

// querySockaddr asks the OS on every call, nothing is cached on our side.
func querySockaddr(s syscall.Conn, op string, query func(fd int) (unix.Sockaddr, error)) (Addr, error) {
	rc, err := s.SyscallConn()
	if err != nil {
		return Addr{}, err
	}

	var (
		sa   unix.Sockaddr
		qerr error
	)
	err = rc.Control(func(fd uintptr) {
		sa, qerr = query(int(fd))
	})
	if err != nil {
		return Addr{}, err
	}
	if qerr != nil {
		return Addr{}, os.NewSyscallError(op, qerr)
	}

	return sockaddrToAddr(sa)
}

func sockaddrToAddr(sa unix.Sockaddr) (Addr, error) {
	switch sa := sa.(type) {
	case *unix.SockaddrUnix:
		return unixAddr(&net.UnixAddr{Name: sa.Name, Net: "unix"}), nil
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, sa.Addr[:])
		return tcpAddr(&net.TCPAddr{IP: ip, Port: sa.Port}), nil
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, sa.Addr[:])
		return tcpAddr(&net.TCPAddr{IP: ip, Port: sa.Port, Zone: zoneName(sa.ZoneId)}), nil
	default:
		return Addr{}, os.NewSyscallError("sockaddr", unix.EAFNOSUPPORT)
	}
}

func zoneName(id uint32) string {
	if id == 0 {
		return ""
	}
	if ifi, err := net.InterfaceByIndex(int(id)); err == nil {
		return ifi.Name
	}
	return strconv.FormatUint(uint64(id), 10)
}
