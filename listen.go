package qsock

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"

	reuse "github.com/zhiqiangxu/go-reuseport"
	"go.uber.org/zap"
)

// Endpoint is a parsed listen address
type Endpoint struct {
	Kind    Kind
	Address string
}

func (e Endpoint) String() string {
	return e.Kind.Network() + "://" + e.Address
}

// ErrEmptyEndpoint when an endpoint has no address part
var ErrEmptyEndpoint = errors.New("qsock: empty endpoint")

// ParseEndpoint accepts
//
//	unix:///run/app.sock, unix:app.sock, /run/app.sock, ./app.sock, @abstract
//	tcp://127.0.0.1:8080, 127.0.0.1:8080, :8080
func ParseEndpoint(s string) (Endpoint, error) {
	switch {
	case strings.HasPrefix(s, "unix://"):
		return unixEndpoint(strings.TrimPrefix(s, "unix://"))
	case strings.HasPrefix(s, "unix:"):
		return unixEndpoint(strings.TrimPrefix(s, "unix:"))
	case strings.HasPrefix(s, "tcp://"):
		return tcpEndpoint(strings.TrimPrefix(s, "tcp://"))
	case strings.HasPrefix(s, "/"), strings.HasPrefix(s, "./"), strings.HasPrefix(s, "../"), strings.HasPrefix(s, "@"):
		return unixEndpoint(s)
	default:
		return tcpEndpoint(s)
	}
}

func unixEndpoint(path string) (Endpoint, error) {
	if path == "" {
		return Endpoint{}, ErrEmptyEndpoint
	}
	return Endpoint{Kind: KindUnix, Address: path}, nil
}

func tcpEndpoint(addr string) (Endpoint, error) {
	if addr == "" {
		return Endpoint{}, ErrEmptyEndpoint
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return Endpoint{}, fmt.Errorf("qsock: invalid tcp endpoint: %w", err)
	}
	return Endpoint{Kind: KindTCP, Address: addr}, nil
}

type listenOptions struct {
	removeStale bool
	mode        os.FileMode
	reusePort   bool
	unlink      *bool
}

// ListenOption tunes how a socket is bound
type ListenOption func(*listenOptions)

// WithRemoveStale removes a socket file left over at the path before binding.
// A path that exists but is not a socket is never removed.
func WithRemoveStale() ListenOption {
	return func(o *listenOptions) {
		o.removeStale = true
	}
}

// WithSocketMode chmods the socket file after binding
func WithSocketMode(mode os.FileMode) ListenOption {
	return func(o *listenOptions) {
		o.mode = mode
	}
}

// WithReusePort sets SO_REUSEPORT on a TCP socket so several processes can share the port
func WithReusePort() ListenOption {
	return func(o *listenOptions) {
		o.reusePort = true
	}
}

// WithUnlinkOnClose overrides whether closing the listener removes the socket file
func WithUnlinkOnClose(unlink bool) ListenOption {
	return func(o *listenOptions) {
		o.unlink = &unlink
	}
}

func applyListenOptions(opts []ListenOption) listenOptions {
	var o listenOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Listen binds the endpoint described by s, see ParseEndpoint
func Listen(ctx context.Context, s string, opts ...ListenOption) (*Listener, error) {
	ep, err := ParseEndpoint(s)
	if err != nil {
		return nil, err
	}
	return ListenEndpoint(ctx, ep, opts...)
}

// ListenEndpoint binds ep
func ListenEndpoint(ctx context.Context, ep Endpoint, opts ...ListenOption) (*Listener, error) {
	switch ep.Kind {
	case KindUnix:
		return ListenUnix(ctx, ep.Address, opts...)
	case KindTCP:
		return ListenTCP(ctx, ep.Address, opts...)
	default:
		return nil, &net.OpError{Op: "listen", Err: syscall.EINVAL}
	}
}

// ListenUnix binds a UNIX stream socket at path.
// A leading '@' selects the Linux abstract namespace.
func ListenUnix(ctx context.Context, path string, opts ...ListenOption) (*Listener, error) {
	o := applyListenOptions(opts)
	abstract := strings.HasPrefix(path, "@")

	if o.removeStale && !abstract {
		if err := removeStaleSocket(path); err != nil {
			return nil, err
		}
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", path)
	if err != nil {
		return nil, err
	}
	ul := ln.(*net.UnixListener)

	if o.mode != 0 && !abstract {
		if err = os.Chmod(path, o.mode); err != nil {
			ul.Close()
			return nil, err
		}
	}
	if o.unlink != nil {
		ul.SetUnlinkOnClose(*o.unlink)
	}

	l.Info("listen", kindField(KindUnix), zap.String("addr", path))
	return NewUnixListener(ul), nil
}

// ListenTCP binds a TCP socket at addr
func ListenTCP(ctx context.Context, addr string, opts ...ListenOption) (*Listener, error) {
	o := applyListenOptions(opts)

	var (
		ln  net.Listener
		err error
	)
	if o.reusePort {
		ln, err = reuse.Listen("tcp", addr)
	} else {
		var lc net.ListenConfig
		ln, err = lc.Listen(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}

	tl, ok := ln.(*net.TCPListener)
	if !ok {
		err = &net.OpError{Op: "listen", Net: "tcp", Addr: ln.Addr(), Err: syscall.EPROTOTYPE}
		ln.Close()
		return nil, err
	}

	l.Info("listen", kindField(KindTCP), zap.String("addr", tl.Addr().String()), zap.Bool("reuseport", o.reusePort))
	return NewTCPListener(tl), nil
}

func removeStaleSocket(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("qsock: %s exists and is not a socket", path)
	}
	if err = os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("qsock: remove stale socket: %w", err)
	}

	l.Info("removed stale socket", zap.String("path", path))
	return nil
}
