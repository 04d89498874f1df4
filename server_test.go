package qsock

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/kit/metrics/generic"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/poll"
)

func roundTrip(t *testing.T, network, address string, payload []byte) []byte {
	t.Helper()
	c, err := net.Dial(network, address)
	assert.NilError(t, err)
	defer c.Close()

	_, err = c.Write(payload)
	assert.NilError(t, err)
	assert.NilError(t, c.(closeWriter).CloseWrite())

	got, err := io.ReadAll(c)
	assert.NilError(t, err)
	return got
}

func TestServerEcho(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			counter := generic.NewCounter("accepted")
			srv := NewServer([]ServerBinding{{
				Handler:            HandlerWithMW(Echo(), LogConn),
				DefaultReadTimeout: 5,
				CounterMetric:      counter,
				LatencyMetric:      generic.NewHistogram("lifetime", 10),
			}})

			ln := newTestListener(t, kind)
			addr := ln.Addr()
			serveErr := make(chan error, 1)
			go func() { serveErr <- srv.Serve(0, ln) }()

			for i := 0; i < 3; i++ {
				got := roundTrip(t, addr.Network(), addr.String(), []byte("hello qsock"))
				assert.Equal(t, string(got), "hello qsock")
			}
			assert.Equal(t, counter.Value(), float64(3))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			assert.NilError(t, srv.Shutdown(ctx))
			assert.Equal(t, <-serveErr, ErrServerClosed)
		})
	}
}

func TestServerListenAndServe(t *testing.T) {
	path := socketPath(t)
	srv := NewServer([]ServerBinding{{Addr: "unix://" + path, Handler: Echo(), AcceptRate: 100}})
	assert.NilError(t, srv.ListenAndServe())
	defer srv.Close()

	got := roundTrip(t, "unix", path, []byte("over unix"))
	assert.Equal(t, string(got), "over unix")
}

func TestServerListenAndServeBindError(t *testing.T) {
	srv := NewServer([]ServerBinding{{Addr: "not an endpoint", Handler: Echo()}})
	assert.Assert(t, srv.ListenAndServe() != nil)
}

func TestServerServeAfterClose(t *testing.T) {
	srv := NewServer([]ServerBinding{{Handler: Echo()}})
	assert.NilError(t, srv.Close())

	ln := newTestListener(t, KindTCP)
	assert.Equal(t, srv.Serve(0, ln), ErrServerClosed)
}

func TestServerMiddlewareRejects(t *testing.T) {
	srv := NewServer([]ServerBinding{{Handler: HandlerWithMW(Echo(), OnlyKinds(KindTCP))}})
	ln := newTestListener(t, KindUnix)
	go srv.Serve(0, ln)
	defer srv.Close()

	c := dial(t, ln)
	n, err := c.Read(make([]byte, 1))
	assert.Equal(t, n, 0)
	assert.Equal(t, err, io.EOF)
}

func TestServerConnectionInfo(t *testing.T) {
	infoCh := make(chan *ConnectionInfo, 1)
	srv := NewServer([]ServerBinding{{
		Handler: HandlerFunc(func(ctx context.Context, c *Conn) {
			infoCh <- ConnectionInfoFromContext(ctx)
		}),
		DefaultWriteTimeout: 7,
	}})
	ln := newTestListener(t, KindTCP)
	go srv.Serve(0, ln)
	defer srv.Close()

	dial(t, ln)
	ci := <-infoCh
	assert.Assert(t, ci != nil)
	assert.Equal(t, ci.ID, uint64(1))
	assert.Equal(t, ci.Binding, 0)
	assert.Equal(t, ci.WriteTimeout, 7)

	assert.Assert(t, ConnectionInfoFromContext(context.Background()) == nil)
}

func TestServerCloseUnblocksHandlers(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			handled := make(chan struct{})
			srv := NewServer([]ServerBinding{{
				Handler: HandlerFunc(func(ctx context.Context, c *Conn) {
					defer close(handled)
					io.Copy(io.Discard, c)
				}),
			}})
			ln := newTestListener(t, kind)
			go srv.Serve(0, ln)

			dial(t, ln)
			poll.WaitOn(t, func(poll.LogT) poll.Result {
				if srv.ActiveConns() == 1 {
					return poll.Success()
				}
				return poll.Continue("waiting for the connection")
			})

			assert.NilError(t, srv.Close())
			select {
			case <-handled:
			case <-time.After(5 * time.Second):
				t.Fatal("handler still blocked after Close")
			}
			poll.WaitOn(t, func(poll.LogT) poll.Result {
				if srv.ActiveConns() == 0 {
					return poll.Success()
				}
				return poll.Continue("%d active", srv.ActiveConns())
			})
		})
	}
}

func TestServerShutdownTimeout(t *testing.T) {
	srv := NewServer([]ServerBinding{{
		Handler: HandlerFunc(func(ctx context.Context, c *Conn) {
			<-ctx.Done()
		}),
	}})
	ln := newTestListener(t, KindTCP)
	go srv.Serve(0, ln)

	dial(t, ln)
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if srv.ActiveConns() == 1 {
			return poll.Success()
		}
		return poll.Continue("waiting for the connection")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.Equal(t, srv.Shutdown(ctx), context.DeadlineExceeded)
	assert.Equal(t, srv.ActiveConns(), 0)
}

func TestServerCloseWaitsForHandlers(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			var finished int32
			started := make(chan struct{})
			srv := NewServer([]ServerBinding{{
				Handler: HandlerFunc(func(ctx context.Context, c *Conn) {
					close(started)
					io.Copy(io.Discard, c)
					time.Sleep(50 * time.Millisecond)
					atomic.StoreInt32(&finished, 1)
				}),
			}})
			ln := newTestListener(t, kind)
			go srv.Serve(0, ln)

			dial(t, ln)
			<-started
			assert.NilError(t, srv.Close())
			assert.Equal(t, atomic.LoadInt32(&finished), int32(1))
		})
	}
}

func TestServerServeErrors(t *testing.T) {
	var ln *Listener
	srv := NewServer([]ServerBinding{{
		Addr:    "tcp://127.0.0.1:0",
		Handler: Echo(),
		ListenFunc: func(ctx context.Context, addr string, opts ...ListenOption) (*Listener, error) {
			var err error
			ln, err = Listen(ctx, addr, opts...)
			return ln, err
		},
	}})
	assert.NilError(t, srv.ListenAndServe())
	defer srv.Close()

	// the accept loop dies when its listener is closed under it
	assert.NilError(t, ln.Close())
	select {
	case err := <-srv.ServeErrors():
		assert.Assert(t, errors.Is(err, net.ErrClosed))
	case <-time.After(5 * time.Second):
		t.Fatal("accept loop error not reported")
	}
}

func TestServerRecoversPanic(t *testing.T) {
	srv := NewServer([]ServerBinding{{
		Handler: HandlerFunc(func(ctx context.Context, c *Conn) {
			panic("boom")
		}),
	}})
	ln := newTestListener(t, KindUnix)
	go srv.Serve(0, ln)
	defer srv.Close()

	c := dial(t, ln)
	_, err := c.Read(make([]byte, 1))
	assert.Equal(t, err, io.EOF)

	// still accepting
	c = dial(t, ln)
	_, err = c.Read(make([]byte, 1))
	assert.Equal(t, err, io.EOF)
}
