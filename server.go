package qsock

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// A Handler serves one accepted connection. The server closes c once
// ServeConn returns, and ctx is cancelled when the server is closed.
type Handler interface {
	ServeConn(ctx context.Context, c *Conn)
}

// The HandlerFunc type is an adapter to allow the use of
// ordinary functions as handlers.
type HandlerFunc func(context.Context, *Conn)

// ServeConn calls f(ctx, c).
func (f HandlerFunc) ServeConn(ctx context.Context, c *Conn) {
	f(ctx, c)
}

// Server accepts on any number of bindings, each either UNIX or TCP,
// and hands every connection to the binding's Handler.
type Server struct {
	// one handler for each listening address
	bindings []ServerBinding

	// manages below two
	mu        sync.Mutex
	listeners map[*Listener]struct{}
	doneChan  chan struct{}
	closed    bool

	baseCtx    context.Context
	cancelBase context.CancelFunc

	activeConn []sync.Map // map[*serveconn]struct{}
	wg         sync.WaitGroup

	errChan chan error

	connID uint64
}

// NewServer creates a server
func NewServer(bindings []ServerBinding) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		bindings:   bindings,
		listeners:  make(map[*Listener]struct{}),
		doneChan:   make(chan struct{}),
		baseCtx:    ctx,
		cancelBase: cancel,
		activeConn: make([]sync.Map, len(bindings)),
		errChan:    make(chan error, len(bindings))}
}

// ListenAndServe binds every binding and serves them in the background.
// If any binding fails to bind, the ones already bound are closed.
// An accept loop that stops on its own reports to ServeErrors.
func (srv *Server) ListenAndServe() error {

	for idx, binding := range srv.bindings {
		listen := binding.ListenFunc
		if listen == nil {
			listen = Listen
		}
		ln, err := listen(srv.baseCtx, binding.Addr, binding.ListenOptions...)
		if err != nil {
			l.Error("ListenAndServe", zap.String("addr", binding.Addr), zap.Error(err))
			srv.Close()
			return err
		}

		go srv.serveBinding(idx, ln)
	}

	return nil
}

func (srv *Server) serveBinding(idx int, ln *Listener) {
	err := srv.Serve(idx, ln)
	if err == ErrServerClosed {
		return
	}
	l.Error("Serve", zap.String("addr", srv.bindings[idx].Addr), zap.Error(err))
	srv.errChan <- err
}

// ServeErrors yields the error of every binding whose accept loop,
// started by ListenAndServe, died before the server was closed
func (srv *Server) ServeErrors() <-chan error {
	return srv.errChan
}

// ErrServerClosed is returned by the Server's Serve
// method after a call to Shutdown or Close.
var ErrServerClosed = errors.New("qsock: Server closed")

// Serve accepts incoming connections on ln for binding idx, creating a
// new service goroutine for each.
//
// Serve always returns a non-nil error and closes ln. After Shutdown or Close,
// the returned error is ErrServerClosed. Temporary accept errors never stop it.
func (srv *Server) Serve(idx int, ln *Listener) error {

	defer ln.Close()
	if !srv.trackListener(ln, true) {
		return ErrServerClosed
	}
	defer srv.trackListener(ln, false)

	binding := &srv.bindings[idx]
	var limiter ratelimit.Limiter
	if binding.AcceptRate > 0 {
		limiter = ratelimit.New(binding.AcceptRate)
	}

	var tempDelay time.Duration // how long to sleep on accept failure
	for {
		if limiter != nil {
			limiter.Take()
		}
		c, e := ln.AcceptConn()
		if e != nil {
			select {
			case <-srv.doneChan:
				return ErrServerClosed
			default:
			}
			if ne, ok := e.(net.Error); ok && (ne.Temporary() || ne.Timeout()) {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				l.Error("Accept", kindField(ln.Kind()), zap.Error(e), zap.Duration("retryIn", tempDelay))
				time.Sleep(tempDelay)
				continue
			}
			l.Error("Accept", kindField(ln.Kind()), zap.Error(e))
			return e
		}
		tempDelay = 0

		if binding.CounterMetric != nil {
			binding.CounterMetric.Add(1)
		}

		srv.mu.Lock()
		if srv.closed {
			srv.mu.Unlock()
			c.Close()
			return ErrServerClosed
		}
		sc := srv.newConn(idx, c)
		GoFunc(&srv.wg, sc.serve)
		srv.mu.Unlock()
	}
}

// trackListener returns false when adding to a closed server
func (srv *Server) trackListener(ln *Listener, add bool) bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if add {
		if srv.closed {
			return false
		}
		srv.listeners[ln] = struct{}{}
	} else {
		delete(srv.listeners, ln)
	}
	return true
}

// Create new connection from c.
func (srv *Server) newConn(idx int, c *Conn) *serveconn {
	binding := &srv.bindings[idx]
	info := &ConnectionInfo{
		ID:           atomic.AddUint64(&srv.connID, 1),
		Binding:      idx,
		Accepted:     time.Now(),
		ReadTimeout:  binding.DefaultReadTimeout,
		WriteTimeout: binding.DefaultWriteTimeout,
	}
	ctx, cancel := context.WithCancel(context.WithValue(srv.baseCtx, connectionInfoKey, info))
	sc := &serveconn{server: srv, idx: idx, rwc: c, info: info, ctx: ctx, cancelCtx: cancel}
	srv.activeConn[idx].Store(sc, struct{}{})
	return sc
}

var shutdownPollInterval = 500 * time.Millisecond

// Shutdown stops accepting and waits for active connections to finish.
// When ctx expires first, the remaining connections are closed, their
// handlers are waited for and ctx.Err() is returned.
func (srv *Server) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	lnerr := srv.closeListeners()

	ticker := time.NewTicker(shutdownPollInterval)
	defer ticker.Stop()
	for {
		if srv.waitConnDone() {
			srv.cancelBase()
			srv.wg.Wait()
			return lnerr
		}
		select {
		case <-ctx.Done():
			srv.cancelBase()
			srv.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops accepting, closes all active connections and returns once
// their handlers have returned. Handlers must not call it.
func (srv *Server) Close() error {
	err := srv.closeListeners()
	srv.cancelBase()
	srv.wg.Wait()
	return err
}

// ActiveConns counts connections currently being served
func (srv *Server) ActiveConns() (n int) {
	for idx := range srv.activeConn {
		srv.activeConn[idx].Range(func(key, value interface{}) bool {
			n++
			return true
		})
	}
	return
}

func (srv *Server) waitConnDone() bool {
	done := true
	for idx := 0; done && idx < len(srv.bindings); idx++ {
		srv.activeConn[idx].Range(func(key, value interface{}) bool {
			done = false
			return false
		})
	}

	return done
}

func (srv *Server) closeListeners() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if !srv.closed {
		srv.closed = true
		close(srv.doneChan)
	}

	var err error
	for ln := range srv.listeners {
		if cerr := ln.Close(); cerr != nil && err == nil {
			err = cerr
		}
		delete(srv.listeners, ln)
	}
	return err
}
