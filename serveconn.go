package qsock

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// A serveconn represents the server side of a connection.
type serveconn struct {
	// server is the server on which the connection arrived.
	server *Server
	idx    int

	// cancelCtx cancels the connection-level context.
	cancelCtx context.CancelFunc
	ctx       context.Context

	rwc  *Conn
	info *ConnectionInfo
}

// ConnectionInfo describes a connection being served,
// handlers get it with ConnectionInfoFromContext
type ConnectionInfo struct {
	ID           uint64
	Binding      int // index into the server's bindings
	Accepted     time.Time
	ReadTimeout  int // seconds, copied from the binding
	WriteTimeout int // seconds, copied from the binding
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string { return "qsock context value " + k.name }

var connectionInfoKey = &contextKey{"connection-info"}

// ConnectionInfoFromContext returns nil outside a Server handler
func ConnectionInfoFromContext(ctx context.Context) *ConnectionInfo {
	ci, _ := ctx.Value(connectionInfoKey).(*ConnectionInfo)
	return ci
}

// Serve a new connection.
func (sc *serveconn) serve() {
	binding := &sc.server.bindings[sc.idx]

	defer func() {
		if err := recover(); err != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			l.Error("panic serving", kindField(sc.rwc.Kind()), zap.Uint64("id", sc.info.ID), zap.Any("err", err), zap.ByteString("stack", buf))
		}
		sc.close()
		if binding.LatencyMetric != nil {
			binding.LatencyMetric.Observe(time.Since(sc.info.Accepted).Seconds())
		}
	}()

	// unblocks the handler's pending reads and writes on Server.Close
	stop := context.AfterFunc(sc.ctx, func() {
		sc.rwc.Close()
	})
	defer stop()

	binding.Handler.ServeConn(sc.ctx, sc.rwc)
}

// Close the connection.
func (sc *serveconn) close() {
	sc.rwc.Close()
	sc.cancelCtx()
	sc.server.activeConn[sc.idx].Delete(sc)
}
