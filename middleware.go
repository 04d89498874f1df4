package qsock

import (
	"context"

	"go.uber.org/zap"
)

// MiddlewareFunc runs before the handler, returning false closes the
// connection without calling the handler
type MiddlewareFunc func(ctx context.Context, c *Conn) bool

// HandlerWithMW wraps a handle with middleware
func HandlerWithMW(handler Handler, middleware ...MiddlewareFunc) Handler {
	if len(middleware) == 0 {
		return handler
	}

	return &handlerMW{handler: handler, mw: middleware}
}

type handlerMW struct {
	mw      []MiddlewareFunc
	handler Handler
}

func (h *handlerMW) ServeConn(ctx context.Context, c *Conn) {
	for _, middleware := range h.mw {
		if !middleware(ctx, c) {
			return
		}
	}

	h.handler.ServeConn(ctx, c)
}

// LogConn logs both ends of every connection, it never rejects
func LogConn(ctx context.Context, c *Conn) bool {
	fields := []zap.Field{kindField(c.Kind())}
	if ci := ConnectionInfoFromContext(ctx); ci != nil {
		fields = append(fields, zap.Uint64("id", ci.ID))
	}
	if local, err := c.LocalAddress(); err == nil {
		fields = append(fields, zap.Stringer("local", local))
	}
	if peer, err := c.PeerAddress(); err == nil {
		fields = append(fields, zap.Stringer("peer", peer))
	}
	l.Info("conn", fields...)
	return true
}

// OnlyKinds rejects connections whose transport is not listed
func OnlyKinds(kinds ...Kind) MiddlewareFunc {
	return func(ctx context.Context, c *Conn) bool {
		for _, k := range kinds {
			if c.Kind() == k {
				return true
			}
		}
		return false
	}
}
