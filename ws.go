package qsock

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var connKey = &contextKey{"conn"}

// ServeHTTP serves h on ln until ctx is done. Request contexts carry the
// accepted *Conn, see ConnFromRequest.
func ServeHTTP(ctx context.Context, ln *Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:     h,
		BaseContext: func(net.Listener) context.Context { return ctx },
		ConnContext: func(ctx context.Context, c net.Conn) context.Context {
			if qc, ok := c.(*Conn); ok {
				return context.WithValue(ctx, connKey, qc)
			}
			return ctx
		},
	}

	stop := context.AfterFunc(ctx, func() {
		srv.Close()
	})
	defer stop()

	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) && ctx.Err() != nil {
		return nil
	}
	return err
}

// ConnFromRequest returns the connection r arrived on when served by ServeHTTP
func ConnFromRequest(r *http.Request) (*Conn, bool) {
	c, ok := r.Context().Value(connKey).(*Conn)
	return c, ok
}

var upgrader = websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096}

// WebsocketEcho upgrades every request to a websocket and echoes each message back
func WebsocketEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			l.Error("websocket upgrade", zap.Error(err))
			return
		}
		defer ws.Close()

		if c, ok := ConnFromRequest(r); ok {
			l.Info("websocket", kindField(c.Kind()))
		}

		for {
			mt, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err = ws.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	})
}
