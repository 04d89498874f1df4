package qsock

import (
	"context"
	"net"
	"net/http"
	"testing"

	"github.com/gorilla/websocket"
	"gotest.tools/v3/assert"
)

func TestWebsocketEcho(t *testing.T) {
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			ln := newTestListener(t, kind)
			addr := ln.Addr()

			ctx, cancel := context.WithCancel(context.Background())
			served := make(chan error, 1)
			go func() { served <- ServeHTTP(ctx, ln, WebsocketEcho()) }()

			dialer := websocket.Dialer{
				NetDial: func(string, string) (net.Conn, error) {
					return net.Dial(addr.Network(), addr.String())
				},
			}
			ws, _, err := dialer.Dial("ws://qsock/echo", nil)
			assert.NilError(t, err)
			defer ws.Close()

			assert.NilError(t, ws.WriteMessage(websocket.TextMessage, []byte("hello")))
			mt, msg, err := ws.ReadMessage()
			assert.NilError(t, err)
			assert.Equal(t, mt, websocket.TextMessage)
			assert.Equal(t, string(msg), "hello")

			cancel()
			assert.NilError(t, <-served)
		})
	}
}

func TestConnFromRequest(t *testing.T) {
	ln := newTestListener(t, KindUnix)
	addr := ln.Addr()

	kindCh := make(chan Kind, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ServeHTTP(ctx, ln, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ConnFromRequest(r)
		if ok {
			kindCh <- c.Kind()
		} else {
			kindCh <- 0
		}
	}))

	client := http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, addr.Network(), addr.String())
		},
	}}
	resp, err := client.Get("http://qsock/")
	assert.NilError(t, err)
	resp.Body.Close()
	assert.Equal(t, resp.StatusCode, http.StatusOK)
	assert.Equal(t, <-kindCh, KindUnix)
}
