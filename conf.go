package qsock

import (
	"context"

	"github.com/go-kit/kit/metrics"
)

// ServerBinding contains binding infos
type ServerBinding struct {
	Addr          string  // see ParseEndpoint
	Handler       Handler // handler to invoke
	ListenOptions []ListenOption
	// ListenFunc overrides how Addr is bound, Listen is used when nil
	ListenFunc func(ctx context.Context, addr string, opts ...ListenOption) (*Listener, error)

	DefaultReadTimeout  int // seconds, <= 0 for none
	DefaultWriteTimeout int // seconds, <= 0 for none
	AcceptRate          int // accepts per second, <= 0 for unlimited

	CounterMetric metrics.Counter   // accepted connections
	LatencyMetric metrics.Histogram // connection lifetime in seconds
}
