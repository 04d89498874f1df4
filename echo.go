package qsock

import (
	"context"
	"io"

	"go.uber.org/zap"
)

const echoBufSize = 32 * 1024

// Echo returns a Handler that writes back everything it reads. When the peer
// shuts down its write side, Echo shuts down its own. Read and write timeouts
// come from the binding.
func Echo() Handler {
	return HandlerFunc(serveEcho)
}

func serveEcho(ctx context.Context, c *Conn) {
	readTimeout, writeTimeout := ReadNoTimeout, WriteNoTimeout
	if ci := ConnectionInfoFromContext(ctx); ci != nil {
		if ci.ReadTimeout > 0 {
			readTimeout = ci.ReadTimeout
		}
		if ci.WriteTimeout > 0 {
			writeTimeout = ci.WriteTimeout
		}
	}

	r := NewReaderWithTimeout(c, readTimeout)
	w := NewWriterWithTimeout(ctx, c, writeTimeout)
	buf := make([]byte, echoBufSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				l.Error("echo write", kindField(c.Kind()), zap.Error(werr))
				return
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			l.Error("echo read", kindField(c.Kind()), zap.Error(err))
			return
		}
	}

	if err := w.Flush(); err != nil {
		l.Error("echo flush", kindField(c.Kind()), zap.Error(err))
		return
	}
	if err := c.Shutdown(); err != nil {
		l.Error("echo shutdown", kindField(c.Kind()), zap.Error(err))
	}
}
